package catalog

import (
	"sort"
	"strings"

	"github.com/xrash/smetrics"
)

// TokenSortRatio scores two strings 0..100 ignoring token order.
// Tokens are split on whitespace, sorted and rejoined; the score is the
// normalized Indel similarity (insert/delete cost 1, substitution cost 2).
// Two empty strings score 100.
func TokenSortRatio(a, b string) float64 {
	sa, sb := sortTokens(a), sortTokens(b)

	lensum := len(sa) + len(sb)
	if lensum == 0 {
		return 100
	}
	dist := smetrics.WagnerFischer(sa, sb, 1, 1, 2)
	return float64(lensum-dist) / float64(lensum) * 100
}

func sortTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}
