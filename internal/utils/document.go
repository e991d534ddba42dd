package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// CleanDocument strips everything but digits from a CPF/CNPJ.
func CleanDocument(doc string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, doc)
}

// DocumentType reports "CPF" for 11-digit documents and "CNPJ" otherwise.
func DocumentType(doc string) string {
	if len(CleanDocument(doc)) == 11 {
		return "CPF"
	}
	return "CNPJ"
}

// ContentHash returns the hex SHA-256 of data, used to deduplicate uploaded documents.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// StringPtr returns nil for blank strings, otherwise a pointer to the trimmed value.
func StringPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// IsBlank reports whether s has no printable content.
func IsBlank(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return !unicode.IsSpace(r) }) < 0
}
