package utils

import "testing"

func TestNormalizeName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Pimentão Verde Pct", "PIMENTAO VERDE PACOTE"},
		{"PIMENTAO VERDE PACOTE", "PIMENTAO VERDE PACOTE"},
		{"  pimentão   verde  PCTE. ", "PIMENTAO VERDE PACOTE"},
		{"Queijo Mussarela EMB. 500g", "QUEIJO MUSSARELA EMBALADA 500G"},
		{"Linguiça Pta", "LINGUICA PAULISTA"},
		{"Pão de Açúcar (PCT 5un)", "PAO DE ACUCAR PACOTE 5UN"},
		{"Café-com-leite/1L", "CAFE COM LEITE 1L"},
		{"ABCPCT", "ABCPCT"},
		{"PCTX", "PCTX"},
		{"Ñandú\tazul\nclaro", "NANDU AZUL CLARO"},
		{"PCT_500G", "PACOTE 500G"},
		{"Queijo EMB_1kg", "QUEIJO EMBALADA 1KG"},
		{"linguica_pta", "LINGUICA PAULISTA"},
		{"日本", ""},
		{"  --  ", ""},
		{"", ""},
	}

	for _, c := range cases {
		if got := NormalizeName(c.in); got != c.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeNameIdempotent(t *testing.T) {
	inputs := []string{
		"Pimentão Verde Pct",
		"Açaí EMB. 1kg",
		"PCT PCT PCTE pta",
		"x́y̧",
		"!!!",
		"Óleo de soja 900ml - Pct c/ 20",
		"PCT_500G",
		"Queijo EMB_1kg",
		"linguica_pta",
		"a_pcte.pct_emb.",
	}

	for _, in := range inputs {
		once := NormalizeName(in)
		twice := NormalizeName(once)
		if once != twice {
			t.Errorf("not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}
