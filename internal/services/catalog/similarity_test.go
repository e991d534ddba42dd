package catalog

import (
	"errors"
	"math"
	"testing"
)

func TestTokenSortRatio(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"PIMENTAO VERDE PACOTE", "PIMENTAO VERDE PACOTE", 100},
		{"VERDE PIMENTAO", "PIMENTAO VERDE", 100},
		{"", "", 100},
		{"ABC", "", 0},
		{"ABC", "XYZ", 0},
		// "AB" vs "AC": one substitution costs 2 of lensum 4
		{"AB", "AC", 50},
		// "TOMATE" vs "TOMATES": one insertion of lensum 13
		{"TOMATE", "TOMATES", 12.0 / 13.0 * 100},
	}

	for _, tt := range tests {
		got := TokenSortRatio(tt.a, tt.b)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("TokenSortRatio(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestTokenSortRatioSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"QUEIJO MUSSARELA", "MUSSARELA FATIADA"},
		{"ALFACE CRESPA", "ALFACE AMERICANA UN"},
		{"A", "BANANA PRATA"},
	}
	for _, p := range pairs {
		ab, ba := TokenSortRatio(p[0], p[1]), TokenSortRatio(p[1], p[0])
		if ab != ba {
			t.Errorf("not symmetric for %q/%q: %v vs %v", p[0], p[1], ab, ba)
		}
		if ab < 0 || ab > 100 {
			t.Errorf("score out of range for %q/%q: %v", p[0], p[1], ab)
		}
	}
}

func TestSortTokens(t *testing.T) {
	if got := sortTokens("  VERDE   PIMENTAO PACOTE "); got != "PACOTE PIMENTAO VERDE" {
		t.Errorf("got %q, want %q", got, "PACOTE PIMENTAO VERDE")
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(ProductInput{Code: "X"}); err != nil {
		t.Errorf("valid input rejected: %v", err)
	}

	err := Validate(ProductInput{Name: "no code"})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("got %v, want *ValidationError", err)
	}
	if ve.Field != "code" {
		t.Errorf("got field %q, want %q", ve.Field, "code")
	}
}
