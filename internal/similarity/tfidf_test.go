package similarity

import (
	"context"
	"math"
	"testing"
)

func TestTFIDFCosine(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
		desc string
	}{
		{"no water supply for 3 days", "water not restored in sector 5", 0.11234, "one shared term"},
		{"no water supply", "No Water Supply!", 1, "case and punctuation ignored"},
		{"pothole on main road", "electricity bill dispute", 0, "disjoint"},
		{"", "water", 0, "empty side"},
		{"a b c", "a b c", 0, "single-character tokens dropped"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			got := TFIDFCosine(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-4 {
				t.Errorf("TFIDFCosine(%q, %q) = %.5f, want %.5f", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestTFIDFCosine_Symmetric(t *testing.T) {
	a := "garbage not collected near the bus stand"
	b := "garbage piling up at bus stand for days"

	if TFIDFCosine(a, b) != TFIDFCosine(b, a) {
		t.Error("expected symmetric similarity")
	}
}

func TestTokens(t *testing.T) {
	got := Tokens("Don't drink the WATER, it's पानी 5!")
	want := []string{"don", "drink", "the", "water", "it", "पानी"}

	if len(got) != len(want) {
		t.Fatalf("Tokens = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLexical_Provider(t *testing.T) {
	var p Provider = NewLexical()
	score, err := p.Similarity(context.Background(), "water leak", "water leak")
	if err != nil || math.Abs(score-1) > 1e-9 {
		t.Errorf("expected 1, got %v (%v)", score, err)
	}
}
