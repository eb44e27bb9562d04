package geo

import (
	"testing"

	"github.com/ppiankov/grievance/internal/model"
)

func TestGazetteer_IsPlace(t *testing.T) {
	g := NewGazetteer(nil)

	tests := []struct {
		input    string
		expected bool
	}{
		{"Lucknow", true},
		{"  NOIDA ", true},
		{"lucknow city", false},
		{"Mumbai", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := g.IsPlace(tt.input); got != tt.expected {
			t.Errorf("IsPlace(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestGazetteer_FindPlace(t *testing.T) {
	g := NewGazetteer(nil)

	tests := []struct {
		text  string
		place string
		found bool
	}{
		{"I live near Kanpur road, close to Agra", "kanpur", true},
		{"the details of the water problem", "", false}, // "etah" inside "details" is not a mention
		{"Lakhimpur Kheri has no power", "lakhimpur", true},
		{"nothing here", "", false},
	}

	for _, tt := range tests {
		place, found := g.FindPlace(tt.text)
		if found != tt.found || place != tt.place {
			t.Errorf("FindPlace(%q) = (%q, %v), want (%q, %v)", tt.text, place, found, tt.place, tt.found)
		}
	}
}

func TestGazetteer_Resolve(t *testing.T) {
	g := NewGazetteer(nil)

	tests := []struct {
		location string
		inArea   bool
		via      string
		desc     string
	}{
		{"Lucknow", true, "place", "gazetteer place"},
		{"Lucknow, PIN 226001", true, "pin", "in-range postal code"},
		{"Mumbai, PIN 400001", false, "pin", "postal code outside range"},
		{"Lucknow, PIN 400001", false, "pin", "postal code decides over place"},
		{"Mumbai", false, "", "unknown place"},
		{"", false, "", "empty"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			res := g.Resolve(tt.location)
			if res.InArea != tt.inArea || res.Via != tt.via {
				t.Errorf("Resolve(%q) = %+v, want inArea=%v via=%q", tt.location, res, tt.inArea, tt.via)
			}
		})
	}
}

func TestGazetteer_FindPostalCode(t *testing.T) {
	g := NewGazetteer(nil)

	if pin, ok := g.FindPostalCode("my pincode is 226010 sir"); !ok || pin != "226010" {
		t.Errorf("expected 226010, got %q (%v)", pin, ok)
	}
	if _, ok := g.FindPostalCode("pincode 400001"); ok {
		t.Error("expected out-of-prefix postal code to be ignored")
	}
	if _, ok := g.FindPostalCode("call 9876543210"); ok {
		t.Error("expected phone digits not to be taken as a postal code")
	}
}

func TestGazetteer_CustomJurisdiction(t *testing.T) {
	cfg := &model.JurisdictionConfig{
		Name:         "Test Area",
		Places:       []string{"Springfield", "springfield", " Shelbyville "},
		PINRanges:    []model.PINRange{{Start: 100000, End: 100999}},
		PostalPrefix: "100",
	}
	g := NewGazetteer(cfg)

	if !g.IsPlace("shelbyville") {
		t.Error("expected trimmed place to be recognized")
	}
	if !g.Resolve("PIN 100500").InArea {
		t.Error("expected 100500 in range")
	}
	if g.Resolve("PIN 101000").InArea {
		t.Error("expected 101000 out of range")
	}
	if pin, ok := g.FindPostalCode("code 100123"); !ok || pin != "100123" {
		t.Errorf("expected 100123, got %q", pin)
	}
	if g.Name() != "Test Area" {
		t.Errorf("unexpected name %q", g.Name())
	}
}
