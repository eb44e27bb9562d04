package geo

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ppiankov/grievance/internal/model"
)

// Gazetteer recognizes place names and postal codes of the service area
type Gazetteer struct {
	config      *model.JurisdictionConfig
	placeMap    map[string]bool
	placeRe     *regexp.Regexp // word-bounded alternation, longest names first
	postalRe    *regexp.Regexp // in-area postal code token
	anyPostalRe *regexp.Regexp
}

// Resolution explains how a location was (or was not) placed in the service area
type Resolution struct {
	InArea bool   `json:"in_area"`
	Via    string `json:"via,omitempty"` // "pin" or "place"
	PIN    int    `json:"pin,omitempty"`
	Place  string `json:"place,omitempty"`
}

// NewGazetteer builds a gazetteer from the jurisdiction config
func NewGazetteer(config *model.JurisdictionConfig) *Gazetteer {
	if config == nil {
		config = &model.DefaultConfig().Jurisdiction
	}

	g := &Gazetteer{
		config:   config,
		placeMap: make(map[string]bool),
	}

	names := make([]string, 0, len(config.Places))
	for _, place := range config.Places {
		place = strings.ToLower(strings.TrimSpace(place))
		if place == "" || g.placeMap[place] {
			continue
		}
		g.placeMap[place] = true
		names = append(names, place)
	}

	// Longest first: at the same offset the longer name wins
	sort.SliceStable(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })
	if len(names) > 0 {
		quoted := make([]string, len(names))
		for i, n := range names {
			quoted[i] = regexp.QuoteMeta(n)
		}
		g.placeRe = regexp.MustCompile(`\b(` + strings.Join(quoted, "|") + `)\b`)
	}

	prefix := config.PostalPrefix
	if len(prefix) >= 6 || strings.Trim(prefix, "0123456789") != "" {
		prefix = ""
	}
	g.postalRe = regexp.MustCompile(`\b(` + regexp.QuoteMeta(prefix) + `\d{` + strconv.Itoa(6-len(prefix)) + `})\b`)
	g.anyPostalRe = regexp.MustCompile(`\b(\d{6})\b`)

	return g
}

// IsPlace reports whether s is exactly a recognized place name (case-insensitive)
func (g *Gazetteer) IsPlace(s string) bool {
	return g.placeMap[strings.ToLower(strings.TrimSpace(s))]
}

// FindPlace returns the earliest recognized place name mentioned in text
func (g *Gazetteer) FindPlace(text string) (string, bool) {
	if g.placeRe == nil {
		return "", false
	}
	m := g.placeRe.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// FindPostalCode returns the first in-area-shaped postal code token in text
func (g *Gazetteer) FindPostalCode(text string) (string, bool) {
	m := g.postalRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// InRange reports whether a numeric postal code falls into a configured range
func (g *Gazetteer) InRange(pin int) bool {
	for _, r := range g.config.PINRanges {
		if pin >= r.Start && pin <= r.End {
			return true
		}
	}
	return false
}

// Resolve decides whether a location lies inside the service area.
// An explicit postal code decides on its own; otherwise a gazetteer mention does.
func (g *Gazetteer) Resolve(location string) Resolution {
	if strings.TrimSpace(location) == "" {
		return Resolution{}
	}

	if m := g.anyPostalRe.FindStringSubmatch(location); m != nil {
		pin, err := strconv.Atoi(m[1])
		if err == nil {
			return Resolution{InArea: g.InRange(pin), Via: "pin", PIN: pin}
		}
	}

	if place, ok := g.FindPlace(location); ok {
		return Resolution{InArea: true, Via: "place", Place: place}
	}

	return Resolution{}
}

// Name returns the configured service-area name
func (g *Gazetteer) Name() string {
	return g.config.Name
}
