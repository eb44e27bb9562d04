package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/grievance/internal/model"
	"gopkg.in/yaml.v3"
)

// Load reads a category catalog from a JSON or YAML file. An empty path
// returns the built-in catalog.
func Load(path string) ([]model.Category, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var categories []model.Category
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &categories)
	default:
		err = json.Unmarshal(data, &categories)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: parse catalog %s: %v", model.ErrInvalidRecord, path, err)
	}

	if err := Validate(categories); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return categories, nil
}

// Validate checks every category and rejects duplicate names
func Validate(categories []model.Category) error {
	seen := make(map[string]bool, len(categories))
	for _, c := range categories {
		if err := c.Validate(); err != nil {
			return err
		}
		key := strings.ToLower(strings.TrimSpace(c.Name))
		if seen[key] {
			return fmt.Errorf("%w: duplicate category %s", model.ErrInvalidRecord, c.Name)
		}
		seen[key] = true
	}
	return nil
}

// Names lists category names in catalog order
func Names(categories []model.Category) []string {
	names := make([]string, len(categories))
	for i, c := range categories {
		names[i] = c.Name
	}
	return names
}

// Default is the built-in department catalog
func Default() []model.Category {
	return []model.Category{
		{Name: "Public Works", SemanticWeight: 0.8, Keywords: []string{"road", "pothole", "drainage", "sewage", "garbage", "street light", "footpath"}},
		{Name: "Health Services", SemanticWeight: 0.95, Keywords: []string{"hospital", "doctor", "medicine", "clinic", "ambulance", "health"}},
		{Name: "Transportation", SemanticWeight: 0.6, Keywords: []string{"bus", "transport", "traffic", "railway", "auto rickshaw", "route"}},
		{Name: "Utilities", SemanticWeight: 0.85, Keywords: []string{"water supply", "pipeline", "leakage", "tap", "water"}},
		{Name: "Housing", SemanticWeight: 0.5, Keywords: []string{"house", "housing", "rent", "building", "construction"}},
		{Name: "Environment", SemanticWeight: 0.55, Keywords: []string{"pollution", "smoke", "noise", "trees", "waste burning"}},
		{Name: "Safety & Security", SemanticWeight: 0.9, Keywords: []string{"police", "theft", "harassment", "crime", "fight", "unsafe"}},
		{Name: "Education", SemanticWeight: 0.65, Keywords: []string{"school", "teacher", "college", "students", "scholarship"}},
		{Name: "Social Services", SemanticWeight: 0.6, Keywords: []string{"pension", "ration", "welfare", "disability", "certificate"}},
		{Name: "Energy", SemanticWeight: 0.9, Keywords: []string{"electricity", "power", "outage", "transformer", "voltage", "meter"}},
	}
}
