package model

import (
	"fmt"
	"strings"
)

// Category is one entry of the classification catalog
type Category struct {
	Name           string   `json:"name" yaml:"name"`
	SemanticWeight float64  `json:"semantic_weight" yaml:"semantic_weight"`
	Keywords       []string `json:"keywords" yaml:"keywords"`
}

// Validate checks a category record
func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: category name is empty", ErrInvalidRecord)
	}
	if c.SemanticWeight <= 0 {
		return fmt.Errorf("%w: category %s has non-positive semantic_weight %f", ErrInvalidRecord, c.Name, c.SemanticWeight)
	}
	return nil
}

// TotalWeight sums the semantic weights of a catalog
func TotalWeight(catalog []Category) float64 {
	total := 0.0
	for _, c := range catalog {
		total += c.SemanticWeight
	}
	return total
}
