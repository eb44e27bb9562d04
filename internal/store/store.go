package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ppiankov/grievance/internal/model"
)

// ErrConflict is returned by Save when the collection changed since it was loaded
var ErrConflict = errors.New("store: version conflict")

// Version identifies a stored collection state. The empty version means
// nothing has been stored yet.
type Version string

// CaseStore persists the whole case collection with optimistic concurrency:
// Save succeeds only if the stored version still equals expected.
type CaseStore interface {
	Load(ctx context.Context) ([]model.Case, Version, error)
	Save(ctx context.Context, cases []model.Case, expected Version) (Version, error)
	Close() error
}

// Open creates the store selected by cfg.Driver
func Open(ctx context.Context, cfg model.StoreConfig) (CaseStore, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "json":
		if cfg.Path == "" {
			return nil, fmt.Errorf("json store requires a path")
		}
		return NewJSONFile(cfg.Path), nil

	case "memory":
		return NewMemory(), nil

	case "sqlite":
		if cfg.Path == "" {
			return nil, fmt.Errorf("sqlite store requires a path")
		}
		s, err := NewSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil

	case "postgres", "postgresql":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres store requires a DSN")
		}
		p, err := NewPostgres(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return p, nil

	default:
		return nil, fmt.Errorf("unknown store driver: %s (supported: json, sqlite, postgres, memory)", cfg.Driver)
	}
}

func cloneCases(cases []model.Case) []model.Case {
	out := make([]model.Case, len(cases))
	for i, c := range cases {
		out[i] = c.Clone()
	}
	return out
}
