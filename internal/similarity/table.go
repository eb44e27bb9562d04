package similarity

import (
	"context"
	"strings"
	"sync/atomic"
)

// Table is a fixed lookup-table provider. Pairs are symmetric and matched
// case-insensitively; unknown pairs score Default.
type Table struct {
	scores  map[[2]string]float64
	Default float64
	Err     error // returned by every call when set

	calls atomic.Int64
}

// NewTable creates an empty table
func NewTable(def float64) *Table {
	return &Table{
		scores:  make(map[[2]string]float64),
		Default: def,
	}
}

// Set records the score for a pair. Not safe to call while the table is in use.
func (t *Table) Set(a, b string, score float64) *Table {
	t.scores[tableKey(a, b)] = score
	return t
}

// Similarity looks the pair up
func (t *Table) Similarity(ctx context.Context, a, b string) (float64, error) {
	t.calls.Add(1)
	if t.Err != nil {
		return 0, t.Err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if score, ok := t.scores[tableKey(a, b)]; ok {
		return score, nil
	}
	return t.Default, nil
}

// Calls returns how many lookups were made
func (t *Table) Calls() int64 {
	return t.calls.Load()
}

func tableKey(a, b string) [2]string {
	a, b = strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b))
	if b < a {
		a, b = b, a
	}
	return [2]string{a, b}
}
