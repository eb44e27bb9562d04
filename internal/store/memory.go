package store

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/ppiankov/grievance/internal/model"
)

// Memory keeps the collection in process memory
type Memory struct {
	mu      sync.Mutex
	cases   []model.Case
	version int64
}

// NewMemory creates an empty memory store
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Load(ctx context.Context) ([]model.Case, Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return cloneCases(m.cases), m.currentVersion(), nil
}

func (m *Memory) Save(ctx context.Context, cases []model.Case, expected Version) (Version, error) {
	if err := model.ValidateCases(cases); err != nil {
		return "", fmt.Errorf("save cases: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if expected != m.currentVersion() {
		return "", ErrConflict
	}
	m.cases = cloneCases(cases)
	m.version++
	return m.currentVersion(), nil
}

func (m *Memory) Close() error {
	return nil
}

func (m *Memory) currentVersion() Version {
	if m.version == 0 {
		return ""
	}
	return Version(strconv.FormatInt(m.version, 10))
}
