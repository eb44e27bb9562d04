package store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ppiankov/grievance/internal/model"
)

// JSONFile stores the collection as one JSON array. The version is the
// content hash of the file, so writers in other processes are detected.
type JSONFile struct {
	path string
	mu   sync.Mutex
}

// NewJSONFile creates a store backed by path; the file need not exist yet
func NewJSONFile(path string) *JSONFile {
	return &JSONFile{path: path}
}

func (s *JSONFile) Load(ctx context.Context) ([]model.Case, Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, version, err := s.read()
	if err != nil {
		return nil, "", err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []model.Case{}, version, nil
	}

	var cases []model.Case
	if err := json.Unmarshal(data, &cases); err != nil {
		if errors.Is(err, model.ErrInvalidRecord) {
			return nil, "", fmt.Errorf("load %s: %w", s.path, err)
		}
		return nil, "", fmt.Errorf("load %s: %w: %v", s.path, model.ErrInvalidRecord, err)
	}
	if err := model.ValidateCases(cases); err != nil {
		return nil, "", fmt.Errorf("load %s: %w", s.path, err)
	}

	return cases, version, nil
}

// Save replaces the file atomically (temp file + rename)
func (s *JSONFile) Save(ctx context.Context, cases []model.Case, expected Version) (Version, error) {
	if err := model.ValidateCases(cases); err != nil {
		return "", fmt.Errorf("save cases: %w", err)
	}
	if cases == nil {
		cases = []model.Case{}
	}

	data, err := json.MarshalIndent(cases, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal cases: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, current, err := s.read()
	if err != nil {
		return "", err
	}
	if current != expected {
		return "", ErrConflict
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create store dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".cases-*.json")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write cases: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("replace %s: %w", s.path, err)
	}

	return contentVersion(data), nil
}

func (s *JSONFile) Close() error {
	return nil
}

// read returns the file contents and version; a missing file is empty with the empty version
func (s *JSONFile) read() ([]byte, Version, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", s.path, err)
	}
	return data, contentVersion(data), nil
}

func contentVersion(data []byte) Version {
	sum := sha256.Sum256(data)
	return Version(hex.EncodeToString(sum[:]))
}
