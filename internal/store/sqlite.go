package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"github.com/ppiankov/grievance/internal/model"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cases (
	position      INTEGER NOT NULL,
	case_no       TEXT PRIMARY KEY,
	case_category TEXT NOT NULL DEFAULT '',
	case_detail   TEXT NOT NULL DEFAULT '',
	problem_start TEXT NOT NULL DEFAULT '',
	location      TEXT NOT NULL DEFAULT '',
	priority      TEXT NOT NULL DEFAULT '',
	score         REAL NOT NULL DEFAULT 0,
	status        TEXT NOT NULL DEFAULT 'open',
	thread        TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS collection_version (
	id      INTEGER PRIMARY KEY CHECK (id = 1),
	version INTEGER NOT NULL
);

INSERT OR IGNORE INTO collection_version (id, version) VALUES (1, 0);
`

const insertCaseSQL = `
INSERT INTO cases (position, case_no, case_category, case_detail, problem_start, location, priority, score, status, thread)
VALUES (:position, :case_no, :case_category, :case_detail, :problem_start, :location, :priority, :score, :status, :thread)`

// SQLite stores cases in a WAL-mode SQLite database
type SQLite struct {
	db *sqlx.DB
}

// NewSQLite opens (or creates) the database at dbPath
func NewSQLite(dbPath string) (*SQLite, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Load(ctx context.Context) ([]model.Case, Version, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, "", fmt.Errorf("begin load: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var counter int64
	if err := tx.GetContext(ctx, &counter, `SELECT version FROM collection_version WHERE id = 1`); err != nil {
		return nil, "", fmt.Errorf("read version: %w", err)
	}

	var rows []caseRow
	if err := tx.SelectContext(ctx, &rows, `SELECT * FROM cases ORDER BY position`); err != nil {
		return nil, "", fmt.Errorf("read cases: %w", err)
	}

	cases := make([]model.Case, 0, len(rows))
	for _, r := range rows {
		c, err := r.toCase()
		if err != nil {
			return nil, "", err
		}
		cases = append(cases, c)
	}
	if err := model.ValidateCases(cases); err != nil {
		return nil, "", fmt.Errorf("load cases: %w", err)
	}

	return cases, counterVersion(counter), nil
}

// Save bumps the version counter only if it still equals expected, then
// rewrites the table in the same transaction
func (s *SQLite) Save(ctx context.Context, cases []model.Case, expected Version) (Version, error) {
	if err := model.ValidateCases(cases); err != nil {
		return "", fmt.Errorf("save cases: %w", err)
	}
	counter, err := parseCounter(expected)
	if err != nil {
		return "", err
	}

	rows := make([]caseRow, 0, len(cases))
	for i, c := range cases {
		r, err := toRow(i, c)
		if err != nil {
			return "", err
		}
		rows = append(rows, r)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE collection_version SET version = version + 1 WHERE id = 1 AND version = ?`, counter)
	if err != nil {
		return "", fmt.Errorf("bump version: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return "", fmt.Errorf("bump version: %w", err)
	} else if n == 0 {
		return "", ErrConflict
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM cases`); err != nil {
		return "", fmt.Errorf("clear cases: %w", err)
	}
	for _, r := range rows {
		if _, err := tx.NamedExecContext(ctx, insertCaseSQL, r); err != nil {
			return "", fmt.Errorf("insert case %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit save: %w", err)
	}
	return counterVersion(counter + 1), nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
