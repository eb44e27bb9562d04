package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ppiankov/grievance/internal/model"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS grievance_cases (
	position      INTEGER NOT NULL,
	case_no       TEXT PRIMARY KEY,
	case_category TEXT NOT NULL DEFAULT '',
	case_detail   TEXT NOT NULL DEFAULT '',
	problem_start TIMESTAMPTZ,
	location      TEXT NOT NULL DEFAULT '',
	priority      TEXT NOT NULL DEFAULT '',
	score         DOUBLE PRECISION NOT NULL DEFAULT 0,
	status        TEXT NOT NULL DEFAULT 'open',
	thread        JSONB NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS grievance_collection (
	id      INTEGER PRIMARY KEY CHECK (id = 1),
	version BIGINT NOT NULL
);

INSERT INTO grievance_collection (id, version) VALUES (1, 0) ON CONFLICT (id) DO NOTHING;
`

// Postgres stores cases in PostgreSQL through a pgx pool
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to dsn and ensures the schema exists
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	cfg.MaxConns = 4
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Load(ctx context.Context) ([]model.Case, Version, error) {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly, IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return nil, "", fmt.Errorf("begin load: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var counter int64
	if err := tx.QueryRow(ctx, `SELECT version FROM grievance_collection WHERE id = 1`).Scan(&counter); err != nil {
		return nil, "", fmt.Errorf("read version: %w", err)
	}

	rows, err := tx.Query(ctx, `
		SELECT case_no, case_category, case_detail, problem_start, location, priority, score, status, thread
		FROM grievance_cases ORDER BY position`)
	if err != nil {
		return nil, "", fmt.Errorf("read cases: %w", err)
	}
	cases, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Case, error) {
		var (
			r      caseRow
			start  *time.Time
			thread []byte
		)
		if err := row.Scan(&r.ID, &r.Category, &r.Detail, &start, &r.Location, &r.Priority, &r.Score, &r.Status, &thread); err != nil {
			return model.Case{}, err
		}
		var ts time.Time
		if start != nil {
			ts = start.UTC()
		}
		return r.withThread(ts, thread)
	})
	if err != nil {
		return nil, "", fmt.Errorf("scan cases: %w", err)
	}
	if err := model.ValidateCases(cases); err != nil {
		return nil, "", fmt.Errorf("load cases: %w", err)
	}

	return cases, counterVersion(counter), nil
}

// Save uses the same compare-and-bump protocol as the SQLite store
func (p *Postgres) Save(ctx context.Context, cases []model.Case, expected Version) (Version, error) {
	if err := model.ValidateCases(cases); err != nil {
		return "", fmt.Errorf("save cases: %w", err)
	}
	counter, err := parseCounter(expected)
	if err != nil {
		return "", err
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin save: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`UPDATE grievance_collection SET version = version + 1 WHERE id = 1 AND version = $1`, counter)
	if err != nil {
		return "", fmt.Errorf("bump version: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return "", ErrConflict
	}

	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM grievance_cases`)
	for i, c := range cases {
		r, err := toRow(i, c)
		if err != nil {
			return "", err
		}
		var start any
		if !c.ProblemStart.IsZero() {
			start = c.ProblemStart
		}
		batch.Queue(`
			INSERT INTO grievance_cases
				(position, case_no, case_category, case_detail, problem_start, location, priority, score, status, thread)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb)`,
			r.Position, r.ID, r.Category, r.Detail, start, r.Location, r.Priority, r.Score, r.Status, r.Thread)
	}

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return "", fmt.Errorf("write cases: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return "", fmt.Errorf("write cases: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit save: %w", err)
	}
	return counterVersion(counter + 1), nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
