// internal/store/postgres.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/mazesim/service/internal/models"
)

// pgForeignKeyViolation is the SQLSTATE raised when a step names a missing run.
const pgForeignKeyViolation = "23503"

// schema is applied by Migrate. Records are stored as JSONB so the step shape
// can grow without migrations.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id         TEXT PRIMARY KEY,
		scenario   JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS steps (
		run_id   TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		step     INTEGER NOT NULL,
		terminal BOOLEAN NOT NULL,
		record   JSONB NOT NULL,
		PRIMARY KEY (run_id, step)
	)`,
}

// PostgresStore persists runs in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// ConnectPostgres opens a pool for databaseURL.
func ConnectPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return NewPostgresStore(pool), nil
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, run models.Run) error {
	scenario, err := json.Marshal(run.Scenario)
	if err != nil {
		return fmt.Errorf("create run %s: %w", run.ID, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, scenario, created_at) VALUES ($1, $2, $3)`,
		run.ID.String(), scenario, run.CreatedAt)
	if err != nil {
		return fmt.Errorf("create run %s: %w", run.ID, err)
	}
	return nil
}

func (s *PostgresStore) AppendStep(ctx context.Context, rec models.StepRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("append step %d: %w", rec.Step, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO steps (run_id, step, terminal, record) VALUES ($1, $2, $3, $4)`,
		rec.RunID.String(), rec.Step, rec.Terminal, payload)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		return fmt.Errorf("append step %d: %w: %s", rec.Step, ErrRunNotFound, rec.RunID)
	}
	if err != nil {
		return fmt.Errorf("append step %d: %w", rec.Step, err)
	}
	return nil
}

func (s *PostgresStore) Steps(ctx context.Context, runID uuid.UUID) ([]models.StepRecord, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM runs WHERE id = $1)`, runID.String()).Scan(&exists); err != nil {
		return nil, fmt.Errorf("steps: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("steps: %w: %s", ErrRunNotFound, runID)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT record FROM steps WHERE run_id = $1 ORDER BY step`, runID.String())
	if err != nil {
		return nil, fmt.Errorf("steps: %w", err)
	}
	recs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.StepRecord, error) {
		var raw []byte
		var rec models.StepRecord
		if err := row.Scan(&raw); err != nil {
			return rec, err
		}
		return rec, json.Unmarshal(raw, &rec)
	})
	if err != nil {
		return nil, fmt.Errorf("steps: %w", err)
	}
	return recs, nil
}

func (s *PostgresStore) Runs(ctx context.Context) ([]models.Run, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, scenario, created_at FROM runs ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("runs: %w", err)
	}
	runs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Run, error) {
		var (
			id       string
			scenario []byte
			run      models.Run
		)
		if err := row.Scan(&id, &scenario, &run.CreatedAt); err != nil {
			return run, err
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return run, err
		}
		run.ID = parsed
		return run, json.Unmarshal(scenario, &run.Scenario)
	})
	if err != nil {
		return nil, fmt.Errorf("runs: %w", err)
	}
	return runs, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
