// Package postgres keeps the run ledger in Postgres through the pgx
// database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"econdash/internal/model"
	"econdash/internal/store"
)

const driverName = "pgx"

var sqlOpen = sql.Open

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres: dsn is required")
	}

	db, err := sqlOpen(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) RecordRun(ctx context.Context, run model.Run) (err error) {
	if run.ID == "" {
		return fmt.Errorf("postgres: run id is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO assembly_runs (
			id, provider, window_start, window_end, started_at, finished_at, status, error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			finished_at = EXCLUDED.finished_at,
			status = EXCLUDED.status,
			error = EXCLUDED.error
	`,
		run.ID,
		run.Provider,
		nullableTime(run.WindowStart),
		nullableTime(run.WindowEnd),
		nullableTime(run.StartedAt),
		nullableTime(run.FinishedAt),
		string(run.Status),
		run.Error,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM run_fetches WHERE run_id = $1`, run.ID); err != nil {
		return fmt.Errorf("clear fetches: %w", err)
	}

	for i, fetch := range run.Fetches {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_fetches (run_id, position, indicator, series_id, points, first_date, last_date)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`,
			run.ID,
			i,
			string(fetch.Indicator),
			fetch.SeriesID,
			fetch.Points,
			nullableTime(fetch.FirstDate),
			nullableTime(fetch.LastDate),
		)
		if err != nil {
			return fmt.Errorf("insert fetch %s: %w", fetch.Indicator, err)
		}
	}

	return tx.Commit()
}

func (s *Store) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, provider, window_start, window_end, started_at, finished_at, status, error
		FROM assembly_runs
		ORDER BY started_at DESC, id DESC
		LIMIT $1
	`, store.Limit(limit))
	if err != nil {
		return nil, fmt.Errorf("select runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range runs {
		if runs[i].Fetches, err = s.listFetches(ctx, runs[i].ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (s *Store) GetRun(ctx context.Context, id string) (model.Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, provider, window_start, window_end, started_at, finished_at, status, error
		FROM assembly_runs
		WHERE id = $1
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Run{}, store.ErrNotFound
	}
	if err != nil {
		return model.Run{}, err
	}
	if run.Fetches, err = s.listFetches(ctx, id); err != nil {
		return model.Run{}, err
	}
	return run, nil
}

func (s *Store) listFetches(ctx context.Context, runID string) ([]model.FetchRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT indicator, series_id, points, first_date, last_date
		FROM run_fetches
		WHERE run_id = $1
		ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("select fetches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var fetches []model.FetchRecord
	for rows.Next() {
		var (
			fetch     model.FetchRecord
			indicator string
			firstDate sql.NullTime
			lastDate  sql.NullTime
		)
		if err := rows.Scan(&indicator, &fetch.SeriesID, &fetch.Points, &firstDate, &lastDate); err != nil {
			return nil, err
		}
		fetch.Indicator = model.Indicator(indicator)
		fetch.FirstDate = fromNull(firstDate)
		fetch.LastDate = fromNull(lastDate)
		fetches = append(fetches, fetch)
	}
	return fetches, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (model.Run, error) {
	var (
		run                    model.Run
		windowStart, windowEnd sql.NullTime
		startedAt, finishedAt  sql.NullTime
		status                 string
	)
	if err := row.Scan(&run.ID, &run.Provider, &windowStart, &windowEnd, &startedAt, &finishedAt, &status, &run.Error); err != nil {
		return model.Run{}, err
	}
	run.WindowStart = fromNull(windowStart)
	run.WindowEnd = fromNull(windowEnd)
	run.StartedAt = fromNull(startedAt)
	run.FinishedAt = fromNull(finishedAt)
	run.Status = model.RunStatus(status)
	return run, nil
}

func (s *Store) migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS assembly_runs (
			id TEXT PRIMARY KEY,
			provider TEXT NOT NULL,
			window_start DATE,
			window_end DATE,
			started_at TIMESTAMPTZ,
			finished_at TIMESTAMPTZ,
			status TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS run_fetches (
			run_id TEXT NOT NULL REFERENCES assembly_runs(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			indicator TEXT NOT NULL,
			series_id TEXT NOT NULL,
			points INTEGER NOT NULL,
			first_date DATE,
			last_date DATE,
			PRIMARY KEY (run_id, indicator)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_assembly_runs_started ON assembly_runs (started_at)`,
	}
	for _, statement := range statements {
		if _, err := s.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func nullableTime(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return value.UTC()
}

func fromNull(value sql.NullTime) time.Time {
	if !value.Valid {
		return time.Time{}
	}
	return value.Time.UTC()
}

var _ store.Store = (*Store)(nil)
