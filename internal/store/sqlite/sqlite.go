package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"econdash/internal/model"
	"econdash/internal/store"
)

// Fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Store struct {
	db *sql.DB
}

func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
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
		return fmt.Errorf("sqlite: run id is required")
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
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			finished_at = excluded.finished_at,
			status = excluded.status,
			error = excluded.error
	`,
		run.ID,
		run.Provider,
		formatDate(run.WindowStart),
		formatDate(run.WindowEnd),
		formatTime(run.StartedAt),
		formatTime(run.FinishedAt),
		string(run.Status),
		run.Error,
	)
	if err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM run_fetches WHERE run_id = ?`, run.ID); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_fetches (run_id, indicator, series_id, points, first_date, last_date)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, fetch := range run.Fetches {
		_, err = stmt.ExecContext(
			ctx,
			run.ID,
			string(fetch.Indicator),
			fetch.SeriesID,
			fetch.Points,
			nullableDate(fetch.FirstDate),
			nullableDate(fetch.LastDate),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, provider, window_start, window_end, started_at, finished_at, status, error
		FROM assembly_runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, store.Limit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

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
		fetches, err := s.listFetches(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Fetches = fetches
	}
	return runs, nil
}

func (s *Store) GetRun(ctx context.Context, id string) (model.Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, provider, window_start, window_end, started_at, finished_at, status, error
		FROM assembly_runs
		WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Run{}, store.ErrNotFound
	}
	if err != nil {
		return model.Run{}, err
	}
	run.Fetches, err = s.listFetches(ctx, id)
	if err != nil {
		return model.Run{}, err
	}
	return run, nil
}

func (s *Store) listFetches(ctx context.Context, runID string) ([]model.FetchRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT indicator, series_id, points, first_date, last_date
		FROM run_fetches
		WHERE run_id = ?
		ORDER BY rowid
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fetches []model.FetchRecord
	for rows.Next() {
		var (
			fetch     model.FetchRecord
			indicator string
			firstDate sql.NullString
			lastDate  sql.NullString
		)
		if err := rows.Scan(&indicator, &fetch.SeriesID, &fetch.Points, &firstDate, &lastDate); err != nil {
			return nil, err
		}
		fetch.Indicator = model.Indicator(indicator)
		fetch.FirstDate = parseDate(firstDate.String)
		fetch.LastDate = parseDate(lastDate.String)
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
		windowStart, windowEnd string
		startedAt, finishedAt  string
		status                 string
	)
	if err := row.Scan(&run.ID, &run.Provider, &windowStart, &windowEnd, &startedAt, &finishedAt, &status, &run.Error); err != nil {
		return model.Run{}, err
	}
	run.WindowStart = parseDate(windowStart)
	run.WindowEnd = parseDate(windowEnd)
	run.StartedAt = parseTime(startedAt)
	run.FinishedAt = parseTime(finishedAt)
	run.Status = model.RunStatus(status)
	return run, nil
}

func (s *Store) migrate() error {
	statements := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS assembly_runs (
			id TEXT PRIMARY KEY,
			provider TEXT NOT NULL,
			window_start TEXT NOT NULL,
			window_end TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			status TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS run_fetches (
			run_id TEXT NOT NULL REFERENCES assembly_runs(id) ON DELETE CASCADE,
			indicator TEXT NOT NULL,
			series_id TEXT NOT NULL,
			points INTEGER NOT NULL,
			first_date TEXT,
			last_date TEXT,
			PRIMARY KEY (run_id, indicator)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_assembly_runs_started ON assembly_runs (started_at);`,
	}

	for _, statement := range statements {
		if _, err := s.db.Exec(statement); err != nil {
			return err
		}
	}

	return nil
}

func formatDate(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(model.DateLayout)
}

func nullableDate(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return value.UTC().Format(model.DateLayout)
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(timeLayout)
}

func parseDate(value string) time.Time {
	parsed, err := time.Parse(model.DateLayout, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

func parseTime(value string) time.Time {
	parsed, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

var _ store.Store = (*Store)(nil)
