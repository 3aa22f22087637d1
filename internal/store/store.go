// Package store records assembly runs. Only run metadata is kept; series
// values are never persisted.
package store

import (
	"context"
	"errors"

	"econdash/internal/model"
)

var ErrNotFound = errors.New("store: run not found")

const DefaultListLimit = 20

type Store interface {
	RecordRun(ctx context.Context, run model.Run) error
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)
	GetRun(ctx context.Context, id string) (model.Run, error)
	Close() error
}

type NopStore struct{}

func (s *NopStore) RecordRun(ctx context.Context, run model.Run) error {
	_ = ctx
	_ = run
	return nil
}

func (s *NopStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	_ = ctx
	_ = limit
	return nil, nil
}

func (s *NopStore) GetRun(ctx context.Context, id string) (model.Run, error) {
	_ = ctx
	_ = id
	return model.Run{}, ErrNotFound
}

func (s *NopStore) Close() error {
	return nil
}

// Limit normalises a caller supplied list limit.
func Limit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}

var _ Store = (*NopStore)(nil)
