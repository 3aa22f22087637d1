// Package dataset fetches every catalog indicator from a provider and turns
// the results into processed series. An assembly either yields a series for
// every catalog entry or fails as a whole.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"econdash/internal/model"
	"econdash/internal/providers"
	"econdash/internal/series"
)

const (
	DefaultHistoryYears = 50
	DefaultConcurrency  = 4
)

// Metrics receives per-fetch observations. Implementations must be safe for
// concurrent use.
type Metrics interface {
	ObserveFetch(indicator model.Indicator, seriesID string, duration time.Duration, err error)
	ObservePoints(indicator model.Indicator, points int)
}

type nopMetrics struct{}

func (nopMetrics) ObserveFetch(model.Indicator, string, time.Duration, error) {}
func (nopMetrics) ObservePoints(model.Indicator, int)                          {}

type Options struct {
	Catalog      model.Catalog
	HistoryYears int
	Concurrency  int
	Logger       *zap.Logger
	Metrics      Metrics
	Now          func() time.Time
}

type Assembler struct {
	provider     providers.Provider
	catalog      model.Catalog
	historyYears int
	concurrency  int
	processor    *series.Processor
	logger       *zap.Logger
	metrics      Metrics
	now          func() time.Time
}

// FetchError wraps a provider failure with the catalog entry it belongs to.
type FetchError struct {
	Indicator model.Indicator
	SeriesID  string
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s (%s): %v", e.Indicator, e.SeriesID, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func NewAssembler(provider providers.Provider, opts Options) (*Assembler, error) {
	if provider == nil {
		return nil, errors.New("dataset: provider is required")
	}
	if len(opts.Catalog) == 0 {
		opts.Catalog = model.DefaultCatalog()
	}
	if opts.HistoryYears <= 0 {
		opts.HistoryYears = DefaultHistoryYears
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	seen := make(map[model.Indicator]struct{}, len(opts.Catalog))
	for _, entry := range opts.Catalog {
		if _, dup := seen[entry.Indicator]; dup {
			return nil, fmt.Errorf("dataset: duplicate catalog entry %s", entry.Indicator)
		}
		seen[entry.Indicator] = struct{}{}
	}

	logger := opts.Logger.Named("dataset")
	return &Assembler{
		provider:     provider,
		catalog:      opts.Catalog,
		historyYears: opts.HistoryYears,
		concurrency:  opts.Concurrency,
		processor:    series.NewProcessor(logger),
		logger:       logger,
		metrics:      opts.Metrics,
		now:          opts.Now,
	}, nil
}

// Window returns the fetch window: today minus the configured history, up
// to today, both at UTC midnight.
func (a *Assembler) Window() (time.Time, time.Time) {
	now := a.now().UTC()
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return end.AddDate(-a.historyYears, 0, 0), end
}

func (a *Assembler) Catalog() model.Catalog {
	return a.catalog
}

// Assemble fetches and processes every catalog entry. The first failure
// cancels outstanding fetches and no partial dataset is returned.
func (a *Assembler) Assemble(ctx context.Context) (*Dataset, error) {
	start, end := a.Window()
	a.logger.Info("assembling dataset",
		zap.String("provider", a.provider.Name()),
		zap.Int("series", len(a.catalog)),
		zap.String("start", start.Format(model.DateLayout)),
		zap.String("end", end.Format(model.DateLayout)),
	)

	results := make([]model.Series, len(a.catalog))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(a.concurrency)
	for i, entry := range a.catalog {
		group.Go(func() error {
			processed, err := a.fetchEntry(groupCtx, entry, start, end)
			if err != nil {
				return err
			}
			results[i] = processed
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		a.logger.Error("assembly failed", zap.Error(err))
		return nil, err
	}

	out := make(map[model.Indicator]model.Series, len(results))
	for _, processed := range results {
		out[processed.Indicator] = processed
	}

	a.logger.Info("assembled dataset", zap.Int("series", len(out)))
	return &Dataset{
		Provider:    a.provider.Name(),
		Catalog:     a.catalog,
		Series:      out,
		WindowStart: start,
		WindowEnd:   end,
		FetchedAt:   a.now().UTC(),
	}, nil
}

func (a *Assembler) fetchEntry(ctx context.Context, entry model.CatalogEntry, start, end time.Time) (model.Series, error) {
	began := time.Now()
	observations, err := a.provider.FetchObservations(ctx, entry.SeriesID, start, end)
	a.metrics.ObserveFetch(entry.Indicator, entry.SeriesID, time.Since(began), err)
	if err != nil {
		return model.Series{}, &FetchError{Indicator: entry.Indicator, SeriesID: entry.SeriesID, Err: err}
	}

	processed := a.processor.Process(observations, entry.PctChange)
	processed.Indicator = entry.Indicator
	if !entry.PctChange {
		processed.Unit = entry.YAxisLabel
	}
	a.metrics.ObservePoints(entry.Indicator, processed.Len())
	return processed, nil
}
