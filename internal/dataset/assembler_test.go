package dataset

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"econdash/internal/model"
	"econdash/internal/providers"
	"econdash/internal/providers/fred"
)

type fakeProvider struct {
	mu      sync.Mutex
	calls   []string
	failOn  string
	perCall func(seriesID string) []model.Observation
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) FetchObservations(ctx context.Context, seriesID string, start, end time.Time) ([]model.Observation, error) {
	f.mu.Lock()
	f.calls = append(f.calls, seriesID)
	f.mu.Unlock()
	if seriesID == f.failOn {
		return nil, &providers.FetchError{Provider: "fake", SeriesID: seriesID, StatusCode: http.StatusInternalServerError, Body: "boom"}
	}
	if f.perCall != nil {
		return f.perCall(seriesID), nil
	}
	return monthlyObservations(start, 24), nil
}

func monthlyObservations(start time.Time, n int) []model.Observation {
	out := make([]model.Observation, n)
	for i := range out {
		out[i] = model.Observation{
			Date:     start.AddDate(0, i, 0),
			RawValue: fmt.Sprintf("%d", 100+i),
		}
	}
	return out
}

var fixedNow = func() time.Time {
	return time.Date(2026, 10, 17, 15, 4, 5, 0, time.UTC)
}

type recordingMetrics struct {
	mu      sync.Mutex
	fetches map[model.Indicator]error
	points  map[model.Indicator]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		fetches: make(map[model.Indicator]error),
		points:  make(map[model.Indicator]int),
	}
}

func (m *recordingMetrics) ObserveFetch(indicator model.Indicator, seriesID string, duration time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches[indicator] = err
}

func (m *recordingMetrics) ObservePoints(indicator model.Indicator, points int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points[indicator] = points
}

func TestAssembleCoversWholeCatalog(t *testing.T) {
	provider := &fakeProvider{}
	metrics := newRecordingMetrics()
	assembler, err := NewAssembler(provider, Options{Now: fixedNow, Metrics: metrics})
	if err != nil {
		t.Fatalf("NewAssembler: %v", err)
	}

	ds, err := assembler.Assemble(context.Background())
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	catalog := model.DefaultCatalog()
	if len(ds.Series) != len(catalog) {
		t.Fatalf("expected %d series, got %d", len(catalog), len(ds.Series))
	}
	for _, entry := range catalog {
		s, ok := ds.Get(entry.Indicator)
		if !ok {
			t.Fatalf("missing %s", entry.Indicator)
		}
		if s.Indicator != entry.Indicator {
			t.Errorf("series %s tagged as %s", entry.Indicator, s.Indicator)
		}
		want := 24
		if entry.PctChange {
			want = 12
		}
		if s.Len() != want {
			t.Errorf("%s: expected %d points, got %d", entry.Indicator, want, s.Len())
		}
		if s.Percentage != entry.PctChange {
			t.Errorf("%s: percentage flag %v, want %v", entry.Indicator, s.Percentage, entry.PctChange)
		}
		if metrics.points[entry.Indicator] != want {
			t.Errorf("%s: metrics recorded %d points", entry.Indicator, metrics.points[entry.Indicator])
		}
	}
	if len(provider.calls) != len(catalog) {
		t.Errorf("expected one fetch per entry, got %d", len(provider.calls))
	}
	if !ds.WindowEnd.Equal(time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected window end %s", ds.WindowEnd)
	}
	if !ds.WindowStart.Equal(time.Date(1976, 10, 17, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected window start %s", ds.WindowStart)
	}
}

func TestAssembleSequentialKeepsCatalogOrder(t *testing.T) {
	provider := &fakeProvider{}
	assembler, err := NewAssembler(provider, Options{Now: fixedNow, Concurrency: 1})
	if err != nil {
		t.Fatalf("NewAssembler: %v", err)
	}
	if _, err := assembler.Assemble(context.Background()); err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	catalog := model.DefaultCatalog()
	for i, entry := range catalog {
		if provider.calls[i] != entry.SeriesID {
			t.Fatalf("call %d = %s, want %s", i, provider.calls[i], entry.SeriesID)
		}
	}
}

func TestAssembleFailsAtomically(t *testing.T) {
	provider := &fakeProvider{failOn: "GDP"}
	metrics := newRecordingMetrics()
	assembler, err := NewAssembler(provider, Options{Now: fixedNow, Metrics: metrics})
	if err != nil {
		t.Fatalf("NewAssembler: %v", err)
	}

	ds, err := assembler.Assemble(context.Background())
	if err == nil {
		t.Fatalf("expected error")
	}
	if ds != nil {
		t.Fatalf("expected no dataset on failure, got %d series", len(ds.Series))
	}

	var assemblyErr *FetchError
	if !errors.As(err, &assemblyErr) {
		t.Fatalf("expected dataset.FetchError, got %T", err)
	}
	if assemblyErr.Indicator != model.IndicatorGDP {
		t.Errorf("expected gdp, got %s", assemblyErr.Indicator)
	}
	var fetchErr *providers.FetchError
	if !errors.As(err, &fetchErr) || fetchErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected wrapped provider FetchError with 500, got %v", err)
	}
	if metrics.fetches[model.IndicatorGDP] == nil {
		t.Errorf("expected failed fetch to be reported to metrics")
	}
}

func TestAssembleThroughFredServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, "internal error")
	}))
	defer server.Close()

	provider, err := fred.NewWithConfig(fred.Config{BaseURL: server.URL, APIKey: "k", RateLimitPerSec: 100})
	if err != nil {
		t.Fatalf("fred.NewWithConfig: %v", err)
	}
	defer provider.Close()

	catalog := model.Catalog{{Indicator: model.IndicatorCPI, SeriesID: "CPIAUCSL", PctChange: true}}
	assembler, err := NewAssembler(provider, Options{Catalog: catalog, Now: fixedNow})
	if err != nil {
		t.Fatalf("NewAssembler: %v", err)
	}

	ds, err := assembler.Assemble(context.Background())
	if ds != nil {
		t.Fatalf("expected no dataset")
	}
	var fetchErr *providers.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fetchErr.StatusCode != http.StatusInternalServerError || !strings.Contains(fetchErr.Body, "internal error") {
		t.Errorf("unexpected fetch error %+v", fetchErr)
	}
}

func TestNewAssemblerRejectsDuplicates(t *testing.T) {
	catalog := model.Catalog{
		{Indicator: model.IndicatorGDP, SeriesID: "GDP"},
		{Indicator: model.IndicatorGDP, SeriesID: "GDP"},
	}
	if _, err := NewAssembler(&fakeProvider{}, Options{Catalog: catalog}); err == nil {
		t.Fatalf("expected duplicate catalog error")
	}
	if _, err := NewAssembler(nil, Options{}); err == nil {
		t.Fatalf("expected nil provider error")
	}
}

func TestCompareProjectsSelectedSeries(t *testing.T) {
	assembler, err := NewAssembler(&fakeProvider{}, Options{Now: fixedNow})
	if err != nil {
		t.Fatalf("NewAssembler: %v", err)
	}
	ds, err := assembler.Assemble(context.Background())
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	got, err := ds.Compare([]model.Indicator{model.IndicatorCPI, model.IndicatorGDP})
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(got))
	}
	for _, name := range []model.Indicator{model.IndicatorCPI, model.IndicatorGDP} {
		if !reflect.DeepEqual(got[name], ds.Series[name]) {
			t.Errorf("%s differs from assembled dataset", name)
		}
	}

	if _, err := ds.Compare([]model.Indicator{"nope"}); err == nil {
		t.Errorf("expected error for unknown indicator")
	}
}

func TestDatasetBoundsFilterAndRecords(t *testing.T) {
	ds := &Dataset{
		Catalog: model.Catalog{
			{Indicator: model.IndicatorGDP, SeriesID: "GDP"},
			{Indicator: model.IndicatorUnemployment, SeriesID: "UNRATE"},
		},
		Series: map[model.Indicator]model.Series{
			model.IndicatorGDP: {Indicator: model.IndicatorGDP, Points: []model.Point{
				{Date: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), Value: 1},
				{Date: time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC), Value: 2},
			}},
			model.IndicatorUnemployment: {Indicator: model.IndicatorUnemployment, Points: []model.Point{
				{Date: time.Date(2005, 1, 1, 0, 0, 0, 0, time.UTC), Value: 5},
				{Date: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), Value: 6},
			}},
		},
	}

	minDate, maxDate, ok := ds.Bounds()
	if !ok || minDate.Year() != 2000 || maxDate.Year() != 2020 {
		t.Fatalf("unexpected bounds %s %s %v", minDate, maxDate, ok)
	}

	filtered := ds.Filter(time.Date(2004, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2012, 1, 1, 0, 0, 0, 0, time.UTC))
	if filtered.Series[model.IndicatorGDP].Len() != 1 || filtered.Series[model.IndicatorUnemployment].Len() != 1 {
		t.Errorf("unexpected filtered lengths")
	}
	if ds.Series[model.IndicatorGDP].Len() != 2 {
		t.Errorf("filter mutated the dataset")
	}

	records := ds.Records()
	if len(records) != 2 || records[0].Indicator != model.IndicatorGDP || records[1].Points != 2 {
		t.Errorf("unexpected records %+v", records)
	}
}
