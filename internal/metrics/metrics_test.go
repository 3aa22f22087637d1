package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"econdash/internal/model"
)

func TestRecorderCountsOutcomes(t *testing.T) {
	r := NewRecorder()
	r.ObserveFetch(model.IndicatorCPI, "CPIAUCSL", 120*time.Millisecond, nil)
	r.ObserveFetch(model.IndicatorCPI, "CPIAUCSL", 80*time.Millisecond, nil)
	r.ObserveFetch(model.IndicatorGDP, "GDP", time.Second, errors.New("boom"))
	r.ObservePoints(model.IndicatorCPI, 588)

	if got := testutil.ToFloat64(r.fetchTotal.WithLabelValues("cpi", "CPIAUCSL", "success")); got != 2 {
		t.Errorf("expected 2 successes, got %f", got)
	}
	if got := testutil.ToFloat64(r.fetchTotal.WithLabelValues("gdp", "GDP", "error")); got != 1 {
		t.Errorf("expected 1 error, got %f", got)
	}
	if got := testutil.ToFloat64(r.seriesPoints.WithLabelValues("cpi")); got != 588 {
		t.Errorf("expected 588 points, got %f", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.ObservePoints(model.IndicatorUnemployment, 10)

	path := filepath.Join(t.TempDir(), "econdash.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), `econdash_series_points{indicator="unemployment"} 10`) {
		t.Errorf("unexpected textfile contents:\n%s", data)
	}
}
