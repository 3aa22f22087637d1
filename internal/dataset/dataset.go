package dataset

import (
	"fmt"
	"time"

	"econdash/internal/model"
	"econdash/internal/series"
)

// Dataset is the read-only result of one assembly.
type Dataset struct {
	Provider    string
	Catalog     model.Catalog
	Series      map[model.Indicator]model.Series
	WindowStart time.Time
	WindowEnd   time.Time
	FetchedAt   time.Time
}

func (d *Dataset) Get(indicator model.Indicator) (model.Series, bool) {
	s, ok := d.Series[indicator]
	return s, ok
}

// Compare projects the dataset onto the selected indicators for overlay
// rendering. Duplicates collapse; unknown names are an error.
func (d *Dataset) Compare(names []model.Indicator) (map[model.Indicator]model.Series, error) {
	out := make(map[model.Indicator]model.Series, len(names))
	for _, name := range names {
		s, ok := d.Series[name]
		if !ok {
			return nil, fmt.Errorf("dataset: indicator %s is not in the dataset", name)
		}
		out[name] = s
	}
	return out, nil
}

// Bounds returns the earliest first date and latest last date over all
// non-empty series.
func (d *Dataset) Bounds() (time.Time, time.Time, bool) {
	var minDate, maxDate time.Time
	found := false
	for _, s := range d.Series {
		first, last, ok := s.Bounds()
		if !ok {
			continue
		}
		if !found || first.Before(minDate) {
			minDate = first
		}
		if !found || last.After(maxDate) {
			maxDate = last
		}
		found = true
	}
	return minDate, maxDate, found
}

// Filter returns a new dataset restricted to [start, end].
func (d *Dataset) Filter(start, end time.Time) *Dataset {
	out := *d
	out.Series = series.FilterAll(d.Series, start, end)
	return &out
}

// Records summarises each series in catalog order for the run ledger.
func (d *Dataset) Records() []model.FetchRecord {
	records := make([]model.FetchRecord, 0, len(d.Catalog))
	for _, entry := range d.Catalog {
		s, ok := d.Series[entry.Indicator]
		if !ok {
			continue
		}
		record := model.FetchRecord{
			Indicator: entry.Indicator,
			SeriesID:  entry.SeriesID,
			Points:    s.Len(),
		}
		if first, last, ok := s.Bounds(); ok {
			record.FirstDate = first
			record.LastDate = last
		}
		records = append(records, record)
	}
	return records
}
