package model

import (
	"testing"
	"time"
)

func TestDefaultCatalog(t *testing.T) {
	catalog := DefaultCatalog()
	if len(catalog) != 12 {
		t.Fatalf("expected 12 entries, got %d", len(catalog))
	}
	for _, entry := range catalog {
		wantPct := entry.Indicator == IndicatorCPI || entry.Indicator == IndicatorPPI
		if entry.PctChange != wantPct {
			t.Errorf("%s: unexpected PctChange %v", entry.Indicator, entry.PctChange)
		}
		if entry.SeriesID == "" || entry.Title == "" {
			t.Errorf("%s: incomplete entry %+v", entry.Indicator, entry)
		}
	}

	catalog[0].SeriesID = "changed"
	if DefaultCatalog()[0].SeriesID == "changed" {
		t.Errorf("DefaultCatalog must return a copy")
	}
}

func TestLookup(t *testing.T) {
	entry, ok := DefaultCatalog().Lookup(IndicatorFed10Y)
	if !ok || entry.SeriesID != "DGS10" {
		t.Errorf("unexpected lookup %+v %v", entry, ok)
	}
	if _, ok := DefaultCatalog().Lookup("bitcoin"); ok {
		t.Errorf("expected unknown indicator to be missing")
	}
}

func TestParseIndicator(t *testing.T) {
	catalog := DefaultCatalog()
	tests := []struct {
		input   string
		want    Indicator
		wantErr bool
	}{
		{"cpi", IndicatorCPI, false},
		{" Unemployment Rate ", IndicatorUnemployment, false},
		{"2-year treasury rate", IndicatorFed2Y, false},
		{"FED_30Y", IndicatorFed30Y, false},
		{"", "", true},
		{"Bitcoin", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := catalog.ParseIndicator(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}

	if _, err := catalog.ParseIndicators([]string{"CPI", "nope"}); err == nil {
		t.Errorf("expected error for unknown indicator in list")
	}
}

func TestNamesAndGroups(t *testing.T) {
	catalog := DefaultCatalog()
	names := catalog.Names()
	if names[0] != IndicatorCPI || len(names) != len(catalog) {
		t.Errorf("unexpected names %v", names)
	}
	rates := catalog.InGroup(GroupTreasuryRates)
	if len(rates) != 4 {
		t.Errorf("expected 4 treasury rates, got %d", len(rates))
	}
}

func TestSeriesHelpers(t *testing.T) {
	var empty Series
	if _, _, ok := empty.Bounds(); ok {
		t.Errorf("expected no bounds for empty series")
	}
	s := Series{Points: []Point{
		{Date: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), Value: 1},
		{Date: time.Date(2020, 2, 1, 0, 0, 0, 0, time.UTC), Value: 2},
	}}
	first, last, ok := s.Bounds()
	if !ok || first.Month() != time.January || last.Month() != time.February {
		t.Errorf("unexpected bounds %s %s", first, last)
	}
}
