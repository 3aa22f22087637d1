package model

import "time"

const DateLayout = "2006-01-02"

type Indicator string

const (
	IndicatorCPI                  Indicator = "cpi"
	IndicatorFed2Y                Indicator = "fed_2y"
	IndicatorFed5Y                Indicator = "fed_5y"
	IndicatorFed10Y               Indicator = "fed_10y"
	IndicatorFed30Y               Indicator = "fed_30y"
	IndicatorPPI                  Indicator = "ppi"
	IndicatorUnemployment         Indicator = "unemployment"
	IndicatorFarmIncome           Indicator = "farm_income"
	IndicatorGDP                  Indicator = "gdp"
	IndicatorIndustrialProduction Indicator = "industrial_production"
	IndicatorRetailSales          Indicator = "retail_sales"
	IndicatorHousingStarts        Indicator = "housing_starts"
)

type Group string

const (
	GroupPriceIndices  Group = "price_indices"
	GroupTreasuryRates Group = "treasury_rates"
	GroupUnemployment  Group = "unemployment"
	GroupFarmIncome    Group = "farm_income"
	GroupGDP           Group = "gdp"
	GroupOther         Group = "other"
)

// Observation is a raw provider row. RawValue is kept as text because
// providers use placeholders such as "." for missing data.
type Observation struct {
	Date     time.Time
	RawValue string
}

type Point struct {
	Date  time.Time
	Value float64
}

// Series is ordered ascending by date with unique dates and finite values.
type Series struct {
	Indicator  Indicator
	Unit       string
	Percentage bool
	Points     []Point
}

func (s Series) Len() int {
	return len(s.Points)
}

func (s Series) First() (Point, bool) {
	if len(s.Points) == 0 {
		return Point{}, false
	}
	return s.Points[0], true
}

func (s Series) Last() (Point, bool) {
	if len(s.Points) == 0 {
		return Point{}, false
	}
	return s.Points[len(s.Points)-1], true
}

func (s Series) Bounds() (time.Time, time.Time, bool) {
	first, ok := s.First()
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	last, _ := s.Last()
	return first.Date, last.Date, true
}

type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

type Run struct {
	ID          string
	Provider    string
	WindowStart time.Time
	WindowEnd   time.Time
	StartedAt   time.Time
	FinishedAt  time.Time
	Status      RunStatus
	Error       string
	Fetches     []FetchRecord
}

type FetchRecord struct {
	Indicator Indicator
	SeriesID  string
	Points    int
	FirstDate time.Time
	LastDate  time.Time
}
