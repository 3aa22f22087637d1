// Package series turns raw provider observations into clean, typed series
// and derives filtered views of them. Every function returns new slices;
// inputs are never modified.
package series

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"econdash/internal/model"
)

// YearOverYearLag is the positional lookback used for percentage change. It
// assumes monthly input.
const YearOverYearLag = 12

type Processor struct {
	logger *zap.Logger
}

func NewProcessor(logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{logger: logger}
}

// Process is Processor.Process without logging.
func Process(observations []model.Observation, applyPctChange bool) model.Series {
	return NewProcessor(nil).Process(observations, applyPctChange)
}

// Process parses, de-duplicates and sorts observations. Values that do not
// parse to a finite number are treated as missing and dropped. When two
// observations share a date the later one in the input wins. With
// applyPctChange the result holds year-over-year percentage change and the
// first YearOverYearLag points are dropped.
func (p *Processor) Process(observations []model.Observation, applyPctChange bool) model.Series {
	points, dropped := parsePoints(observations)
	points = sortUnique(points)

	out := model.Series{Points: points, Percentage: applyPctChange}
	if applyPctChange {
		out.Points = PctChange(points, YearOverYearLag)
		out.Unit = "%"
	}

	p.logger.Debug("processed series",
		zap.Int("observations", len(observations)),
		zap.Int("dropped", dropped),
		zap.Int("points", len(out.Points)),
		zap.Bool("pct_change", applyPctChange),
	)
	return out
}

func parsePoints(observations []model.Observation) ([]model.Point, int) {
	points := make([]model.Point, 0, len(observations))
	dropped := 0
	for _, observation := range observations {
		value, ok := parseValue(observation.RawValue)
		if !ok || observation.Date.IsZero() {
			dropped++
			continue
		}
		points = append(points, model.Point{Date: observation.Date, Value: value})
	}
	return points, dropped
}

func parseValue(raw string) (float64, bool) {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, false
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	return value, true
}

// sortUnique sorts by date and keeps the last-seen point for each date.
func sortUnique(points []model.Point) []model.Point {
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date)
	})

	out := make([]model.Point, 0, len(points))
	for _, point := range points {
		if n := len(out); n > 0 && out[n-1].Date.Equal(point.Date) {
			out[n-1] = point
			continue
		}
		out = append(out, point)
	}
	return out
}

// PctChange computes (v[i]/v[i-lag] - 1) * 100 by position. Points without a
// predecessor lag positions back are dropped, as are non-finite results.
func PctChange(points []model.Point, lag int) []model.Point {
	if lag < 1 || len(points) <= lag {
		return []model.Point{}
	}
	out := make([]model.Point, 0, len(points)-lag)
	for i := lag; i < len(points); i++ {
		value := (points[i].Value/points[i-lag].Value - 1) * 100
		if math.IsNaN(value) || math.IsInf(value, 0) {
			continue
		}
		out = append(out, model.Point{Date: points[i].Date, Value: value})
	}
	return out
}
