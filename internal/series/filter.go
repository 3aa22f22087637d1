package series

import (
	"time"

	"econdash/internal/model"
)

// Filter keeps the points with start <= date <= end. An inverted window
// yields an empty series.
func Filter(s model.Series, start, end time.Time) model.Series {
	out := s
	out.Points = []model.Point{}
	if start.After(end) {
		return out
	}
	for _, point := range s.Points {
		if point.Date.Before(start) || point.Date.After(end) {
			continue
		}
		out.Points = append(out.Points, point)
	}
	return out
}

func FilterAll(dataset map[model.Indicator]model.Series, start, end time.Time) map[model.Indicator]model.Series {
	out := make(map[model.Indicator]model.Series, len(dataset))
	for indicator, s := range dataset {
		out[indicator] = Filter(s, start, end)
	}
	return out
}
