// Package chart renders processed series as line charts.
package chart

import (
	"fmt"
	"io"
	"math"
	"time"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"econdash/internal/model"
)

const (
	FormatPNG = "png"
	FormatSVG = "svg"

	DefaultWidth  = 1024
	DefaultHeight = 512

	emptyNote = "no data in range"
)

var palette = []drawing.Color{
	drawing.ColorFromHex("0000ff"),
	drawing.ColorFromHex("ff0000"),
	drawing.ColorFromHex("008000"),
	drawing.ColorFromHex("800080"),
	drawing.ColorFromHex("ffa500"),
}

type Spec struct {
	Title      string
	YAxisLabel string
	Percentage bool
	Format     string
	Width      int
	Height     int
}

// Line is one named series on a chart.
type Line struct {
	Name   string
	Series model.Series
}

// ContentType returns the MIME type for a chart format.
func ContentType(format string) string {
	if format == FormatSVG {
		return "image/svg+xml"
	}
	return "image/png"
}

// Render draws every line on one chart. Lines without points are skipped;
// when none have points an empty chart carrying a note is drawn instead.
func Render(w io.Writer, spec Spec, lines ...Line) error {
	provider, err := rendererFor(spec.Format)
	if err != nil {
		return err
	}

	ch := gochart.Chart{
		Title:  spec.Title,
		Width:  orDefault(spec.Width, DefaultWidth),
		Height: orDefault(spec.Height, DefaultHeight),
		Background: gochart.Style{
			Padding: gochart.Box{Top: 24, Left: 16, Right: 16, Bottom: 16},
		},
		XAxis: gochart.XAxis{
			ValueFormatter: gochart.TimeValueFormatterWithFormat("2006-01"),
		},
		YAxis: gochart.YAxis{
			Name: spec.YAxisLabel,
		},
	}
	if spec.Percentage {
		ch.YAxis.ValueFormatter = percentFormatter
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for i, line := range lines {
		if line.Series.Len() == 0 {
			continue
		}
		xs, ys := columns(line.Series)
		for _, y := range ys {
			lo = math.Min(lo, y)
			hi = math.Max(hi, y)
		}
		color := palette[i%len(palette)]
		ch.Series = append(ch.Series, gochart.TimeSeries{
			Name:    line.Name,
			XValues: xs,
			YValues: ys,
			Style: gochart.Style{
				StrokeColor: color,
				StrokeWidth: 2,
			},
		})
	}

	if len(ch.Series) == 0 {
		ch.Title = withNote(spec.Title)
		ch.YAxis.Range = &gochart.ContinuousRange{Min: 0, Max: 1}
		start := time.Unix(0, 0).UTC()
		ch.Series = []gochart.Series{gochart.TimeSeries{
			XValues: []time.Time{start, start.Add(24 * time.Hour)},
			YValues: []float64{0, 1},
			Style:   gochart.Style{StrokeColor: drawing.ColorTransparent},
		}}
	} else {
		if lo == hi {
			ch.YAxis.Range = &gochart.ContinuousRange{Min: lo - 1, Max: hi + 1}
		}
		ch.Elements = []gochart.Renderable{gochart.Legend(&ch)}
	}

	if err := ch.Render(provider, w); err != nil {
		return fmt.Errorf("chart: render %q: %w", spec.Title, err)
	}
	return nil
}

func rendererFor(format string) (gochart.RendererProvider, error) {
	switch format {
	case "", FormatPNG:
		return gochart.PNG, nil
	case FormatSVG:
		return gochart.SVG, nil
	default:
		return nil, fmt.Errorf("chart: unknown format %q", format)
	}
}

// columns splits a series into axis values. A single point is padded with a
// copy one day later so the x range is never zero.
func columns(s model.Series) ([]time.Time, []float64) {
	xs := make([]time.Time, 0, len(s.Points)+1)
	ys := make([]float64, 0, len(s.Points)+1)
	for _, point := range s.Points {
		xs = append(xs, point.Date)
		ys = append(ys, point.Value)
	}
	if len(xs) == 1 {
		xs = append(xs, xs[0].Add(24*time.Hour))
		ys = append(ys, ys[0])
	}
	return xs, ys
}

func percentFormatter(v interface{}) string {
	if value, ok := v.(float64); ok {
		return fmt.Sprintf("%.1f%%", value)
	}
	return ""
}

func withNote(title string) string {
	if title == "" {
		return emptyNote
	}
	return title + " (" + emptyNote + ")"
}

func orDefault(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}
