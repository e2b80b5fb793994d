package chart

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/sync/errgroup"

	"github.com/hpungsan/moodmart/internal/history"
	"github.com/hpungsan/moodmart/internal/mood"
)

const (
	Width  = 1200
	Height = 500
)

// ErrNoData is returned when there is nothing to plot.
var ErrNoData = errors.New("chart: no mood entries")

var moodColors = map[mood.Label]drawing.Color{
	mood.Positive: drawing.ColorFromHex("2ca02c"),
	mood.Negative: drawing.ColorFromHex("d62728"),
	mood.Neutral:  drawing.ColorFromHex("7f7f7f"),
}

func colorFor(l mood.Label, i int) drawing.Color {
	if c, ok := moodColors[l]; ok {
		return c
	}
	return gochart.GetDefaultColor(i)
}

// Render writes the chart for entries to path as a PNG. The file is replaced
// atomically.
func Render(ctx context.Context, entries []history.Entry, path string) error {
	if len(entries) == 0 {
		return ErrNoData
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".chart-*.png")
	if err != nil {
		return fmt.Errorf("chart: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := Encode(ctx, Aggregate(entries), tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("chart: close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("chart: chmod: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("chart: rename: %w", err)
	}
	return nil
}

// Encode renders s as a Width x Height PNG: the distribution pie on the left
// and the timeline on the right. Both halves are drawn concurrently.
func Encode(ctx context.Context, s Summary, w io.Writer) error {
	if s.Total == 0 {
		return ErrNoData
	}

	var pieBuf, lineBuf bytes.Buffer
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		if err := pieChart(s).Render(gochart.PNG, &pieBuf); err != nil {
			return fmt.Errorf("chart: render pie: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		c := timelineChart(s)
		if err := c.Render(gochart.PNG, &lineBuf); err != nil {
			return fmt.Errorf("chart: render timeline: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	canvas := image.NewRGBA(image.Rect(0, 0, Width, Height))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)

	for i, buf := range []*bytes.Buffer{&pieBuf, &lineBuf} {
		half, err := png.Decode(buf)
		if err != nil {
			return fmt.Errorf("chart: decode panel: %w", err)
		}
		dst := image.Rect(i*Width/2, 0, (i+1)*Width/2, Height)
		draw.Draw(canvas, dst, half, half.Bounds().Min, draw.Over)
	}

	if err := png.Encode(w, canvas); err != nil {
		return fmt.Errorf("chart: encode png: %w", err)
	}
	return nil
}

func pieChart(s Summary) gochart.PieChart {
	values := make([]gochart.Value, 0, len(s.Slices))
	for i, sl := range s.Slices {
		values = append(values, gochart.Value{
			Label: fmt.Sprintf("%s %.1f%%", sl.Mood.Name(), sl.Percent),
			Value: float64(sl.Count),
			Style: gochart.Style{FillColor: colorFor(sl.Mood, i), StrokeColor: drawing.ColorWhite},
		})
	}
	return gochart.PieChart{
		Title:      "Mood Distribution",
		Width:      Width / 2,
		Height:     Height,
		Background: gochart.Style{Padding: gochart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20}},
		Values:     values,
	}
}

// timelineX returns the x values plotted for each date point. go-chart needs
// at least two distinct x values, so a single day is drawn as a flat segment
// from noon the day before to noon the day after.
func timelineX(s Summary) [][]time.Time {
	xs := make([][]time.Time, len(s.Dates))
	for i, p := range s.Dates {
		xs[i] = []time.Time{p.Date}
	}
	if len(s.Dates) == 1 {
		d := s.Dates[0].Date
		xs[0] = []time.Time{d.Add(-12 * time.Hour), d, d.Add(12 * time.Hour)}
	}
	return xs
}

func timelineChart(s Summary) *gochart.Chart {
	xs := timelineX(s)
	var series []gochart.Series
	maxCount := 0
	for i, m := range s.Moods {
		ts := gochart.TimeSeries{
			Name: m.Name(),
			Style: gochart.Style{
				StrokeColor: colorFor(m, i),
				StrokeWidth: 2,
				DotColor:    colorFor(m, i),
				DotWidth:    4,
			},
		}
		for j, p := range s.Dates {
			for _, x := range xs[j] {
				ts.XValues = append(ts.XValues, x)
				ts.YValues = append(ts.YValues, float64(p.Counts[m]))
			}
			maxCount = max(maxCount, p.Counts[m])
		}
		series = append(series, ts)
	}

	first, last := xs[0][0], xs[len(xs)-1][len(xs[len(xs)-1])-1]

	var xTicks []gochart.Tick
	if len(s.Dates) <= 10 {
		for _, p := range s.Dates {
			xTicks = append(xTicks, gochart.Tick{Value: float64(p.Date.UnixNano()), Label: p.Day})
		}
	}
	yTicks, yMax := countTicks(maxCount)

	c := &gochart.Chart{
		Title:      "Mood Over Time",
		Width:      Width / 2,
		Height:     Height,
		Background: gochart.Style{Padding: gochart.Box{Top: 50, Left: 20, Right: 20, Bottom: 20}},
		XAxis: gochart.XAxis{
			Name:           "Date",
			ValueFormatter: gochart.TimeValueFormatterWithFormat(DateLayout),
			Range:          &gochart.ContinuousRange{Min: float64(first.UnixNano()), Max: float64(last.UnixNano())},
			Ticks:          xTicks,
		},
		YAxis: gochart.YAxis{
			Name:  "Count",
			Range: &gochart.ContinuousRange{Min: 0, Max: yMax},
			Ticks: yTicks,
		},
		Series: series,
	}
	c.Elements = []gochart.Renderable{gochart.LegendThin(c)}
	return c
}

// countTicks returns whole-number Y ticks from 0 covering maxCount, and the
// top of the axis.
func countTicks(maxCount int) ([]gochart.Tick, float64) {
	step := int(math.Ceil(float64(max(maxCount, 1)) / 5))
	var ticks []gochart.Tick
	top := 0
	for v := 0; ; v += step {
		ticks = append(ticks, gochart.Tick{Value: float64(v), Label: fmt.Sprintf("%d", v)})
		top = v
		if v >= maxCount+1 {
			break
		}
	}
	return ticks, float64(top)
}
