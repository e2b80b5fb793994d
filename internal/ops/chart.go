package ops

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hpungsan/moodmart/internal/chart"
	"github.com/hpungsan/moodmart/internal/config"
	"github.com/hpungsan/moodmart/internal/errors"
)

// ChartInput contains parameters for the Chart operation.
type ChartInput struct {
	Path string // optional, default: <base>/mood_chart.png (chart_file); custom paths follow export path rules with .png
}

// ChartOutput contains the result of the Chart operation.
type ChartOutput struct {
	Path    string        `json:"path"`
	Entries int           `json:"entries"`
	Moods   []chart.Slice `json:"moods"`
	Dates   []string      `json:"dates"`
}

// Chart renders the mood log to a PNG. It returns nil, nil when there is no
// history to plot.
func Chart(ctx context.Context, d *Deps, input ChartInput) (*ChartOutput, error) {
	cfg := d.config()

	path := input.Path
	if path == "" {
		path = config.ResolvePath(d.BaseDir, cfg.ChartFile)
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, errors.NewInternal(fmt.Errorf("failed to create chart directory: %w", err))
		}
	} else if err := ValidatePath(path, ".png", d.BaseDir, cfg); err != nil {
		return nil, err
	}

	entries, err := readLog(ctx, d, "chart")
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}

	start := time.Now()
	if err := chart.Render(ctx, entries, path); err != nil {
		return nil, wrapErr(ctx, "chart", err)
	}
	d.Metrics.RecordChart(ctx, time.Since(start).Seconds())

	summary := chart.Aggregate(entries)
	dates := make([]string, len(summary.Dates))
	for i, p := range summary.Dates {
		dates[i] = p.Day
	}

	return &ChartOutput{
		Path:    path,
		Entries: summary.Total,
		Moods:   summary.Slices,
		Dates:   dates,
	}, nil
}
