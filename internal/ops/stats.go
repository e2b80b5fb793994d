package ops

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hpungsan/moodmart/internal/db"
	"github.com/hpungsan/moodmart/internal/errors"
	"github.com/hpungsan/moodmart/internal/mood"
)

// DateLayout is the accepted format for Since and Until.
const DateLayout = "2006-01-02"

// StatsInput contains parameters for the Stats operation.
type StatsInput struct {
	Since string // optional, inclusive, YYYY-MM-DD local date
	Until string // optional, inclusive, YYYY-MM-DD local date
}

// MoodStat is the count for one mood.
type MoodStat struct {
	Mood    mood.Label `json:"mood"`
	Name    string     `json:"name"`
	Count   int        `json:"count"`
	Percent float64    `json:"percent"`
}

// StatsOutput contains the result of the Stats operation.
type StatsOutput struct {
	Total int        `json:"total"`
	Moods []MoodStat `json:"moods"`
	Since string     `json:"since,omitempty"`
	Until string     `json:"until,omitempty"`
}

// Stats counts logged classifications per mood from the index. Every known
// mood is present, zero-filled, ordered by count descending.
func Stats(ctx context.Context, d *Deps, input StatsInput) (*StatsOutput, error) {
	if d.Index == nil {
		return nil, errors.NewInternal(fmt.Errorf("mood index is not open"))
	}

	since, err := parseDay(input.Since, "since")
	if err != nil {
		return nil, err
	}
	until, err := parseDay(input.Until, "until")
	if err != nil {
		return nil, err
	}
	var sinceUnix, untilUnix *int64
	if since != nil {
		v := since.Unix()
		sinceUnix = &v
	}
	if until != nil {
		v := until.AddDate(0, 0, 1).Unix()
		untilUnix = &v
	}
	if sinceUnix != nil && untilUnix != nil && *sinceUnix >= *untilUnix {
		return nil, errors.NewInvalidRequest("since must not be after until")
	}

	counts, err := db.CountByMood(ctx, d.Index, sinceUnix, untilUnix)
	if err != nil {
		return nil, wrapErr(ctx, "stats", err)
	}

	byMood := make(map[mood.Label]int, len(counts))
	total := 0
	for _, c := range counts {
		byMood[mood.Label(c.Mood)] += c.Count
		total += c.Count
	}

	order := make(map[mood.Label]int)
	var stats []MoodStat
	for i, l := range mood.Labels {
		order[l] = i
		stats = append(stats, MoodStat{Mood: l, Name: l.Name(), Count: byMood[l]})
	}
	for l, n := range byMood {
		if !l.Valid() {
			order[l] = len(mood.Labels)
			stats = append(stats, MoodStat{Mood: l, Name: l.Name(), Count: n})
		}
	}
	for i := range stats {
		if total > 0 {
			stats[i].Percent = 100 * float64(stats[i].Count) / float64(total)
		}
	}
	sort.SliceStable(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		if order[stats[i].Mood] != order[stats[j].Mood] {
			return order[stats[i].Mood] < order[stats[j].Mood]
		}
		return stats[i].Mood < stats[j].Mood
	})

	return &StatsOutput{
		Total: total,
		Moods: stats,
		Since: strings.TrimSpace(input.Since),
		Until: strings.TrimSpace(input.Until),
	}, nil
}

func parseDay(s, field string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(DateLayout, s, time.Local)
	if err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("%s must be a date in YYYY-MM-DD format", field))
	}
	return &t, nil
}
