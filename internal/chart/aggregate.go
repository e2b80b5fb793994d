// Package chart summarises the mood log and renders it as a PNG: a pie of
// the mood distribution beside a per-day timeline.
package chart

import (
	"sort"
	"time"

	"github.com/hpungsan/moodmart/internal/history"
	"github.com/hpungsan/moodmart/internal/mood"
)

// DateLayout formats the timeline's calendar dates.
const DateLayout = "2006-01-02"

// Slice is one pie segment.
type Slice struct {
	Mood    mood.Label `json:"mood"`
	Count   int        `json:"count"`
	Percent float64    `json:"percent"`
}

// DatePoint holds the per-mood counts for one calendar day.
type DatePoint struct {
	Date   time.Time          `json:"-"`
	Day    string             `json:"date"`
	Counts map[mood.Label]int `json:"counts"`
}

// Summary is the aggregated log.
type Summary struct {
	Total int `json:"total"`

	// Slices are ordered by count descending; ties follow Moods order.
	Slices []Slice `json:"slices"`

	// Moods lists every label present in the log: known labels first in
	// Positive, Negative, Neutral order, then any others sorted.
	Moods []mood.Label `json:"moods"`

	// Dates are ascending. Every point carries a count for every entry of Moods.
	Dates []DatePoint `json:"dates"`
}

// Aggregate summarises entries. Timestamps are bucketed by their local
// calendar date.
func Aggregate(entries []history.Entry) Summary {
	counts := make(map[mood.Label]int)
	perDay := make(map[string]map[mood.Label]int)
	days := make(map[string]time.Time)

	for _, e := range entries {
		counts[e.Mood]++

		ts := e.Timestamp.Local()
		day := ts.Format(DateLayout)
		if _, ok := perDay[day]; !ok {
			perDay[day] = make(map[mood.Label]int)
			days[day] = time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.Local)
		}
		perDay[day][e.Mood]++
	}

	s := Summary{Total: len(entries), Moods: orderedMoods(counts)}

	rank := make(map[mood.Label]int, len(s.Moods))
	for i, m := range s.Moods {
		rank[m] = i
		s.Slices = append(s.Slices, Slice{
			Mood:    m,
			Count:   counts[m],
			Percent: 100 * float64(counts[m]) / float64(len(entries)),
		})
	}
	sort.SliceStable(s.Slices, func(i, j int) bool {
		if s.Slices[i].Count != s.Slices[j].Count {
			return s.Slices[i].Count > s.Slices[j].Count
		}
		return rank[s.Slices[i].Mood] < rank[s.Slices[j].Mood]
	})

	keys := make([]string, 0, len(perDay))
	for day := range perDay {
		keys = append(keys, day)
	}
	sort.Strings(keys)

	for _, day := range keys {
		point := DatePoint{Date: days[day], Day: day, Counts: make(map[mood.Label]int, len(s.Moods))}
		for _, m := range s.Moods {
			point.Counts[m] = perDay[day][m]
		}
		s.Dates = append(s.Dates, point)
	}

	return s
}

func orderedMoods(counts map[mood.Label]int) []mood.Label {
	var known, other []mood.Label
	for _, l := range mood.Labels {
		if counts[l] > 0 {
			known = append(known, l)
		}
	}
	for l := range counts {
		if !l.Valid() {
			other = append(other, l)
		}
	}
	sort.Slice(other, func(i, j int) bool { return other[i] < other[j] })
	return append(known, other...)
}
