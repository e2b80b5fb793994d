// Package mood maps free text to one of three fixed mood buckets and the
// canned recommendations attached to each bucket.
package mood

import "strings"

// Label is a mood bucket.
type Label string

const (
	Positive Label = "Positive 😊"
	Negative Label = "Negative 😔"
	Neutral  Label = "Neutral 😐"
)

// Labels lists every label in display order.
var Labels = []Label{Positive, Negative, Neutral}

// Keyword lists, checked in order: negative first, then positive.
var (
	negativeWords = []string{"sad", "down", "unhappy", "depressed"}
	positiveWords = []string{"happy", "great", "excited", "joyful"}
)

// Classify returns the mood label for text using case-insensitive substring
// matching. Negative keywords win over positive ones, so "unhappy" is Negative.
func Classify(text string) Label {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, negativeWords):
		return Negative
	case containsAny(lower, positiveWords):
		return Positive
	default:
		return Neutral
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// Name returns the label without its emoji ("Positive").
func (l Label) Name() string {
	name, _, _ := strings.Cut(string(l), " ")
	return name
}

// Valid reports whether l is one of the known labels.
func (l Label) Valid() bool {
	for _, known := range Labels {
		if l == known {
			return true
		}
	}
	return false
}

// ParseLabel accepts a full label ("Positive 😊") or its bare name
// ("positive"), case-insensitive.
func ParseLabel(s string) (Label, bool) {
	s = strings.TrimSpace(s)
	for _, l := range Labels {
		if strings.EqualFold(s, string(l)) || strings.EqualFold(s, l.Name()) {
			return l, true
		}
	}
	return "", false
}
