package ops

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hpungsan/moodmart/internal/db"
	"github.com/hpungsan/moodmart/internal/errors"
	"github.com/hpungsan/moodmart/internal/mood"
)

// MaxQueryLength bounds search queries, in characters.
const MaxQueryLength = 200

// SearchInput contains parameters for the Search operation.
type SearchInput struct {
	Query  string // required
	Mood   string // optional filter
	Limit  int    // default: 20, max: 100
	Offset int    // default: 0
}

// SearchResultItem is one matching log row.
type SearchResultItem struct {
	ID        string     `json:"id"`
	Seq       int64      `json:"seq"`
	Timestamp time.Time  `json:"timestamp"`
	Text      string     `json:"text"`
	Mood      mood.Label `json:"mood"`
}

// SearchOutput contains the result of the Search operation.
type SearchOutput struct {
	Items      []SearchResultItem `json:"items"`
	Pagination Pagination         `json:"pagination"`
	Sort       string             `json:"sort"`
}

// Search finds logged text containing the query (case-insensitive for
// ASCII), newest first.
func Search(ctx context.Context, d *Deps, input SearchInput) (*SearchOutput, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, errors.NewInvalidRequest("query is required")
	}
	if utf8.RuneCountInString(query) > MaxQueryLength {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("query exceeds maximum length of %d characters", MaxQueryLength))
	}
	filter, err := parseMoodFilter(input.Mood)
	if err != nil {
		return nil, err
	}
	if d.Index == nil {
		return nil, errors.NewInternal(fmt.Errorf("mood index is not open"))
	}
	limit, offset := clampPage(input.Limit, input.Offset)

	var moodFilter *string
	if filter != nil {
		s := string(*filter)
		moodFilter = &s
	}

	rows, total, err := db.SearchEntries(ctx, d.Index, query, moodFilter, limit, offset)
	if err != nil {
		return nil, wrapErr(ctx, "search", err)
	}

	items := make([]SearchResultItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, SearchResultItem{
			ID:        r.ID,
			Seq:       r.Seq,
			Timestamp: time.Unix(r.LoggedAt, 0),
			Text:      r.Text,
			Mood:      mood.Label(r.Mood),
		})
	}

	return &SearchOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
		Sort: "logged_desc",
	}, nil
}
