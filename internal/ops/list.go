package ops

import (
	"context"
	"slices"

	"github.com/hpungsan/moodmart/internal/history"
)

// ListInput contains parameters for the List operation.
type ListInput struct {
	Mood   string // optional filter: full label or bare name
	Limit  int    // default: 20, max: 100
	Offset int    // default: 0
	Newest bool   // newest first; default is log order
}

// ListOutput contains the result of the List operation.
type ListOutput struct {
	Items      []history.Entry `json:"items"`
	Pagination Pagination      `json:"pagination"`
	Sort       string          `json:"sort"`
}

// List pages through the mood log itself. A missing log is an empty list.
func List(ctx context.Context, d *Deps, input ListInput) (*ListOutput, error) {
	filter, err := parseMoodFilter(input.Mood)
	if err != nil {
		return nil, err
	}
	limit, offset := clampPage(input.Limit, input.Offset)

	entries, err := readLog(ctx, d, "list")
	if err != nil {
		return nil, err
	}

	if filter != nil {
		entries = slices.DeleteFunc(entries, func(e history.Entry) bool { return e.Mood != *filter })
	}
	sort := "logged_asc"
	if input.Newest {
		slices.Reverse(entries)
		sort = "logged_desc"
	}

	total := len(entries)
	items := []history.Entry{}
	if offset < total {
		items = entries[offset:min(offset+limit, total)]
	}

	return &ListOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
		Sort: sort,
	}, nil
}
