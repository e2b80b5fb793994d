package ops

import (
	"context"
	"crypto/rand"
	"database/sql"
	stderrors "errors"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/moodmart/internal/config"
	"github.com/hpungsan/moodmart/internal/errors"
	"github.com/hpungsan/moodmart/internal/history"
	"github.com/hpungsan/moodmart/internal/mood"
	"github.com/hpungsan/moodmart/internal/observe"
	"github.com/hpungsan/moodmart/internal/speech"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// Deps carries everything an operation touches. Log and Config are required;
// the rest may be nil where an operation does not need them.
type Deps struct {
	BaseDir     string
	Log         *history.Log
	Index       *sql.DB
	Config      *config.Config
	Transcriber speech.Transcriber
	Metrics     *observe.Metrics
	Logger      *zap.Logger

	// mu keeps log appends and index inserts in the same order.
	mu sync.Mutex
}

func (d *Deps) logger(ctx context.Context) *zap.Logger {
	return observe.Logger(ctx, d.Logger)
}

func (d *Deps) config() *config.Config {
	if d.Config == nil {
		return config.DefaultConfig()
	}
	return d.Config
}

// clampPage applies the list defaults and bounds.
func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return limit, max(offset, 0)
}

// parseMoodFilter accepts "", a full label, or a bare mood name.
func parseMoodFilter(s string) (*mood.Label, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	l, ok := mood.ParseLabel(s)
	if !ok {
		return nil, errors.NewInvalidRequest("mood must be one of: positive, negative, neutral")
	}
	return &l, nil
}

// readLog returns every log row; a missing log is an empty slice.
func readLog(ctx context.Context, d *Deps, op string) ([]history.Entry, error) {
	entries, err := d.Log.ReadAll(ctx)
	if stderrors.Is(err, history.ErrNoLog) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr(ctx, op, err)
	}
	return entries, nil
}

// wrapErr maps context errors to CANCELLED and anything else that is not
// already a MoodError to INTERNAL.
func wrapErr(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	var mErr *errors.MoodError
	if stderrors.As(err, &mErr) {
		return mErr
	}
	if ctx.Err() != nil || stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return errors.NewCancelled(op)
	}
	return errors.NewInternal(err)
}

// generateULID generates a new ULID for the given time.
func generateULID(t time.Time) (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
