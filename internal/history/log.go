// Package history stores the mood log: an append-only CSV file of
// (timestamp, text, mood) rows with no header.
//
// A Log is an explicit handle around the file. Appends and reads through the
// same handle are serialised, and every call opens and closes the file
// itself. Writers in other processes are not coordinated.
package history

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/moodmart/internal/mood"
	"github.com/hpungsan/moodmart/internal/safefile"
)

// TimeLayout is the timestamp format written to the log.
const TimeLayout = "2006-01-02 15:04:05"

// ErrNoLog is returned by ReadAll when the log file does not exist yet.
var ErrNoLog = errors.New("mood log does not exist")

// Entry is one logged classification.
type Entry struct {
	Timestamp time.Time  `json:"timestamp"`
	Text      string     `json:"text"`
	Mood      mood.Label `json:"mood"`
}

// Log is a handle to the CSV mood log.
type Log struct {
	path   string
	now    func() time.Time
	logger *zap.Logger

	mu     sync.Mutex
	last   time.Time
	primed bool
}

// Option configures a Log.
type Option func(*Log)

// WithLogger sets the logger used to report skipped rows.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Log) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Open returns a handle for the log at path. The file is created on the
// first Append.
func Open(path string, opts ...Option) *Log {
	l := &Log{path: path, now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Path returns the log file path.
func (l *Log) Path() string {
	return l.path
}

// Exists reports whether the log file is present.
func (l *Log) Exists() bool {
	info, err := os.Stat(l.path)
	return err == nil && info.Mode().IsRegular()
}

// Append writes exactly one row. A zero Timestamp means now. The stored
// timestamp is never earlier than the previous row, and the returned Entry
// carries the value actually written. CRLF line breaks in Text are stored
// as LF, since that is what a CSV reader hands back.
func (l *Log) Append(ctx context.Context, e Entry) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.primed {
		last, err := l.lastTimestamp()
		if err != nil {
			return Entry{}, err
		}
		l.last = last
		l.primed = true
	}

	ts := e.Timestamp
	if ts.IsZero() {
		ts = l.now()
	}
	// Round-trip through the layout so the in-memory value matches the file.
	ts, err := time.ParseInLocation(TimeLayout, ts.Format(TimeLayout), time.Local)
	if err != nil {
		return Entry{}, fmt.Errorf("history: normalise timestamp: %w", err)
	}
	if ts.Before(l.last) {
		ts = l.last
	}
	e.Timestamp = ts
	e.Text = strings.ReplaceAll(e.Text, "\r\n", "\n")

	f, err := safefile.OpenNoFollow(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return Entry{}, fmt.Errorf("history: open %s: %w", l.path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(record(e)); err != nil {
		return Entry{}, fmt.Errorf("history: write row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return Entry{}, fmt.Errorf("history: flush row: %w", err)
	}
	if err := f.Close(); err != nil {
		return Entry{}, fmt.Errorf("history: close %s: %w", l.path, err)
	}

	l.last = ts
	return e, nil
}

// ReadAll returns every row in write order. It returns ErrNoLog when the
// file does not exist.
func (l *Log) ReadAll(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.readAll(ctx)
}

func (l *Log) readAll(ctx context.Context) ([]Entry, error) {
	entries, _, err := l.readRows(ctx, true)
	return entries, err
}

// ReadValid returns every row that parses, in write order, and the number
// of malformed rows it skipped. It returns ErrNoLog when the file does not
// exist.
func (l *Log) ReadValid(ctx context.Context) ([]Entry, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.readRows(ctx, false)
}

// readRows parses the file. In strict mode the first malformed row is an
// error; otherwise malformed rows are counted and skipped.
func (l *Log) readRows(ctx context.Context, strict bool) ([]Entry, int, error) {
	f, err := safefile.OpenNoFollowRead(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, ErrNoLog
		}
		return nil, 0, fmt.Errorf("history: open %s: %w", l.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 3

	var entries []Entry
	skipped := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if !strict && errors.As(err, &pe) {
				skipped++
				continue
			}
			return nil, 0, fmt.Errorf("history: read %s: %w", l.path, err)
		}
		ts, err := time.ParseInLocation(TimeLayout, rec[0], time.Local)
		if err != nil {
			if !strict {
				skipped++
				continue
			}
			line, _ := r.FieldPos(0)
			return nil, 0, fmt.Errorf("history: %s line %d: bad timestamp %q", l.path, line, rec[0])
		}
		entries = append(entries, Entry{Timestamp: ts, Text: rec[1], Mood: mood.Label(rec[2])})
	}
	return entries, skipped, nil
}

// lastTimestamp returns the latest timestamp already in the file, or the
// zero time when the file is missing or empty. Malformed rows are skipped.
func (l *Log) lastTimestamp() (time.Time, error) {
	entries, skipped, err := l.readRows(context.Background(), false)
	if errors.Is(err, ErrNoLog) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	if skipped > 0 {
		l.logger.Warn("skipped malformed mood log rows", zap.String("path", l.path), zap.Int("rows", skipped))
	}
	var last time.Time
	for _, e := range entries {
		if e.Timestamp.After(last) {
			last = e.Timestamp
		}
	}
	return last, nil
}

// WriteCSV writes entries in the log's row format.
func WriteCSV(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	for _, e := range entries {
		if err := cw.Write(record(e)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func record(e Entry) []string {
	return []string{e.Timestamp.Format(TimeLayout), e.Text, string(e.Mood)}
}
