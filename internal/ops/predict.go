package ops

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/moodmart/internal/db"
	"github.com/hpungsan/moodmart/internal/history"
	"github.com/hpungsan/moodmart/internal/mood"
)

// PredictInput contains parameters for the Predict operation.
type PredictInput struct {
	Text string // may be empty; empty text classifies as Neutral
}

// PredictOutput contains the result of the Predict operation.
type PredictOutput struct {
	Mood             mood.Label   `json:"mood"`
	Song             mood.Link    `json:"song"`
	SongMarkdown     string       `json:"song_markdown"`
	Products         [3]mood.Link `json:"products"`
	ProductsMarkdown string       `json:"products_markdown"`
	Tip              string       `json:"tip"`
	Timestamp        time.Time    `json:"timestamp"`
}

// Predict classifies the text, logs exactly one row, and returns the
// recommendation for the mood.
func Predict(ctx context.Context, d *Deps, input PredictInput) (*PredictOutput, error) {
	label := mood.Classify(input.Text)
	rec := mood.Recommend(label)

	entry, err := d.record(ctx, history.Entry{Text: input.Text, Mood: label})
	if err != nil {
		return nil, wrapErr(ctx, "predict", err)
	}

	d.Metrics.RecordPrediction(ctx, label.Name())
	d.logger(ctx).Debug("mood classified", zap.String("mood", label.Name()), zap.Int("chars", len(input.Text)))

	return &PredictOutput{
		Mood:             rec.Mood,
		Song:             rec.Song,
		SongMarkdown:     rec.SongMarkdown(),
		Products:         rec.Products,
		ProductsMarkdown: rec.ProductsMarkdown(),
		Tip:              rec.Tip,
		Timestamp:        entry.Timestamp,
	}, nil
}

// record appends e to the log and mirrors it into the index. The log is the
// source of truth: an index failure is logged and left for SyncIndex.
func (d *Deps) record(ctx context.Context, e history.Entry) (history.Entry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	written, err := d.Log.Append(ctx, e)
	if err != nil {
		return history.Entry{}, err
	}
	if d.Index == nil {
		return written, nil
	}

	if err := d.mirror(ctx, written); err != nil {
		d.logger(ctx).Warn("index out of sync with mood log", zap.Error(err))
	}
	return written, nil
}

func (d *Deps) mirror(ctx context.Context, e history.Entry) error {
	seq, err := db.NextSeq(ctx, d.Index)
	if err != nil {
		return err
	}
	row, err := toRow(seq, e)
	if err != nil {
		return err
	}
	return db.InsertEntry(ctx, d.Index, row)
}

func toRow(seq int64, e history.Entry) (db.EntryRow, error) {
	id, err := generateULID(e.Timestamp)
	if err != nil {
		return db.EntryRow{}, err
	}
	return db.EntryRow{
		ID:       id,
		Seq:      seq,
		LoggedAt: e.Timestamp.Unix(),
		Text:     e.Text,
		Mood:     string(e.Mood),
	}, nil
}
