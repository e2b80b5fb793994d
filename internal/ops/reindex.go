package ops

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hpungsan/moodmart/internal/db"
	"github.com/hpungsan/moodmart/internal/errors"
)

// ReindexOutput contains the result of the Reindex operation.
type ReindexOutput struct {
	Indexed int `json:"indexed"`
}

// Reindex rebuilds the index from the mood log.
func Reindex(ctx context.Context, d *Deps) (*ReindexOutput, error) {
	if d.Index == nil {
		return nil, errors.NewInternal(fmt.Errorf("mood index is not open"))
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	return d.reindex(ctx)
}

func (d *Deps) reindex(ctx context.Context) (*ReindexOutput, error) {
	entries, err := readLog(ctx, d, "reindex")
	if err != nil {
		return nil, err
	}

	rows := make([]db.EntryRow, 0, len(entries))
	for i, e := range entries {
		row, err := toRow(int64(i+1), e)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		rows = append(rows, row)
	}
	if err := db.ReplaceAll(ctx, d.Index, rows); err != nil {
		return nil, wrapErr(ctx, "reindex", err)
	}

	d.logger(ctx).Info("mood index rebuilt", zap.Int("rows", len(rows)))
	return &ReindexOutput{Indexed: len(rows)}, nil
}

// SyncIndex rebuilds the index when its row count differs from the log's.
// It reports whether a rebuild happened.
func SyncIndex(ctx context.Context, d *Deps) (bool, error) {
	if d.Index == nil {
		return false, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	entries, err := readLog(ctx, d, "sync")
	if err != nil {
		return false, err
	}
	indexed, err := db.CountEntries(ctx, d.Index)
	if err != nil {
		return false, wrapErr(ctx, "sync", err)
	}
	if indexed == len(entries) {
		return false, nil
	}

	if _, err := d.reindex(ctx); err != nil {
		return false, err
	}
	return true, nil
}
