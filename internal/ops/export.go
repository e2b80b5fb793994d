package ops

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/moodmart/internal/errors"
	"github.com/hpungsan/moodmart/internal/history"
	"github.com/hpungsan/moodmart/internal/safefile"
)

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	Path string // optional; empty returns the log itself
	Copy bool   // with an empty Path, copy to <base>/exports/mood_history-<timestamp>.csv
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Path       string `json:"path"`
	Count      int    `json:"count"`
	ExportedAt int64  `json:"exported_at"`
}

// Export hands back the mood log for download. Without a destination it
// returns the log's own path; with one it writes an atomic copy. It returns
// nil, nil when no log exists.
func Export(ctx context.Context, d *Deps, input ExportInput) (*ExportOutput, error) {
	if !d.Log.Exists() {
		return nil, nil
	}

	now := time.Now()
	exportPath := input.Path
	if exportPath == "" && input.Copy {
		exportPath = defaultExportPath(d.BaseDir, now)
	}

	if exportPath == "" {
		return &ExportOutput{
			Path:       d.Log.Path(),
			Count:      countRows(ctx, d),
			ExportedAt: now.Unix(),
		}, nil
	}

	entries, err := readLog(ctx, d, "export")
	if err != nil {
		return nil, err
	}

	// Validate ALL destinations, default ones included.
	if err := ValidatePath(exportPath, ".csv", d.BaseDir, d.config()); err != nil {
		return nil, err
	}
	if err := writeAtomic(ctx, exportPath, entries); err != nil {
		return nil, err
	}

	return &ExportOutput{
		Path:       exportPath,
		Count:      len(entries),
		ExportedAt: now.Unix(),
	}, nil
}

// countRows counts the rows that parse. The log is handed back as-is, so a
// malformed row is reported but does not block the download.
func countRows(ctx context.Context, d *Deps) int {
	entries, skipped, err := d.Log.ReadValid(ctx)
	if err != nil {
		d.logger(ctx).Warn("count mood log rows", zap.Error(err))
		return len(entries)
	}
	if skipped > 0 {
		d.logger(ctx).Warn("mood log has malformed rows", zap.String("path", d.Log.Path()), zap.Int("rows", skipped))
	}
	return len(entries)
}

// writeAtomic writes entries to a temp file beside exportPath and renames it
// into place, so an existing file survives any failure.
func writeAtomic(ctx context.Context, exportPath string, entries []history.Entry) error {
	dir := filepath.Dir(exportPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := exportPath + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := safefile.OpenNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	select {
	case <-ctx.Done():
		return errors.NewCancelled("export")
	default:
	}

	if err := history.WriteCSV(file, entries); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to write export: %w", err))
	}
	if err := file.Sync(); err != nil {
		return errors.NewInternal(err)
	}

	// Close before rename (required on Windows).
	if err := file.Close(); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlink at the destination.
	if info, err := os.Lstat(exportPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("export path must not be a symlink")
	}

	// On Windows os.Rename fails when the destination exists. Fail safely
	// rather than delete-then-rename.
	if err := os.Rename(tempPath, exportPath); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(exportPath); statErr == nil {
				return errors.NewInvalidRequest("export destination already exists; choose a new path or delete the existing file")
			}
		}
		return errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	return nil
}

// defaultExportPath returns <base>/exports/mood_history-<timestamp>.csv.
func defaultExportPath(baseDir string, now time.Time) string {
	filename := fmt.Sprintf("mood_history-%s.csv", now.Format("2006-01-02T150405"))
	return filepath.Join(ExportsDir(baseDir), filename)
}
