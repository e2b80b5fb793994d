package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// EntryRow is one indexed mood log row. Seq is the 1-based row position in
// the CSV log; LoggedAt is a Unix timestamp.
type EntryRow struct {
	ID       string
	Seq      int64
	LoggedAt int64
	Text     string
	Mood     string
}

// MoodCount is the number of rows for a mood label.
type MoodCount struct {
	Mood  string `json:"mood"`
	Count int    `json:"count"`
}

// InsertEntry appends a row to the index.
func InsertEntry(ctx context.Context, db *sql.DB, row EntryRow) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO mood_entries (id, seq, logged_at, text, mood) VALUES (?, ?, ?, ?, ?)`,
		row.ID, row.Seq, row.LoggedAt, row.Text, row.Mood,
	)
	if err != nil {
		return fmt.Errorf("insert mood entry: %w", err)
	}
	return nil
}

// NextSeq returns the sequence number for the next row.
func NextSeq(ctx context.Context, db *sql.DB) (int64, error) {
	var max sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT MAX(seq) FROM mood_entries`).Scan(&max); err != nil {
		return 0, fmt.Errorf("max seq: %w", err)
	}
	return max.Int64 + 1, nil
}

// CountEntries returns the number of indexed rows.
func CountEntries(ctx context.Context, db *sql.DB) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM mood_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count mood entries: %w", err)
	}
	return n, nil
}

// CountByMood returns per-mood counts, optionally bounded by [since, until)
// Unix timestamps. Results are ordered by count descending, then mood.
func CountByMood(ctx context.Context, db *sql.DB, since, until *int64) ([]MoodCount, error) {
	query := `SELECT mood, COUNT(*) AS n FROM mood_entries WHERE 1=1`
	var args []any
	if since != nil {
		query += ` AND logged_at >= ?`
		args = append(args, *since)
	}
	if until != nil {
		query += ` AND logged_at < ?`
		args = append(args, *until)
	}
	query += ` GROUP BY mood ORDER BY n DESC, mood ASC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("count by mood: %w", err)
	}
	defer rows.Close()

	counts := make([]MoodCount, 0, 3)
	for rows.Next() {
		var mc MoodCount
		if err := rows.Scan(&mc.Mood, &mc.Count); err != nil {
			return nil, fmt.Errorf("scan mood count: %w", err)
		}
		counts = append(counts, mc)
	}
	return counts, rows.Err()
}

// SearchEntries returns rows whose text contains query (case-insensitive for
// ASCII), optionally filtered by mood, newest first, plus the total match count.
func SearchEntries(ctx context.Context, db *sql.DB, query string, mood *string, limit, offset int) ([]EntryRow, int, error) {
	where := ` WHERE text LIKE ? ESCAPE '\'`
	args := []any{"%" + escapeLike(query) + "%"}
	if mood != nil {
		where += ` AND mood = ?`
		args = append(args, *mood)
	}

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM mood_entries`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count search results: %w", err)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, seq, logged_at, text, mood FROM mood_entries`+where+` ORDER BY seq DESC LIMIT ? OFFSET ?`,
		append(args, limit, offset)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("search mood entries: %w", err)
	}
	defer rows.Close()

	var result []EntryRow
	for rows.Next() {
		var r EntryRow
		if err := rows.Scan(&r.ID, &r.Seq, &r.LoggedAt, &r.Text, &r.Mood); err != nil {
			return nil, 0, fmt.Errorf("scan mood entry: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

// ReplaceAll swaps the whole index for rows in one transaction.
func ReplaceAll(ctx context.Context, db *sql.DB, rows []EntryRow) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reindex: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM mood_entries`); err != nil {
		return fmt.Errorf("clear index: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO mood_entries (id, seq, logged_at, text, mood) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare reindex insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.ID, r.Seq, r.LoggedAt, r.Text, r.Mood); err != nil {
			return fmt.Errorf("reindex row %d: %w", r.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reindex: %w", err)
	}
	return nil
}

// escapeLike escapes LIKE wildcards so query matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
