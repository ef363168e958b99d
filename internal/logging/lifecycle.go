// Package logging records lifecycle events in the snapshot database so every
// restart leaves an audit trail next to the blobs it produced.
package logging

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// #region log-event
// LogEvent writes a lifecycle entry to the lifecycle_log table.
func LogEvent(ctx context.Context, db *sql.DB, entry LifecycleEntry) error {
	if entry.EventID == "" {
		entry.EventID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO lifecycle_log (event_id, event, snapshot_id, counter, user_count, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.EventID,
		entry.Event,
		nullIfEmpty(entry.SnapshotID),
		entry.Counter,
		entry.UserCount,
		nullIfEmpty(entry.Detail),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log event: %w", err)
	}
	return nil
}
// #endregion log-event

// #region recent
// Recent returns the latest lifecycle entries, newest first.
func Recent(ctx context.Context, db *sql.DB, limit int) ([]LifecycleEntry, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT event_id, event, snapshot_id, counter, user_count, detail, created_at
		 FROM lifecycle_log ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent events: %w", err)
	}
	defer rows.Close()

	var out []LifecycleEntry
	for rows.Next() {
		var e LifecycleEntry
		var snapID, detail sql.NullString
		var createdStr string
		if err := rows.Scan(&e.EventID, &e.Event, &snapID, &e.Counter, &e.UserCount, &detail, &createdStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		e.SnapshotID = snapID.String
		e.Detail = detail.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, e)
	}
	return out, rows.Err()
}
// #endregion recent

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
// #endregion helpers
