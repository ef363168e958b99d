package blobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	snapshot_id   TEXT PRIMARY KEY,
	slot          TEXT NOT NULL,
	blob          BLOB NOT NULL,
	size_bytes    INTEGER NOT NULL,
	created_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS snapshots_slot_created ON snapshots (slot, created_at);

CREATE TABLE IF NOT EXISTS active_slot (
	slot          TEXT PRIMARY KEY,
	snapshot_id   TEXT NOT NULL,
	FOREIGN KEY (snapshot_id) REFERENCES snapshots(snapshot_id)
);

CREATE TABLE IF NOT EXISTS lifecycle_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id      TEXT NOT NULL,
	event         TEXT NOT NULL,
	snapshot_id   TEXT,
	counter       INTEGER,
	user_count    INTEGER,
	detail        TEXT,
	created_at    TEXT NOT NULL
);
`
// #endregion schema

// #region store-struct
// SQLiteStore keeps every persisted blob as a snapshot row and points each
// slot at its latest snapshot.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}
// #endregion store-struct

// #region constructor
// NewSQLiteStore opens a SQLite database and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return NewSQLiteStoreWithDB(db), nil
}

// NewSQLiteStoreWithDB wraps an already-migrated database.
func NewSQLiteStoreWithDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Migrate applies the schema to db. Used with NewSQLiteStoreWithDB.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}
// #endregion constructor

// #region put
// Put records blob as a new snapshot and makes it the slot's active one,
// in a single transaction.
func (s *SQLiteStore) Put(ctx context.Context, key string, blob []byte) error {
	_, err := s.PutSnapshot(ctx, key, blob)
	return err
}

// PutSnapshot is Put returning the new snapshot's metadata.
func (s *SQLiteStore) PutSnapshot(ctx context.Context, key string, blob []byte) (SnapshotInfo, error) {
	info := SnapshotInfo{
		SnapshotID: uuid.New().String(),
		Slot:       key,
		SizeBytes:  len(blob),
		CreatedAt:  s.now(),
		Active:     true,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO snapshots (snapshot_id, slot, blob, size_bytes, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		info.SnapshotID, key, blob, info.SizeBytes, info.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("insert snapshot: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO active_slot (slot, snapshot_id) VALUES (?, ?)
		 ON CONFLICT(slot) DO UPDATE SET snapshot_id = excluded.snapshot_id`,
		key, info.SnapshotID,
	)
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("set active: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return SnapshotInfo{}, fmt.Errorf("commit: %w", err)
	}
	return info, nil
}
// #endregion put

// #region get
// Get returns the active blob for key, or ErrNotFound if the slot is empty.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT s.blob FROM active_slot a
		 JOIN snapshots s ON s.snapshot_id = a.snapshot_id
		 WHERE a.slot = ?`, key,
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get slot %s: %w", key, err)
	}
	return blob, nil
}

// Active returns the metadata and blob of the slot's active snapshot, or
// ErrNotFound if the slot is empty.
func (s *SQLiteStore) Active(ctx context.Context, key string) (SnapshotInfo, []byte, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT snapshot_id FROM active_slot WHERE slot = ?`, key,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return SnapshotInfo{}, nil, ErrNotFound
	}
	if err != nil {
		return SnapshotInfo{}, nil, fmt.Errorf("get slot %s: %w", key, err)
	}
	return s.GetSnapshot(ctx, id)
}

// GetSnapshot returns one snapshot by id, active or not.
func (s *SQLiteStore) GetSnapshot(ctx context.Context, id string) (SnapshotInfo, []byte, error) {
	var info SnapshotInfo
	var blob []byte
	var createdStr string
	var activeID sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT s.snapshot_id, s.slot, s.blob, s.size_bytes, s.created_at, a.snapshot_id
		 FROM snapshots s LEFT JOIN active_slot a ON a.slot = s.slot
		 WHERE s.snapshot_id = ?`, id,
	).Scan(&info.SnapshotID, &info.Slot, &blob, &info.SizeBytes, &createdStr, &activeID)
	if errors.Is(err, sql.ErrNoRows) {
		return SnapshotInfo{}, nil, fmt.Errorf("snapshot %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return SnapshotInfo{}, nil, fmt.Errorf("get snapshot %s: %w", id, err)
	}
	info.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	info.Active = activeID.Valid && activeID.String == info.SnapshotID
	return info, blob, nil
}
// #endregion get

// #region list
// List returns the most recent snapshots for key, newest first.
func (s *SQLiteStore) List(ctx context.Context, key string, limit int) ([]SnapshotInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.snapshot_id, s.slot, s.size_bytes, s.created_at, a.snapshot_id
		 FROM snapshots s LEFT JOIN active_slot a ON a.slot = s.slot
		 WHERE s.slot = ? ORDER BY s.created_at DESC LIMIT ?`, key, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []SnapshotInfo
	for rows.Next() {
		var info SnapshotInfo
		var createdStr string
		var activeID sql.NullString
		if err := rows.Scan(&info.SnapshotID, &info.Slot, &info.SizeBytes, &createdStr, &activeID); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		info.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		info.Active = activeID.Valid && activeID.String == info.SnapshotID
		out = append(out, info)
	}
	return out, rows.Err()
}
// #endregion list
