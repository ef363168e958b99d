package blobstore

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func tempDB(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// steppedClock makes created_at strictly increasing so ordering is stable.
func steppedClock(s *SQLiteStore) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	s.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

func TestGetEmptySlot(t *testing.T) {
	s := tempDB(t)
	_, err := s.Get(context.Background(), "process_state")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPutAndGet(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()

	if err := s.Put(ctx, "process_state", []byte("one")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, "process_state", []byte("two")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get(ctx, "process_state")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, []byte("two")) {
		t.Fatalf("expected latest blob, got %q", got)
	}
	if _, err := s.Get(ctx, "other"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("slots must be independent, got %v", err)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "durable.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := s.Put(ctx, "slot", []byte{1, 2, 3}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	s.Close()

	s2, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	got, err := s2.Get(ctx, "slot")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Fatalf("got %v", got)
	}
}

func TestListAndGetSnapshot(t *testing.T) {
	s := tempDB(t)
	steppedClock(s)
	ctx := context.Background()

	first, err := s.PutSnapshot(ctx, "slot", []byte("aaaa"))
	if err != nil {
		t.Fatalf("PutSnapshot: %v", err)
	}
	second, err := s.PutSnapshot(ctx, "slot", []byte("bb"))
	if err != nil {
		t.Fatalf("PutSnapshot: %v", err)
	}

	list, err := s.List(ctx, "slot", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(list))
	}
	if list[0].SnapshotID != second.SnapshotID || !list[0].Active {
		t.Fatalf("expected newest active first, got %+v", list[0])
	}
	if list[1].Active || list[1].SizeBytes != 4 {
		t.Fatalf("unexpected older entry %+v", list[1])
	}

	info, blob, err := s.GetSnapshot(ctx, first.SnapshotID)
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if string(blob) != "aaaa" || info.Active {
		t.Fatalf("unexpected snapshot %+v %q", info, blob)
	}
	if !info.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("created_at = %v, want %v", info.CreatedAt, first.CreatedAt)
	}
}

func TestGetSnapshotNotFound(t *testing.T) {
	s := tempDB(t)
	_, _, err := s.GetSnapshot(context.Background(), "nonexistent-id")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestActiveSnapshot(t *testing.T) {
	s := tempDB(t)
	steppedClock(s)
	ctx := context.Background()

	if _, _, err := s.Active(ctx, "slot"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty slot: expected ErrNotFound, got %v", err)
	}
	if _, err := s.PutSnapshot(ctx, "slot", []byte("one")); err != nil {
		t.Fatalf("PutSnapshot: %v", err)
	}
	second, err := s.PutSnapshot(ctx, "slot", []byte("two"))
	if err != nil {
		t.Fatalf("PutSnapshot: %v", err)
	}

	info, blob, err := s.Active(ctx, "slot")
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if info.SnapshotID != second.SnapshotID || !info.Active {
		t.Fatalf("active = %+v, want %s", info, second.SnapshotID)
	}
	if !bytes.Equal(blob, []byte("two")) {
		t.Fatalf("blob = %q, want %q", blob, "two")
	}
}

func TestOperationsOnClosedDB(t *testing.T) {
	s := tempDB(t)
	s.Close()
	ctx := context.Background()

	if err := s.Put(ctx, "slot", []byte("x")); err == nil {
		t.Fatal("expected Put error on closed DB")
	}
	if _, err := s.Get(ctx, "slot"); err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected non-NotFound error on closed DB, got %v", err)
	}
	if _, err := s.List(ctx, "slot", 5); err == nil {
		t.Fatal("expected List error on closed DB")
	}
}

func TestPutSetActiveFails(t *testing.T) {
	s := tempDB(t)
	if _, err := s.DB().Exec("DROP TABLE active_slot"); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if err := s.Put(context.Background(), "slot", []byte("x")); err == nil {
		t.Fatal("expected error when active_slot table is missing")
	}
	var n int
	s.DB().QueryRow(`SELECT COUNT(*) FROM snapshots`).Scan(&n)
	if n != 0 {
		t.Fatalf("snapshot insert should roll back, found %d rows", n)
	}
}

func TestNewSQLiteStore_CorruptDB(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "corrupt.db")
	os.WriteFile(dbPath, []byte("not a sqlite database, padded well past the sixteen byte header"), 0644)

	if _, err := NewSQLiteStore(dbPath); err == nil {
		t.Fatal("expected error for corrupted DB file")
	}
}

func TestMemoryStore(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	if _, err := m.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	in := []byte("blob")
	m.Put(ctx, "k", in)
	in[0] = 'X'
	got, err := m.Get(ctx, "k")
	if err != nil || string(got) != "blob" {
		t.Fatalf("Get = %q, %v", got, err)
	}
}
