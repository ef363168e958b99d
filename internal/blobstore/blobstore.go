// Package blobstore provides durable key-value storage for state snapshots.
package blobstore

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned by Get when nothing was ever stored under the key.
var ErrNotFound = errors.New("blob not found")

// #region interface
// Store is the durable blob facility the lifecycle host persists to.
type Store interface {
	Put(ctx context.Context, key string, blob []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// SnapshotInfo describes one persisted blob.
type SnapshotInfo struct {
	SnapshotID string
	Slot       string
	SizeBytes  int
	CreatedAt  time.Time
	Active     bool
}
// #endregion interface

// #region memory
// MemoryStore keeps blobs in process memory. It does not survive a restart
// and exists for tests and dry runs.
type MemoryStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

// Put stores a copy of blob under key.
func (m *MemoryStore) Put(_ context.Context, key string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = append([]byte(nil), blob...)
	return nil
}

// Get returns a copy of the blob under key.
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), b...), nil
}
// #endregion memory
