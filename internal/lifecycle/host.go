// Package lifecycle drives the state store through startup, shutdown and
// restore, and serializes every operation the outside world dispatches to it.
package lifecycle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/spiral-state/internal/blobstore"
	"github.com/danielpatrickdp/spiral-state/internal/logging"
	"github.com/danielpatrickdp/spiral-state/internal/profile"
	"github.com/danielpatrickdp/spiral-state/internal/state"
)

// DefaultSlot is the blob store key holding the process state snapshot.
const DefaultSlot = "process_state"

// #region host-struct
// Host owns a state.Store and the blob store it persists to. All methods
// hold a single mutex, so the store sees one operation at a time.
type Host struct {
	mu     sync.Mutex
	store  *state.Store
	blobs  blobstore.Store
	slot   string
	logger *zap.Logger
	audit  *sql.DB
}

// Option configures a Host.
type Option func(*Host)

// WithSlot overrides the blob store key.
func WithSlot(slot string) Option {
	return func(h *Host) { h.slot = slot }
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(h *Host) { h.logger = l }
}

// WithAuditDB records lifecycle events into the lifecycle_log table of db.
func WithAuditDB(db *sql.DB) Option {
	return func(h *Host) { h.audit = db }
}

// NewHost returns a host with an absent store. Call Start before serving.
func NewHost(blobs blobstore.Store, opts ...Option) *Host {
	h := &Host{
		store:  state.NewStore(),
		blobs:  blobs,
		slot:   DefaultSlot,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}
// #endregion host-struct

// #region start
// Start restores the state from the blob store, or initializes a default
// state when the slot has never been written. An undecodable blob is
// returned as state.ErrCorruptState; the host does not fall back to defaults.
func (h *Host) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.store.Phase() == state.PhasePresent {
		return fmt.Errorf("start: %w", state.ErrAlreadyStarted)
	}

	blob, err := h.blobs.Get(ctx, h.slot)
	if errors.Is(err, blobstore.ErrNotFound) {
		if err := h.store.Startup(); err != nil {
			return fmt.Errorf("startup: %w", err)
		}
		h.logger.Info("no prior snapshot, started fresh state", zap.String("slot", h.slot))
		h.record(ctx, logging.LifecycleEntry{Event: logging.EventStartup})
		return nil
	}
	if err != nil {
		return fmt.Errorf("retrieve %s: %w", h.slot, err)
	}

	if err := h.store.Restore(blob); err != nil {
		h.logger.Error("snapshot restore failed",
			zap.String("slot", h.slot), zap.Int("bytes", len(blob)), zap.Error(err))
		h.record(ctx, logging.LifecycleEntry{Event: logging.EventCorrupt, Detail: err.Error()})
		return fmt.Errorf("restore %s: %w", h.slot, err)
	}

	counter, _ := h.store.Counter()
	users, _ := h.store.UserCount()
	h.logger.Info("restored state",
		zap.String("slot", h.slot), zap.Uint32("counter", counter), zap.Int("users", users), zap.Int("bytes", len(blob)))
	h.record(ctx, logging.LifecycleEntry{Event: logging.EventRestore, Counter: counter, UserCount: users})
	return nil
}
// #endregion start

// #region shutdown
type snapshotPutter interface {
	PutSnapshot(ctx context.Context, key string, blob []byte) (blobstore.SnapshotInfo, error)
}

// Shutdown takes the state out of the store and persists it. If the write
// fails the state is put back, so nothing is lost and Shutdown can be retried.
func (h *Host) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	counter, _ := h.store.Counter()
	users, _ := h.store.UserCount()

	blob, err := h.store.TakeForShutdown()
	if err != nil {
		return fmt.Errorf("take state: %w", err)
	}

	var snapshotID string
	if sp, ok := h.blobs.(snapshotPutter); ok {
		var info blobstore.SnapshotInfo
		info, err = sp.PutSnapshot(ctx, h.slot, blob)
		snapshotID = info.SnapshotID
	} else {
		err = h.blobs.Put(ctx, h.slot, blob)
	}
	if err != nil {
		if rerr := h.store.Restore(blob); rerr != nil {
			return fmt.Errorf("persist %s: %w (state lost: %v)", h.slot, err, rerr)
		}
		return fmt.Errorf("persist %s: %w", h.slot, err)
	}

	h.logger.Info("persisted state",
		zap.String("slot", h.slot), zap.String("snapshot_id", snapshotID),
		zap.Uint32("counter", counter), zap.Int("users", users), zap.Int("bytes", len(blob)))
	h.record(ctx, logging.LifecycleEntry{
		Event: logging.EventShutdown, SnapshotID: snapshotID, Counter: counter, UserCount: users,
	})
	return nil
}
// #endregion shutdown

// #region operations
// Get returns the counter.
func (h *Host) Get() (uint32, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.store.Counter()
}

// Inc increments the counter and returns the new value.
func (h *Host) Inc() (uint32, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, err := h.store.Increment()
	if errors.Is(err, state.ErrOverflow) {
		h.logger.Warn("counter increment rejected", zap.Uint32("counter", v))
	}
	return v, err
}

// Set overwrites the counter.
func (h *Host) Set(v uint32) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.store.SetCounter(v)
}

// AddUser registers a new profile.
func (h *Host) AddUser(p *profile.Profile) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.store.AddUser(p)
}

// User returns a copy of one profile.
func (h *Host) User(id string) (profile.Record, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.store.User(id)
}

// UpdateEmotion replaces a user's emotion vector.
func (h *Host) UpdateEmotion(id string, e profile.Emotion) (float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.store.UpdateEmotion(id, e)
}

// UpdateSpiral replaces a user's spiral vector.
func (h *Host) UpdateSpiral(id string, sp profile.Spiral) (float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.store.UpdateSpiral(id, sp)
}

// Phase reports the store's lifecycle phase.
func (h *Host) Phase() state.Phase {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.store.Phase()
}
// #endregion operations

// #region audit
func (h *Host) record(ctx context.Context, entry logging.LifecycleEntry) {
	if h.audit == nil {
		return
	}
	if err := logging.LogEvent(ctx, h.audit, entry); err != nil {
		h.logger.Warn("lifecycle audit write failed", zap.String("event", entry.Event), zap.Error(err))
	}
}
// #endregion audit
