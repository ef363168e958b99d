package state

import (
	"fmt"
	"math"
	"sort"

	"github.com/danielpatrickdp/spiral-state/internal/profile"
	"github.com/danielpatrickdp/spiral-state/internal/snapshot"
)

// #region store-struct
// Store owns the process state and its lifecycle phase.
// It is not safe for concurrent use; callers dispatch one operation at a time.
type Store struct {
	phase Phase
	st    *ProcessState
}
// #endregion store-struct

// #region constructor
// NewStore returns a store in PhaseAbsent. Call Startup or Restore before use.
func NewStore() *Store {
	return &Store{phase: PhaseAbsent}
}

// Phase reports the current lifecycle phase.
func (s *Store) Phase() Phase {
	return s.phase
}
// #endregion constructor

// #region lifecycle
// Startup initializes a fresh default state. Only valid on an absent store.
func (s *Store) Startup() error {
	if s.phase != PhaseAbsent {
		return fmt.Errorf("startup in phase %s: %w", s.phase, ErrAlreadyStarted)
	}
	s.st = defaultState()
	s.phase = PhasePresent
	return nil
}

// TakeForShutdown encodes the full state and surrenders it. On success the
// store moves to PhaseTaken and serves nothing until Restore. On encode
// failure the state stays live.
func (s *Store) TakeForShutdown() ([]byte, error) {
	st, err := s.live()
	if err != nil {
		return nil, err
	}

	snap := snapshot.State{Counter: st.Counter, Users: make([]profile.Record, 0, len(st.Users))}
	for _, p := range st.Users {
		snap.Users = append(snap.Users, p.Record())
	}
	blob, err := snapshot.Encode(snap)
	if err != nil {
		return nil, fmt.Errorf("take for shutdown: %w", err)
	}

	s.st = nil
	s.phase = PhaseTaken
	return blob, nil
}

// Restore replaces the state with the one decoded from blob. A blob that
// fails to decode yields ErrCorruptState and leaves the store not ready.
func (s *Store) Restore(blob []byte) error {
	if s.phase == PhasePresent {
		return fmt.Errorf("restore in phase %s: %w", s.phase, ErrAlreadyStarted)
	}

	snap, err := snapshot.Decode(blob)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptState, err)
	}

	st := &ProcessState{Counter: snap.Counter, Users: make(map[string]*profile.Profile, len(snap.Users))}
	for _, r := range snap.Users {
		p, err := profile.FromRecord(r)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCorruptState, err)
		}
		st.Users[r.ID] = p
	}

	s.st = st
	s.phase = PhasePresent
	return nil
}

func (s *Store) live() (*ProcessState, error) {
	if s.phase != PhasePresent {
		return nil, fmt.Errorf("phase %s: %w", s.phase, ErrStateNotReady)
	}
	return s.st, nil
}
// #endregion lifecycle

// #region counter
// Counter returns the current counter value.
func (s *Store) Counter() (uint32, error) {
	st, err := s.live()
	if err != nil {
		return 0, err
	}
	return st.Counter, nil
}

// Increment adds one to the counter and returns the new value. At
// math.MaxUint32 it fails with ErrOverflow and leaves the counter unchanged.
func (s *Store) Increment() (uint32, error) {
	st, err := s.live()
	if err != nil {
		return 0, err
	}
	if st.Counter == math.MaxUint32 {
		return st.Counter, fmt.Errorf("increment %d: %w", st.Counter, ErrOverflow)
	}
	st.Counter++
	return st.Counter, nil
}

// SetCounter overwrites the counter.
func (s *Store) SetCounter(v uint32) error {
	st, err := s.live()
	if err != nil {
		return err
	}
	st.Counter = v
	return nil
}
// #endregion counter

// #region users
// AddUser registers a new profile under its id.
func (s *Store) AddUser(p *profile.Profile) error {
	st, err := s.live()
	if err != nil {
		return err
	}
	if _, ok := st.Users[p.ID()]; ok {
		return fmt.Errorf("add user %s: %w", p.ID(), ErrUserExists)
	}
	st.Users[p.ID()] = p.Clone()
	return nil
}

// User returns a copy of one profile.
func (s *Store) User(id string) (profile.Record, error) {
	p, err := s.user(id)
	if err != nil {
		return profile.Record{}, err
	}
	return p.Record(), nil
}

// Users returns copies of all profiles ordered by id.
func (s *Store) Users() ([]profile.Record, error) {
	st, err := s.live()
	if err != nil {
		return nil, err
	}
	out := make([]profile.Record, 0, len(st.Users))
	for _, p := range st.Users {
		out = append(out, p.Record())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UserCount returns the number of registered profiles.
func (s *Store) UserCount() (int, error) {
	st, err := s.live()
	if err != nil {
		return 0, err
	}
	return len(st.Users), nil
}

// UpdateEmotion replaces a user's emotion vector and returns the new hybrid score.
func (s *Store) UpdateEmotion(id string, e profile.Emotion) (float64, error) {
	p, err := s.user(id)
	if err != nil {
		return 0, err
	}
	p.UpdateEmotion(e)
	return p.EmotionHybrid(), nil
}

// UpdateSpiral replaces a user's spiral vector and returns the new hybrid score.
func (s *Store) UpdateSpiral(id string, sp profile.Spiral) (float64, error) {
	p, err := s.user(id)
	if err != nil {
		return 0, err
	}
	p.UpdateSpiral(sp)
	return p.SpiralHybrid(), nil
}

func (s *Store) user(id string) (*profile.Profile, error) {
	st, err := s.live()
	if err != nil {
		return nil, err
	}
	p, ok := st.Users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, ErrUserNotFound)
	}
	return p, nil
}
// #endregion users
