// Package replay drives scripted operation sequences through a lifecycle host,
// restarts included, and checks the resulting state.
package replay

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/danielpatrickdp/spiral-state/internal/blobstore"
	"github.com/danielpatrickdp/spiral-state/internal/lifecycle"
	"github.com/danielpatrickdp/spiral-state/internal/state"
)

// #region ops
const (
	OpStart         = "start"
	OpGet           = "get"
	OpInc           = "inc"
	OpSet           = "set"
	OpAddUser       = "add_user"
	OpUpdateEmotion = "update_emotion"
	OpUpdateSpiral  = "update_spiral"
	OpShutdown      = "shutdown"
	OpRestart       = "restart"
	OpCorruptSlot   = "corrupt_slot"
)

// hybridTolerance absorbs float32 rounding in hand-written expectations.
const hybridTolerance = 1e-4
// #endregion ops

// #region types
// StepResult is the outcome of one fixture step.
type StepResult struct {
	Index   int
	Op      string
	Counter uint32 // counter after the step, when readable
	Err     error
	ErrCode string
}

// Summary aggregates a replay run.
type Summary struct {
	TotalSteps int
	Failures   int
	Restarts   int
}
// #endregion types

// #region replay
// Replay runs every step against a fresh host backed by blobs and returns the
// per-step results and the host that is live after the last step.
func Replay(ctx context.Context, f *Fixture, blobs blobstore.Store) ([]StepResult, *lifecycle.Host) {
	return ReplayInSlot(ctx, f, blobs, lifecycle.DefaultSlot)
}

// ReplayInSlot is Replay with every snapshot written to and read from slot.
func ReplayInSlot(ctx context.Context, f *Fixture, blobs blobstore.Store, slot string) ([]StepResult, *lifecycle.Host) {
	newHost := func() *lifecycle.Host { return lifecycle.NewHost(blobs, lifecycle.WithSlot(slot)) }
	host := newHost()
	results := make([]StepResult, 0, len(f.Steps))

	for i, step := range f.Steps {
		var err error
		switch step.Op {
		case OpStart:
			err = host.Start(ctx)
		case OpGet:
			_, err = host.Get()
		case OpInc:
			_, err = host.Inc()
		case OpSet:
			err = host.Set(step.Value)
		case OpAddUser:
			if step.User == nil {
				err = fmt.Errorf("add_user without user")
				break
			}
			p, perr := step.User.ToProfile()
			if perr != nil {
				err = perr
				break
			}
			err = host.AddUser(p)
		case OpUpdateEmotion:
			e, verr := toEmotion(step.Vector)
			if verr != nil {
				err = verr
				break
			}
			_, err = host.UpdateEmotion(step.UserID, e)
		case OpUpdateSpiral:
			s, verr := toSpiral(step.Vector)
			if verr != nil {
				err = verr
				break
			}
			_, err = host.UpdateSpiral(step.UserID, s)
		case OpShutdown:
			err = host.Shutdown(ctx)
		case OpRestart:
			if err = host.Shutdown(ctx); err == nil {
				host = newHost()
				err = host.Start(ctx)
			}
		case OpCorruptSlot:
			err = blobs.Put(ctx, slot, []byte("corrupted"))
			if err == nil {
				host = newHost()
			}
		default:
			err = fmt.Errorf("unknown op %q", step.Op)
		}

		res := StepResult{Index: i, Op: step.Op, Err: err, ErrCode: ErrorCode(err)}
		res.Counter, _ = host.Get()
		results = append(results, res)
	}
	return results, host
}

// ErrorCode maps a store error to the short name used in fixtures.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, state.ErrOverflow):
		return "overflow"
	case errors.Is(err, state.ErrCorruptState):
		return "corrupt"
	case errors.Is(err, state.ErrStateNotReady):
		return "not_ready"
	case errors.Is(err, state.ErrAlreadyStarted):
		return "already_started"
	case errors.Is(err, state.ErrUserExists):
		return "user_exists"
	case errors.Is(err, state.ErrUserNotFound):
		return "user_not_found"
	default:
		return "other"
	}
}
// #endregion replay

// #region verify
// Verify compares step errors and the final state against the fixture and
// returns one line per mismatch.
func Verify(f *Fixture, results []StepResult, host *lifecycle.Host) []string {
	var problems []string
	for i, step := range f.Steps {
		if i >= len(results) {
			problems = append(problems, fmt.Sprintf("step %d (%s): no result", i, step.Op))
			continue
		}
		if got := results[i].ErrCode; got != step.ExpectError {
			problems = append(problems, fmt.Sprintf("step %d (%s): error=%q, want %q (%v)",
				i, step.Op, got, step.ExpectError, results[i].Err))
		}
	}

	counter, err := host.Get()
	if err != nil {
		return append(problems, fmt.Sprintf("final state unreadable: %v", err))
	}
	if counter != f.Expect.Counter {
		problems = append(problems, fmt.Sprintf("counter=%d, want %d", counter, f.Expect.Counter))
	}

	for _, want := range f.Expect.Users {
		rec, err := host.User(want.ID)
		if err != nil {
			problems = append(problems, fmt.Sprintf("user %s: %v", want.ID, err))
			continue
		}
		if math.Abs(rec.EmotionHybrid-want.EmotionHybrid) > hybridTolerance {
			problems = append(problems, fmt.Sprintf("user %s: emotion_hybrid=%.4f, want %.4f", want.ID, rec.EmotionHybrid, want.EmotionHybrid))
		}
		if math.Abs(rec.SpiralHybrid-want.SpiralHybrid) > hybridTolerance {
			problems = append(problems, fmt.Sprintf("user %s: spiral_hybrid=%.4f, want %.4f", want.ID, rec.SpiralHybrid, want.SpiralHybrid))
		}
		if len(rec.EmotionHistory) != want.EmotionHistory {
			problems = append(problems, fmt.Sprintf("user %s: emotion_history=%d, want %d", want.ID, len(rec.EmotionHistory), want.EmotionHistory))
		}
		if len(rec.SpiralHistory) != want.SpiralHistory {
			problems = append(problems, fmt.Sprintf("user %s: spiral_history=%d, want %d", want.ID, len(rec.SpiralHistory), want.SpiralHistory))
		}
	}
	return problems
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []StepResult) Summary {
	s := Summary{TotalSteps: len(results)}
	for _, r := range results {
		if r.Err != nil {
			s.Failures++
		}
		if r.Op == OpRestart && r.Err == nil {
			s.Restarts++
		}
	}
	return s
}
// #endregion verify
