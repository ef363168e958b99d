package replay

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danielpatrickdp/spiral-state/internal/blobstore"
	"github.com/danielpatrickdp/spiral-state/internal/state"
)

// #region fixture-tests
func runFixture(t *testing.T, name string, blobs blobstore.Store) Summary {
	t.Helper()
	f, err := LoadFixture(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	results, host := Replay(context.Background(), f, blobs)
	if len(results) != len(f.Steps) {
		t.Fatalf("expected %d results, got %d", len(f.Steps), len(results))
	}
	for _, p := range Verify(f, results, host) {
		t.Error(p)
	}
	return Summarize(results)
}

func TestFixture_RestartCycle(t *testing.T) {
	s := runFixture(t, "restart_cycle.yaml", blobstore.NewMemoryStore())
	if s.Restarts != 2 {
		t.Fatalf("expected 2 restarts, got %d", s.Restarts)
	}
	if s.Failures != 2 {
		t.Fatalf("expected 2 expected failures, got %d", s.Failures)
	}
}

// TestFixture_RestartCycleSQLite runs the same fixture against the durable store.
func TestFixture_RestartCycleSQLite(t *testing.T) {
	blobs, err := blobstore.NewSQLiteStore(filepath.Join(t.TempDir(), "replay.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer blobs.Close()
	runFixture(t, "restart_cycle.yaml", blobs)
}

func TestFixture_Overflow(t *testing.T) {
	s := runFixture(t, "overflow.yaml", blobstore.NewMemoryStore())
	if s.TotalSteps != 7 {
		t.Fatalf("expected 7 steps, got %d", s.TotalSteps)
	}
}

func TestReplayInSlotSharedStore(t *testing.T) {
	blobs := blobstore.NewMemoryStore()
	for _, name := range []string{"overflow.yaml", "restart_cycle.yaml"} {
		f, err := LoadFixture(filepath.Join("testdata", name))
		if err != nil {
			t.Fatalf("LoadFixture: %v", err)
		}
		results, host := ReplayInSlot(context.Background(), f, blobs, "replay/"+name)
		for _, p := range Verify(f, results, host) {
			t.Errorf("%s: %s", name, p)
		}
	}
}
// #endregion fixture-tests

// #region harness-tests
func TestReplayCorruptSlotNeverFallsBack(t *testing.T) {
	f, err := ParseFixture([]byte(`
steps:
  - op: start
  - op: set
    value: 5
  - op: shutdown
  - op: get
  - op: corrupt_slot
  - op: start
`))
	if err != nil {
		t.Fatalf("ParseFixture: %v", err)
	}
	results, host := Replay(context.Background(), f, blobstore.NewMemoryStore())

	if results[3].ErrCode != "not_ready" {
		t.Fatalf("read after shutdown: got %q", results[3].ErrCode)
	}
	last := results[len(results)-1]
	if !errors.Is(last.Err, state.ErrCorruptState) || last.ErrCode != "corrupt" {
		t.Fatalf("expected corrupt start, got %v", last.Err)
	}
	if _, err := host.Get(); !errors.Is(err, state.ErrStateNotReady) {
		t.Fatalf("expected not ready after corrupt start, got %v", err)
	}
}

func TestParseFixtureRejectsUnknownKeys(t *testing.T) {
	_, err := ParseFixture([]byte("steps:\n  - op: inc\n    amount: 2\n"))
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestReplayUnknownOp(t *testing.T) {
	f := &Fixture{Steps: []FixtureStep{{Op: "explode"}}}
	results, _ := Replay(context.Background(), f, blobstore.NewMemoryStore())
	if results[0].ErrCode != "other" || !strings.Contains(results[0].Err.Error(), "explode") {
		t.Fatalf("unexpected result %+v", results[0])
	}
}

func TestBadVectorLength(t *testing.T) {
	u := FixtureUser{ID: "u", Emotion: []float32{1, 2}, Spiral: make([]float32, 8)}
	if _, err := u.ToProfile(); err == nil {
		t.Fatal("expected error for short emotion vector")
	}
	if _, err := toSpiral(make([]float32, 9)); err == nil {
		t.Fatal("expected error for long spiral vector")
	}
}

func TestLoadFixtureMissingFile(t *testing.T) {
	if _, err := LoadFixture(filepath.Join("testdata", "nope.yaml")); err == nil {
		t.Fatal("expected error for missing fixture")
	}
}
// #endregion harness-tests
