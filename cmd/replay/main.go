package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/spiral-state/internal/blobstore"
	"github.com/danielpatrickdp/spiral-state/internal/lifecycle"
	"github.com/danielpatrickdp/spiral-state/internal/replay"
)

// #region main
func main() {
	if err := newRootCommand(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(out io.Writer) *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:          "replay <fixture.yaml>...",
		Short:        "Replay scripted state operations and verify the final state",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				ok, err := runFixture(cmd.Context(), cmd.OutOrStdout(), path, dbPath)
				if err != nil {
					return err
				}
				if !ok {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d fixtures failed", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "replay against a SQLite blob store at this path (default: in-memory)")
	cmd.SetOut(out)
	return cmd
}
// #endregion main

// #region run
// openBlobs returns the store and slot one fixture runs in. A shared database
// gets a fresh slot per run so fixtures never restore each other's snapshots.
func openBlobs(dbPath, fixturePath string) (blobstore.Store, string, func(), error) {
	if dbPath == "" {
		return blobstore.NewMemoryStore(), lifecycle.DefaultSlot, func() {}, nil
	}
	s, err := blobstore.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, "", nil, err
	}
	slot := fmt.Sprintf("replay/%s/%s", filepath.Base(fixturePath), uuid.New().String())
	return s, slot, func() { s.Close() }, nil
}

// runFixture replays one fixture and reports whether it matched its expectations.
func runFixture(ctx context.Context, w io.Writer, path, dbPath string) (bool, error) {
	f, err := replay.LoadFixture(path)
	if err != nil {
		return false, err
	}
	blobs, slot, closeFn, err := openBlobs(dbPath, path)
	if err != nil {
		return false, fmt.Errorf("open blob store: %w", err)
	}
	defer closeFn()

	results, host := replay.ReplayInSlot(ctx, f, blobs, slot)
	problems := replay.Verify(f, results, host)
	s := replay.Summarize(results)

	fmt.Fprintf(w, "=== %s ===\n", path)
	if f.Description != "" {
		fmt.Fprintf(w, "%s\n", f.Description)
	}
	if dbPath != "" {
		fmt.Fprintf(w, "slot: %s\n", slot)
	}
	for _, r := range results {
		mark := "ok"
		if r.Err != nil {
			mark = r.ErrCode
		}
		fmt.Fprintf(w, "  [%2d] %-15s counter=%-10d %s\n", r.Index, r.Op, r.Counter, mark)
	}
	fmt.Fprintf(w, "Steps: %d  Errors: %d  Restarts: %d\n", s.TotalSteps, s.Failures, s.Restarts)

	if len(problems) == 0 {
		fmt.Fprintln(w, "PASS")
		return true, nil
	}
	for _, p := range problems {
		fmt.Fprintf(w, "  MISMATCH: %s\n", p)
	}
	fmt.Fprintln(w, "FAIL")
	return false, nil
}
// #endregion run
