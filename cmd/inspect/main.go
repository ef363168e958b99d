package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/spiral-state/internal/blobstore"
	"github.com/danielpatrickdp/spiral-state/internal/lifecycle"
	"github.com/danielpatrickdp/spiral-state/internal/logging"
	"github.com/danielpatrickdp/spiral-state/internal/rpc"
	"github.com/danielpatrickdp/spiral-state/internal/snapshot"
)

// #region root
type rootOptions struct {
	dbPath  string
	slot    string
	jsonOut bool
}

func main() {
	if err := newRootCommand(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(out io.Writer) *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "inspect",
		Short:         "Inspect persisted state snapshots",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVar(&opts.dbPath, "db", "", "path to spiral_state.db")
	cmd.PersistentFlags().StringVar(&opts.slot, "slot", lifecycle.DefaultSlot, "snapshot slot")
	cmd.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "output as JSON instead of table")
	cmd.SetOut(out)

	cmd.AddCommand(newSnapshotsCommand(opts), newShowCommand(opts), newEventsCommand(opts), newLiveCommand(opts))
	return cmd
}

func openStore(opts *rootOptions) (*blobstore.SQLiteStore, error) {
	if opts.dbPath == "" {
		return nil, errors.New("--db is required")
	}
	if _, err := os.Stat(opts.dbPath); err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return blobstore.NewSQLiteStore(opts.dbPath)
}
// #endregion root

// #region snapshots
type snapshotRow struct {
	SnapshotID string `json:"snapshot_id"`
	SizeBytes  int    `json:"size_bytes"`
	Active     bool   `json:"active"`
	CreatedAt  string `json:"created_at"`
}

func newSnapshotsCommand(opts *rootOptions) *cobra.Command {
	var last int
	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "List the most recent snapshots of a slot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore(opts)
			if err != nil {
				return err
			}
			defer store.Close()

			list, err := store.List(cmd.Context(), opts.slot, last)
			if err != nil {
				return err
			}
			rows := make([]snapshotRow, len(list))
			for i, s := range list {
				rows[i] = snapshotRow{
					SnapshotID: s.SnapshotID,
					SizeBytes:  s.SizeBytes,
					Active:     s.Active,
					CreatedAt:  s.CreatedAt.Format("2006-01-02T15:04:05Z"),
				}
			}
			if opts.jsonOut {
				return printJSON(cmd.OutOrStdout(), rows)
			}
			printSnapshotTable(cmd.OutOrStdout(), rows)
			return nil
		},
	}
	cmd.Flags().IntVar(&last, "last", 20, "show N most recent snapshots")
	return cmd
}

func printSnapshotTable(w io.Writer, rows []snapshotRow) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "no snapshots found")
		return
	}
	fmt.Fprintf(w, "%-12s  %8s  %-6s  %s\n", "Snapshot", "Bytes", "Active", "Time")
	for _, r := range rows {
		active := ""
		if r.Active {
			active = "*"
		}
		fmt.Fprintf(w, "%-12s  %8d  %-6s  %s\n", shortID(r.SnapshotID), r.SizeBytes, active, r.CreatedAt)
	}
}
// #endregion snapshots

// #region show
type userRow struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	EmotionHybrid  float64 `json:"emotion_hybrid"`
	SpiralHybrid   float64 `json:"spiral_hybrid"`
	EmotionHistory int     `json:"emotion_history"`
	SpiralHistory  int     `json:"spiral_history"`
}

type stateOutput struct {
	SnapshotID string    `json:"snapshot_id"`
	Counter    uint32    `json:"counter"`
	Users      []userRow `json:"users"`
}

func newShowCommand(opts *rootOptions) *cobra.Command {
	var snapshotID string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Decode a snapshot (the active one by default) and print its state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore(opts)
			if err != nil {
				return err
			}
			defer store.Close()

			info, blob, err := loadBlob(cmd.Context(), store, opts.slot, snapshotID)
			if err != nil {
				return err
			}
			out, err := decodeState(blob)
			if err != nil {
				return err
			}
			out.SnapshotID = info.SnapshotID
			if opts.jsonOut {
				return printJSON(cmd.OutOrStdout(), out)
			}
			printState(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&snapshotID, "snapshot", "", "snapshot id (default: active)")
	return cmd
}

func loadBlob(ctx context.Context, store *blobstore.SQLiteStore, slot, id string) (blobstore.SnapshotInfo, []byte, error) {
	if id == "" {
		return store.Active(ctx, slot)
	}
	return store.GetSnapshot(ctx, id)
}

func decodeState(blob []byte) (stateOutput, error) {
	s, err := snapshot.Decode(blob)
	if err != nil {
		return stateOutput{}, err
	}
	out := stateOutput{Counter: s.Counter, Users: make([]userRow, len(s.Users))}
	for i, u := range s.Users {
		out.Users[i] = userRow{
			ID:             u.ID,
			Name:           u.Name,
			Email:          u.Email,
			EmotionHybrid:  u.EmotionHybrid,
			SpiralHybrid:   u.SpiralHybrid,
			EmotionHistory: len(u.EmotionHistory),
			SpiralHistory:  len(u.SpiralHistory),
		}
	}
	return out, nil
}

func printState(w io.Writer, s stateOutput) {
	fmt.Fprintf(w, "Snapshot: %s\n", s.SnapshotID)
	fmt.Fprintf(w, "Counter: %d\n", s.Counter)
	fmt.Fprintf(w, "Users:   %d\n", len(s.Users))
	if len(s.Users) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%-16s  %-16s  %8s  %8s  %6s  %6s\n", "ID", "Name", "Emotion", "Spiral", "E.hist", "S.hist")
	for _, u := range s.Users {
		fmt.Fprintf(w, "%-16s  %-16s  %8.4f  %8.4f  %6d  %6d\n",
			u.ID, u.Name, u.EmotionHybrid, u.SpiralHybrid, u.EmotionHistory, u.SpiralHistory)
	}
}
// #endregion show

// #region events
type eventRow struct {
	EventID    string `json:"event_id"`
	Event      string `json:"event"`
	SnapshotID string `json:"snapshot_id,omitempty"`
	Counter    uint32 `json:"counter"`
	UserCount  int    `json:"user_count"`
	Detail     string `json:"detail,omitempty"`
	CreatedAt  string `json:"created_at"`
}

func toEventRows(entries []logging.LifecycleEntry) []eventRow {
	rows := make([]eventRow, len(entries))
	for i, e := range entries {
		rows[i] = eventRow{
			EventID:    e.EventID,
			Event:      e.Event,
			SnapshotID: e.SnapshotID,
			Counter:    e.Counter,
			UserCount:  e.UserCount,
			Detail:     e.Detail,
			CreatedAt:  e.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}
	return rows
}

func newEventsCommand(opts *rootOptions) *cobra.Command {
	var last int
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List recent lifecycle events",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore(opts)
			if err != nil {
				return err
			}
			defer store.Close()

			events, err := logging.Recent(cmd.Context(), store.DB(), last)
			if err != nil {
				return err
			}
			rows := toEventRows(events)
			if opts.jsonOut {
				return printJSON(cmd.OutOrStdout(), rows)
			}
			w := cmd.OutOrStdout()
			for _, e := range rows {
				fmt.Fprintf(w, "%s  %-8s  counter=%d users=%d snapshot=%s %s\n",
					e.CreatedAt, e.Event, e.Counter, e.UserCount, shortID(e.SnapshotID), e.Detail)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&last, "last", 20, "show N most recent events")
	return cmd
}
// #endregion events

// #region live
type liveOutput struct {
	Addr     string `json:"addr"`
	Greeting string `json:"greeting"`
	Counter  uint32 `json:"counter"`
}

// newLiveCommand reads the counter from a running stated over gRPC.
func newLiveCommand(opts *rootOptions) *cobra.Command {
	var addr string
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "live",
		Short: "Query a running stated for its greeting and counter",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := rpc.NewClient(addr)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			out := liveOutput{Addr: addr}
			if out.Greeting, err = client.Greeting(ctx); err != nil {
				return err
			}
			if out.Counter, err = client.Get(ctx); err != nil {
				return err
			}
			if opts.jsonOut {
				return printJSON(cmd.OutOrStdout(), out)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  greeting=%q counter=%d\n", out.Addr, out.Greeting, out.Counter)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "localhost:50061", "stated gRPC address")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "per-query deadline")
	return cmd
}
// #endregion live

// #region output
func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
// #endregion output
