package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"babel/internal/history"
	"babel/internal/ipc"
)

// historySource answers history queries from the daemon when it is running
// and from the database file otherwise.
type historySource interface {
	List(ctx context.Context, limit int) ([]ipc.HistoryEntry, error)
	Clear(ctx context.Context) (int64, error)
	Close() error
}

type rpcHistory struct{ client *ipc.Client }

func (r rpcHistory) List(_ context.Context, limit int) ([]ipc.HistoryEntry, error) {
	resp, err := r.client.HistoryList(limit)
	if err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

func (r rpcHistory) Clear(context.Context) (int64, error) {
	resp, err := r.client.HistoryClear()
	if err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

func (r rpcHistory) Close() error { return r.client.Close() }

type storeHistory struct{ store *history.Store }

func (s storeHistory) List(ctx context.Context, limit int) ([]ipc.HistoryEntry, error) {
	entries, err := s.store.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]ipc.HistoryEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, ipc.FromHistoryEntry(e))
	}
	return out, nil
}

func (s storeHistory) Clear(ctx context.Context) (int64, error) { return s.store.Clear(ctx) }

func (s storeHistory) Close() error { return s.store.Close() }

func (c *commandContext) openHistory() (historySource, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if client, err := ipc.Dial(cfg.ControlSocketPath()); err == nil {
		return rpcHistory{client: client}, nil
	}
	if !cfg.History.Enabled {
		return nil, errors.New("history is disabled (set history.enabled = true)")
	}
	store, err := history.Open(cfg)
	if err != nil {
		return nil, err
	}
	return storeHistory{store: store}, nil
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent translation requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := ctx.openHistory()
			if err != nil {
				return err
			}
			defer src.Close()

			entries, err := src.List(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list history: %w", err)
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, entries)
			}
			renderHistory(out, entries)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of entries (0 for all)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print entries as JSON")

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every history entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := ctx.openHistory()
			if err != nil {
				return err
			}
			defer src.Close()

			removed, err := src.Clear(cmd.Context())
			if err != nil {
				return fmt.Errorf("clear history: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d history entries\n", removed)
			return nil
		},
	})
	return cmd
}

func renderHistory(w io.Writer, entries []ipc.HistoryEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "History is empty")
		return
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		result := e.Output
		if e.Status == string(history.StatusFailed) || e.Status == string(history.StatusRejected) {
			result = strings.TrimSpace(e.ErrorKind + ": " + e.ErrorMessage)
		}
		rows = append(rows, []string{
			shortID(e.ID),
			e.Status,
			e.SourceLanguage + " → " + e.TargetLanguage,
			truncate(e.Text, 40),
			truncate(result, 40),
			e.QueuedAt.Local().Format(time.DateTime),
		})
	}
	fmt.Fprint(w, renderTable(
		[]string{"ID", "Status", "Languages", "Text", "Result", "Queued"},
		rows,
	))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
