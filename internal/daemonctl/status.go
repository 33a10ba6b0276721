package daemonctl

import (
	"context"
	"errors"
	"maps"
	"os"
	"time"

	"babel/internal/config"
	"babel/internal/history"
	"babel/internal/ipc"
	"babel/internal/preflight"
)

const offlineQueryTimeout = 2 * time.Second

// Snapshot is the status view rendered by the CLI.
type Snapshot struct {
	// Daemon is nil when the control socket does not answer.
	Daemon        *ipc.StatusResponse `json:"daemon,omitempty"`
	HistoryCounts map[string]int      `json:"history_counts"`
	Checks        []preflight.Result  `json:"checks"`
}

// BuildStatusSnapshot asks the running daemon for its status. When nothing
// answers, history counts are read straight from the database instead.
func BuildStatusSnapshot(ctx context.Context, cfg *config.Config) (*Snapshot, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}
	snap := &Snapshot{HistoryCounts: map[string]int{}}

	if client, err := ipc.Dial(cfg.ControlSocketPath()); err == nil {
		if resp, err := client.Status(); err == nil && resp != nil {
			snap.Daemon = resp
			maps.Copy(snap.HistoryCounts, resp.HistoryCounts)
		}
		_ = client.Close()
	}
	if snap.Daemon == nil && cfg.History.Enabled {
		offlineCounts(ctx, cfg.HistoryPath(), snap.HistoryCounts)
	}

	snap.Checks = append(preflight.RunAll(ctx, cfg),
		preflight.CheckSocket("Translation socket", cfg.Paths.SocketPath),
		preflight.CheckSocket("Control socket", cfg.ControlSocketPath()),
	)
	return snap, nil
}

// offlineCounts fills dst from the history database at path. A missing or
// unreadable database leaves dst untouched.
func offlineCounts(ctx context.Context, path string, dst map[string]int) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	store, err := history.OpenPath(path)
	if err != nil {
		return
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(ctx, offlineQueryTimeout)
	defer cancel()
	counts, err := store.Counts(ctx)
	if err != nil {
		return
	}
	for status, n := range counts {
		dst[string(status)] = n
	}
}
