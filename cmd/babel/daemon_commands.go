package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"babel/internal/daemonctl"
	"babel/internal/history"
	"babel/internal/ipc"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the babel daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			result, err := daemonctl.EnsureStarted(cfg, exe, daemonLaunchOptions(ctx), 10*time.Second)
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintf(stdout, "Daemon started (pid %d)\n", result.PID)
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon already running")
			}
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the babel daemon (completely terminates the process)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(cfg, 5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if !result.StopAcknowledged {
				fmt.Fprintln(stdout, "Stop request sent")
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, engine, and history status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			snap, err := daemonctl.BuildStatusSnapshot(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if statusJSON {
				return writeJSON(cmd.OutOrStdout(), snap)
			}
			renderStatus(cmd.OutOrStdout(), snap)
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print status as JSON")

	return []*cobra.Command{startCmd, stopCmd, statusCmd}
}

func renderStatus(w io.Writer, snap *daemonctl.Snapshot) {
	p := newStatusPrinter(w)

	p.section("Daemon")
	if snap.Daemon == nil {
		p.row("Daemon", statusInfo, "Not running")
	} else {
		printDaemon(p, snap.Daemon)
	}
	fmt.Fprintln(w)

	p.section("System Checks")
	for _, result := range snap.Checks {
		p.check(result)
	}
	fmt.Fprintln(w)

	p.section("History")
	rows := historyCountRows(snap.HistoryCounts)
	if len(rows) == 0 {
		fmt.Fprintln(w, "History is empty")
		return
	}
	fmt.Fprint(w, renderTable([]string{"Status", "Count"}, rows, 1))
}

func printDaemon(p *statusPrinter, status *ipc.StatusResponse) {
	wk := status.Worker
	p.row("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", status.PID))
	p.row("Engine", statusInfo, fmt.Sprintf("%s (%s)", wk.Engine, wk.Model))

	model := statusInfo
	switch wk.LoaderState {
	case "ready":
		model = statusOK
	case "loading":
		model = statusWarn
	}
	p.row("Model", model, fmt.Sprintf("%s (loads: %d)", wk.LoaderState, wk.Loads))
	p.row("Queue", statusInfo, fmt.Sprintf("%d/%d waiting, active: %s", wk.Queued, wk.QueueDepth, orNone(wk.Current)))
	p.row("Connections", statusInfo, strconv.Itoa(wk.Ports))
	p.row("Requests", statusInfo, fmt.Sprintf("%d processed, %d failed, %d rejected", wk.Processed, wk.Failed, wk.Rejected))
	if wk.LastError != "" {
		p.row("Last error", statusWarn, wk.LastError)
	}
}

func historyCountRows(counts map[string]int) [][]string {
	rows := make([][]string, 0, len(counts))
	for _, status := range history.Statuses() {
		if n := counts[string(status)]; n > 0 {
			rows = append(rows, []string{string(status), strconv.Itoa(n)})
		}
	}
	return rows
}

func orNone(value string) string {
	if value == "" {
		return "none"
	}
	return value
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext) daemonctl.LaunchOptions {
	return daemonctl.LaunchOptions{ConfigPath: ctx.configFlagValue()}
}
