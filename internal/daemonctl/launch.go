package daemonctl

import (
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"babel/internal/config"
	"babel/internal/ipc"
)

// LaunchOptions are forwarded to the detached "serve" process.
type LaunchOptions struct {
	ConfigPath string
	LogLevel   string
}

// StartState describes what EnsureStarted did.
type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult reports the outcome of EnsureStarted.
type StartResult struct {
	State StartState
	PID   int
}

// Launch starts exe serve in its own session and does not wait for it.
func Launch(exe string, opts LaunchOptions) error {
	if strings.TrimSpace(exe) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}
	args := []string{"serve"}
	if v := strings.TrimSpace(opts.ConfigPath); v != "" {
		args = append(args, "--config", v)
	}
	if v := strings.TrimSpace(opts.LogLevel); v != "" {
		args = append(args, "--log-level", v)
	}

	cmd := exec.Command(exe, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return cmd.Process.Release()
}

// WaitForClient dials socketPath until it answers or timeout elapses.
func WaitForClient(socketPath string, timeout time.Duration) (*ipc.Client, error) {
	var client *ipc.Client
	err := pollUntil(timeout, func() (bool, error) {
		c, err := ipc.Dial(socketPath)
		if err != nil {
			return false, err
		}
		client = c
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("daemon failed to start: %w", err)
	}
	return client, nil
}

// EnsureStarted launches the daemon unless its control socket already answers.
func EnsureStarted(cfg *config.Config, exe string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	socket := cfg.ControlSocketPath()
	if client, err := ipc.Dial(socket); err == nil {
		defer client.Close()
		return StartResult{State: StartStateAlreadyRunning, PID: daemonPID(client)}, nil
	}

	if err := Launch(exe, opts); err != nil {
		return StartResult{}, err
	}
	client, err := WaitForClient(socket, waitTimeout)
	if err != nil {
		return StartResult{}, err
	}
	defer client.Close()
	status, err := client.Status()
	if err != nil {
		return StartResult{}, fmt.Errorf("query started daemon: %w", err)
	}
	return StartResult{State: StartStateStarted, PID: status.PID}, nil
}

// daemonPID asks the daemon for its pid, returning 0 when it cannot say.
func daemonPID(client *ipc.Client) int {
	status, err := client.Status()
	if err != nil || status == nil {
		return 0
	}
	return status.PID
}
