package preflight

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"babel/internal/config"
	"babel/internal/services/llm"
)

const llmCheckTimeout = 30 * time.Second

// CheckLLM makes one health-check completion against the configured model.
func CheckLLM(ctx context.Context, name string, cfg config.LLMConfig) Result {
	if cfg.APIKey == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, llmCheckTimeout)
	defer cancel()

	client := llm.NewClient(llm.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Referer: cfg.Referer,
		Title:   cfg.Title,
	}, llm.WithRetryMaxAttempts(1))

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeLLMError(err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s reachable", cfg.Model)}
}

// CheckDirectoryAccess verifies that path is a directory the daemon can
// list, read, and write.
func CheckDirectoryAccess(name, path string) Result {
	if problem := directoryProblem(path); problem != "" {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %s)", path, problem)}
	}
	return Result{Name: name, Passed: true, Detail: path + " (read/write ok)"}
}

func directoryProblem(path string) string {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "does not exist"
	case err != nil:
		return "stat: " + err.Error()
	case !info.IsDir():
		return "is not a directory"
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return "insufficient permissions: " + err.Error()
	}
	return ""
}

// SocketState classifies a Unix socket path.
type SocketState string

const (
	SocketAbsent    SocketState = "absent"
	SocketListening SocketState = "listening"
	SocketStale     SocketState = "stale"
)

// ProbeSocket reports whether something accepts connections at path. A socket
// file nobody listens on is stale.
func ProbeSocket(path string) SocketState {
	info, err := os.Stat(path)
	if err != nil || info.Mode()&os.ModeSocket == 0 {
		return SocketAbsent
	}
	conn, err := net.DialTimeout("unix", path, time.Second)
	if err != nil {
		return SocketStale
	}
	_ = conn.Close()
	return SocketListening
}

// CheckSocket renders ProbeSocket as a Result. Absent sockets pass: the daemon
// simply is not running.
func CheckSocket(name, path string) Result {
	switch state := ProbeSocket(path); state {
	case SocketListening:
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (listening)", path)}
	case SocketStale:
		return Result{Name: name, Detail: fmt.Sprintf("%s (stale: no listener; remove it or restart the daemon)", path)}
	default:
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (not running)", path)}
	}
}

func summarizeLLMError(err error) string {
	var netErr net.Error
	switch code := llm.StatusCode(err); {
	case errors.Is(err, context.DeadlineExceeded):
		return "health check timed out (LLM API unresponsive)"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "health check timed out (LLM API unreachable)"
	case code == 401 || code == 403:
		return fmt.Sprintf("auth failed (HTTP %d, check api key)", code)
	default:
		return err.Error()
	}
}
