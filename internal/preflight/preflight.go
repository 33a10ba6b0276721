package preflight

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"babel/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	if socketDir := filepath.Dir(cfg.Paths.SocketPath); socketDir != cfg.Paths.DataDir {
		results = append(results, CheckDirectoryAccess("Socket directory", socketDir))
	}

	switch cfg.Engine.Kind {
	case config.EngineRemote:
		results = append(results, CheckLLM(ctx, "Remote engine", cfg.GetLLM()))
	case config.EngineStub:
		results = append(results, CheckStub(cfg))
	}
	return results
}

// CheckStub reports the simulated engine configuration.
func CheckStub(cfg *config.Config) Result {
	const name = "Stub engine"
	if len(cfg.Stub.Artifacts) == 0 {
		return Result{Name: name, Detail: "no artifacts configured"}
	}
	return Result{
		Name:   name,
		Passed: true,
		Detail: fmt.Sprintf("%s (%d artifacts: %s)", cfg.Engine.ModelID, len(cfg.Stub.Artifacts), strings.Join(cfg.Stub.Artifacts, ", ")),
	}
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
