package worker

import (
	"fmt"
	"log/slog"

	"babel/internal/config"
	"babel/internal/engine"
	"babel/internal/engine/remote"
	"babel/internal/engine/stub"
)

// NewEngine constructs the engine selected by engine.kind.
func NewEngine(cfg *config.Config, logger *slog.Logger) (engine.Engine, error) {
	switch cfg.Engine.Kind {
	case config.EngineStub:
		return stub.NewFromConfig(cfg, logger), nil
	case config.EngineRemote:
		return remote.NewFromConfig(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown engine kind %q", cfg.Engine.Kind)
	}
}
