package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validateStub(); err != nil {
		return err
	}
	if err := c.validateWorker(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateEngine() error {
	switch c.Engine.Kind {
	case EngineStub:
		return nil
	case EngineRemote:
		if c.LLM.APIKey == "" {
			defaultPath, err := DefaultConfigPath()
			if err != nil {
				defaultPath = defaultConfigPath
			}
			return fmt.Errorf("llm.api_key is required when engine.kind is %q. Set BABEL_LLM_API_KEY or edit %s (create with 'babel config init')", EngineRemote, defaultPath)
		}
		return nil
	default:
		return fmt.Errorf("engine.kind: unsupported value %q (want %q or %q)", c.Engine.Kind, EngineStub, EngineRemote)
	}
}

func (c *Config) validateStub() error {
	if c.Stub.StepDelayMillis < 0 {
		return errors.New("stub.step_delay_ms must be >= 0")
	}
	if c.Stub.TokenDelayMillis < 0 {
		return errors.New("stub.token_delay_ms must be >= 0")
	}
	return nil
}

func (c *Config) validateWorker() error {
	if c.Worker.QueueDepth > 1024 {
		return errors.New("worker.queue_depth must be <= 1024")
	}
	if c.Worker.ProgressLogBucket > 100 {
		return errors.New("worker.progress_log_bucket must be <= 100")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
