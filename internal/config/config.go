package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Engine kinds accepted by engine.kind.
const (
	EngineStub   = "stub"
	EngineRemote = "remote"
)

// Paths contains directory and socket configuration.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	LogDir     string `toml:"log_dir"`
	SocketPath string `toml:"socket_path"`
}

// Engine selects the translation engine and the model it loads.
type Engine struct {
	Kind    string `toml:"kind"`
	ModelID string `toml:"model_id"`
}

// Stub configures the built-in simulated engine.
type Stub struct {
	// Artifacts lists the files the simulated model "downloads" on first load.
	Artifacts []string `toml:"artifacts"`
	// ChunkCount is the number of progress steps reported per artifact.
	ChunkCount int `toml:"chunk_count"`
	// StepDelayMillis delays each progress step.
	StepDelayMillis int `toml:"step_delay_ms"`
	// TokenDelayMillis delays each generated token.
	TokenDelayMillis int `toml:"token_delay_ms"`
}

// LLM contains connection settings for the remote chat-completions engine.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	RetryAttempts  int    `toml:"retry_attempts"`
}

// Worker contains request queue settings.
type Worker struct {
	QueueDepth        int     `toml:"queue_depth"`
	ProgressLogBucket float64 `toml:"progress_log_bucket"`
}

// History controls request history persistence.
type History struct {
	Enabled bool `toml:"enabled"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Translate holds the defaults used by the translate command.
type Translate struct {
	SourceLanguage string `toml:"source_language"`
	TargetLanguage string `toml:"target_language"`
}

// Config encapsulates all configuration values for babel.
//
// Configuration sections by subsystem:
//   - Paths: data, log, and socket locations
//   - Engine: engine kind and model identifier
//   - Stub: simulated engine timing and artifacts
//   - LLM: remote chat-completions connection
//   - Worker: request queue depth and progress log sampling
//   - History: request history persistence
//   - Translate: default language pair for the CLI
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Engine    Engine    `toml:"engine"`
	Stub      Stub      `toml:"stub"`
	LLM       LLM       `toml:"llm"`
	Worker    Worker    `toml:"worker"`
	History   History   `toml:"history"`
	Translate Translate `toml:"translate"`
	Logging   Logging   `toml:"logging"`
}

// envOverrides lists the environment variables that take precedence over the
// config file. Empty values leave the file value untouched.
type envOverrides struct {
	Engine     string `env:"BABEL_ENGINE"`
	Model      string `env:"BABEL_MODEL"`
	DataDir    string `env:"BABEL_DATA_DIR"`
	SocketPath string `env:"BABEL_SOCKET"`
	LLMAPIKey  string `env:"BABEL_LLM_API_KEY"`
	LLMBaseURL string `env:"BABEL_LLM_BASE_URL"`
	LLMModel   string `env:"BABEL_LLM_MODEL"`
	LogLevel   string `env:"BABEL_LOG_LEVEL"`
	LogFormat  string `env:"BABEL_LOG_FORMAT"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func (c *Config) applyEnv() error {
	var overrides envOverrides
	if err := env.Parse(&overrides); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	set := func(dst *string, value string) {
		if v := strings.TrimSpace(value); v != "" {
			*dst = v
		}
	}
	set(&c.Engine.Kind, overrides.Engine)
	set(&c.Engine.ModelID, overrides.Model)
	set(&c.Paths.DataDir, overrides.DataDir)
	set(&c.Paths.SocketPath, overrides.SocketPath)
	set(&c.LLM.APIKey, overrides.LLMAPIKey)
	set(&c.LLM.BaseURL, overrides.LLMBaseURL)
	set(&c.LLM.Model, overrides.LLMModel)
	set(&c.Logging.Level, overrides.LogLevel)
	set(&c.Logging.Format, overrides.LogFormat)
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("babel.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data and log directories plus the socket parent.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.LogDir}
	if c.Paths.SocketPath != "" {
		dirs = append(dirs, filepath.Dir(c.Paths.SocketPath))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// HistoryPath returns the SQLite database location for request history.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.DataDir, "history.db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "babeld.lock")
}

// ControlSocketPath returns the daemon control (JSON-RPC) socket, a sibling of
// the translation socket.
func (c *Config) ControlSocketPath() string {
	base := strings.TrimSuffix(c.Paths.SocketPath, filepath.Ext(c.Paths.SocketPath))
	return base + ".ctl.sock"
}

// PIDPath returns the daemon pid file.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.DataDir, "babeld.pid")
}

// LogPath returns the daemon log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "babel.log")
}

// StubStepDelay returns the per-step progress delay for the simulated engine.
func (c *Config) StubStepDelay() time.Duration {
	return time.Duration(c.Stub.StepDelayMillis) * time.Millisecond
}

// StubTokenDelay returns the per-token delay for the simulated engine.
func (c *Config) StubTokenDelay() time.Duration {
	return time.Duration(c.Stub.TokenDelayMillis) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMConfig contains the remote engine settings in the shape the client expects.
type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
	RetryAttempts  int
}

// GetLLM returns the remote engine connection settings.
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		APIKey:         strings.TrimSpace(c.LLM.APIKey),
		BaseURL:        strings.TrimSpace(c.LLM.BaseURL),
		Model:          strings.TrimSpace(c.LLM.Model),
		Referer:        strings.TrimSpace(c.LLM.Referer),
		Title:          strings.TrimSpace(c.LLM.Title),
		TimeoutSeconds: c.LLM.TimeoutSeconds,
		RetryAttempts:  c.LLM.RetryAttempts,
	}
}
