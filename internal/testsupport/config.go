package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"babel/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The simulated engine runs without delays and with a small artifact set.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.SocketPath = shortSocketPath(t)
	cfgVal.Engine.Kind = config.EngineStub
	cfgVal.Stub.Artifacts = []string{"config.json", "onnx/model_quantized.onnx"}
	cfgVal.Stub.ChunkCount = 2
	cfgVal.Stub.StepDelayMillis = 0
	cfgVal.Stub.TokenDelayMillis = 0
	cfgVal.Worker.QueueDepth = 4

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithQueueDepth overrides the worker queue depth.
func WithQueueDepth(depth int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Worker.QueueDepth = depth
	}
}

// WithStubArtifacts overrides the simulated model file set.
func WithStubArtifacts(files ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Stub.Artifacts = append([]string(nil), files...)
	}
}

// WithStubDelays sets the simulated engine step and token delays in milliseconds.
func WithStubDelays(stepMillis, tokenMillis int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Stub.StepDelayMillis = stepMillis
		b.cfg.Stub.TokenDelayMillis = tokenMillis
	}
}

// WithHistoryDisabled turns off request history persistence.
func WithHistoryDisabled() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.History.Enabled = false
	}
}

// WithDirectories creates the data, log, and socket directories up front.
func WithDirectories() ConfigOption {
	return func(b *configBuilder) {
		if err := b.cfg.EnsureDirectories(); err != nil {
			b.t.Fatalf("ensure directories: %v", err)
		}
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}

// shortSocketPath keeps unix socket paths under the sun_path limit, which
// nested test temp directories easily exceed.
func shortSocketPath(t testing.TB) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "babel")
	if err != nil {
		t.Fatalf("mkdir socket dir: %v", err)
	}
	t.Cleanup(func() {
		_ = os.RemoveAll(dir)
	})
	return filepath.Join(dir, "babel.sock")
}
