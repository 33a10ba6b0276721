package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeEngine()
	c.normalizeStub()
	c.normalizeLLM()
	c.normalizeWorker()
	c.normalizeTranslate()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(strings.TrimSpace(c.Paths.DataDir)); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.DataDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.SocketPath) == "" {
		c.Paths.SocketPath = filepath.Join(c.Paths.DataDir, defaultSocketName)
	}
	if c.Paths.SocketPath, err = expandPath(strings.TrimSpace(c.Paths.SocketPath)); err != nil {
		return fmt.Errorf("paths.socket_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeEngine() {
	c.Engine.Kind = strings.ToLower(strings.TrimSpace(c.Engine.Kind))
	if c.Engine.Kind == "" {
		c.Engine.Kind = defaultEngineKind
	}
	c.Engine.ModelID = strings.TrimSpace(c.Engine.ModelID)
	if c.Engine.ModelID == "" {
		c.Engine.ModelID = defaultModelID
	}
}

func (c *Config) normalizeStub() {
	artifacts := make([]string, 0, len(c.Stub.Artifacts))
	seen := make(map[string]struct{}, len(c.Stub.Artifacts))
	for _, name := range c.Stub.Artifacts {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		artifacts = append(artifacts, name)
	}
	if len(artifacts) == 0 {
		artifacts = DefaultStubArtifacts()
	}
	c.Stub.Artifacts = artifacts
	if c.Stub.ChunkCount <= 0 {
		c.Stub.ChunkCount = defaultStubChunkCount
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	if c.LLM.RetryAttempts <= 0 {
		c.LLM.RetryAttempts = defaultLLMRetryAttempts
	}
}

func (c *Config) normalizeWorker() {
	if c.Worker.QueueDepth <= 0 {
		c.Worker.QueueDepth = defaultQueueDepth
	}
	if c.Worker.ProgressLogBucket <= 0 {
		c.Worker.ProgressLogBucket = defaultProgressBucket
	}
}

func (c *Config) normalizeTranslate() {
	c.Translate.SourceLanguage = strings.TrimSpace(c.Translate.SourceLanguage)
	if c.Translate.SourceLanguage == "" {
		c.Translate.SourceLanguage = defaultSourceLanguage
	}
	c.Translate.TargetLanguage = strings.TrimSpace(c.Translate.TargetLanguage)
	if c.Translate.TargetLanguage == "" {
		c.Translate.TargetLanguage = defaultTargetLanguage
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
