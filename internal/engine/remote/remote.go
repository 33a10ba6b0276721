// Package remote implements a translation engine backed by an OpenAI-compatible
// chat-completions endpoint with streaming responses.
//
// Loading is a connectivity probe reported as a single artifact named after
// the endpoint model. Generation prompts the model to translate between the
// catalog languages and streams content deltas as token pieces.
package remote

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"babel/internal/config"
	"babel/internal/engine"
	"babel/internal/language"
	"babel/internal/logging"
	"babel/internal/services"
	"babel/internal/services/llm"
)

const component = "remote"

const systemPrompt = `You are a translation engine. Translate the user's message from %s to %s.
Reply with the translation only. Do not add quotes, notes, or explanations.
Preserve line breaks and punctuation.`

// Client is the subset of the llm client used by the engine.
type Client interface {
	Model() string
	HealthCheck(ctx context.Context) error
	Stream(ctx context.Context, systemPrompt, userPrompt string, onDelta func(string)) (string, error)
}

// Engine talks to the remote endpoint.
type Engine struct {
	client Client
	logger *slog.Logger
}

// New wraps an llm client.
func New(client Client, logger *slog.Logger) *Engine {
	return &Engine{client: client, logger: logging.NewComponentLogger(logger, component)}
}

// NewFromConfig builds the engine from the [llm] section.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) *Engine {
	settings := cfg.GetLLM()
	client := llm.NewClient(llm.Config{
		APIKey:         settings.APIKey,
		BaseURL:        settings.BaseURL,
		Model:          settings.Model,
		Referer:        settings.Referer,
		Title:          settings.Title,
		TimeoutSeconds: settings.TimeoutSeconds,
	}, llm.WithRetryMaxAttempts(settings.RetryAttempts))
	return New(client, logger)
}

// Name implements engine.Engine.
func (e *Engine) Name() string { return config.EngineRemote }

// Load probes the endpoint. modelID is reported as the artifact metadata name;
// the endpoint model itself comes from configuration.
func (e *Engine) Load(ctx context.Context, modelID string, onProgress engine.ProgressFunc) (engine.Handle, error) {
	if onProgress == nil {
		onProgress = func(engine.Progress) {}
	}
	file := e.client.Model()
	if file == "" {
		file = "endpoint"
	}
	onProgress(engine.Progress{File: file, Phase: engine.PhaseStart, Name: modelID})
	if err := e.client.HealthCheck(ctx); err != nil {
		return nil, services.Wrap(services.ErrLoadFailure, component, "health check", file, err)
	}
	onProgress(engine.Progress{File: file, Phase: engine.PhaseProgress, Progress: 100, Name: modelID})
	onProgress(engine.Progress{File: file, Phase: engine.PhaseEnd, Name: modelID})
	e.logger.Info("remote engine reachable", logging.String("model", file))
	return &handle{model: modelID, client: e.client}, nil
}

type handle struct {
	model  string
	client Client
}

func (h *handle) Model() string { return h.model }

func (h *handle) Generate(ctx context.Context, text, src, tgt string, onToken engine.TokenFunc) (string, error) {
	srcLang, ok := language.Lookup(src)
	if !ok {
		return "", services.Wrap(services.ErrUnsupportedLanguage, component, "generate", fmt.Sprintf("source language %q", src), nil)
	}
	tgtLang, ok := language.Lookup(tgt)
	if !ok {
		return "", services.Wrap(services.ErrUnsupportedLanguage, component, "generate", fmt.Sprintf("target language %q", tgt), nil)
	}
	prompt := fmt.Sprintf(systemPrompt, describe(srcLang), describe(tgtLang))
	out, err := h.client.Stream(ctx, prompt, text, func(delta string) {
		if onToken != nil {
			onToken(delta)
		}
	})
	if err != nil {
		return "", services.Wrap(services.ErrInferenceFailure, component, "generate", "", err)
	}
	return strings.TrimSpace(out), nil
}

func describe(l language.Language) string {
	return fmt.Sprintf("%s (%s)", l.Name, l.Code)
}
