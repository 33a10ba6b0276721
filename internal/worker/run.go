package worker

import (
	"context"
	"log/slog"

	"babel/internal/engine"
	"babel/internal/logging"
	"babel/internal/protocol"
	"babel/internal/services"
	"babel/internal/translator"
)

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-w.queue:
			w.process(ctx, j)
		}
	}
}

// process runs one request to its terminal event.
func (w *Worker) process(ctx context.Context, j job) {
	id := j.req.ID
	ctx = services.WithPeer(services.WithRequestID(ctx, id), j.peer)
	logger := logging.WithContext(ctx, w.logger)
	send := func(e protocol.Event) { emit(logger, j.port, e.WithRequest(id)) }

	w.setCurrent(id)
	defer w.setCurrent("")
	w.markRunning(ctx, logger, id)

	stream := w.translator.Translate(ctx, j.req, translator.WithProgress(func(p engine.Progress) {
		if event, ok := progressEvent(p); ok {
			send(event)
		}
		w.logProgress(logger, p)
	}))
	for frag := range stream.Fragments() {
		send(protocol.Update(frag))
	}
	result, err := stream.Result()
	if err != nil {
		w.failed.Add(1)
		w.setLastError(err)
		event := protocol.FailureFromError(err)
		logging.WarnWithContext(logger, "translation failed", "translation_failed",
			logging.String("kind", event.Kind),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, hintFor(event.Kind)),
			logging.String(logging.FieldImpact, "request ended without output"),
		)
		w.markFailed(ctx, logger, id, event.Kind, event.Message)
		send(event)
		return
	}

	w.processed.Add(1)
	w.markCompleted(ctx, logger, id, result)
	send(protocol.Complete(result.Text))
	logger.Info("translation completed",
		logging.Request(j.req),
		logging.Bool("loaded", result.Loaded),
		logging.Duration("elapsed", result.Elapsed),
	)
}

// failPending ends every queued request that never ran.
func (w *Worker) failPending() {
	for {
		select {
		case j := <-w.queue:
			ctx := services.WithRequestID(context.Background(), j.req.ID)
			logger := logging.WithContext(ctx, w.logger)
			err := services.Wrap(services.ErrInferenceFailure, component, "shutdown", "worker stopped before request ran", nil)
			event := protocol.FailureFromError(err)
			w.failed.Add(1)
			w.markFailed(ctx, logger, j.req.ID, event.Kind, event.Message)
			emit(logger, j.port, event.WithRequest(j.req.ID))
		default:
			return
		}
	}
}

// progressEvent maps a loader record to its wire event.
func progressEvent(p engine.Progress) (protocol.Event, bool) {
	switch p.Phase {
	case engine.PhaseStart:
		return protocol.Initiate(p.File, p.Name, p.Total), true
	case engine.PhaseProgress:
		return protocol.ProgressUpdate(p.File, p.Progress, p.Loaded, p.Total), true
	case engine.PhaseEnd:
		return protocol.Done(p.File), true
	case engine.PhaseReady:
		return protocol.Ready(), true
	default:
		return protocol.Event{}, false
	}
}

func (w *Worker) logProgress(logger *slog.Logger, p engine.Progress) {
	switch p.Phase {
	case engine.PhaseStart:
		logger.Debug("artifact load started", logging.String(logging.FieldArtifact, p.File), logging.Int64("total", p.Total))
	case engine.PhaseProgress:
		if w.sampler.ShouldLog(p.File, p.Progress) {
			logger.Info("artifact load progress",
				logging.String(logging.FieldArtifact, p.File),
				logging.Float64("progress", p.Progress),
			)
		}
	case engine.PhaseEnd:
		w.sampler.Forget(p.File)
		logger.Debug("artifact loaded", logging.String(logging.FieldArtifact, p.File))
	case engine.PhaseReady:
		w.sampler.Reset()
		logger.Info("model ready", logging.String("model", w.Loader().ModelID()))
	}
}

func hintFor(kind string) string {
	switch kind {
	case services.KindLoad:
		return "check engine configuration and connectivity; the next request retries the load"
	case services.KindUnsupportedLanguage:
		return "run `babel languages` to list supported codes"
	case services.KindValidation:
		return "provide non-empty text and both language codes"
	default:
		return "check logs for details"
	}
}

func (w *Worker) markRunning(ctx context.Context, logger *slog.Logger, id string) {
	if w.recorder == nil {
		return
	}
	if err := w.recorder.MarkRunning(context.WithoutCancel(ctx), id); err != nil {
		logger.Warn("record running request failed", logging.Error(err))
	}
}

func (w *Worker) markCompleted(ctx context.Context, logger *slog.Logger, id string, result translator.Result) {
	if w.recorder == nil {
		return
	}
	if err := w.recorder.MarkCompleted(context.WithoutCancel(ctx), id, result.Text, result.Loaded); err != nil {
		logger.Warn("record completed request failed", logging.Error(err))
	}
}

func (w *Worker) markFailed(ctx context.Context, logger *slog.Logger, id, kind, message string) {
	if w.recorder == nil {
		return
	}
	if err := w.recorder.MarkFailed(context.WithoutCancel(ctx), id, kind, message); err != nil {
		logger.Warn("record failed request failed", logging.Error(err))
	}
}
