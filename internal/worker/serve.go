package worker

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"babel/internal/logging"
	"babel/internal/protocol"
	"babel/internal/services"
)

// errNotRunning carries no sentinel marker, so it is reported as kind internal.
var errNotRunning = errors.New("worker is not running")

// Serve accepts requests from port until the port closes or ctx is done. peer
// labels the connection in logs and history.
func (w *Worker) Serve(ctx context.Context, port protocol.WorkerPort, peer string) error {
	w.ports.Add(1)
	defer w.ports.Add(-1)

	logger := w.logger.With(logging.String(logging.FieldPeer, peer))
	logger.Debug("port attached")
	defer logger.Debug("port detached")

	requests := port.Requests()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req, ok := <-requests:
			if !ok {
				return nil
			}
			w.accept(ctx, port, peer, req)
		}
	}
}

func (w *Worker) accept(ctx context.Context, port protocol.WorkerPort, peer string, req protocol.Request) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	ctx = services.WithPeer(services.WithRequestID(ctx, req.ID), peer)
	logger := logging.WithContext(ctx, w.logger)

	if err := req.Validate(); err != nil {
		w.reject(ctx, logger, port, peer, req, err)
		return
	}

	// Sends only happen under acceptMu and the consumer only removes, so a
	// free slot observed here is still free at the send.
	w.acceptMu.Lock()
	if !w.isRunning() {
		w.acceptMu.Unlock()
		w.reject(ctx, logger, port, peer, req, errNotRunning)
		return
	}
	if len(w.queue) >= cap(w.queue) {
		w.acceptMu.Unlock()
		err := services.Wrap(services.ErrBusy, component, "enqueue", "request queue is full", nil)
		w.reject(ctx, logger, port, peer, req, err)
		return
	}
	w.recordQueued(ctx, logger, req, peer)
	w.queue <- job{req: req, port: port, peer: peer}
	w.acceptMu.Unlock()

	logger.Debug("request queued", logging.Request(req))
}

func (w *Worker) reject(ctx context.Context, logger *slog.Logger, port protocol.WorkerPort, peer string, req protocol.Request, err error) {
	w.rejected.Add(1)
	event := protocol.FailureFromError(err).WithRequest(req.ID)
	logger.Info("request rejected",
		logging.String("kind", event.Kind),
		logging.Error(err),
	)
	if w.recorder != nil {
		if recErr := w.recorder.RecordRejected(context.WithoutCancel(ctx), req, peer, event.Kind, event.Message); recErr != nil {
			logger.Warn("record rejected request failed", logging.Error(recErr))
		}
	}
	emit(logger, port, event)
}

func (w *Worker) recordQueued(ctx context.Context, logger *slog.Logger, req protocol.Request, peer string) {
	if w.recorder == nil {
		return
	}
	if err := w.recorder.RecordQueued(context.WithoutCancel(ctx), req, peer); err != nil {
		logging.WarnWithContext(logger, "record queued request failed", "history_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check history database access"),
			logging.String(logging.FieldImpact, "request proceeds without history"),
		)
	}
}

func emit(logger *slog.Logger, port protocol.WorkerPort, event protocol.Event) {
	if err := port.Emit(event); err != nil {
		logger.Debug("event dropped", logging.Event(event), logging.Error(err))
	}
}
