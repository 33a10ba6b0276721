// Package session is the control side of a worker connection. A Session owns
// the UI state and folds every worker event into it on a single goroutine;
// callers read copies through Snapshot or observe changes through OnChange.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"babel/internal/logging"
	"babel/internal/protocol"
	"babel/internal/services"
	"babel/internal/uistate"
)

const component = "session"

// ErrDisconnected is returned once the worker side of the port has gone away.
var ErrDisconnected = errors.New("session: worker disconnected")

// Observer receives a copy of the state after every change.
type Observer func(uistate.State)

// Session folds worker events for one control port.
type Session struct {
	port   protocol.ControlPort
	logger *slog.Logger

	notifyMu sync.Mutex

	mu        sync.Mutex
	state     uistate.State
	observers []Observer
	changed   chan struct{}

	done chan struct{}
}

// New starts folding events from port.
func New(port protocol.ControlPort, logger *slog.Logger) *Session {
	s := &Session{
		port:    port,
		logger:  logging.NewComponentLogger(logger, component),
		state:   uistate.Initial(),
		changed: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.fold()
	return s
}

// OnChange registers fn to run after every change. Observers are called one
// at a time and never see states out of order; fn must not call Submit.
func (s *Session) OnChange(fn Observer) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() uistate.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Submit posts req without waiting for the worker. It fails while a request is
// in flight or when the text is blank. The returned id tags every event of
// this request.
func (s *Session) Submit(req protocol.Request) (string, error) {
	select {
	case <-s.done:
		return "", ErrDisconnected
	default:
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	s.mu.Lock()
	prev := s.state
	next, err := uistate.Submit(prev, req)
	if err != nil {
		s.mu.Unlock()
		return "", err
	}
	s.state = next
	s.mu.Unlock()
	s.publish()

	if err := s.port.Post(req); err != nil {
		s.mu.Lock()
		if s.state.RequestID == req.ID {
			s.state = prev
		}
		s.mu.Unlock()
		s.publish()
		if errors.Is(err, protocol.ErrClosed) {
			return "", ErrDisconnected
		}
		return "", err
	}
	s.logger.Debug("request submitted",
		logging.String(logging.FieldRequestID, req.ID),
		logging.Request(req),
	)
	return req.ID, nil
}

// AwaitIdle blocks until no request is in flight and returns that state.
func (s *Session) AwaitIdle(ctx context.Context) (uistate.State, error) {
	for {
		s.mu.Lock()
		if s.state.InputEnabled {
			state := s.state.Clone()
			s.mu.Unlock()
			return state, nil
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return s.Snapshot(), ctx.Err()
		}
	}
}

// Done is closed once the worker side has gone away and every event was folded.
func (s *Session) Done() <-chan struct{} { return s.done }

// Close releases the port and waits for the fold goroutine.
func (s *Session) Close() error {
	err := s.port.Close()
	<-s.done
	return err
}

func (s *Session) fold() {
	defer close(s.done)
	for e := range s.port.Events() {
		s.apply(e)
	}

	// A request still in flight will never finish; surface that so input
	// comes back.
	s.mu.Lock()
	pending := !s.state.InputEnabled
	id := s.state.RequestID
	s.mu.Unlock()
	if pending {
		s.logger.Warn("worker disconnected with request in flight",
			logging.String(logging.FieldRequestID, id),
			logging.String(logging.FieldEventType, "worker_disconnected"),
		)
		s.apply(protocol.Failure(services.KindInternal, ErrDisconnected.Error()).WithRequest(id))
	}
}

func (s *Session) apply(e protocol.Event) {
	s.mu.Lock()
	if e.RequestID != "" && s.state.RequestID != "" && e.RequestID != s.state.RequestID {
		s.mu.Unlock()
		s.logger.Debug("ignoring event for another request",
			logging.String(logging.FieldRequestID, e.RequestID),
			logging.String("status", string(e.Status)),
		)
		return
	}
	s.state = uistate.Apply(s.state, e)
	s.mu.Unlock()

	if e.Status == protocol.StatusError {
		s.logger.Debug("request failed",
			logging.String(logging.FieldRequestID, e.RequestID),
			logging.String("kind", e.Kind),
			logging.String("message", e.Message),
		)
	}
	s.publish()
}

// publish wakes AwaitIdle waiters and hands observers the current state.
func (s *Session) publish() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	close(s.changed)
	s.changed = make(chan struct{})
	state := s.state.Clone()
	observers := append([]Observer(nil), s.observers...)
	s.mu.Unlock()

	for _, fn := range observers {
		fn(state.Clone())
	}
}
