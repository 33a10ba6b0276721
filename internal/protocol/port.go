package protocol

import "errors"

// ErrClosed is returned when posting to or emitting on a closed port.
var ErrClosed = errors.New("protocol: port closed")

// ControlPort is the control side of a connection.
type ControlPort interface {
	// Post sends a request without waiting for the worker.
	Post(Request) error
	// Events delivers worker events in order. It is closed when the worker
	// side goes away.
	Events() <-chan Event
	Close() error
}

// WorkerPort is the worker side of a connection.
type WorkerPort interface {
	// Requests delivers posted requests in order. It is closed when the
	// control side goes away.
	Requests() <-chan Request
	// Emit sends an event without waiting for the control side.
	Emit(Event) error
	Close() error
}
