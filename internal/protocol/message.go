// Package protocol defines the messages exchanged between the control side
// and the translation worker, and the ports that carry them.
//
// Requests flow control→worker; events flow worker→control. Two transports
// exist: Pipe connects goroutines in one process through unbounded mailboxes,
// and StreamConn speaks newline-delimited JSON over any io.ReadWriteCloser
// (the daemon uses Unix sockets). Both preserve order within one connection.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"

	"babel/internal/services"
)

// Status tags an event.
type Status string

const (
	StatusInitiate Status = "initiate"
	StatusProgress Status = "progress"
	StatusDone     Status = "done"
	StatusReady    Status = "ready"
	StatusUpdate   Status = "update"
	StatusComplete Status = "complete"
	StatusError    Status = "error"
)

// Known reports whether s is one of the defined statuses.
func (s Status) Known() bool {
	switch s {
	case StatusInitiate, StatusProgress, StatusDone, StatusReady, StatusUpdate, StatusComplete, StatusError:
		return true
	default:
		return false
	}
}

// Request asks the worker to translate Text. ID is optional on the wire; the
// worker assigns one when absent.
type Request struct {
	ID             string `json:"id,omitempty"`
	Text           string `json:"text"`
	SourceLanguage string `json:"src_lang"`
	TargetLanguage string `json:"tgt_lang"`
}

// Validate rejects requests the worker cannot act on.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return services.Wrap(services.ErrValidation, "protocol", "validate request", "text is empty", nil)
	}
	if strings.TrimSpace(r.SourceLanguage) == "" || strings.TrimSpace(r.TargetLanguage) == "" {
		return services.Wrap(services.ErrValidation, "protocol", "validate request", "language pair is incomplete", nil)
	}
	return nil
}

// Event is a worker→control message. Which fields are meaningful depends on
// Status; see the constructors.
type Event struct {
	Status    Status
	RequestID string
	File      string
	Name      string
	Progress  float64
	Loaded    int64
	Total     int64
	Output    string
	Kind      string
	Message   string
}

// Initiate announces that an artifact started loading.
func Initiate(file, name string, total int64) Event {
	return Event{Status: StatusInitiate, File: file, Name: name, Total: total}
}

// ProgressUpdate reports an artifact's load percentage.
func ProgressUpdate(file string, progress float64, loaded, total int64) Event {
	return Event{Status: StatusProgress, File: file, Progress: progress, Loaded: loaded, Total: total}
}

// Done announces that an artifact finished loading.
func Done(file string) Event {
	return Event{Status: StatusDone, File: file}
}

// Ready announces that the engine is loaded.
func Ready() Event {
	return Event{Status: StatusReady}
}

// Update carries one streamed output fragment.
func Update(output string) Event {
	return Event{Status: StatusUpdate, Output: output}
}

// Complete carries the final output of a request.
func Complete(output string) Event {
	return Event{Status: StatusComplete, Output: output}
}

// Failure reports that a request ended without a result.
func Failure(kind, message string) Event {
	return Event{Status: StatusError, Kind: kind, Message: message}
}

// FailureFromError builds an error event classified with services.Kind.
func FailureFromError(err error) Event {
	return Failure(services.Kind(err), err.Error())
}

// WithRequest tags the event with a request identifier.
func (e Event) WithRequest(id string) Event {
	e.RequestID = id
	return e
}

// Validate rejects events with unknown status or missing required fields.
func (e Event) Validate() error {
	if !e.Status.Known() {
		return services.Wrap(services.ErrValidation, "protocol", "validate event", fmt.Sprintf("unknown status %q", e.Status), nil)
	}
	switch e.Status {
	case StatusInitiate, StatusProgress, StatusDone:
		if e.File == "" {
			return services.Wrap(services.ErrValidation, "protocol", "validate event", string(e.Status)+" requires file", nil)
		}
	case StatusError:
		if e.Kind == "" {
			return services.Wrap(services.ErrValidation, "protocol", "validate event", "error requires kind", nil)
		}
	}
	return nil
}

type eventWire struct {
	Status    Status   `json:"status"`
	RequestID string   `json:"request_id,omitempty"`
	File      string   `json:"file,omitempty"`
	Name      string   `json:"name,omitempty"`
	Progress  *float64 `json:"progress,omitempty"`
	Loaded    int64    `json:"loaded,omitempty"`
	Total     int64    `json:"total,omitempty"`
	Output    *string  `json:"output,omitempty"`
	Kind      string   `json:"kind,omitempty"`
	Message   string   `json:"message,omitempty"`
}

// MarshalJSON emits only the fields defined for the event's status.
func (e Event) MarshalJSON() ([]byte, error) {
	w := eventWire{
		Status:    e.Status,
		RequestID: e.RequestID,
		File:      e.File,
		Name:      e.Name,
		Loaded:    e.Loaded,
		Total:     e.Total,
		Kind:      e.Kind,
		Message:   e.Message,
	}
	switch e.Status {
	case StatusProgress:
		p := e.Progress
		w.Progress = &p
	case StatusUpdate, StatusComplete:
		out := e.Output
		w.Output = &out
	}
	return json.Marshal(w)
}

// UnmarshalJSON accepts the wire form produced by MarshalJSON.
func (e *Event) UnmarshalJSON(data []byte) error {
	var w eventWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*e = Event{
		Status:    w.Status,
		RequestID: w.RequestID,
		File:      w.File,
		Name:      w.Name,
		Loaded:    w.Loaded,
		Total:     w.Total,
		Kind:      w.Kind,
		Message:   w.Message,
	}
	if w.Progress != nil {
		e.Progress = *w.Progress
	}
	if w.Output != nil {
		e.Output = *w.Output
	}
	return nil
}
