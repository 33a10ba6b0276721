// Package uistate folds worker events into the control side's view model.
//
// Apply is a pure function: it never mutates its input and has no side
// effects, so the session goroutine (or a test) can replay any event sequence
// and compare snapshots.
package uistate

import (
	"errors"
	"slices"
	"strings"

	"babel/internal/engine"
	"babel/internal/protocol"
)

var (
	// ErrInputDisabled is returned by Submit while a request is outstanding.
	ErrInputDisabled = errors.New("uistate: input disabled while a translation is running")
	// ErrEmptyText is returned by Submit for blank input.
	ErrEmptyText = errors.New("uistate: text is empty")
)

// Readiness is the tri-state engine readiness shown to the user.
type Readiness int

const (
	ReadyUnknown Readiness = iota
	ReadyFalse
	ReadyTrue
)

func (r Readiness) String() string {
	switch r {
	case ReadyFalse:
		return "loading"
	case ReadyTrue:
		return "ready"
	default:
		return "unknown"
	}
}

// ProgressItem tracks one artifact that is still loading.
type ProgressItem struct {
	File     string
	Progress float64
}

// Failure is the last error reported by the worker.
type Failure struct {
	Kind    string
	Message string
}

// State is the control side's view model.
type State struct {
	Ready        Readiness
	InputEnabled bool
	Items        []ProgressItem
	// Output is the concatenation of every update since the last submit.
	Output string
	// Final is the authoritative output of the last completed request.
	Final     string
	Err       *Failure
	RequestID string
}

// Initial returns the state before any interaction.
func Initial() State {
	return State{Ready: ReadyUnknown, InputEnabled: true}
}

// Loading reports whether the engine is being loaded.
func (s State) Loading() bool {
	return s.Ready == ReadyFalse
}

// Clone returns a deep copy safe to hand to other goroutines.
func (s State) Clone() State {
	s.Items = slices.Clone(s.Items)
	if s.Err != nil {
		failure := *s.Err
		s.Err = &failure
	}
	return s
}

// Submit records that req was sent. It fails while input is disabled or when
// the text is blank, leaving s unchanged.
func Submit(s State, req protocol.Request) (State, error) {
	if !s.InputEnabled {
		return s, ErrInputDisabled
	}
	if strings.TrimSpace(req.Text) == "" {
		return s, ErrEmptyText
	}
	next := s.Clone()
	next.InputEnabled = false
	next.Output = ""
	next.Final = ""
	next.Err = nil
	next.RequestID = req.ID
	return next, nil
}

// Apply folds one event into s and returns the new state.
func Apply(s State, e protocol.Event) State {
	next := s.Clone()
	switch e.Status {
	case protocol.StatusInitiate:
		if next.Ready != ReadyTrue {
			next.Ready = ReadyFalse
		}
		if indexOf(next.Items, e.File) < 0 {
			next.Items = append(next.Items, ProgressItem{File: e.File})
		}
	case protocol.StatusProgress:
		if i := indexOf(next.Items, e.File); i >= 0 {
			next.Items[i].Progress = max(next.Items[i].Progress, engine.ClampPercent(e.Progress))
		}
	case protocol.StatusDone:
		if i := indexOf(next.Items, e.File); i >= 0 {
			next.Items = slices.Delete(next.Items, i, i+1)
		}
	case protocol.StatusReady:
		next.Ready = ReadyTrue
	case protocol.StatusUpdate:
		next.Output += e.Output
	case protocol.StatusComplete:
		next.InputEnabled = true
		next.Final = e.Output
	case protocol.StatusError:
		next.InputEnabled = true
		next.Err = &Failure{Kind: e.Kind, Message: e.Message}
		next.Items = nil
	}
	return next
}

func indexOf(items []ProgressItem, file string) int {
	return slices.IndexFunc(items, func(item ProgressItem) bool { return item.File == file })
}
