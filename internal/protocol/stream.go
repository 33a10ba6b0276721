package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// DefaultWriteTimeout bounds how long one outbound line may take to reach a
// peer that supports write deadlines. A peer that stops reading is dropped.
const DefaultWriteTimeout = 10 * time.Second

// StreamConn carries protocol messages as newline-delimited JSON over rwc.
// It implements both ControlPort and WorkerPort: inbound lines that carry a
// status are events, everything else is a request. Each side simply uses the
// half it needs.
//
// Post and Emit only enqueue; a writer goroutine owns the encoder, so a peer
// that stops reading never blocks the sender.
type StreamConn struct {
	rwc          io.ReadWriteCloser
	enc          *json.Encoder
	writeTimeout time.Duration

	outbound    *mailbox[any]
	writerDone  chan struct{}
	requests    *mailbox[Request]
	events      *mailbox[Event]
	rwcOnce     sync.Once
	rwcCloseErr error

	closeOnce sync.Once
	closed    chan struct{}

	errMu   sync.Mutex
	readErr error
}

var (
	_ ControlPort = (*StreamConn)(nil)
	_ WorkerPort  = (*StreamConn)(nil)
)

// NewStreamConn starts reading from and writing to rwc with
// DefaultWriteTimeout.
func NewStreamConn(rwc io.ReadWriteCloser) *StreamConn {
	return newStreamConn(rwc, DefaultWriteTimeout)
}

func newStreamConn(rwc io.ReadWriteCloser, writeTimeout time.Duration) *StreamConn {
	c := &StreamConn{
		rwc:          rwc,
		enc:          json.NewEncoder(rwc),
		writeTimeout: writeTimeout,
		outbound:     newMailbox[any](),
		writerDone:   make(chan struct{}),
		requests:     newMailbox[Request](),
		events:       newMailbox[Event](),
		closed:       make(chan struct{}),
	}
	c.enc.SetEscapeHTML(false)
	go c.readLoop()
	go c.writeLoop()
	return c
}

// Post queues a request line.
func (c *StreamConn) Post(r Request) error {
	if err := r.Validate(); err != nil {
		return err
	}
	return c.write(r)
}

// Emit queues an event line.
func (c *StreamConn) Emit(e Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	return c.write(e)
}

// Requests delivers inbound requests.
func (c *StreamConn) Requests() <-chan Request { return c.requests.out }

// Events delivers inbound events.
func (c *StreamConn) Events() <-chan Event { return c.events.out }

// Done is closed when the connection is closed locally.
func (c *StreamConn) Done() <-chan struct{} { return c.closed }

// Err reports why the connection failed: a read or decode error, or a write
// that did not complete in time. It is nil after a clean EOF.
func (c *StreamConn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.readErr
}

// Close flushes queued outbound lines for at most the write timeout, then
// closes the underlying stream and discards undelivered inbound messages.
func (c *StreamConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.outbound.close()
		timer := time.NewTimer(c.writeTimeout)
		select {
		case <-c.writerDone:
		case <-timer.C:
			c.outbound.discard()
		}
		timer.Stop()
		c.closeStream()
		c.requests.discard()
		c.events.discard()
	})
	return c.rwcCloseErr
}

func (c *StreamConn) write(v any) error {
	if c.isClosed() {
		return ErrClosed
	}
	return c.outbound.put(v)
}

func (c *StreamConn) writeLoop() {
	defer close(c.writerDone)
	deadliner, _ := c.rwc.(interface{ SetWriteDeadline(time.Time) error })
	for v := range c.outbound.out {
		if deadliner != nil && c.writeTimeout > 0 {
			_ = deadliner.SetWriteDeadline(time.Now().Add(c.writeTimeout))
		}
		if err := c.enc.Encode(v); err != nil {
			if !c.isClosed() {
				c.setErr(fmt.Errorf("protocol: write: %w", err))
			}
			c.outbound.discard()
			c.closeStream()
			return
		}
	}
}

// closeStream closes rwc once; the read loop then ends and closes the
// inbound channels.
func (c *StreamConn) closeStream() {
	c.rwcOnce.Do(func() {
		c.rwcCloseErr = c.rwc.Close()
	})
}

type envelope struct {
	Status *Status `json:"status"`
}

func (c *StreamConn) readLoop() {
	defer func() {
		c.requests.close()
		c.events.close()
	}()
	dec := json.NewDecoder(c.rwc)
	for {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			if !errors.Is(err, io.EOF) && !c.isClosed() {
				c.setErr(fmt.Errorf("protocol: read: %w", err))
			}
			return
		}
		if err := c.dispatch(raw); err != nil {
			c.setErr(err)
			return
		}
	}
}

func (c *StreamConn) dispatch(raw json.RawMessage) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("protocol: decode envelope: %w", err)
	}
	if env.Status != nil {
		var e Event
		if err := json.Unmarshal(raw, &e); err != nil {
			return fmt.Errorf("protocol: decode event: %w", err)
		}
		if !e.Status.Known() {
			return nil
		}
		_ = c.events.put(e)
		return nil
	}
	var r Request
	if err := json.Unmarshal(raw, &r); err != nil {
		return fmt.Errorf("protocol: decode request: %w", err)
	}
	_ = c.requests.put(r)
	return nil
}

func (c *StreamConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *StreamConn) setErr(err error) {
	c.errMu.Lock()
	if c.readErr == nil {
		c.readErr = err
	}
	c.errMu.Unlock()
}
