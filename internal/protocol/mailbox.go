package protocol

import "sync"

// mailbox is an unbounded FIFO. put never blocks; a pump goroutine feeds out.
// close lets queued items drain before out is closed; abort discards them.
type mailbox[T any] struct {
	mu     sync.Mutex
	queue  []T
	closed bool
	notify chan struct{}
	abort  chan struct{}
	once   sync.Once
	out    chan T
}

func newMailbox[T any]() *mailbox[T] {
	m := &mailbox[T]{
		notify: make(chan struct{}, 1),
		abort:  make(chan struct{}),
		out:    make(chan T),
	}
	go m.pump()
	return m
}

func (m *mailbox[T]) put(v T) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.queue = append(m.queue, v)
	m.mu.Unlock()
	m.wake()
	return nil
}

func (m *mailbox[T]) wake() {
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *mailbox[T]) close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.wake()
}

func (m *mailbox[T]) discard() {
	m.close()
	m.once.Do(func() { close(m.abort) })
}

func (m *mailbox[T]) pump() {
	defer close(m.out)
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			closed := m.closed
			m.mu.Unlock()
			if closed {
				return
			}
			select {
			case <-m.notify:
			case <-m.abort:
				return
			}
			continue
		}
		v := m.queue[0]
		var zero T
		m.queue[0] = zero
		m.queue = m.queue[1:]
		m.mu.Unlock()

		select {
		case m.out <- v:
		case <-m.abort:
			return
		}
	}
}
