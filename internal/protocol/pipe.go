package protocol

import "sync"

// Pipe returns a connected in-memory port pair. Post and Emit never block.
func Pipe() (ControlPort, WorkerPort) {
	requests := newMailbox[Request]()
	events := newMailbox[Event]()
	return &pipeControl{requests: requests, events: events},
		&pipeWorker{requests: requests, events: events}
}

type pipeControl struct {
	requests *mailbox[Request]
	events   *mailbox[Event]
	once     sync.Once
}

func (p *pipeControl) Post(r Request) error {
	if err := r.Validate(); err != nil {
		return err
	}
	return p.requests.put(r)
}

func (p *pipeControl) Events() <-chan Event { return p.events.out }

// Close stops sending requests. Requests already posted are still delivered;
// undelivered events are dropped.
func (p *pipeControl) Close() error {
	p.once.Do(func() {
		p.requests.close()
		p.events.discard()
	})
	return nil
}

type pipeWorker struct {
	requests *mailbox[Request]
	events   *mailbox[Event]
	once     sync.Once
}

func (p *pipeWorker) Requests() <-chan Request { return p.requests.out }

func (p *pipeWorker) Emit(e Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	return p.events.put(e)
}

// Close stops emitting events. Events already emitted are still delivered;
// undelivered requests are dropped.
func (p *pipeWorker) Close() error {
	p.once.Do(func() {
		p.events.close()
		p.requests.discard()
	})
	return nil
}
