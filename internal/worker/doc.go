// Package worker hosts the translation worker: one loader, one translator,
// and a bounded FIFO of requests fed by any number of ports.
//
// Serve reads requests from a port, assigns identifiers, and enqueues them.
// A single goroutine started by Start consumes the queue, so generations never
// overlap even when requests arrive from several connections. Every accepted
// request ends with exactly one complete or error event on the port it came
// from; a full queue rejects the request immediately with error(kind=busy).
package worker
