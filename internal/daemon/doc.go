// Package daemon coordinates the long-running babel worker process.
//
// It wires configuration, request history, and the translation worker into a
// single lifecycle with flock-based locking so only one daemon owns the engine
// for a data directory. Connections handed to Serve share that one worker,
// which keeps the engine loaded once for every client.
//
// Keep orchestration here: request handling lives in internal/worker and the
// socket transports live in internal/ipc.
package daemon
