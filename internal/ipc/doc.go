// Package ipc exposes the daemon over Unix domain sockets and ships the
// matching clients used by the CLI.
//
// Two sockets are served. The control socket speaks JSON-RPC (status, stop,
// history) the way the CLI expects; the translation socket carries the worker
// protocol as newline-delimited JSON, one protocol.StreamConn per connection,
// all attached to the daemon's single worker.
//
// Reuse these types when adding new RPC endpoints to keep the protocol stable
// and compatible with existing command implementations.
package ipc
