// Package services defines shared utilities consumed by the worker, the
// engines, and the control side.
//
// Key responsibilities:
//   - Context helpers that stamp request IDs, artifact names, and source
//     connection labels for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     into the wire kinds carried by error events (load, inference,
//     unsupported language, busy).
//
// Use these helpers when wiring new engine or worker logic so failures reach
// the control side with a stable classification.
package services
