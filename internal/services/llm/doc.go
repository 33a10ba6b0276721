// Package llm provides an OpenAI-compatible chat client used by the remote
// translation engine.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.HealthCheck: verify API key and model availability (used as the
// remote engine's load step).
// Client.Stream: send system/user prompts with stream=true and deliver
// content deltas as server-sent events arrive.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors and network timeouts with
// exponential backoff (base 1s, max 10s). Retries only happen before the first
// delta is delivered; once streaming has started a failure is returned to the
// caller as-is. Context cancellation aborts retries immediately.
//
// Providers that ignore stream=true and answer with a plain JSON completion are
// tolerated: the whole content is delivered as a single delta.
package llm
