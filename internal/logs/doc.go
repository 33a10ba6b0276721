// Package logs reads the daemon log file for the CLI: the last N lines, then
// optionally every line appended afterwards, filtered by a substring such as
// a request id.
package logs
