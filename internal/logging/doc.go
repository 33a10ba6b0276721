// Package logging builds the slog loggers shared by the worker, the daemon,
// and the CLI.
//
// Two formats are supported. The console format prints one readable line per
// record with the component and request id in a bracketed prefix. The json
// format is meant for the daemon log file that "babel logs" tails. Request,
// peer, and artifact labels travel in the context (see package services) and
// are attached with WithContext.
package logging
