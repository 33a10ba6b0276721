// Package main hosts the babel CLI entrypoint and command graph.
//
// The Cobra command tree runs translations either in-process or against the
// daemon's translation socket, manages the daemon lifecycle over the control
// socket, and exposes history, language catalog, and configuration helpers.
// Translation logic lives in the internal packages; commands here only wire
// ports, sessions, and terminal rendering together.
package main
