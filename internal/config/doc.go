// Package config loads babel settings from a TOML file plus BABEL_*
// environment overrides.
//
// Load applies defaults first, then the file, then the environment, and
// finally expands and validates paths. The same Config drives the in-process
// translate command, the daemon, and the control commands, so they agree on
// socket, lock, and history locations.
package config
