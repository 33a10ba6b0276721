// Package daemonctl launches, stops, and inspects the babel daemon on behalf
// of the CLI. Everything goes through the daemon's control socket; the pid
// file is only consulted when a graceful stop times out.
package daemonctl
