// Package daemonrun wires configuration into a running cavacolor process:
// signal handling, the session logger, the PID file, preflight checks, the
// playback observer for the configured backend, and the artwork to
// visualizer pipeline driven by the sync loop.
package daemonrun
