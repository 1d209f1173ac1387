// Package daemon owns the lifecycle of the long-running cavacolor process.
//
// It holds a flock-based lock in the state directory so only one instance
// rewrites the visualizer config, runs the sync loop in the background, and
// reports a status snapshot that combines loop state with the paths the
// daemon owns. Process wiring (signals, logger, observer selection) lives in
// daemonrun; the loop itself lives in syncloop.
package daemon
