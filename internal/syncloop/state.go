package syncloop

import "cavacolor/internal/playback"

// State names a point in the cycle.
type State string

const (
	StateIdle      State = "idle"
	StatePolling   State = "polling"
	StateUnchanged State = "unchanged"
	StateChanged   State = "changed"
	StateSyncing   State = "syncing"
	StateBackoff   State = "backoff"
	StateFatal     State = "fatal"
)

// CycleState is the coordinator's memory between cycles. It is never
// persisted; a restarted daemon treats the first observed track as new.
type CycleState struct {
	LastTrack           playback.TrackID
	LastWriteSucceeded  bool
	ConsecutiveFailures int
	State               State
}
