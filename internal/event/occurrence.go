package event

import "time"

// processStart anchors the monotonic clock for this process. All tick
// readings, including the ones embedded in state changes, are offsets from
// this instant and are only comparable within one process until
// RankData.NormalizeTo re-bases them onto the shared wall-clock timeline.
var processStart = time.Now()

// Ticks returns the current monotonic-clock reading for this process.
func Ticks() time.Duration {
	return time.Since(processStart)
}

// StateChange is a labeled instant within an occurrence's lifetime.
type StateChange struct {
	State     string
	Timestamp time.Duration
}

// Occurrence is the pull-style snapshot of one completed measurement of a
// named event, as produced by the measurement primitive: the elapsed
// duration, optional integer sample data, and an optional state-change log
// timestamped with Ticks.
type Occurrence struct {
	Name         string
	Duration     time.Duration
	Data         []int64
	StateChanges []StateChange
}
