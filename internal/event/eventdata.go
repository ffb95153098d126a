package event

import (
	"math"
	"time"
)

// Extremal accumulators start at type-extreme sentinels so the first merge
// always updates both. A zero-occurrence aggregate is therefore
// distinguishable from one that saw a zero-length duration.
const (
	sentinelMax = time.Duration(math.MinInt64)
	sentinelMin = time.Duration(math.MaxInt64)
)

// EventData accumulates every occurrence of one named event on one rank.
type EventData struct {
	name string
	rank int

	count int64
	total time.Duration
	max   time.Duration
	min   time.Duration

	data         []int64
	stateChanges []StateChange
}

// NewEventData returns an empty aggregate owned by the given rank.
func NewEventData(name string, rank int) *EventData {
	return &EventData{
		name: name,
		rank: rank,
		max:  sentinelMax,
		min:  sentinelMin,
	}
}

// Restore rebuilds an aggregate from values decoded off the wire.
func Restore(name string, rank int, count int64, total, max, min time.Duration, data []int64, stateChanges []StateChange) *EventData {
	return &EventData{
		name:         name,
		rank:         rank,
		count:        count,
		total:        total,
		max:          max,
		min:          min,
		data:         data,
		stateChanges: stateChanges,
	}
}

// Merge folds one occurrence into the running statistics. Sample data and
// state changes are appended in arrival order.
func (e *EventData) Merge(occ Occurrence) {
	e.count++
	e.total += occ.Duration
	if occ.Duration > e.max {
		e.max = occ.Duration
	}
	if occ.Duration < e.min {
		e.min = occ.Duration
	}
	e.data = append(e.data, occ.Data...)
	e.stateChanges = append(e.stateChanges, occ.StateChanges...)
}

func (e *EventData) Name() string { return e.name }

// Rank is the process that produced this aggregate. Set at creation,
// immutable afterwards.
func (e *EventData) Rank() int { return e.rank }

func (e *EventData) Count() int64 { return e.count }

func (e *EventData) Total() time.Duration { return e.total }

func (e *EventData) Max() time.Duration { return e.max }

func (e *EventData) Min() time.Duration { return e.min }

// Avg is the mean duration over all merged occurrences. An empty aggregate
// has no mean; the zero duration is returned as the "no data" result.
func (e *EventData) Avg() time.Duration {
	if e.count == 0 {
		return 0
	}
	return e.total / time.Duration(e.count)
}

// Data returns the concatenated sample data in merge order. The returned
// slice is owned by the aggregate and must not be mutated.
func (e *EventData) Data() []int64 { return e.data }

// StateChanges returns the concatenated state-change log in merge order.
// The returned slice is owned by the aggregate and must not be mutated.
func (e *EventData) StateChanges() []StateChange { return e.stateChanges }
