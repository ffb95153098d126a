package event

import (
	"fmt"
	"sort"
	"time"
)

// RankData owns the name -> EventData mapping of one rank together with the
// lifecycle timestamps bracketing that rank's active window. The wall-clock
// pair locates the rank on the shared timeline; the tick pair translates
// state-change readings (which are monotonic) into that frame.
type RankData struct {
	rank   int
	events map[string]*EventData

	initializedAt time.Time
	finalizedAt   time.Time

	initializedAtTicks time.Duration
	finalizedAtTicks   time.Duration

	finalized bool
}

func NewRankData(rank int) *RankData {
	return &RankData{
		rank:   rank,
		events: make(map[string]*EventData),
	}
}

// Initialize stamps the opening wall-clock and monotonic-clock instants.
// Must be called exactly once, before any Put.
func (r *RankData) Initialize() {
	r.initializedAt = time.Now()
	r.initializedAtTicks = Ticks()
	r.finalized = false
}

// Finalize stamps the closing instants. Calling it again overwrites them.
func (r *RankData) Finalize() {
	r.finalizedAt = time.Now()
	r.finalizedAtTicks = Ticks()
	r.finalized = true
}

// Put merges the occurrence into the aggregate of its name, creating the
// aggregate on first sight.
func (r *RankData) Put(occ Occurrence) {
	ed, ok := r.events[occ.Name]
	if !ok {
		ed = NewEventData(occ.Name, r.rank)
		r.events[occ.Name] = ed
	}
	ed.Merge(occ)
}

// Add inserts an already-built aggregate, used when reconstructing a remote
// rank's data on the coordinator.
func (r *RankData) Add(ed *EventData) {
	r.events[ed.Name()] = ed
}

// NormalizeTo shifts every state-change timestamp from this rank's
// monotonic frame onto the shared wall-clock timeline anchored at origin,
// the earliest initialization instant across all ranks. Call at most once,
// after Finalize. A resulting non-positive offset means either clock skew
// beyond tolerance or a second normalization and is a fatal
// internal-consistency error.
func (r *RankData) NormalizeTo(origin time.Time) error {
	delta := r.initializedAt.Sub(origin)
	if delta < 0 {
		return fmt.Errorf("%w: origin %v, initialized %v", ErrOriginAfterInit, origin, r.initializedAt)
	}
	for _, ed := range r.events {
		for i := range ed.stateChanges {
			sc := &ed.stateChanges[i]
			sc.Timestamp = sc.Timestamp - r.initializedAtTicks + delta
			if sc.Timestamp <= 0 {
				return fmt.Errorf("%w: event %q, state %q", ErrAlreadyNormalized, ed.name, sc.State)
			}
		}
	}
	return nil
}

// Duration is the rank's active window: fixed once finalized, live before.
func (r *RankData) Duration() time.Duration {
	if r.finalized {
		return r.finalizedAt.Sub(r.initializedAt)
	}
	return time.Since(r.initializedAt)
}

// Names returns the event names in sorted order. This deterministic order
// is what lets the coordinator match headers to payloads during collection.
func (r *RankData) Names() []string {
	names := make([]string, 0, len(r.events))
	for name := range r.events {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Event returns the aggregate for name, if any.
func (r *RankData) Event(name string) (*EventData, bool) {
	ed, ok := r.events[name]
	return ed, ok
}

func (r *RankData) Len() int { return len(r.events) }

func (r *RankData) Rank() int { return r.rank }

func (r *RankData) InitializedAt() time.Time { return r.initializedAt }

func (r *RankData) FinalizedAt() time.Time { return r.finalizedAt }

// SetWindow installs the wall-clock window received off the wire.
func (r *RankData) SetWindow(initializedAt, finalizedAt time.Time) {
	r.initializedAt = initializedAt
	r.finalizedAt = finalizedAt
	r.finalized = true
}
