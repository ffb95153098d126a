package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutCreatesAggregateWithOwningRank(t *testing.T) {
	rd := NewRankData(4)
	rd.Initialize()
	rd.Put(Occurrence{Name: "solve", Duration: time.Millisecond})
	rd.Put(Occurrence{Name: "solve", Duration: 3 * time.Millisecond})

	ed, ok := rd.Event("solve")
	require.True(t, ok)
	assert.Equal(t, 4, ed.Rank())
	assert.Equal(t, int64(2), ed.Count())
	assert.Equal(t, 1, rd.Len())
}

func TestNamesAreSorted(t *testing.T) {
	rd := NewRankData(0)
	rd.Initialize()
	for _, name := range []string{"gamma", "alpha", "beta"} {
		rd.Put(Occurrence{Name: name, Duration: time.Millisecond})
	}
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, rd.Names())
}

func TestDurationFixedAfterFinalize(t *testing.T) {
	rd := NewRankData(0)
	rd.Initialize()
	time.Sleep(2 * time.Millisecond)
	rd.Finalize()

	d := rd.Duration()
	assert.Greater(t, d, time.Duration(0))
	time.Sleep(2 * time.Millisecond)
	assert.Equal(t, d, rd.Duration())
}

// newNormalizeFixture builds a rank whose clocks are fully controlled: it
// initialized at init with monotonic reading initTicks and recorded two
// state changes afterwards.
func newNormalizeFixture(init time.Time, initTicks time.Duration) *RankData {
	rd := NewRankData(0)
	rd.initializedAt = init
	rd.initializedAtTicks = initTicks
	ed := NewEventData("solve", 0)
	ed.Merge(Occurrence{
		Name:     "solve",
		Duration: time.Millisecond,
		StateChanges: []StateChange{
			{State: "running", Timestamp: initTicks + 50*time.Millisecond},
			{State: "done", Timestamp: initTicks + 150*time.Millisecond},
		},
	})
	rd.events["solve"] = ed
	return rd
}

func TestNormalizeToWithZeroDelta(t *testing.T) {
	init := time.Unix(1000, 0)
	rd := newNormalizeFixture(init, 100*time.Millisecond)

	// This rank initialized exactly at the shared origin: timestamps are
	// only re-based from the local ticks origin.
	require.NoError(t, rd.NormalizeTo(init))

	ed, _ := rd.Event("solve")
	assert.Equal(t, 50*time.Millisecond, ed.StateChanges()[0].Timestamp)
	assert.Equal(t, 150*time.Millisecond, ed.StateChanges()[1].Timestamp)
}

func TestNormalizeToWithPositiveDelta(t *testing.T) {
	init := time.Unix(1000, 0)
	rd := newNormalizeFixture(init, 100*time.Millisecond)

	require.NoError(t, rd.NormalizeTo(init.Add(-time.Second)))

	ed, _ := rd.Event("solve")
	assert.Equal(t, time.Second+50*time.Millisecond, ed.StateChanges()[0].Timestamp)
	assert.Equal(t, time.Second+150*time.Millisecond, ed.StateChanges()[1].Timestamp)
}

func TestNormalizeTwiceIsDetected(t *testing.T) {
	init := time.Unix(1000, 0)
	rd := newNormalizeFixture(init, 100*time.Millisecond)

	require.NoError(t, rd.NormalizeTo(init))
	err := rd.NormalizeTo(init)
	assert.ErrorIs(t, err, ErrAlreadyNormalized)
}

func TestNormalizeToRejectsLaterOrigin(t *testing.T) {
	init := time.Unix(1000, 0)
	rd := newNormalizeFixture(init, 100*time.Millisecond)

	err := rd.NormalizeTo(init.Add(time.Second))
	assert.ErrorIs(t, err, ErrOriginAfterInit)
}
