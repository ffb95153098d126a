package registry

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tracefunnel/tracefunnel/internal/comm"
	"github.com/tracefunnel/tracefunnel/internal/event"
)

// runRegistries runs one registry per rank of an in-process group, each on
// its own goroutine: initialize, feed occurrences, finalize. Returns the
// registries indexed by rank.
func runRegistries(t *testing.T, size int, feed func(rank int, reg *Registry)) []*Registry {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ranks := comm.NewGroup(size)
	registries := make([]*Registry, size)
	for r := range registries {
		registries[r] = New(ranks[r], zap.NewNop())
	}

	var wg sync.WaitGroup
	errs := make(chan error, size)
	for r := 0; r < size; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			reg := registries[r]
			reg.Initialize("testapp", "testrun")
			feed(r, reg)
			errs <- reg.Finalize(ctx)
		}(r)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	return registries
}

func TestCollectionRoundTrip(t *testing.T) {
	longName := strings.Repeat("x", 254)
	durations := []time.Duration{10 * time.Millisecond, 50 * time.Millisecond, 30 * time.Millisecond}

	registries := runRegistries(t, 3, func(rank int, reg *Registry) {
		reg.Put(event.Occurrence{
			Name:     "compute",
			Duration: durations[rank],
			Data:     []int64{int64(rank), int64(rank) * 10},
			StateChanges: []event.StateChange{
				{State: "running", Timestamp: event.Ticks() + time.Millisecond},
				{State: "done", Timestamp: event.Ticks() + 2*time.Millisecond},
			},
		})
		if rank == 1 {
			reg.Put(event.Occurrence{Name: longName, Duration: 5 * time.Millisecond})
		}
	})

	coordinator := registries[0]
	global := coordinator.Global()
	require.Len(t, global, 3)

	// Workers hold no global data.
	assert.Empty(t, registries[1].Global())
	assert.Empty(t, registries[2].Global())

	// The reconstructed data matches each sender's normalized local data
	// field for field.
	for rank, reg := range registries {
		local := reg.Local()
		got := global[rank]
		assert.True(t, local.InitializedAt().Equal(got.InitializedAt()), "rank %d initializedAt", rank)
		assert.True(t, local.FinalizedAt().Equal(got.FinalizedAt()), "rank %d finalizedAt", rank)
		require.Equal(t, local.Names(), got.Names(), "rank %d event names", rank)
		for _, name := range local.Names() {
			want, _ := local.Event(name)
			ed, ok := got.Event(name)
			require.True(t, ok)
			assert.Equal(t, rank, ed.Rank())
			assert.Equal(t, want.Count(), ed.Count())
			assert.Equal(t, want.Total(), ed.Total())
			assert.Equal(t, want.Max(), ed.Max())
			assert.Equal(t, want.Min(), ed.Min())
			assert.Equal(t, want.Data(), ed.Data())
			assert.Equal(t, want.StateChanges(), ed.StateChanges())
		}
	}
}

func TestCollectionGlobalStats(t *testing.T) {
	durations := []time.Duration{10 * time.Millisecond, 50 * time.Millisecond, 30 * time.Millisecond}

	registries := runRegistries(t, 3, func(rank int, reg *Registry) {
		reg.Put(event.Occurrence{Name: "compute", Duration: durations[rank]})
	})

	stats := registries[0].GlobalStats()
	require.Contains(t, stats, "compute")
	st := stats["compute"]
	assert.Equal(t, 50*time.Millisecond, st.Max)
	assert.Equal(t, 1, st.MaxRank)
	assert.Equal(t, 10*time.Millisecond, st.Min)
	assert.Equal(t, 0, st.MinRank)
	assert.InDelta(t, 0.2, st.MinMaxRatio(), 1e-9)
}

func TestCollectionEmptySamplesAndStateChanges(t *testing.T) {
	registries := runRegistries(t, 2, func(rank int, reg *Registry) {
		reg.Put(event.Occurrence{Name: "bare", Duration: time.Millisecond})
	})

	global := registries[0].Global()
	require.Len(t, global, 2)
	for rank, rd := range global {
		ed, ok := rd.Event("bare")
		require.True(t, ok, "rank %d", rank)
		assert.Empty(t, ed.Data())
		assert.Empty(t, ed.StateChanges())
	}
}

func TestCollectionWithNoEvents(t *testing.T) {
	registries := runRegistries(t, 2, func(rank int, reg *Registry) {})

	global := registries[0].Global()
	require.Len(t, global, 2)
	for _, rd := range global {
		assert.Equal(t, 0, rd.Len())
	}
}

func TestFinalizeWithoutInitialize(t *testing.T) {
	ranks := comm.NewGroup(1)
	reg := New(ranks[0], zap.NewNop())
	err := reg.Finalize(context.Background())
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestDurationIsFixedAfterFinalize(t *testing.T) {
	registries := runRegistries(t, 1, func(rank int, reg *Registry) {
		reg.Put(event.Occurrence{Name: "compute", Duration: time.Millisecond})
	})

	reg := registries[0]
	d := reg.Duration()
	time.Sleep(2 * time.Millisecond)
	assert.Equal(t, d, reg.Duration())
	assert.False(t, reg.Timestamp().IsZero())
}
