package main

import (
	"math/rand"
	"time"

	"github.com/tracefunnel/tracefunnel/internal/event"
	"github.com/tracefunnel/tracefunnel/internal/registry"
)

// runWorkload drives a small built-in workload so a deployment can be
// exercised end to end: a few named phases per iteration, each producing an
// occurrence with sample data and a state-change log.
func runWorkload(reg *registry.Registry, rank int) {
	rng := rand.New(rand.NewSource(int64(rank) + 1))
	phases := []string{"setup", "compute", "exchange"}

	for iter := 0; iter < 3; iter++ {
		for _, phase := range phases {
			start := event.Ticks()
			stateChanges := []event.StateChange{
				{State: "running", Timestamp: event.Ticks()},
			}
			time.Sleep(time.Duration(1+rng.Intn(5)) * time.Millisecond)
			stateChanges = append(stateChanges, event.StateChange{
				State: "done", Timestamp: event.Ticks(),
			})
			reg.Put(event.Occurrence{
				Name:         phase,
				Duration:     event.Ticks() - start,
				Data:         []int64{int64(iter), int64(rng.Intn(100))},
				StateChanges: stateChanges,
			})
		}
	}
}
