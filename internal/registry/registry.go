// Package registry orchestrates the lifecycle of one rank's timing data:
// initialize, accumulate, then finalize, which normalizes clocks across the
// group and funnels every rank's data to the coordinator. A Registry is an
// explicitly constructed object handed to its collaborators; tests get a
// fresh instance instead of resetting shared state.
package registry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tracefunnel/tracefunnel/internal/comm"
	"github.com/tracefunnel/tracefunnel/internal/event"
)

// Coordinator is the rank that collects everyone's data and owns reporting.
const Coordinator = 0

// Registry owns the local rank snapshot and, on the coordinator after
// Finalize, the collected data of the whole group.
type Registry struct {
	comm   comm.Communicator
	logger *zap.Logger

	applicationName string
	runName         string

	local  *event.RankData
	global []*event.RankData

	initialized bool
	timestamp   time.Time
}

func New(c comm.Communicator, logger *zap.Logger) *Registry {
	return &Registry{
		comm:   c,
		logger: logger.Named("registry"),
		local:  event.NewRankData(c.Rank()),
	}
}

// Initialize stamps the start of the rank's active window. applicationName
// names the log file, runName is recorded in the run log header.
func (r *Registry) Initialize(applicationName, runName string) {
	r.applicationName = applicationName
	r.runName = runName
	r.local.Initialize()
	r.initialized = true
	r.logger.Info("Registry initialized",
		zap.Int("rank", r.comm.Rank()),
		zap.Int("size", r.comm.Size()),
		zap.String("application", applicationName),
		zap.String("run", runName),
	)
}

// Put merges one completed occurrence into the local snapshot.
func (r *Registry) Put(occ event.Occurrence) {
	r.local.Put(occ)
	occurrencesMerged.Inc()
}

// Finalize closes the active window, re-bases all state-change timestamps
// onto the group-wide origin, and runs the one-shot collection. After it
// returns on the coordinator, Global, GlobalStats and the run duration are
// valid. A failed collection aborts with an error so no partial report is
// mistaken for a complete one.
func (r *Registry) Finalize(ctx context.Context) error {
	r.local.Finalize()
	r.timestamp = time.Now()

	if !r.initialized {
		return ErrNotInitialized
	}
	r.initialized = false

	if err := r.normalize(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrNormalizeFailed, err)
	}
	if err := r.collect(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrCollectFailed, err)
	}
	r.logger.Info("Registry finalized", zap.Duration("run_duration", r.local.Duration()))
	return nil
}

// normalize agrees on the earliest initialization instant across all ranks
// and shifts this rank's state-change timestamps onto that origin.
func (r *Registry) normalize(ctx context.Context) error {
	minNanos, err := r.comm.AllreduceMinInt64(ctx, r.local.InitializedAt().UnixNano())
	if err != nil {
		return err
	}
	origin := time.Unix(0, minNanos)
	r.logger.Debug("Normalizing state-change timestamps",
		zap.Time("origin", origin),
		zap.Duration("delta", r.local.InitializedAt().Sub(origin)),
	)
	return r.local.NormalizeTo(origin)
}

// Local returns this rank's snapshot.
func (r *Registry) Local() *event.RankData { return r.local }

// Global returns the collected per-rank data, indexed by rank. Populated on
// the coordinator once Finalize succeeds; empty elsewhere.
func (r *Registry) Global() []*event.RankData { return r.global }

// GlobalStats derives the cross-rank extremes from the collected data.
func (r *Registry) GlobalStats() map[string]event.GlobalEventStats {
	return event.GlobalStats(r.global)
}

// Timestamp is the wall-clock instant the run finished.
func (r *Registry) Timestamp() time.Time { return r.timestamp }

// Duration of the run: live while running, fixed after Finalize.
func (r *Registry) Duration() time.Duration { return r.local.Duration() }

func (r *Registry) ApplicationName() string { return r.applicationName }

func (r *Registry) RunName() string { return r.runName }
