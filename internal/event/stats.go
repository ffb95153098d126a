package event

import "time"

// GlobalEventStats holds the cross-rank extremes for one event name and the
// ranks that produced them. Purely derived; recomputed on demand.
type GlobalEventStats struct {
	Max     time.Duration
	MaxRank int
	Min     time.Duration
	MinRank int
}

// GlobalStats scans the collected per-rank data and reports, for every event
// name observed anywhere, the maximum and minimum duration together with the
// owning ranks. Ranks are visited in index order and comparisons are strict,
// so ties resolve to the first rank encountered.
func GlobalStats(ranks []*RankData) map[string]GlobalEventStats {
	stats := make(map[string]GlobalEventStats)
	for rank, rd := range ranks {
		for _, name := range rd.Names() {
			ed, _ := rd.Event(name)
			st, ok := stats[name]
			if !ok {
				st = GlobalEventStats{Max: sentinelMax, Min: sentinelMin}
			}
			if ed.Max() > st.Max {
				st.Max = ed.Max()
				st.MaxRank = rank
			}
			if ed.Min() < st.Min {
				st.Min = ed.Min()
				st.MinRank = rank
			}
			stats[name] = st
		}
	}
	return stats
}

// MinMaxRatio is min/max for one event's global stats, with a max of zero
// treated as "no data" and reported as zero instead of dividing.
func (s GlobalEventStats) MinMaxRatio() float64 {
	if s.Max == 0 {
		return 0
	}
	return float64(s.Min) / float64(s.Max)
}
