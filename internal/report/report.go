// Package report renders the collected timing data: the per-rank summary
// table, the cross-rank comparison table, and the structured JSON run log.
package report

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/cheynewallace/tabby"

	"github.com/tracefunnel/tracefunnel/internal/event"
)

// timestampFormat is local time with millisecond precision, e.g.
// "2019-01-10T18:30:46.834".
const timestampFormat = "2006-01-02T15:04:05.000"

// FormatTimestamp renders a wall-clock instant for the run log.
func FormatTimestamp(t time.Time) string {
	return t.Local().Format(timestampFormat)
}

// LogFileName names the run log after the application, falling back to a
// default when no name was given.
func LogFileName(applicationName string) string {
	if applicationName == "" {
		return "Events.json"
	}
	return applicationName + "-events.json"
}

// WriteSummary prints the coordinator's own event table: one row per event
// with count, total/max/min/avg durations in ms, and the share of the run
// each event accounts for.
func WriteSummary(w io.Writer, local *event.RankData, size int) error {
	runDuration := local.Duration()
	durationMs := float64(runDuration.Milliseconds())

	fmt.Fprintf(w, "Run finished at %s\n", local.FinalizedAt().Local().Format(time.ANSIC))
	fmt.Fprintf(w, "Global runtime       = %.0fms / %.3fs\n", durationMs, runDuration.Seconds())
	fmt.Fprintf(w, "Number of processors = %d\n", size)
	fmt.Fprintf(w, "# Rank: %d\n\n", local.Rank())

	t := tabby.NewCustom(tabwriter.NewWriter(w, 0, 0, 2, ' ', 0))
	t.AddHeader("Event", "Count", "Total[ms]", "Max[ms]", "Min[ms]", "Avg[ms]", "Time Ratio")
	for _, name := range local.Names() {
		ed, _ := local.Event(name)
		ratio := 0.0
		if durationMs > 0 {
			ratio = float64(ed.Total().Milliseconds()) / durationMs
		}
		t.AddLine(name, ed.Count(), ed.Total().Milliseconds(), ed.Max().Milliseconds(),
			ed.Min().Milliseconds(), ed.Avg().Milliseconds(), fmt.Sprintf("%.3f", ratio))
	}
	t.Print()
	return nil
}

// WriteGlobalStats prints the cross-rank comparison: per event, the extremal
// durations, the ranks that produced them, and the min/max ratio.
func WriteGlobalStats(w io.Writer, stats map[string]event.GlobalEventStats) error {
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)

	t := tabby.NewCustom(tabwriter.NewWriter(w, 0, 0, 2, ' ', 0))
	t.AddHeader("Name", "Max[ms]", "MaxOnRank", "Min[ms]", "MinOnRank", "Min/Max")
	for _, name := range names {
		st := stats[name]
		t.AddLine(name, st.Max.Milliseconds(), st.MaxRank, st.Min.Milliseconds(),
			st.MinRank, fmt.Sprintf("%.3f", st.MinMaxRatio()))
	}
	t.Print()
	return nil
}
