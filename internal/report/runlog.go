package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/tracefunnel/tracefunnel/internal/event"
)

// RunLog is the persisted artifact of one run: the run name, the
// first-initialized and last-finalized instants across all ranks, and one
// entry per rank.
type RunLog struct {
	Name        string    `json:"Name"`
	Initialized string    `json:"Initialized"`
	Finalized   string    `json:"Finalized"`
	Ranks       []RankLog `json:"Ranks"`
}

type RankLog struct {
	Initialized  string               `json:"Initialized"`
	Finalized    string               `json:"Finalized"`
	Timings      map[string]TimingLog `json:"Timings"`
	StateChanges []StateChangeLog     `json:"StateChanges"`
}

type TimingLog struct {
	Count     int64   `json:"Count"`
	Total     int64   `json:"Total"`
	Max       int64   `json:"Max"`
	Min       int64   `json:"Min"`
	TimeRatio float64 `json:"TimeRatio"`
	Data      []int64 `json:"Data"`
}

// StateChangeLog is one labeled instant, with its timestamp as milliseconds
// since the run's shared origin.
type StateChangeLog struct {
	Name      string `json:"Name"`
	State     string `json:"State"`
	Timestamp int64  `json:"Timestamp"`
}

// BuildRunLog assembles the run log from the collected per-rank data.
func BuildRunLog(runName string, ranks []*event.RankData) RunLog {
	log := RunLog{Name: runName}
	if len(ranks) == 0 {
		return log
	}

	first, last := ranks[0].InitializedAt(), ranks[0].FinalizedAt()
	for _, rd := range ranks[1:] {
		if rd.InitializedAt().Before(first) {
			first = rd.InitializedAt()
		}
		if rd.FinalizedAt().After(last) {
			last = rd.FinalizedAt()
		}
	}
	log.Initialized = FormatTimestamp(first)
	log.Finalized = FormatTimestamp(last)

	for _, rd := range ranks {
		rankLog := RankLog{
			Initialized:  FormatTimestamp(rd.InitializedAt()),
			Finalized:    FormatTimestamp(rd.FinalizedAt()),
			Timings:      make(map[string]TimingLog, rd.Len()),
			StateChanges: []StateChangeLog{},
		}
		durationMs := float64(rd.Duration().Milliseconds())
		for _, name := range rd.Names() {
			ed, _ := rd.Event(name)
			ratio := 0.0
			if durationMs > 0 {
				ratio = float64(ed.Total().Milliseconds()) / durationMs
			}
			data := ed.Data()
			if data == nil {
				data = []int64{}
			}
			rankLog.Timings[name] = TimingLog{
				Count:     ed.Count(),
				Total:     ed.Total().Milliseconds(),
				Max:       ed.Max().Milliseconds(),
				Min:       ed.Min().Milliseconds(),
				TimeRatio: ratio,
				Data:      data,
			}
			for _, sc := range ed.StateChanges() {
				rankLog.StateChanges = append(rankLog.StateChanges, StateChangeLog{
					Name:      name,
					State:     sc.State,
					Timestamp: sc.Timestamp.Milliseconds(),
				})
			}
		}
		log.Ranks = append(log.Ranks, rankLog)
	}
	return log
}

// WriteRunLog writes the run log as indented JSON.
func WriteRunLog(w io.Writer, log RunLog) error {
	buf, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncodingRunLog, err)
	}
	buf = append(buf, '\n')
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("%w: %w", ErrWritingRunLog, err)
	}
	return nil
}

// WriteRunLogFile writes the run log into dir under the application-derived
// file name and returns the path.
func WriteRunLogFile(dir, applicationName string, log RunLog) (string, error) {
	path := filepath.Join(dir, LogFileName(applicationName))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrWritingRunLog, err)
	}
	defer f.Close()
	if err := WriteRunLog(f, log); err != nil {
		return "", err
	}
	return path, nil
}
