package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracefunnel/tracefunnel/internal/event"
)

func buildRank(t *testing.T, rank int, init, fin time.Time) *event.RankData {
	t.Helper()
	rd := event.NewRankData(rank)
	rd.SetWindow(init, fin)
	rd.Add(event.Restore("compute", rank, 2,
		40*time.Millisecond, 30*time.Millisecond, 10*time.Millisecond,
		[]int64{1, 2},
		[]event.StateChange{
			{State: "running", Timestamp: 5 * time.Millisecond},
			{State: "done", Timestamp: 25 * time.Millisecond},
		},
	))
	return rd
}

func TestLogFileName(t *testing.T) {
	assert.Equal(t, "Events.json", LogFileName(""))
	assert.Equal(t, "solverA-events.json", LogFileName("solverA"))
}

func TestFormatTimestampMillisecondPrecision(t *testing.T) {
	ts := time.Date(2019, 1, 10, 18, 30, 46, 834_000_000, time.Local)
	assert.Equal(t, "2019-01-10T18:30:46.834", FormatTimestamp(ts))
}

func TestBuildRunLogSpansAllRanks(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.Local)
	ranks := []*event.RankData{
		buildRank(t, 0, base.Add(time.Second), base.Add(10*time.Second)),
		buildRank(t, 1, base, base.Add(12*time.Second)),
	}

	log := BuildRunLog("run1", ranks)

	assert.Equal(t, "run1", log.Name)
	assert.Equal(t, FormatTimestamp(base), log.Initialized)
	assert.Equal(t, FormatTimestamp(base.Add(12*time.Second)), log.Finalized)
	require.Len(t, log.Ranks, 2)

	timing := log.Ranks[0].Timings["compute"]
	assert.Equal(t, int64(2), timing.Count)
	assert.Equal(t, int64(40), timing.Total)
	assert.Equal(t, int64(30), timing.Max)
	assert.Equal(t, int64(10), timing.Min)
	assert.Equal(t, []int64{1, 2}, timing.Data)

	require.Len(t, log.Ranks[0].StateChanges, 2)
	assert.Equal(t, StateChangeLog{Name: "compute", State: "running", Timestamp: 5}, log.Ranks[0].StateChanges[0])
	assert.Equal(t, StateChangeLog{Name: "compute", State: "done", Timestamp: 25}, log.Ranks[0].StateChanges[1])
}

func TestBuildRunLogEmptyRankHasEmptyCollections(t *testing.T) {
	rd := event.NewRankData(0)
	rd.SetWindow(time.Now(), time.Now().Add(time.Second))

	log := BuildRunLog("run1", []*event.RankData{rd})
	require.Len(t, log.Ranks, 1)

	buf, err := json.Marshal(log.Ranks[0])
	require.NoError(t, err)
	assert.Contains(t, string(buf), `"Timings":{}`)
	assert.Contains(t, string(buf), `"StateChanges":[]`)
}

func TestWriteRunLogRoundTrips(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.Local)
	log := BuildRunLog("run1", []*event.RankData{
		buildRank(t, 0, base, base.Add(time.Second)),
	})

	var buf bytes.Buffer
	require.NoError(t, WriteRunLog(&buf, log))

	var decoded RunLog
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, log, decoded)
}

func TestWriteRunLogFile(t *testing.T) {
	dir := t.TempDir()
	log := RunLog{Name: "run1"}

	path, err := WriteRunLogFile(dir, "solverA", log)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "solverA-events.json"), path)

	buf, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(buf), `"Name": "run1"`)
}
