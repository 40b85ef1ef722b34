package recorder

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/Krimson/ctg-stream/monitor/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLWriter_WriteAndRead(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf, false, nil)

	fhr := 140.0
	w.Publish(pipeline.Snapshot{
		SessionID:        "s1",
		TimeSec:          1,
		CurrentFHR:       &fhr,
		Notifications:    map[int][]pipeline.Notification{1: {{Second: 1, Kind: pipeline.KindFIGO}}},
		NewNotifications: []pipeline.Notification{{Second: 1, Kind: pipeline.KindFIGO}},
	})
	require.NoError(t, w.Write(pipeline.Snapshot{SessionID: "s1", TimeSec: 2}))

	// Без autoFlush данные остаются в буфере
	assert.Zero(t, buf.Len())
	require.NoError(t, w.Flush())

	lines, err := ReadAll(&buf)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, 1, lines[0].Snapshot.TimeSec)
	assert.Nil(t, lines[0].Snapshot.Notifications)
	require.Len(t, lines[0].Snapshot.NewNotifications, 1)
	require.NotNil(t, lines[0].Snapshot.CurrentFHR)
	assert.Equal(t, 140.0, *lines[0].Snapshot.CurrentFHR)
	assert.Nil(t, lines[1].Snapshot.CurrentFHR)

	stats := w.Stats()
	assert.Equal(t, int64(2), stats.TotalLines)
	assert.Positive(t, stats.TotalBytes)
	assert.Zero(t, stats.ErrorsCount)
}

func TestOpen_AppendsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "snapshots.jsonl")

	for i := 1; i <= 2; i++ {
		w, err := Open(path, true, nil)
		require.NoError(t, err)
		require.NoError(t, w.Write(pipeline.Snapshot{SessionID: "s", TimeSec: i}))
		require.NoError(t, w.Close())
	}

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	lines, err := ReadAll(f)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, 2, lines[1].Snapshot.TimeSec)
}

func TestReadAll_Malformed(t *testing.T) {
	_, err := ReadAll(bytes.NewBufferString("{\"snapshot\":{}}\nnot json\n"))
	assert.Error(t, err)
}
