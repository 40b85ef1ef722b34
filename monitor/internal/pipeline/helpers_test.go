package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// secondSamples возвращает fs измерений с моментами в (sec-1, sec]
func secondSamples(sec, fs int, fhr, uc float64) []Sample {
	out := make([]Sample, 0, fs)
	for k := 1; k <= fs; k++ {
		out = append(out, Sample{
			TimeSec: float64(sec-1) + float64(k)/float64(fs),
			FHR:     fhr,
			UC:      uc,
		})
	}
	return out
}

// runTrace прогоняет ticks секунд, значения каналов задаются функциями секунды
func runTrace(t *testing.T, p *Pipeline, ticks int, fhr, uc func(sec int) float64) Snapshot {
	t.Helper()
	var snap Snapshot
	var err error
	for sec := 1; sec <= ticks; sec++ {
		snap, err = p.Tick(secondSamples(sec, p.cfg.FS, fhr(sec), uc(sec)))
		require.NoError(t, err)
	}
	return snap
}

func constant(v float64) func(int) float64 {
	return func(int) float64 { return v }
}

func countKind(snap Snapshot, kind NotificationKind) int {
	n := 0
	for _, list := range snap.Notifications {
		for _, note := range list {
			if note.Kind == kind {
				n++
			}
		}
	}
	return n
}
