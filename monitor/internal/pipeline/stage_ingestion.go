package pipeline

import "github.com/Krimson/ctg-stream/monitor/pkg/mathutil"

// IngestionStage усредняет измерения последней секунды и пишет их в кольцевые буферы
type IngestionStage struct{}

func (IngestionStage) Name() string { return "ingestion" }

func (IngestionStage) Tick(st *State) error {
	samples := st.windowAfter(float64(st.Now - 1))

	fhr := mathutil.Mean(fhrValues(samples))
	uc := mathutil.Mean(ucValues(samples))

	st.SecFHR.Push(SecondValue{Second: st.Now, Value: fhr})
	st.SecUC.Push(SecondValue{Second: st.Now, Value: uc})

	st.Snap.CurrentFHR = floatPtr(mathutil.Round(fhr, 2))
	st.Snap.CurrentUterus = floatPtr(mathutil.Round(uc, 2))
	return nil
}
