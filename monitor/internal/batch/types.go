package batch

import (
	"context"
	"math"

	"github.com/Krimson/ctg-stream/monitor/internal/pipeline"
)

// Batch собранные измерения одной сессии
type Batch struct {
	SessionID string            // Идентификатор сессии
	T0MS      int64             // Время первого измерения в батче
	T1MS      int64             // Время последнего измерения в батче
	Samples   []pipeline.Sample // Измерения по порядку поступления
}

// Sink интерфейс для обработки готовых батчей
type Sink interface {
	Consume(ctx context.Context, b Batch) error
}

// currentBatch - внутренняя структура для отслеживания текущего состояния батча
type currentBatch struct {
	Batch
	lastAddedMS int64 // Время добавления последнего измерения (часы сервера)
}

func newCurrentBatch(sessionID string) *currentBatch {
	return &currentBatch{
		Batch: Batch{
			SessionID: sessionID,
			Samples:   make([]pipeline.Sample, 0),
		},
	}
}

// addSample добавляет измерение и обновляет временные границы
func (cb *currentBatch) addSample(s pipeline.Sample, tsMS, nowMS int64) {
	if len(cb.Samples) == 0 {
		cb.T0MS = tsMS
		cb.T1MS = tsMS
	} else {
		if tsMS < cb.T0MS {
			cb.T0MS = tsMS
		}
		if tsMS > cb.T1MS {
			cb.T1MS = tsMS
		}
	}

	cb.Samples = append(cb.Samples, s)
	cb.lastAddedMS = nowMS
}

func (cb *currentBatch) shouldFlushBySize(maxSamples int) bool {
	return len(cb.Samples) >= maxSamples
}

// clone создает копию батча для отправки в sink
func (cb *currentBatch) clone() Batch {
	samples := make([]pipeline.Sample, len(cb.Samples))
	copy(samples, cb.Samples)

	return Batch{
		SessionID: cb.SessionID,
		T0MS:      cb.T0MS,
		T1MS:      cb.T1MS,
		Samples:   samples,
	}
}

// reset очищает батч для переиспользования
func (cb *currentBatch) reset() {
	cb.T0MS = 0
	cb.T1MS = 0
	cb.Samples = cb.Samples[:0]
	cb.lastAddedMS = 0
}

func timestampMS(s pipeline.Sample) int64 {
	return int64(math.Round(s.TimeSec * 1000))
}
