package pipeline

import (
	"math"

	"github.com/Krimson/ctg-stream/monitor/pkg/mathutil"
)

// CalculateSTV вычисляет кратковременную вариабельность: ряд делится на
// chunksPerMinute смежных интервалов на каждую полную минуту, STV равна среднему
// модулю разности средних соседних интервалов. NaN, если полной минуты нет.
func CalculateSTV(values []float64, perMinute, chunksPerMinute int) float64 {
	vals := mathutil.DropNaN(values)
	if perMinute <= 0 || chunksPerMinute <= 0 {
		return math.NaN()
	}
	minutes := len(vals) / perMinute
	if minutes <= 0 {
		return math.NaN()
	}

	means := mathutil.SplitMeans(vals, chunksPerMinute*minutes)
	if len(means) < 2 {
		return math.NaN()
	}
	return mathutil.MeanAbsDiff(means)
}

// RollingSTVMean среднее STV по всем полным окнам windowMin минут с шагом в минуту.
// NaN, если запись короче одного окна.
func RollingSTVMean(values []float64, perMinute, chunksPerMinute, windowMin int) float64 {
	vals := mathutil.DropNaN(values)
	win := perMinute * windowMin
	step := perMinute
	if win <= 0 || len(vals) < win {
		return math.NaN()
	}

	stvs := make([]float64, 0, (len(vals)-win)/step+1)
	for start := 0; start+win <= len(vals); start += step {
		stv := CalculateSTV(vals[start:start+win], perMinute, chunksPerMinute)
		if !math.IsNaN(stv) {
			stvs = append(stvs, stv)
		}
	}
	if len(stvs) == 0 {
		return math.NaN()
	}
	return mathutil.Mean(stvs)
}
