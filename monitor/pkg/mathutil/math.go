package mathutil

import (
	"math"
	"sort"
)

// SafeFloat заменяет NaN и Inf нулем
func SafeFloat(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0.0
	}
	return v
}

// Round округляет значение до заданного числа знаков после запятой
func Round(v float64, digits int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	p := math.Pow(10, float64(digits))
	return math.Round(v*p) / p
}

// DropNaN возвращает копию среза без NaN значений
func DropNaN(data []float64) []float64 {
	out := make([]float64, 0, len(data))
	for _, v := range data {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// Percentile вычисляет процентиль массива с линейной интерполяцией
func Percentile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return math.NaN()
	}

	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	return percentileSorted(sorted, p)
}

func percentileSorted(sorted []float64, p float64) float64 {
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	n := float64(len(sorted) - 1)
	index := (p / 100.0) * n

	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))

	if lower == upper {
		return sorted[lower]
	}

	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// Median вычисляет медиану
func Median(data []float64) float64 {
	return Percentile(data, 50)
}

// Mean вычисляет среднее значение
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return math.NaN()
	}

	sum := 0.0
	for _, v := range data {
		sum += v
	}
	return sum / float64(len(data))
}

// Std вычисляет выборочное стандартное отклонение (n-1)
func Std(data []float64) float64 {
	if len(data) <= 1 {
		return math.NaN()
	}

	mean := Mean(data)
	sumSquares := 0.0

	for _, v := range data {
		diff := v - mean
		sumSquares += diff * diff
	}

	return math.Sqrt(sumSquares / float64(len(data)-1))
}

// PopStd вычисляет стандартное отклонение генеральной совокупности (n)
func PopStd(data []float64) float64 {
	if len(data) == 0 {
		return math.NaN()
	}

	mean := Mean(data)
	sumSquares := 0.0
	for _, v := range data {
		diff := v - mean
		sumSquares += diff * diff
	}
	return math.Sqrt(sumSquares / float64(len(data)))
}

// Min находит минимальное значение
func Min(data []float64) float64 {
	if len(data) == 0 {
		return math.NaN()
	}

	min := data[0]
	for _, v := range data[1:] {
		if v < min {
			min = v
		}
	}
	return min
}

// Max находит максимальное значение
func Max(data []float64) float64 {
	if len(data) == 0 {
		return math.NaN()
	}

	max := data[0]
	for _, v := range data[1:] {
		if v > max {
			max = v
		}
	}
	return max
}

// IQR вычисляет межквартильный размах
func IQR(data []float64) float64 {
	if len(data) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)
	return percentileSorted(sorted, 75) - percentileSorted(sorted, 25)
}

// Abs возвращает абсолютное значение
func Abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// Diff вычисляет разности соседних элементов
func Diff(data []float64) []float64 {
	if len(data) <= 1 {
		return []float64{}
	}

	result := make([]float64, len(data)-1)
	for i := 1; i < len(data); i++ {
		result[i-1] = data[i] - data[i-1]
	}
	return result
}

// SplitMeans делит срез на parts почти равных смежных частей
// (первые len%parts частей длиннее на один элемент) и возвращает их средние.
func SplitMeans(data []float64, parts int) []float64 {
	if parts <= 0 || len(data) == 0 {
		return nil
	}
	if parts > len(data) {
		parts = len(data)
	}

	base := len(data) / parts
	extra := len(data) % parts

	means := make([]float64, 0, parts)
	start := 0
	for i := 0; i < parts; i++ {
		size := base
		if i < extra {
			size++
		}
		means = append(means, Mean(data[start:start+size]))
		start += size
	}
	return means
}

// MeanAbsDiff вычисляет среднее абсолютных разностей соседних элементов
func MeanAbsDiff(data []float64) float64 {
	d := Diff(data)
	if len(d) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range d {
		sum += Abs(v)
	}
	return sum / float64(len(d))
}

// RollingMedian вычисляет скользящую медиану по окну window.
// centered=false использует хвостовое окно [i-window+1, i], иначе окно центрируется на i.
// Неполные окна на краях допускаются.
func RollingMedian(data []float64, window int, centered bool) []float64 {
	out := make([]float64, len(data))
	if window <= 0 {
		copy(out, data)
		return out
	}

	for i := range data {
		var lo, hi int
		if centered {
			lo = i - window/2
			hi = lo + window
		} else {
			lo = i - window + 1
			hi = i + 1
		}
		if lo < 0 {
			lo = 0
		}
		if hi > len(data) {
			hi = len(data)
		}
		out[i] = Median(DropNaN(data[lo:hi]))
	}
	return out
}

// ZeroCrossings считает смены знака ряда data - ref
func ZeroCrossings(data, ref []float64) int {
	n := len(data)
	if len(ref) < n {
		n = len(ref)
	}

	crossings := 0
	prev := 0.0
	for i := 0; i < n; i++ {
		diff := data[i] - ref[i]
		sign := 0.0
		switch {
		case diff > 0:
			sign = 1
		case diff < 0:
			sign = -1
		}
		if i > 0 && sign != prev {
			crossings++
		}
		prev = sign
	}
	return crossings
}

// Slope возвращает наклон линейной регрессии data по индексу
func Slope(data []float64) float64 {
	n := float64(len(data))
	if len(data) < 2 {
		return 0
	}

	var sx, sy, sxx, sxy float64
	for i, y := range data {
		x := float64(i)
		sx += x
		sy += y
		sxx += x * x
		sxy += x * y
	}

	den := n*sxx - sx*sx
	if den == 0 {
		return 0
	}
	return (n*sxy - sx*sy) / den
}

// Skewness вычисляет смещенный коэффициент асимметрии
func Skewness(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	mean := Mean(data)
	var m2, m3 float64
	for _, v := range data {
		d := v - mean
		m2 += d * d
		m3 += d * d * d
	}
	n := float64(len(data))
	m2 /= n
	m3 /= n
	if m2 == 0 {
		return 0
	}
	return m3 / math.Pow(m2, 1.5)
}

// Kurtosis вычисляет эксцесс (Фишер, смещенная оценка)
func Kurtosis(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	mean := Mean(data)
	var m2, m4 float64
	for _, v := range data {
		d := v - mean
		m2 += d * d
		m4 += d * d * d * d
	}
	n := float64(len(data))
	m2 /= n
	m4 /= n
	if m2 == 0 {
		return 0
	}
	return m4/(m2*m2) - 3
}

// Correlation вычисляет коэффициент корреляции Пирсона
func Correlation(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n < 2 {
		return math.NaN()
	}

	ma := Mean(a[:n])
	mb := Mean(b[:n])
	var cov, va, vb float64
	for i := 0; i < n; i++ {
		da := a[i] - ma
		db := b[i] - mb
		cov += da * db
		va += da * da
		vb += db * db
	}
	if va == 0 || vb == 0 {
		return math.NaN()
	}
	return cov / math.Sqrt(va*vb)
}

// FindPeaks находит локальные максимумы не ниже height, отстоящие
// друг от друга минимум на distance отсчетов (приоритет у более высоких).
func FindPeaks(data []float64, height float64, distance int) []int {
	candidates := make([]int, 0)
	for i := 1; i < len(data)-1; i++ {
		if data[i] > data[i-1] && data[i] >= data[i+1] && data[i] >= height {
			candidates = append(candidates, i)
		}
	}
	if distance <= 1 || len(candidates) < 2 {
		return candidates
	}

	order := make([]int, len(candidates))
	copy(order, candidates)
	sort.SliceStable(order, func(i, j int) bool {
		return data[order[i]] > data[order[j]]
	})

	taken := make(map[int]bool, len(order))
	peaks := make([]int, 0, len(order))
	for _, idx := range order {
		ok := true
		for _, p := range peaks {
			if idx-p < distance && p-idx < distance {
				ok = false
				break
			}
		}
		if ok {
			peaks = append(peaks, idx)
			taken[idx] = true
		}
	}

	result := make([]int, 0, len(peaks))
	for _, idx := range candidates {
		if taken[idx] {
			result = append(result, idx)
		}
	}
	return result
}
