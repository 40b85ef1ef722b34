package csvreader

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Krimson/ctg-stream/monitor/internal/pipeline"
)

// Синонимы заголовков колонок
var (
	timeColumns = []string{"time_sec", "time", "t"}
	fhrColumns  = []string{"fhr", "bpm", "heart_rate"}
	ucColumns   = []string{"uc", "uterus", "toco"}
)

// DataPoint точка одноканальной записи
type DataPoint struct {
	TimeSec float64
	Value   float64
}

// ReadFile читает запись time_sec,fhr,uc из файла
func ReadFile(filename string) ([]pipeline.Sample, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file %s: %w", filename, err)
	}
	defer file.Close()

	samples, err := Read(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return samples, nil
}

// Read читает запись с заголовком. Колонки ищутся по имени; пустая ячейка
// или "nan" означает отсутствие значения канала.
func Read(r io.Reader) ([]pipeline.Sample, error) {
	records, err := readRecords(r)
	if err != nil {
		return nil, err
	}

	header := records[0]
	ti := columnIndex(header, timeColumns)
	fi := columnIndex(header, fhrColumns)
	ui := columnIndex(header, ucColumns)
	if ti < 0 || (fi < 0 && ui < 0) {
		return nil, fmt.Errorf("header must contain time_sec and fhr and/or uc columns, got %v", header)
	}

	samples := make([]pipeline.Sample, 0, len(records)-1)
	for i, record := range records[1:] { // Skip header
		line := i + 2
		t, err := parseCell(record, ti)
		if err != nil || math.IsNaN(t) {
			return nil, fmt.Errorf("invalid time at line %d: %v", line, err)
		}
		fhr, err := parseCell(record, fi)
		if err != nil {
			return nil, fmt.Errorf("invalid fhr at line %d: %w", line, err)
		}
		uc, err := parseCell(record, ui)
		if err != nil {
			return nil, fmt.Errorf("invalid uc at line %d: %w", line, err)
		}
		samples = append(samples, pipeline.Sample{TimeSec: t, FHR: fhr, UC: uc})
	}

	return samples, nil
}

// ReadSeries читает одноканальную запись time,value (отдельные файлы FHR и UC)
func ReadSeries(r io.Reader) ([]DataPoint, error) {
	records, err := readRecords(r)
	if err != nil {
		return nil, err
	}

	var dataPoints []DataPoint
	for i, record := range records[1:] {
		if len(record) < 2 {
			return nil, fmt.Errorf("invalid record at line %d: expected 2 columns", i+2)
		}
		timeSec, err := strconv.ParseFloat(strings.TrimSpace(record[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid time format at line %d: %w", i+2, err)
		}
		value, err := parseCell(record, 1)
		if err != nil {
			return nil, fmt.Errorf("invalid value format at line %d: %w", i+2, err)
		}
		dataPoints = append(dataPoints, DataPoint{TimeSec: timeSec, Value: value})
	}

	return dataPoints, nil
}

// Merge объединяет каналы FHR и UC по времени (с точностью до миллисекунды).
// Момент, присутствующий только в одном канале, дает измерение с NaN во втором.
func Merge(fhr, uc []DataPoint) []pipeline.Sample {
	byMS := make(map[int64]*pipeline.Sample, len(fhr))
	get := func(t float64) *pipeline.Sample {
		key := int64(math.Round(t * 1000))
		s, ok := byMS[key]
		if !ok {
			s = &pipeline.Sample{TimeSec: t, FHR: math.NaN(), UC: math.NaN()}
			byMS[key] = s
		}
		return s
	}
	for _, p := range fhr {
		get(p.TimeSec).FHR = p.Value
	}
	for _, p := range uc {
		get(p.TimeSec).UC = p.Value
	}

	out := make([]pipeline.Sample, 0, len(byMS))
	for _, s := range byMS {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TimeSec < out[j].TimeSec })
	return out
}

// Stream отправляет измерения в out в реальном времени относительно startTime
// с ускорением speed (1 - реальное время) и закрывает out
func Stream(ctx context.Context, samples []pipeline.Sample, startTime time.Time, speed float64, out chan<- pipeline.Sample) error {
	defer close(out)
	if speed <= 0 {
		speed = 1
	}

	for _, s := range samples {
		targetTime := startTime.Add(time.Duration(s.TimeSec / speed * float64(time.Second)))
		if wait := time.Until(targetTime); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		select {
		case out <- s:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// GroupBySecond раскладывает измерения по тикам: секунда k получает моменты из (k-1, k]
func GroupBySecond(samples []pipeline.Sample) map[int][]pipeline.Sample {
	out := make(map[int][]pipeline.Sample)
	for _, s := range samples {
		sec := int(math.Ceil(s.TimeSec))
		if sec < 1 {
			sec = 1
		}
		out[sec] = append(out[sec], s)
	}
	return out
}

func readRecords(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV data: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("CSV has no data records")
	}
	return records, nil
}

func columnIndex(header []string, names []string) int {
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		for _, name := range names {
			if h == name {
				return i
			}
		}
	}
	return -1
}

func parseCell(record []string, idx int) (float64, error) {
	if idx < 0 || idx >= len(record) {
		return math.NaN(), nil
	}
	cell := strings.TrimSpace(record[idx])
	if cell == "" || strings.EqualFold(cell, "nan") || strings.EqualFold(cell, "null") {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(cell, 64)
}
