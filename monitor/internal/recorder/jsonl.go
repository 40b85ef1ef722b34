package recorder

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Krimson/ctg-stream/monitor/internal/pipeline"
	"go.uber.org/zap"
)

// Line строка журнала снимков
type Line struct {
	RecordedAt time.Time         `json:"recorded_at"`
	Snapshot   pipeline.Snapshot `json:"snapshot"`
}

// Stats статистика записи
type Stats struct {
	TotalLines  int64     `json:"total_lines"`
	TotalBytes  int64     `json:"total_bytes"`
	LastWrite   time.Time `json:"last_write"`
	ErrorsCount int64     `json:"errors_count"`
}

// JSONLWriter пишет снимки всех сессий в JSONL, по строке на тик.
// Полный журнал уведомлений не пишется, в строке только новые.
type JSONLWriter struct {
	mu        sync.Mutex
	writer    *bufio.Writer
	closer    io.Closer
	autoFlush bool
	stats     Stats
	logger    *zap.Logger
}

// Open открывает файл на дозапись, создавая каталог при необходимости
func Open(path string, autoFlush bool, logger *zap.Logger) (*JSONLWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	w := New(file, autoFlush, logger)
	w.closer = file
	return w, nil
}

// New пишет в произвольный writer
func New(w io.Writer, autoFlush bool, logger *zap.Logger) *JSONLWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JSONLWriter{writer: bufio.NewWriter(w), autoFlush: autoFlush, logger: logger}
}

// Publish реализует session.Publisher
func (j *JSONLWriter) Publish(snap pipeline.Snapshot) {
	if err := j.Write(snap); err != nil {
		j.logger.Warn("failed to record snapshot", zap.String("session_id", snap.SessionID), zap.Error(err))
	}
}

// Write записывает одну строку
func (j *JSONLWriter) Write(snap pipeline.Snapshot) error {
	snap.Notifications = nil
	data, err := json.Marshal(Line{RecordedAt: time.Now().UTC(), Snapshot: snap})
	if err != nil {
		j.mu.Lock()
		j.stats.ErrorsCount++
		j.mu.Unlock()
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	n, err := j.writer.Write(append(data, '\n'))
	if err == nil && j.autoFlush {
		err = j.writer.Flush()
	}
	if err != nil {
		j.stats.ErrorsCount++
		return fmt.Errorf("failed to write line: %w", err)
	}

	j.stats.TotalLines++
	j.stats.TotalBytes += int64(n)
	j.stats.LastWrite = time.Now()
	return nil
}

// Flush сбрасывает буфер
func (j *JSONLWriter) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.writer.Flush()
}

// Stats копия статистики
func (j *JSONLWriter) Stats() Stats {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.stats
}

// Close сбрасывает буфер и закрывает файл
func (j *JSONLWriter) Close() error {
	if err := j.Flush(); err != nil {
		return err
	}
	if j.closer != nil {
		return j.closer.Close()
	}
	return nil
}

// ReadAll читает журнал обратно
func ReadAll(r io.Reader) ([]Line, error) {
	var lines []Line
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for n := 1; scanner.Scan(); n++ {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var line Line
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}
