package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/Krimson/ctg-stream/monitor/internal/pipeline"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

var ErrMalformed = errors.New("malformed telemetry message")

// Поля сообщений
const (
	FieldSessionID   = "session_id"
	FieldTimeSec     = "time_sec"
	FieldFHR         = "fhr"
	FieldUC          = "uc"
	FieldReceivedCnt = "received_cnt"
)

// Sample измерение с идентификатором сессии
type Sample struct {
	SessionID string
	pipeline.Sample
}

// ToStruct кодирует измерение; отсутствующий канал не передается
func (s Sample) ToStruct() *structpb.Struct {
	fields := map[string]*structpb.Value{
		FieldSessionID: structpb.NewStringValue(s.SessionID),
		FieldTimeSec:   structpb.NewNumberValue(s.TimeSec),
	}
	if !math.IsNaN(s.FHR) {
		fields[FieldFHR] = structpb.NewNumberValue(s.FHR)
	}
	if !math.IsNaN(s.UC) {
		fields[FieldUC] = structpb.NewNumberValue(s.UC)
	}
	return &structpb.Struct{Fields: fields}
}

// SampleFromStruct декодирует измерение. Канал без значения или null читается как NaN.
func SampleFromStruct(st *structpb.Struct) (Sample, error) {
	sessionID := st.GetFields()[FieldSessionID].GetStringValue()
	if sessionID == "" {
		return Sample{}, fmt.Errorf("%w: empty %s", ErrMalformed, FieldSessionID)
	}

	t, ok := number(st, FieldTimeSec)
	if !ok {
		return Sample{}, fmt.Errorf("%w: missing %s", ErrMalformed, FieldTimeSec)
	}

	s := Sample{SessionID: sessionID}
	s.TimeSec = t
	s.FHR = math.NaN()
	s.UC = math.NaN()
	if v, ok := number(st, FieldFHR); ok {
		s.FHR = v
	}
	if v, ok := number(st, FieldUC); ok {
		s.UC = v
	}
	return s, nil
}

func number(st *structpb.Struct, key string) (float64, bool) {
	v, ok := st.GetFields()[key]
	if !ok {
		return 0, false
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, false
	}
	return n.NumberValue, true
}

// Ack подтверждение приема измерений сессии
type Ack struct {
	SessionID   string
	ReceivedCnt uint64
}

func (a Ack) ToStruct() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldSessionID:   structpb.NewStringValue(a.SessionID),
		FieldReceivedCnt: structpb.NewNumberValue(float64(a.ReceivedCnt)),
	}}
}

func AckFromStruct(st *structpb.Struct) Ack {
	cnt, _ := number(st, FieldReceivedCnt)
	return Ack{
		SessionID:   st.GetFields()[FieldSessionID].GetStringValue(),
		ReceivedCnt: uint64(cnt),
	}
}

// EndSessionRequest запрос завершения сессии
func EndSessionRequest(sessionID string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldSessionID: structpb.NewStringValue(sessionID),
	}}
}

// SessionIDFrom извлекает идентификатор сессии из запроса
func SessionIDFrom(st *structpb.Struct) (string, error) {
	id := st.GetFields()[FieldSessionID].GetStringValue()
	if id == "" {
		return "", fmt.Errorf("%w: empty %s", ErrMalformed, FieldSessionID)
	}
	return id, nil
}

// SummaryToStruct кодирует итоги сессии через их JSON представление
func SummaryToStruct(sum pipeline.Summary) (*structpb.Struct, error) {
	data, err := json.Marshal(sum)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal summary: %w", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal summary: %w", err)
	}
	return structpb.NewStruct(m)
}

// SummaryFromStruct декодирует итоги сессии
func SummaryFromStruct(st *structpb.Struct) (pipeline.Summary, error) {
	var sum pipeline.Summary
	data, err := protojson.Marshal(st)
	if err != nil {
		return sum, fmt.Errorf("failed to marshal struct: %w", err)
	}
	if err := json.Unmarshal(data, &sum); err != nil {
		return sum, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return sum, nil
}
