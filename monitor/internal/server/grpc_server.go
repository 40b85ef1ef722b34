package server

import (
	"context"
	"errors"
	"io"

	"github.com/Krimson/ctg-stream/monitor/internal/config"
	"github.com/Krimson/ctg-stream/monitor/internal/pipeline"
	"github.com/Krimson/ctg-stream/monitor/internal/session"
	"github.com/Krimson/ctg-stream/monitor/internal/telemetry"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// SampleSink принимает измерения сессий (batch.Batcher)
type SampleSink interface {
	Add(sessionID string, s pipeline.Sample) error
	FlushSession(sessionID string)
}

// SessionStopper завершает сессию и возвращает итоги (session.Manager)
type SessionStopper interface {
	StopSession(ctx context.Context, sessionID string) (*pipeline.Summary, error)
}

// DataServer реализует telemetry.DataServiceServer
type DataServer struct {
	telemetry.UnimplementedDataServiceServer
	cfg      *config.Config
	batcher  SampleSink
	sessions SessionStopper
	logger   *zap.Logger
}

// NewDataServer создает новый экземпляр DataServer
func NewDataServer(cfg *config.Config, batcher SampleSink, sessions SessionStopper, logger *zap.Logger) *DataServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DataServer{
		cfg:      cfg,
		batcher:  batcher,
		sessions: sessions,
		logger:   logger,
	}
}

// PushSamples обрабатывает стрим измерений от клиента. Подтверждение отправляется
// каждые AckEveryN принятых измерений и в конце стрима.
func (s *DataServer) PushSamples(stream telemetry.DataService_PushSamplesServer) error {
	s.logger.Info("PushSamples stream started")

	var totalReceived uint64
	sessionCounters := make(map[string]uint64)
	ackEvery := uint64(s.cfg.AckEveryN)
	if ackEvery == 0 {
		ackEvery = 1
	}

	for {
		msg, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.Info("PushSamples stream finished normally", zap.Uint64("received", totalReceived))
				return s.sendFinalAcks(stream, sessionCounters)
			}
			if stream.Context().Err() != nil {
				s.logger.Info("PushSamples stream context cancelled")
				return stream.Context().Err()
			}
			s.logger.Error("Failed to receive sample", zap.Error(err))
			return err
		}

		sample, err := telemetry.SampleFromStruct(msg)
		if err != nil {
			// Не возвращаем ошибку, продолжаем обработку
			s.logger.Warn("Failed to decode sample", zap.Error(err))
			continue
		}

		if err := s.batcher.Add(sample.SessionID, sample.Sample); err != nil {
			s.logger.Warn("Failed to process sample", zap.String("session_id", sample.SessionID), zap.Error(err))
			continue
		}

		totalReceived++
		sessionCounters[sample.SessionID]++

		if totalReceived%ackEvery == 0 {
			ack := telemetry.Ack{SessionID: sample.SessionID, ReceivedCnt: sessionCounters[sample.SessionID]}
			if err := stream.Send(ack.ToStruct()); err != nil {
				s.logger.Error("Failed to send ack", zap.Error(err))
				return err
			}
			s.logger.Debug("Sent ack", zap.String("session_id", ack.SessionID), zap.Uint64("count", ack.ReceivedCnt))
		}
	}
}

func (s *DataServer) sendFinalAcks(stream telemetry.DataService_PushSamplesServer, counters map[string]uint64) error {
	for id, cnt := range counters {
		s.batcher.FlushSession(id)
		ack := telemetry.Ack{SessionID: id, ReceivedCnt: cnt}
		if err := stream.Send(ack.ToStruct()); err != nil {
			return err
		}
	}
	return nil
}

// EndSession сбрасывает накопленные измерения, финализирует сессию и возвращает итоги
func (s *DataServer) EndSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	sessionID, err := telemetry.SessionIDFrom(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	s.batcher.FlushSession(sessionID)

	summary, err := s.sessions.StopSession(ctx, sessionID)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrSessionNotFound):
			return nil, status.Error(codes.NotFound, err.Error())
		case errors.Is(err, session.ErrSessionNotActive):
			return nil, status.Error(codes.FailedPrecondition, err.Error())
		default:
			s.logger.Error("Failed to end session", zap.String("session_id", sessionID), zap.Error(err))
			return nil, status.Error(codes.Internal, "failed to end session")
		}
	}

	s.logger.Info("Session ended over gRPC", zap.String("session_id", sessionID), zap.Int("duration_sec", summary.DurationSec))
	return telemetry.SummaryToStruct(*summary)
}
