package emulator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/Krimson/ctg-stream/monitor/internal/pipeline"
	"github.com/Krimson/ctg-stream/monitor/internal/telemetry"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client отправляет запись в DataService от имени одной сессии
type Client struct {
	client    telemetry.DataServiceClient
	conn      *grpc.ClientConn
	sessionID string
	logger    *zap.Logger

	acked atomic.Uint64
}

// NewClient подключается к серверу по адресу host:port
func NewClient(serverAddr, sessionID string, logger *zap.Logger) (*Client, error) {
	conn, err := grpc.NewClient(serverAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to gRPC server: %w", err)
	}
	c := NewClientFromConn(conn, sessionID, logger)
	c.conn = conn
	return c, nil
}

// NewClientFromConn использует готовое соединение; Close его не закрывает
func NewClientFromConn(cc grpc.ClientConnInterface, sessionID string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		client:    telemetry.NewDataServiceClient(cc),
		sessionID: sessionID,
		logger:    logger,
	}
}

// PushSamples передает измерения из канала до его закрытия и ждет
// итогового подтверждения. Возвращает число подтвержденных сервером измерений.
func (c *Client) PushSamples(ctx context.Context, samples <-chan pipeline.Sample) (uint64, error) {
	stream, err := c.client.PushSamples(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to create stream: %w", err)
	}

	recvErr := make(chan error, 1)
	go func() { recvErr <- c.receiveAcks(stream) }()

	sent := 0
	for s := range samples {
		msg := telemetry.Sample{SessionID: c.sessionID, Sample: s}
		if err := stream.Send(msg.ToStruct()); err != nil {
			// Причина обрыва приходит из Recv
			if errors.Is(err, io.EOF) {
				break
			}
			return c.acked.Load(), fmt.Errorf("failed to send sample: %w", err)
		}
		sent++
	}

	if err := stream.CloseSend(); err != nil {
		return c.acked.Load(), fmt.Errorf("failed to close stream: %w", err)
	}
	if err := <-recvErr; err != nil {
		return c.acked.Load(), err
	}

	c.logger.Info("stream finished",
		zap.String("session_id", c.sessionID),
		zap.Int("sent", sent),
		zap.Uint64("acked", c.acked.Load()))
	return c.acked.Load(), nil
}

func (c *Client) receiveAcks(stream telemetry.DataService_PushSamplesClient) error {
	for {
		msg, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to receive ack: %w", err)
		}
		ack := telemetry.AckFromStruct(msg)
		if ack.SessionID != c.sessionID {
			continue
		}
		c.acked.Store(ack.ReceivedCnt)
		c.logger.Debug("received ack", zap.String("session_id", ack.SessionID), zap.Uint64("received_cnt", ack.ReceivedCnt))
	}
}

// EndSession завершает сессию на сервере и возвращает итоги
func (c *Client) EndSession(ctx context.Context) (pipeline.Summary, error) {
	resp, err := c.client.EndSession(ctx, telemetry.EndSessionRequest(c.sessionID))
	if err != nil {
		return pipeline.Summary{}, fmt.Errorf("failed to end session %s: %w", c.sessionID, err)
	}
	return telemetry.SummaryFromStruct(resp)
}

// Acked последнее подтвержденное число измерений
func (c *Client) Acked() uint64 {
	return c.acked.Load()
}

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
