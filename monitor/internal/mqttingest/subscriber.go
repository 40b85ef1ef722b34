package mqttingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Krimson/ctg-stream/monitor/internal/config"
	"github.com/Krimson/ctg-stream/monitor/internal/pipeline"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

var (
	ErrBadTopic   = errors.New("topic does not match subscription")
	ErrBadPayload = errors.New("malformed samples payload")
)

// SampleSink принимает измерения сессии (batch.Batcher)
type SampleSink interface {
	Add(sessionID string, s pipeline.Sample) error
}

// wireSample измерение в JSON; отсутствующий или null канал означает NaN
type wireSample struct {
	TimeSec *float64 `json:"time_sec"`
	FHR     *float64 `json:"fhr"`
	UC      *float64 `json:"uc"`
}

// Subscriber подписывается на топики устройств и передает измерения в батчер
type Subscriber struct {
	cfg    *config.Config
	sink   SampleSink
	logger *zap.Logger
	client mqtt.Client

	// Позиция сегмента "+" с ID сессии в фильтре топика
	sessionSegment int
}

// NewSubscriber создает подписчика. Фильтр топика должен содержать ровно один "+".
func NewSubscriber(cfg *config.Config, sink SampleSink, logger *zap.Logger) (*Subscriber, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	seg, err := sessionSegment(cfg.MQTTTopic)
	if err != nil {
		return nil, err
	}
	return &Subscriber{cfg: cfg, sink: sink, logger: logger, sessionSegment: seg}, nil
}

// Start подключается к брокеру; подписка восстанавливается при каждом переподключении
func (s *Subscriber) Start() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.cfg.MQTTBroker)
	opts.SetClientID(fmt.Sprintf("%s-%d", s.cfg.MQTTClientID, time.Now().Unix()))
	if s.cfg.MQTTUsername != "" {
		opts.SetUsername(s.cfg.MQTTUsername)
		opts.SetPassword(s.cfg.MQTTPassword)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.OnConnect = func(client mqtt.Client) {
		token := client.Subscribe(s.cfg.MQTTTopic, s.cfg.MQTTQoS, s.handleMessage)
		token.Wait()
		if err := token.Error(); err != nil {
			s.logger.Error("mqtt subscribe failed", zap.String("topic", s.cfg.MQTTTopic), zap.Error(err))
			return
		}
		s.logger.Info("mqtt subscribed", zap.String("topic", s.cfg.MQTTTopic))
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		s.logger.Warn("mqtt connection lost", zap.Error(err))
	}

	s.client = mqtt.NewClient(opts)
	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker %s: %w", s.cfg.MQTTBroker, token.Error())
	}
	return nil
}

// Stop отключается от брокера
func (s *Subscriber) Stop() {
	if s.client != nil && s.client.IsConnected() {
		s.client.Disconnect(250)
	}
}

func (s *Subscriber) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	if _, err := s.Ingest(msg.Topic(), msg.Payload()); err != nil {
		s.logger.Warn("mqtt message rejected", zap.String("topic", msg.Topic()), zap.Error(err))
	}
}

// Ingest разбирает одно сообщение и передает измерения в батчер.
// Возвращает число принятых измерений.
func (s *Subscriber) Ingest(topic string, payload []byte) (int, error) {
	sessionID, err := SessionFromTopic(topic, s.sessionSegment)
	if err != nil {
		return 0, err
	}
	samples, err := ParsePayload(payload)
	if err != nil {
		return 0, err
	}

	accepted := 0
	for _, sample := range samples {
		if err := s.sink.Add(sessionID, sample); err != nil {
			return accepted, fmt.Errorf("session %s: %w", sessionID, err)
		}
		accepted++
	}
	return accepted, nil
}

// SessionFromTopic извлекает ID сессии из сегмента seg топика
func SessionFromTopic(topic string, seg int) (string, error) {
	parts := strings.Split(topic, "/")
	if seg < 0 || seg >= len(parts) || parts[seg] == "" {
		return "", fmt.Errorf("%w: %q", ErrBadTopic, topic)
	}
	return parts[seg], nil
}

// ParsePayload принимает одно измерение-объект или массив объектов
func ParsePayload(payload []byte) ([]pipeline.Sample, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrBadPayload)
	}

	var wire []wireSample
	if payload[0] == '[' {
		if err := json.Unmarshal(payload, &wire); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
	} else {
		var one wireSample
		if err := json.Unmarshal(payload, &one); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
		wire = []wireSample{one}
	}

	samples := make([]pipeline.Sample, 0, len(wire))
	for i, w := range wire {
		if w.TimeSec == nil {
			return nil, fmt.Errorf("%w: sample %d has no time_sec", ErrBadPayload, i)
		}
		samples = append(samples, pipeline.Sample{
			TimeSec: *w.TimeSec,
			FHR:     valueOrNaN(w.FHR),
			UC:      valueOrNaN(w.UC),
		})
	}
	return samples, nil
}

func sessionSegment(filter string) (int, error) {
	seg := -1
	for i, part := range strings.Split(filter, "/") {
		if part != "+" {
			continue
		}
		if seg >= 0 {
			return 0, fmt.Errorf("topic filter %q must contain exactly one '+'", filter)
		}
		seg = i
	}
	if seg < 0 {
		return 0, fmt.Errorf("topic filter %q must contain exactly one '+'", filter)
	}
	return seg, nil
}

func valueOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
