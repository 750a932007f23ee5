package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// KafkaSink publishes every event as JSON, keyed by request id so one request's events
// stay ordered within a partition. Without brokers it skips everything.
type KafkaSink struct {
	writer *kafka.Writer
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	if len(brokers) == 0 || topic == "" {
		return &KafkaSink{}
	}
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Send(ctx context.Context, event Event, p Payload) error {
	if s.writer == nil {
		return ErrSkipped
	}
	body, err := Envelope(event, p)
	if err != nil {
		return err
	}
	if err := s.writer.WriteMessages(ctx, kafka.Message{Key: []byte(p.RequestID), Value: body}); err != nil {
		return fmt.Errorf("kafka: write %s: %w", event, err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	if s.writer == nil {
		return nil
	}
	return s.writer.Close()
}

// Envelope is the JSON shape shared by the stream sinks.
func Envelope(event Event, p Payload) ([]byte, error) {
	body, err := json.Marshal(struct {
		Event   Event   `json:"event"`
		Payload Payload `json:"payload"`
	}{event, p})
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", event, err)
	}
	return body, nil
}
