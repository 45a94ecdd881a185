// Package audit publishes the simulator's state mutations as a trail of
// JSON entries. Publishing is best-effort: a lost audit entry never
// fails the run that produced it.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Entry struct {
	Timestamp   time.Time `json:"timestamp"`
	OrderNumber string    `json:"order_number"`
	Action      string    `json:"action"`
	OldState    string    `json:"old_state,omitempty"`
	NewState    string    `json:"new_state,omitempty"`
	Detail      string    `json:"detail,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, entry Entry) error
	Close() error
}

// New picks the Kafka publisher when brokers are configured and the
// console fallback otherwise.
func New(brokers []string, topic string, logger *zap.Logger) Publisher {
	if len(brokers) == 0 {
		return &ConsolePublisher{logger: logger}
	}
	return NewKafkaPublisher(brokers, topic, logger)
}

type KafkaPublisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 100 * time.Millisecond,
		},
		logger: logger,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, entry Entry) error {
	value, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(entry.OrderNumber),
		Value: value,
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// ConsolePublisher stands in when no broker is configured, keeping the
// trail visible in the run log.
type ConsolePublisher struct {
	logger *zap.Logger
}

func NewConsolePublisher(logger *zap.Logger) *ConsolePublisher {
	return &ConsolePublisher{logger: logger}
}

func (p *ConsolePublisher) Publish(_ context.Context, entry Entry) error {
	p.logger.Debug("audit",
		zap.String("order_number", entry.OrderNumber),
		zap.String("action", entry.Action),
		zap.String("old_state", entry.OldState),
		zap.String("new_state", entry.NewState),
		zap.String("detail", entry.Detail),
	)
	return nil
}

func (p *ConsolePublisher) Close() error {
	return nil
}
