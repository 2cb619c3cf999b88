package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type kafkaPublisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewKafkaPublisher writes events to topic, keyed so that all events of one
// order or volume land on the same partition.
func NewKafkaPublisher(brokers []string, topic string, l *zap.Logger) Publisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
		Logger:                 zap.NewStdLog(l.With(zap.String("kafka_component", "producer"))),
		ErrorLogger:            zap.NewStdLog(l.With(zap.String("kafka_component", "producer_errors"))),
	}

	l.Info("Kafka producer initialized", zap.Strings("brokers", brokers), zap.String("topic", topic))
	return &kafkaPublisher{writer: writer, logger: l}
}

func (p *kafkaPublisher) Publish(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", event.Type, err)
	}

	msg := kafka.Message{
		Key:   []byte(event.Key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to produce event to Kafka",
			zap.String("event_type", event.Type),
			zap.String("key", event.Key),
			zap.Error(err))
		return fmt.Errorf("failed to produce event: %w", err)
	}
	p.logger.Debug("Produced event", zap.String("event_type", event.Type), zap.String("key", event.Key))
	return nil
}

func (p *kafkaPublisher) Close() error {
	if err := p.writer.Close(); err != nil {
		p.logger.Error("Failed to close Kafka producer", zap.Error(err))
		return fmt.Errorf("failed to close Kafka producer: %w", err)
	}
	p.logger.Info("Kafka producer closed.")
	return nil
}
