package repository

import (
	"context"
	"fmt"

	"TickWatch/internal/domain/models"
	drepo "TickWatch/internal/domain/repository"
	pkgkafka "TickWatch/pkg/kafka"
)

// KafkaPublisher forwards stored ticks and fired signals to Kafka
// topics, keyed by symbol so per-symbol ordering survives partitioning.
type KafkaPublisher struct {
	producer    *pkgkafka.Producer
	tickTopic   string
	signalTopic string
}

var _ drepo.Publisher = (*KafkaPublisher)(nil)

func NewKafkaPublisher(producer *pkgkafka.Producer, tickTopic, signalTopic string) *KafkaPublisher {
	return &KafkaPublisher{
		producer:    producer,
		tickTopic:   tickTopic,
		signalTopic: signalTopic,
	}
}

func (p *KafkaPublisher) PublishTick(ctx context.Context, t *models.Tick) error {
	if p.tickTopic == "" {
		return nil
	}
	if err := p.producer.Publish(ctx, p.tickTopic, []byte(t.Symbol), t); err != nil {
		return fmt.Errorf("publish tick: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) PublishSignal(ctx context.Context, s *models.Signal) error {
	if p.signalTopic == "" {
		return nil
	}
	if err := p.producer.Publish(ctx, p.signalTopic, []byte(s.Symbol), s); err != nil {
		return fmt.Errorf("publish signal: %w", err)
	}
	return nil
}

// PublishMessage satisfies the logger collector's Publisher interface
// so aggregated error logs can ship through the same producer.
func (p *KafkaPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
