package repository

import (
	"context"

	"PolySentry/internal/domain/models"
	"PolySentry/internal/domain/repository"
	pkgkafka "PolySentry/pkg/kafka"
)

// KafkaAuditPublisher implements AuditPublisher on Kafka. Messages are
// keyed by market ID so per-market ordering survives partitioning.
type KafkaAuditPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaAuditPublisher creates a Kafka audit publisher.
func NewKafkaAuditPublisher(producer *pkgkafka.Producer, topic string) repository.AuditPublisher {
	return &KafkaAuditPublisher{producer: producer, topic: topic}
}

func (p *KafkaAuditPublisher) PublishDecision(ctx context.Context, d *models.Decision) error {
	return p.producer.Publish(ctx, p.topic, []byte(d.Event.MarketID), d)
}

func (p *KafkaAuditPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NopAuditPublisher discards decisions. Used when Kafka is not configured.
type NopAuditPublisher struct{}

func (NopAuditPublisher) PublishDecision(context.Context, *models.Decision) error { return nil }

func (NopAuditPublisher) Close() error { return nil }
