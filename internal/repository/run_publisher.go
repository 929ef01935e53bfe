package repository

import (
	"context"

	"EquityPulse/internal/domain/models"
	domrepo "EquityPulse/internal/domain/repository"
	pkgkafka "EquityPulse/pkg/kafka"
)

// KafkaRunPublisher announces finished engine runs. Messages are keyed by
// as-of date so reruns of one day land on one partition.
type KafkaRunPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaRunPublisher(producer *pkgkafka.Producer, topic string) *KafkaRunPublisher {
	return &KafkaRunPublisher{producer: producer, topic: topic}
}

func (p *KafkaRunPublisher) PublishRun(ctx context.Context, evt *models.FeaturesComputedEvent) error {
	return p.producer.Publish(ctx, p.topic, []byte(evt.AsOfDate), evt)
}

func (p *KafkaRunPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NoopRunPublisher is used when Kafka is disabled.
type NoopRunPublisher struct{}

func (NoopRunPublisher) PublishRun(context.Context, *models.FeaturesComputedEvent) error { return nil }

func (NoopRunPublisher) Close() error { return nil }

var (
	_ domrepo.RunPublisher = (*KafkaRunPublisher)(nil)
	_ domrepo.RunPublisher = NoopRunPublisher{}
)
