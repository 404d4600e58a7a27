package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Kafka publishes events through franz-go. Produce is asynchronous; delivery
// failures are logged, not propagated, per the package contract.
type Kafka struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewKafka builds a publisher and ensures the topic exists. Topic creation
// errors other than "already exists" are returned so misconfiguration
// surfaces at startup rather than on first publish.
func NewKafka(ctx context.Context, brokers []string, topic string, logger *slog.Logger) (*Kafka, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}

	admin := kadm.NewClient(client)
	resp, err := admin.CreateTopics(ctx, 3, 1, nil, topic)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ensure topic: %w", err)
	}
	for _, ctr := range resp.Sorted() {
		if ctr.Err != nil && !kgo.IsRetryableBrokerErr(ctr.Err) {
			// Already-exists is the normal steady state.
			logger.Debug("create topic", "topic", ctr.Topic, "error", ctr.Err.Error())
		}
	}

	return &Kafka{client: client, topic: topic, logger: logger}, nil
}

func (k *Kafka) Publish(ctx context.Context, event Event) {
	raw := encode(k.logger, event)
	if raw == nil {
		return
	}
	record := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(event.UserID.String()),
		Value: raw,
	}
	k.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			k.logger.Error("publish identity event",
				"type", string(event.Type),
				"error", err.Error(),
			)
		}
	})
}

// Close flushes outstanding records and releases the client.
func (k *Kafka) Close(ctx context.Context) error {
	if err := k.client.Flush(ctx); err != nil {
		return err
	}
	k.client.Close()
	return nil
}
