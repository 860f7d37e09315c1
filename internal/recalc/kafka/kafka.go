// Package kafka bridges dossier mutation events to the recalculation queue.
// Any upstream mutation that can affect protection publishes to the mutation
// topic; the consumer turns records into queue items. Delivery is at least
// once, which the queue's upsert semantics absorb.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"immuna/internal/recalc/ports"
	id "immuna/pkg/domain"
)

// DefaultTopic is the mutation topic consumed by the bridge.
const DefaultTopic = "dossier-mutations"

// MutationEvent is the wire payload of one mutation notice.
type MutationEvent struct {
	RegistrantID string `json:"registrant_id"`
	DiseaseID    string `json:"disease_id"`
	Kind         string `json:"kind"` // e.g. "event_recorded", "correction_applied"
}

// Producer publishes mutation notices.
type Producer struct {
	client *kgo.Client
	topic  string
}

// NewProducer builds a producer on the given brokers.
func NewProducer(brokers []string, topic string) (*Producer, error) {
	if topic == "" {
		topic = DefaultTopic
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return &Producer{client: client, topic: topic}, nil
}

// Publish emits one mutation notice, keyed by registrant so mutations for the
// same person stay ordered within a topic partition.
func (p *Producer) Publish(ctx context.Context, registrant id.RegistrantID, disease id.DiseaseID, kind string) error {
	payload, err := json.Marshal(MutationEvent{
		RegistrantID: registrant.String(),
		DiseaseID:    disease.String(),
		Kind:         kind,
	})
	if err != nil {
		return fmt.Errorf("encode mutation event: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(registrant.String()),
		Value: payload,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("publish mutation event: %w", err)
	}
	return nil
}

func (p *Producer) Close() { p.client.Close() }

// Consumer drains the mutation topic into the recalculation queue.
type Consumer struct {
	client *kgo.Client
	queue  ports.RecalcQueue
	logger *slog.Logger
}

// NewConsumer builds a consumer-group member on the given brokers.
func NewConsumer(brokers []string, group, topic string, queue ports.RecalcQueue, logger *slog.Logger) (*Consumer, error) {
	if topic == "" {
		topic = DefaultTopic
	}
	if logger == nil {
		logger = slog.Default()
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return &Consumer{client: client, queue: queue, logger: logger}, nil
}

// Run polls until the context is cancelled. Malformed records are logged and
// skipped; enqueue failures are logged and the record is redelivered by the
// group on the next rebalance or restart.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.ErrorContext(ctx, "kafka fetch error",
				"topic", topic, "partition", partition, "error", err)
		})
		fetches.EachRecord(func(record *kgo.Record) {
			c.handle(ctx, record)
		})
	}
}

func (c *Consumer) handle(ctx context.Context, record *kgo.Record) {
	var event MutationEvent
	if err := json.Unmarshal(record.Value, &event); err != nil {
		c.logger.WarnContext(ctx, "skipping malformed mutation event",
			"offset", record.Offset, "error", err)
		return
	}
	registrant, err := id.ParseRegistrantID(event.RegistrantID)
	if err != nil {
		c.logger.WarnContext(ctx, "skipping mutation event with bad registrant id",
			"offset", record.Offset, "error", err)
		return
	}
	disease, err := id.ParseDiseaseID(event.DiseaseID)
	if err != nil {
		c.logger.WarnContext(ctx, "skipping mutation event with bad disease id",
			"offset", record.Offset, "error", err)
		return
	}
	if err := c.queue.Enqueue(ctx, registrant, disease); err != nil {
		c.logger.ErrorContext(ctx, "enqueue from mutation event failed",
			"registrant_id", registrant, "disease", disease, "error", err)
	}
}

func (c *Consumer) Close() { c.client.Close() }
