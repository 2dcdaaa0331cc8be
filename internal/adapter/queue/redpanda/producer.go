// Package redpanda provides the Event Store's optional async event-ingest
// sink: user events are published to a Kafka/Redpanda topic for downstream
// analytics consumers, alongside (never instead of) the KV-backed buffer
// the Event Store itself reads from.
package redpanda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel"

	"github.com/retail-reco/core/internal/domain"
)

// DefaultTopic is the topic user events are published to when the caller
// does not override it.
const DefaultTopic = "user-events"

// Publisher publishes user events to Kafka/Redpanda. It implements
// eventstore.EventSink. Publishing is fire-and-forget: a broker outage
// degrades the sink silently rather than blocking event recording, which
// keeps buffering to KV as the durability source of truth.
type Publisher struct {
	client *kgo.Client
	topic  string
}

// NewPublisher constructs a Publisher against brokers, ensuring topic
// exists (best-effort; a pre-existing topic is not an error).
func NewPublisher(brokers []string, topic string) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no seed brokers provided")
	}
	if topic == "" {
		topic = DefaultTopic
	}

	kotelService := kotel.NewKotel(kotel.WithTracer(kotel.NewTracer(kotel.TracerProvider(otel.GetTracerProvider()))))

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.RequestRetries(5),
		kgo.ProducerBatchMaxBytes(1_000_000),
		kgo.WithHooks(kotelService.Hooks()...),
	)
	if err != nil {
		return nil, fmt.Errorf("redpanda client: %w", err)
	}

	if err := createTopicIfNotExists(context.Background(), client, topic, 3, 1); err != nil {
		slog.Warn("event topic creation failed, continuing (it may already exist)",
			slog.String("topic", topic), slog.Any("error", err))
	}

	return &Publisher{client: client, topic: topic}, nil
}

// Publish asynchronously produces event as a JSON record keyed by user ID,
// which preserves per-user ordering across partitions. Errors are logged,
// not returned, since this sink is an ingest supplement, never the event
// store's durability guarantee.
func (p *Publisher) Publish(ctx domain.Context, event domain.UserEvent) error {
	b, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.UserID),
		Value: b,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			slog.Warn("event publish failed", slog.String("event_id", event.ID), slog.Any("error", err))
		}
	})
	return nil
}

// Close closes the underlying client. Records still buffered are not
// flushed first.
func (p *Publisher) Close() error {
	p.client.Close()
	return nil
}
