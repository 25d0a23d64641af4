// Package kafka publishes outbox entries to Kafka with franz-go.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"vendemos/internal/outbox"
)

// Header keys set on every record.
const (
	HeaderEventType = "event_type"
	HeaderEntryID   = "outbox_id"
)

// Producer implements outbox.Publisher. Records are keyed by aggregate ID so
// a listing's events stay ordered within a partition.
type Producer struct {
	client *kgo.Client
	topic  string
}

// NewProducer connects to brokers with idempotent, all-ISR-acked writes.
func NewProducer(brokers []string, topic string, opts ...kgo.Opt) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: at least one broker is required")
	}
	if topic == "" {
		return nil, errors.New("kafka: topic is required")
	}
	base := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(5 * time.Millisecond),
		kgo.RecordDeliveryTimeout(30 * time.Second),
	}
	client, err := kgo.NewClient(append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("kafka: new client: %w", err)
	}
	return &Producer{client: client, topic: topic}, nil
}

// Publish produces entries synchronously and returns the IDs Kafka acked.
func (p *Producer) Publish(ctx context.Context, entries []outbox.Entry) ([]uuid.UUID, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	records := make([]*kgo.Record, len(entries))
	byRecord := make(map[*kgo.Record]uuid.UUID, len(entries))
	for i, e := range entries {
		rec := &kgo.Record{
			Topic:     p.topic,
			Key:       []byte(e.AggregateID),
			Value:     e.Payload,
			Timestamp: e.CreatedAt,
			Headers: []kgo.RecordHeader{
				{Key: HeaderEventType, Value: []byte(e.EventType)},
				{Key: HeaderEntryID, Value: []byte(e.ID.String())},
			},
		}
		records[i] = rec
		byRecord[rec] = e.ID
	}

	results := p.client.ProduceSync(ctx, records...)
	acked := make([]uuid.UUID, 0, len(results))
	for _, res := range results {
		if res.Err == nil {
			acked = append(acked, byRecord[res.Record])
		}
	}
	if err := results.FirstErr(); err != nil {
		return acked, fmt.Errorf("kafka: produce: %w", err)
	}
	return acked, nil
}

// Ping checks broker connectivity.
func (p *Producer) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// EnsureTopic creates the producer's topic if it does not exist.
func (p *Producer) EnsureTopic(ctx context.Context, partitions int32, replicationFactor int16) error {
	adm := kadm.NewClient(p.client)
	resp, err := adm.CreateTopics(ctx, partitions, replicationFactor, nil, p.topic)
	if err != nil {
		return fmt.Errorf("kafka: create topic %s: %w", p.topic, err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("kafka: create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

func (p *Producer) Close() {
	p.client.Close()
}
