// Package kafka publishes audit events to a Kafka topic with franz-go.
// The outbox worker or the in-process audit worker hands events to this
// sink; consumers downstream materialize them for querying.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	id "refward/pkg/domain"
	"refward/pkg/platform/audit"
)

// Publisher writes audit events to a Kafka topic. It implements
// audit.Store for the append path only; reads happen downstream.
type Publisher struct {
	client *kgo.Client
	topic  string
}

// New connects to the brokers and ensures the audit topic exists.
func New(ctx context.Context, brokers []string, topic string) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	// Already-exists is fine; any other failure is fatal so audit events
	// are never silently dropped.
	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopic(ctx, 1, 1, nil, topic)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ensure audit topic: %w", err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		client.Close()
		return nil, fmt.Errorf("ensure audit topic: %w", resp.Err)
	}

	return &Publisher{client: client, topic: topic}, nil
}

// Append produces one audit event, keyed by actor for per-user ordering.
func (p *Publisher) Append(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.Actor.String()),
		Value: payload,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// ListByActor is not supported on the Kafka sink; consumers materialize
// events into a queryable store.
func (p *Publisher) ListByActor(context.Context, id.UserID) ([]audit.Event, error) {
	return nil, errors.New("kafka audit sink is write-only")
}

// Close flushes and closes the underlying client.
func (p *Publisher) Close() {
	p.client.Close()
}
