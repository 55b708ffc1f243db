package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"
)

// DefaultTopic receives every exemption event.
const DefaultTopic = "vatguard.exemption-events"

// Producer is the subset of *kgo.Client used for publishing.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// KafkaPublisher produces JSON-encoded events keyed by order or customer.
type KafkaPublisher struct {
	producer Producer
	topic    string
}

// NewKafkaPublisher creates a publisher. An empty topic selects DefaultTopic.
func NewKafkaPublisher(producer Producer, topic string) *KafkaPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &KafkaPublisher{producer: producer, topic: topic}
}

// NewKafkaClient dials the brokers with settings suited to low-volume,
// ordering-sensitive events.
func NewKafkaClient(brokers []string, clientID string) (*kgo.Client, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(0),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return client, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, evt Event) error {
	value, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", evt.Type, err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(evt.Key()),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(evt.Type)},
		},
	}
	if err := p.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("publish %s event: %w", evt.Type, err)
	}
	return nil
}
