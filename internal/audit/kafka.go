package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// DefaultTopic is the Kafka topic audit events are published to.
const DefaultTopic = "listscreen.audit.v1"

// KafkaPublisher produces outbox payloads to Kafka. Records are keyed by the
// event type so a single action's events stay ordered within a partition.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
}

// NewKafkaPublisher connects to the given brokers and ensures the topic
// exists before the first produce.
func NewKafkaPublisher(ctx context.Context, brokers []string, topic string) (*KafkaPublisher, error) {
	if topic == "" {
		topic = DefaultTopic
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	if err := ensureTopic(ctx, client, topic); err != nil {
		client.Close()
		return nil, err
	}

	return &KafkaPublisher{client: client, topic: topic}, nil
}

// ensureTopic creates the audit topic when it does not exist yet. Already
// existing topics are fine.
func ensureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	adm := kadm.NewClient(client)

	resp, err := adm.CreateTopic(ctx, 1, -1, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, resp.Err)
	}
	return nil
}

// Publish produces one payload synchronously.
func (p *KafkaPublisher) Publish(ctx context.Context, eventType string, payload []byte) error {
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(eventType),
		Value: payload,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit record: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() {
	p.client.Close()
}
