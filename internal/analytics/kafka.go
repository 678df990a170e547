package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// DefaultTopic receives lookup events.
const DefaultTopic = "phonecheck.lookups"

// KafkaConfig configures the Kafka publisher.
type KafkaConfig struct {
	Brokers           []string
	Topic             string
	Partitions        int32
	ReplicationFactor int16
}

// producer is the subset of *kgo.Client the publisher uses.
type producer interface {
	Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
	Flush(ctx context.Context) error
	Close()
}

// KafkaPublisher forwards lookup events as JSON records keyed by number.
// Produce is asynchronous; failures are logged and trip a circuit breaker
// so an unreachable broker does not pile up buffered records.
type KafkaPublisher struct {
	client  producer
	topic   string
	logger  *slog.Logger
	breaker *circuitBreaker
}

// NewKafkaPublisher connects to the brokers.
func NewKafkaPublisher(cfg KafkaConfig, logger *slog.Logger) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerLinger(50*time.Millisecond),
		kgo.RecordRetries(3),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka: create client: %w", err)
	}
	return newKafkaPublisher(client, topic, logger), nil
}

func newKafkaPublisher(client producer, topic string, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaPublisher{
		client:  client,
		topic:   topic,
		logger:  logger,
		breaker: newCircuitBreaker(5, 30*time.Second),
	}
}

// EnsureTopic creates the topic if it does not exist.
func EnsureTopic(ctx context.Context, cfg KafkaConfig) error {
	client, err := kgo.NewClient(kgo.SeedBrokers(cfg.Brokers...))
	if err != nil {
		return fmt.Errorf("kafka: create admin client: %w", err)
	}
	defer client.Close()

	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}
	partitions := cfg.Partitions
	if partitions <= 0 {
		partitions = 3
	}
	replication := cfg.ReplicationFactor
	if replication <= 0 {
		replication = 1
	}

	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopics(ctx, partitions, replication, nil, topic)
	if err != nil {
		return fmt.Errorf("kafka: create topic: %w", err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("kafka: create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

// Record publishes ev asynchronously.
func (p *KafkaPublisher) Record(ctx context.Context, ev LookupEvent) {
	if !p.breaker.Allow() {
		return
	}
	value, err := json.Marshal(ev)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to encode lookup event", "error", err)
		return
	}
	rec := &kgo.Record{Topic: p.topic, Key: []byte(ev.Number), Value: value}
	// The record outlives the request; detach from its cancellation.
	p.client.Produce(context.WithoutCancel(ctx), rec, func(_ *kgo.Record, err error) {
		if err != nil {
			if p.breaker.RecordFailure() {
				p.logger.Warn("kafka publisher circuit opened", "topic", p.topic, "error", err)
			}
			return
		}
		p.breaker.RecordSuccess()
	})
}

// Close flushes buffered records and closes the client.
func (p *KafkaPublisher) Close(ctx context.Context) error {
	err := p.client.Flush(ctx)
	p.client.Close()
	return err
}
