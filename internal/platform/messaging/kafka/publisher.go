// Package kafka binds the messaging contract to Kafka through franz-go.
// The record key carries the partition key, so the key-hashing partitioner
// sends same-key records to one partition in produce order.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"composite/internal/platform/messaging"
)

// Config holds producer settings.
type Config struct {
	Brokers           []string
	ClientID          string
	Partitions        int32
	ReplicationFactor int16
	FlushTimeout      time.Duration
}

// Publisher produces records asynchronously. Delivery failures are logged
// from the produce callback.
type Publisher struct {
	client *kgo.Client
	logger *slog.Logger
	cfg    Config

	// ctx outlives individual Publish calls so that buffered records are not
	// aborted when a caller's context ends.
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a producer client. It does not contact the brokers.
func New(cfg Config, logger *slog.Logger) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = 10 * time.Second
	}
	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.RecordPartitioner(kgo.StickyKeyPartitioner(nil)),
		kgo.AllowAutoTopicCreation(),
	}
	if cfg.ClientID != "" {
		opts = append(opts, kgo.ClientID(cfg.ClientID))
	}
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Publisher{
		client: client,
		logger: logger,
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// EnsureTopics creates missing topics. Existing topics are left untouched.
func (p *Publisher) EnsureTopics(ctx context.Context, topics ...string) error {
	partitions := p.cfg.Partitions
	if partitions <= 0 {
		partitions = 1
	}
	rf := p.cfg.ReplicationFactor
	if rf <= 0 {
		rf = 1
	}

	adm := kadm.NewClient(p.client)
	resp, err := adm.CreateTopics(ctx, partitions, rf, nil, topics...)
	if err != nil {
		return fmt.Errorf("create topics: %w", err)
	}
	for _, t := range resp.Sorted() {
		if t.Err != nil && !errors.Is(t.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", t.Topic, t.Err)
		}
	}
	return nil
}

// Ping checks broker connectivity.
func (p *Publisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// Publish buffers the record and returns. Records sharing a key keep the
// order of Publish calls.
func (p *Publisher) Publish(_ context.Context, channel string, msg messaging.Message) error {
	rec := &kgo.Record{
		Topic: channel,
		Key:   []byte(msg.Key),
		Value: msg.Value,
	}
	for k, v := range msg.Headers {
		rec.Headers = append(rec.Headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
	}

	p.client.Produce(p.ctx, rec, func(r *kgo.Record, err error) {
		if err != nil && p.logger != nil {
			p.logger.Error("kafka delivery failed",
				"topic", r.Topic,
				"key", string(r.Key),
				"error", err,
			)
		}
	})
	return nil
}

// Close flushes buffered records and closes the client.
func (p *Publisher) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.FlushTimeout)
	defer cancel()
	err := p.client.Flush(ctx)
	p.cancel()
	p.client.Close()
	if err != nil {
		return fmt.Errorf("flush kafka producer: %w", err)
	}
	return nil
}
