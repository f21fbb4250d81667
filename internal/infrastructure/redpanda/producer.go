// Package redpanda produces portal events to a Kafka-compatible broker with franz-go.
package redpanda

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/medihope/portal/internal/observability/tracing"
)

// ErrNoBrokers is returned when a client is built without seed brokers.
var ErrNoBrokers = errors.New("no brokers configured")

// ProducerConfig holds configuration for the producer
type ProducerConfig struct {
	Brokers  []string
	ClientID string
	Linger   time.Duration
	// Compression is one of none, gzip, snappy, lz4 or zstd
	Compression string
	// LeaderOnly acknowledges on the partition leader instead of all
	// in-sync replicas, giving up idempotent writes
	LeaderOnly bool
	Retries    int
	// DeliveryTimeout fails a buffered record the broker has not
	// acknowledged in time; zero waits for the retry limit
	DeliveryTimeout time.Duration
}

// DefaultProducerConfig returns defaults for low-volume submission events.
// Brokers must still be set.
func DefaultProducerConfig() ProducerConfig {
	return ProducerConfig{
		ClientID:    "medihope-portal",
		Linger:      5 * time.Millisecond,
		Compression:     "snappy",
		Retries:         3,
		DeliveryTimeout: 5 * time.Second,
	}
}

var codecs = map[string]kgo.CompressionCodec{
	"none":   kgo.NoCompression(),
	"gzip":   kgo.GzipCompression(),
	"snappy": kgo.SnappyCompression(),
	"lz4":    kgo.Lz4Compression(),
	"zstd":   kgo.ZstdCompression(),
}

func (cfg ProducerConfig) opts() ([]kgo.Opt, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ProducerLinger(cfg.Linger),
		kgo.RecordRetries(cfg.Retries),
	}
	if cfg.DeliveryTimeout > 0 {
		opts = append(opts, kgo.RecordDeliveryTimeout(cfg.DeliveryTimeout))
	}
	if cfg.ClientID != "" {
		opts = append(opts, kgo.ClientID(cfg.ClientID))
	}
	if cfg.Compression != "" {
		codec, ok := codecs[cfg.Compression]
		if !ok {
			return nil, fmt.Errorf("unknown compression %q", cfg.Compression)
		}
		opts = append(opts, kgo.ProducerBatchCompression(codec))
	}
	if cfg.LeaderOnly {
		opts = append(opts, kgo.RequiredAcks(kgo.LeaderAck()), kgo.DisableIdempotentWrite())
	} else {
		opts = append(opts, kgo.RequiredAcks(kgo.AllISRAcks()))
	}
	return opts, nil
}

// Message is one record to produce.
type Message struct {
	Topic   string
	Key     string
	Value   []byte
	Headers map[string]string
}

func (m Message) record() *kgo.Record {
	r := &kgo.Record{Topic: m.Topic, Key: []byte(m.Key), Value: m.Value}
	names := make([]string, 0, len(m.Headers))
	for k := range m.Headers {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		r.Headers = append(r.Headers, kgo.RecordHeader{Key: k, Value: []byte(m.Headers[k])})
	}
	return r
}

// Producer sends records to the broker
type Producer struct {
	client *kgo.Client
	logger *zap.Logger
	tracer trace.Tracer

	sent   atomic.Int64
	failed atomic.Int64
}

// NewProducer creates a producer. No connection is made until the first record.
func NewProducer(cfg ProducerConfig, logger *zap.Logger) (*Producer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts, err := cfg.opts()
	if err != nil {
		return nil, err
	}
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return &Producer{client: client, logger: logger, tracer: tracing.Tracer("redpanda")}, nil
}

// Send produces msg and waits for the broker's acknowledgment or for ctx
// to end, whichever comes first. The caller's trace context travels in
// the record headers.
func (p *Producer) Send(ctx context.Context, msg Message) error {
	ctx, span := p.tracer.Start(ctx, "produce "+msg.Topic,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination.name", msg.Topic),
			attribute.Int("messaging.message.body.size", len(msg.Value)),
		))
	defer span.End()

	record := msg.record()
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier{record: record})

	done := make(chan error, 1)
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) { done <- err })

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		p.failed.Add(1)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("produce to %s: %w", msg.Topic, err)
	}

	p.sent.Add(1)
	p.logger.Debug("record produced",
		zap.String("topic", record.Topic),
		zap.Int32("partition", record.Partition),
		zap.Int64("offset", record.Offset))
	return nil
}

// Close flushes buffered records and closes the client
func (p *Producer) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := p.client.Flush(ctx)
	p.client.Close()
	if err != nil {
		return fmt.Errorf("flush on close: %w", err)
	}
	return nil
}

// ProducerStats counts records since start.
type ProducerStats struct {
	Sent   int64
	Failed int64
}

// Stats returns current producer statistics
func (p *Producer) Stats() ProducerStats {
	return ProducerStats{Sent: p.sent.Load(), Failed: p.failed.Load()}
}

// headerCarrier adapts record headers to the OpenTelemetry propagator.
type headerCarrier struct{ record *kgo.Record }

var _ propagation.TextMapCarrier = headerCarrier{}

func (c headerCarrier) Get(key string) string {
	for _, h := range c.record.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c headerCarrier) Set(key, value string) {
	for i, h := range c.record.Headers {
		if h.Key == key {
			c.record.Headers[i].Value = []byte(value)
			return
		}
	}
	c.record.Headers = append(c.record.Headers, kgo.RecordHeader{Key: key, Value: []byte(value)})
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, len(c.record.Headers))
	for i, h := range c.record.Headers {
		keys[i] = h.Key
	}
	return keys
}
