// Package events announces accepted donor and needy submissions.
//
// Publishing is best effort. A failed publish is logged and counted but
// never changes the outcome the user sees.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/medihope/portal/internal/infrastructure/redpanda"
	"github.com/medihope/portal/internal/observability/metrics"
)

// Kind names a submission event
type Kind string

const (
	KindDonorSaved   Kind = "donor.saved"
	KindDonorUpdated Kind = "donor.updated"
	KindNeedySaved   Kind = "needy.saved"
	KindNeedyUpdated Kind = "needy.updated"
)

// SubmissionEvent records one write the backend accepted.
type SubmissionEvent struct {
	ID   string    `json:"id"`
	Kind Kind      `json:"kind"`
	Key  string    `json:"key"`
	At   time.Time `json:"at"`
}

// NewSubmissionEvent stamps an event for the profile identified by key.
func NewSubmissionEvent(kind Kind, key string, at time.Time) SubmissionEvent {
	return SubmissionEvent{
		ID:   uuid.NewString(),
		Kind: kind,
		Key:  key,
		At:   at.UTC(),
	}
}

// Publisher delivers submission events
type Publisher interface {
	Publish(ctx context.Context, ev SubmissionEvent) error
	Close() error
}

// Nop discards every event. Used when no brokers are configured.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, SubmissionEvent) error { return nil }

// Close implements Publisher.
func (Nop) Close() error { return nil }

// producer is the subset of redpanda.Producer the publisher needs.
type producer interface {
	Send(ctx context.Context, msg redpanda.Message) error
	Close() error
}

// KafkaPublisher writes events to the submissions topic, keyed by email.
type KafkaPublisher struct {
	producer producer
	topic    string
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewKafkaPublisher wraps a producer.
func NewKafkaPublisher(p *redpanda.Producer, m *metrics.Metrics, logger *zap.Logger) *KafkaPublisher {
	return newKafkaPublisher(p, m, logger)
}

func newKafkaPublisher(p producer, m *metrics.Metrics, logger *zap.Logger) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaPublisher{
		producer: p,
		topic:    redpanda.TopicSubmissions,
		metrics:  m,
		logger:   logger,
	}
}

// Publish encodes ev and waits for the broker to accept it
func (k *KafkaPublisher) Publish(ctx context.Context, ev SubmissionEvent) error {
	value, err := json.Marshal(ev)
	if err != nil {
		k.metrics.ObserveEvent("error")
		return fmt.Errorf("marshal submission event: %w", err)
	}
	msg := redpanda.Message{
		Topic: k.topic,
		Key:   ev.Key,
		Value: value,
		Headers: map[string]string{
			"content-type": "application/json",
			"event-id":     ev.ID,
			"event-kind":   string(ev.Kind),
		},
	}
	if err := k.producer.Send(ctx, msg); err != nil {
		k.metrics.ObserveEvent("error")
		k.logger.Warn("submission event not published",
			zap.String("kind", string(ev.Kind)),
			zap.String("event_id", ev.ID),
			zap.Error(err))
		return err
	}
	k.metrics.ObserveEvent("ok")
	return nil
}

// Close closes the underlying producer
func (k *KafkaPublisher) Close() error {
	return k.producer.Close()
}
