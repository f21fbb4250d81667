package redpanda

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

// TopicSubmissions carries donor and needy submission events.
const TopicSubmissions = "medihope.submissions"

// Topic describes a topic the portal writes to. A ReplicationFactor of -1
// takes the broker's default.
type Topic struct {
	Name              string
	Partitions        int32
	ReplicationFactor int16
	Configs           map[string]*string
}

// Topics returns the portal's topics. Submissions are keyed by email, so
// the partition count bounds how many consumers can read one profile's
// history in parallel.
func Topics() []Topic {
	week := "604800000"
	return []Topic{{
		Name:              TopicSubmissions,
		Partitions:        3,
		ReplicationFactor: -1,
		Configs:           map[string]*string{"retention.ms": &week},
	}}
}

// Admin creates the portal's topics.
type Admin struct {
	client *kadm.Client
	logger *zap.Logger
}

// NewAdmin connects an admin client to brokers
func NewAdmin(brokers []string, logger *zap.Logger) (*Admin, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(brokers) == 0 {
		return nil, ErrNoBrokers
	}
	cl, err := kgo.NewClient(kgo.SeedBrokers(brokers...))
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return &Admin{client: kadm.NewClient(cl), logger: logger}, nil
}

// Ensure creates whichever of topics are missing. A topic created
// concurrently by someone else counts as present.
func (a *Admin) Ensure(ctx context.Context, topics []Topic) error {
	names := make([]string, len(topics))
	for i, t := range topics {
		names[i] = t.Name
	}
	existing, err := a.client.ListTopics(ctx, names...)
	if err != nil {
		return fmt.Errorf("list topics: %w", err)
	}

	for _, t := range missing(topics, existing) {
		resp, err := a.client.CreateTopic(ctx, t.Partitions, t.ReplicationFactor, t.Configs, t.Name)
		if err == nil {
			err = resp.Err
		}
		switch {
		case errors.Is(err, kerr.TopicAlreadyExists):
		case err != nil:
			return fmt.Errorf("create topic %s: %w", t.Name, err)
		default:
			a.logger.Info("topic created",
				zap.String("topic", t.Name),
				zap.Int32("partitions", t.Partitions))
		}
	}
	return nil
}

func missing(topics []Topic, existing kadm.TopicDetails) []Topic {
	var out []Topic
	for _, t := range topics {
		if !existing.Has(t.Name) {
			out = append(out, t)
		}
	}
	return out
}

// Close closes the admin client
func (a *Admin) Close() {
	a.client.Close()
}

// Ping checks that at least one broker answers.
func Ping(ctx context.Context, brokers []string) error {
	if len(brokers) == 0 {
		return ErrNoBrokers
	}
	cl, err := kgo.NewClient(kgo.SeedBrokers(brokers...))
	if err != nil {
		return fmt.Errorf("kafka client: %w", err)
	}
	defer cl.Close()
	return cl.Ping(ctx)
}
