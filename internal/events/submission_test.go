package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medihope/portal/internal/infrastructure/redpanda"
	"github.com/medihope/portal/internal/observability/metrics"
)

type fakeProducer struct {
	msg    redpanda.Message
	err    error
	closed bool
}

func (f *fakeProducer) Send(_ context.Context, msg redpanda.Message) error {
	f.msg = msg
	return f.err
}

func (f *fakeProducer) Close() error {
	f.closed = true
	return nil
}

func TestKafkaPublisherPublish(t *testing.T) {
	fp := &fakeProducer{}
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	pub := newKafkaPublisher(fp, m, nil)

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ev := NewSubmissionEvent(KindDonorSaved, "a@x.com", at)
	require.NoError(t, pub.Publish(context.Background(), ev))

	assert.Equal(t, redpanda.TopicSubmissions, fp.msg.Topic)
	assert.Equal(t, "a@x.com", fp.msg.Key)
	assert.Equal(t, "donor.saved", fp.msg.Headers["event-kind"])
	assert.Equal(t, ev.ID, fp.msg.Headers["event-id"])

	var decoded SubmissionEvent
	require.NoError(t, json.Unmarshal(fp.msg.Value, &decoded))
	assert.Equal(t, ev, decoded)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsPublished.WithLabelValues("ok")))

	require.NoError(t, pub.Close())
	assert.True(t, fp.closed)
}

func TestKafkaPublisherFailure(t *testing.T) {
	boom := errors.New("broker down")
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	pub := newKafkaPublisher(&fakeProducer{err: boom}, m, nil)

	err := pub.Publish(context.Background(), NewSubmissionEvent(KindNeedyUpdated, "n@x.com", time.Now()))

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsPublished.WithLabelValues("error")))
}

func TestNewSubmissionEventIDsAreUnique(t *testing.T) {
	now := time.Now()
	a := NewSubmissionEvent(KindDonorUpdated, "a@x.com", now)
	b := NewSubmissionEvent(KindDonorUpdated, "a@x.com", now)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, time.UTC, a.At.Location())
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), SubmissionEvent{}))
	assert.NoError(t, p.Close())
}
