//go:build integration

package kafka_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"omnigest/internal/platform/config"
	"omnigest/internal/platform/kafka"
	"omnigest/pkg/testutil/containers"
)

func TestProducerPublish(t *testing.T) {
	broker := containers.NewRedpandaContainer(t)
	ctx := context.Background()

	producer, err := kafka.New(ctx, config.KafkaConfig{
		Brokers: []string{broker.Broker},
		Topic:   "omnigest.audit.test",
	})
	require.NoError(t, err)
	require.NotNil(t, producer)
	defer producer.Close()

	require.NoError(t, producer.Publish(ctx, "a1b2c3d4", []byte(`{"action":"RECORD_PURGED"}`)))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker.Broker),
		kgo.ConsumeTopics("omnigest.audit.test"),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetchCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	fetches := consumer.PollFetches(fetchCtx)
	require.NoError(t, fetches.Err())

	records := fetches.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "a1b2c3d4", string(records[0].Key))
	assert.JSONEq(t, `{"action":"RECORD_PURGED"}`, string(records[0].Value))
}

func TestNewWithoutBrokersIsNil(t *testing.T) {
	producer, err := kafka.New(context.Background(), config.KafkaConfig{})
	require.NoError(t, err)
	assert.Nil(t, producer)
}
