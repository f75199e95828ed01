package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	calls int
}

func (c *counter) produce(ctx context.Context) ([]string, error) {
	c.calls++

	return []string{"bitcoin"}, nil
}

func TestGetOrPopulateCachesWithinTTL(t *testing.T) {
	c := New(4)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	producer := &counter{}

	for i := 0; i < 3; i++ {
		value, err := GetOrPopulate(context.Background(), c, PricesKey, time.Minute, producer.produce)
		require.NoError(t, err)
		assert.Equal(t, []string{"bitcoin"}, value)
	}

	assert.Equal(t, 1, producer.calls)

	now = now.Add(time.Minute)
	_, err := GetOrPopulate(context.Background(), c, PricesKey, time.Minute, producer.produce)
	require.NoError(t, err)
	assert.Equal(t, 2, producer.calls, "entries expire after the ttl")
}

func TestGetOrPopulateDoesNotCacheErrors(t *testing.T) {
	c := New(4)
	failure := errors.New("database down")
	calls := 0
	producer := func(ctx context.Context) (int, error) {
		calls++

		return 0, failure
	}

	_, err := GetOrPopulate(context.Background(), c, "key", time.Minute, producer)
	require.ErrorIs(t, err, failure)
	_, err = GetOrPopulate(context.Background(), c, "key", time.Minute, producer)
	require.ErrorIs(t, err, failure)
	assert.Equal(t, 2, calls)
}

func TestGetOrPopulateWithoutTTLNeverCaches(t *testing.T) {
	c := New(4)
	producer := &counter{}

	_, _ = GetOrPopulate(context.Background(), c, PricesKey, 0, producer.produce)
	_, _ = GetOrPopulate(context.Background(), c, PricesKey, 0, producer.produce)
	assert.Equal(t, 2, producer.calls)
}

func TestInvalidate(t *testing.T) {
	c := New(4)
	producer := &counter{}

	_, _ = GetOrPopulate(context.Background(), c, PricesKey, time.Minute, producer.produce)
	c.Invalidate(PricesKey)
	_, _ = GetOrPopulate(context.Background(), c, PricesKey, time.Minute, producer.produce)
	assert.Equal(t, 2, producer.calls)
}
