package repository

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/student-records/pkg/errors"
)

func TestRedisStoreKeyPrefix(t *testing.T) {
	store := NewRedisStore(nil, "records:", nil)
	assert.Equal(t, "records:students", store.key("students"))
	assert.NoError(t, store.Close())
}

// Runs against a live server when REDIS_ADDR is set.
func TestRedisStoreRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	store := NewRedisStore(client, "records-test:", zap.NewNop())
	defer store.Close() //nolint:errcheck
	ctx := context.Background()
	require.NoError(t, store.Remove(ctx, "students", "courses"))

	_, err := store.Get(ctx, "students")
	assert.True(t, errors.Is(err, appErrors.ErrKeyNotFound))

	require.NoError(t, store.SetMany(ctx, map[string][]byte{"students": []byte("[]"), "courses": []byte(`[{"id":1}]`)}))
	value, err := store.Get(ctx, "courses")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":1}]`, string(value))

	require.NoError(t, store.Remove(ctx, "students", "courses"))
	_, err = store.Get(ctx, "courses")
	assert.True(t, errors.Is(err, appErrors.ErrKeyNotFound))
}
