package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 需要可連線的 Redis：REDIS_ADDR=localhost:6379 go test ./internal/core/store/...
func TestRedisBackend(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	key := "sipcheck:test:" + uuid.NewString()
	backend, err := NewRedisBackend(ctx, addr, 0, key)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = backend.client.Del(context.Background(), key).Err()
		_ = backend.Close()
	})

	_, err = backend.Read(ctx)
	assert.ErrorIs(t, err, ErrNoData)

	s := Open(ctx, backend)
	require.NoError(t, s.Add(ctx, newRecord(t, "Redis Red Ale")))
	require.NoError(t, s.LastSaveError())

	assert.Equal(t, []string{"Redis Red Ale"}, names(Open(ctx, backend).All()))
}
