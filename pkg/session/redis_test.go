//go:build redis_integration

package session_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/fezdelivery/pkg/session"
)

func TestRedisStore(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	store, err := session.NewRedisStore(url, "fez_delivery_test", time.Minute)
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Ping(context.Background()))

	exerciseStore(t, store)
}

func TestRedisStore_TTL(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	store, err := session.NewRedisStore(url, "fez_delivery_test", time.Second)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	sid := session.NewID()
	require.NoError(t, store.SetMany(ctx, sid, map[string]string{"cost": "1"}))

	time.Sleep(1500 * time.Millisecond)
	_, ok, err := store.Get(ctx, sid, "cost")
	require.NoError(t, err)
	assert.False(t, ok)
}
