package redisx

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/ariefcatur/go-shop-checkout/internal/orders"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Needs a scratch Redis, e.g. TEST_REDIS_ADDR=localhost:6379
func testClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb := New(addr)
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, Ping(context.Background(), rdb))
	return rdb
}

func TestStatusCacheKeepsNewest(t *testing.T) {
	rdb := testClient(t)
	ctx := context.Background()
	c := &StatusCache{RDB: rdb, TTL: time.Minute}
	orderID := time.Now().UnixNano()
	t.Cleanup(func() { rdb.Del(ctx, "order_status:"+orders.OrderKey(orderID)) })

	paid := orders.StatusSnapshot{OrderID: orderID, UserID: 7, Status: orders.StatusPaid, Version: 2000}
	created := orders.StatusSnapshot{OrderID: orderID, UserID: 7, Status: orders.StatusPending, Version: 1000}

	ok, err := c.Set(ctx, paid)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Set(ctx, created)
	require.NoError(t, err)
	assert.False(t, ok)

	got, found, err := c.Get(ctx, orderID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, orders.StatusPaid, got.Status)
}

func TestDedupAndRevocations(t *testing.T) {
	rdb := testClient(t)
	ctx := context.Background()

	d := &Dedup{RDB: rdb, Service: "test"}
	id := uuid.NewString()
	first, err := d.Claim(ctx, id)
	require.NoError(t, err)
	assert.True(t, first)
	again, err := d.Claim(ctx, id)
	require.NoError(t, err)
	assert.False(t, again)
	require.NoError(t, d.Release(ctx, id))
	retry, err := d.Claim(ctx, id)
	require.NoError(t, err)
	assert.True(t, retry)

	r := &Revocations{RDB: rdb}
	jti := uuid.NewString()
	revoked, err := r.IsRevoked(ctx, jti)
	require.NoError(t, err)
	assert.False(t, revoked)
	require.NoError(t, r.Revoke(ctx, jti, time.Minute))
	revoked, err = r.IsRevoked(ctx, jti)
	require.NoError(t, err)
	assert.True(t, revoked)
}
