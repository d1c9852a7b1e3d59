package redisx

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/ariefcatur/go-shop-checkout/internal/orders"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"time"
)

// hanya tulis kalau snapshot lebih baru dari yang tersimpan
var setIfNewer = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
  local ok, obj = pcall(cjson.decode, cur)
  if ok and obj.version and tonumber(obj.version) > tonumber(ARGV[2]) then
    return 0
  end
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

// StatusCache is the Redis-backed order status projection.
type StatusCache struct {
	RDB *redis.Client
	TTL time.Duration
}

func (c *StatusCache) ttl() time.Duration {
	if c.TTL > 0 {
		return c.TTL
	}
	return TTLStatusCache
}

func (c *StatusCache) Get(ctx context.Context, orderID int64) (orders.StatusSnapshot, bool, error) {
	raw, err := c.RDB.Get(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return orders.StatusSnapshot{}, false, nil
	}
	if err != nil {
		return orders.StatusSnapshot{}, false, errors.Wrap(err, "get order status")
	}
	var s orders.StatusSnapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return orders.StatusSnapshot{}, false, errors.Wrap(err, "decode order status")
	}
	return s, true, nil
}

// Set stores s unless a newer version is already cached. Returns whether it was written.
func (c *StatusCache) Set(ctx context.Context, s orders.StatusSnapshot) (bool, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return false, err
	}
	n, err := setIfNewer.Run(ctx, c.RDB, []string{fmt.Sprintf(KeyOrderStatus, s.OrderID)},
		string(b), s.Version, c.ttl().Milliseconds()).Int()
	if err != nil {
		return false, errors.Wrap(err, "set order status")
	}
	return n == 1, nil
}
