package redisx

import (
	"context"
	"fmt"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Dedup remembers processed event ids per consumer service.
type Dedup struct {
	RDB     *redis.Client
	Service string
}

// Claim returns true the first time an event id is seen.
func (d *Dedup) Claim(ctx context.Context, eventID string) (bool, error) {
	ok, err := d.RDB.SetNX(ctx, fmt.Sprintf(KeyDedup, d.Service, eventID), "1", TTLDedup).Result()
	return ok, errors.Wrap(err, "claim event")
}

// Release forgets a claim so a failed event can be retried.
func (d *Dedup) Release(ctx context.Context, eventID string) error {
	return errors.Wrap(d.RDB.Del(ctx, fmt.Sprintf(KeyDedup, d.Service, eventID)).Err(), "release event")
}
