package redisx

import (
	"context"
	"fmt"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"time"
)

// Revocations implements auth.Revocations; entries expire with the token.
type Revocations struct{ RDB *redis.Client }

func (r *Revocations) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	return errors.Wrap(r.RDB.Set(ctx, fmt.Sprintf(KeyRevokedToken, tokenID), "1", ttl).Err(), "revoke token")
}

func (r *Revocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	ok, err := Exists(ctx, r.RDB, fmt.Sprintf(KeyRevokedToken, tokenID))
	return ok, errors.Wrap(err, "check revoked token")
}
