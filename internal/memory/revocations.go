package memory

import (
	"context"
	"sync"
	"time"
)

// Revocations keeps revoked token ids in process memory.
type Revocations struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func NewRevocations() *Revocations {
	return &Revocations{revoked: map[string]time.Time{}}
}

func (r *Revocations) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked[tokenID] = time.Now().Add(ttl)
	return nil
}

func (r *Revocations) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	until, ok := r.revoked[tokenID]
	if !ok {
		return false, nil
	}
	if time.Now().After(until) {
		delete(r.revoked, tokenID)
		return false, nil
	}
	return true, nil
}
