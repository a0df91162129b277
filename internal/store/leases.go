package store

import (
	"context"
	"fmt"
	"time"
)

// LeaseStore grants short-lived, named mutual-exclusion leases so that only
// one server replica runs a given background sweep (retention, command TTL
// expiry) at a time.
type LeaseStore struct {
	db DBTX
}

// NewLeaseStore creates a LeaseStore backed by db.
func NewLeaseStore(db DBTX) *LeaseStore {
	return &LeaseStore{db: db}
}

// Acquire attempts to take the named lease for holder, valid until
// now+ttl. It succeeds if the lease is unheld, already expired, or already
// held by holder (renewal); it fails if another holder's lease is still
// live.
func (s *LeaseStore) Acquire(ctx context.Context, name, holder string, now time.Time, ttl time.Duration) (bool, error) {
	expiresAt := now.Add(ttl)

	tag, err := s.db.Exec(ctx, `
		INSERT INTO leases (name, holder, acquired_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE
		SET holder = EXCLUDED.holder, acquired_at = EXCLUDED.acquired_at, expires_at = EXCLUDED.expires_at
		WHERE leases.expires_at < $3 OR leases.holder = $2`,
		name, holder, now, expiresAt)
	if err != nil {
		return false, fmt.Errorf("acquiring lease %q: %w", name, err)
	}
	return tag.RowsAffected() == 1, nil
}

// Release drops the lease if still held by holder, allowing another
// replica to acquire it immediately instead of waiting out the TTL.
func (s *LeaseStore) Release(ctx context.Context, name, holder string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM leases WHERE name = $1 AND holder = $2`, name, holder)
	if err != nil {
		return fmt.Errorf("releasing lease %q: %w", name, err)
	}
	return nil
}
