// Package leaselock guards work items with expiring rows in app_locks.
//
// A holder renews its lease while it works. If it crashes the row expires
// and the next holder takes over, so a queued run is never executed twice
// at the same time but is not blocked forever either.
package leaselock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

var (
	// ErrBusy is returned when another holder owns an unexpired lease.
	ErrBusy = errors.New("lease lock busy")
	// ErrLost is the cause of a lease context whose renewal failed.
	ErrLost = errors.New("lease lock lost")
)

const (
	DefaultTTL = 2 * time.Minute

	renewAttempts = 3
	renewTimeout  = 15 * time.Second
)

type dbConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Locks hands out leases. Leases are renewed every TTL/2.
type Locks struct {
	db    dbConn
	owner string
	ttl   time.Duration
}

// Options configures Locks. Owner prefixes every lease token so operators
// can tell holders apart in app_locks.
type Options struct {
	Owner string
	TTL   time.Duration
}

func New(pool *pgxpool.Pool, opts Options) *Locks {
	return newLocks(pool, opts)
}

func newLocks(db dbConn, opts Options) *Locks {
	ttl := opts.TTL
	if ttl < 2*time.Second {
		ttl = DefaultTTL
	}
	return &Locks{db: db, owner: opts.Owner, ttl: ttl}
}

// RunKey is the lock key of the evaluation run id.
func RunKey(id string) string {
	return "run:" + id
}

// Hold runs fn while owning key. fn's context ends when ctx does or when
// the lease is lost; in the latter case the returned error wraps ErrLost.
// A key held by someone else yields ErrBusy without calling fn.
func (l *Locks) Hold(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if key == "" {
		return errors.New("lease lock key is empty")
	}

	suffix, err := gonanoid.New()
	if err != nil {
		return err
	}
	token := l.owner + suffix

	owned, err := l.claim(ctx, key, token)
	if err != nil {
		return fmt.Errorf("claim %s: %w", key, err)
	}
	if !owned {
		return ErrBusy
	}

	leaseCtx, cancel := context.WithCancelCause(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.keepAlive(leaseCtx, cancel, key, token)
	}()

	fnErr := fn(leaseCtx)
	lost := errors.Is(context.Cause(leaseCtx), ErrLost)

	cancel(context.Canceled)
	wg.Wait()
	if _, err := l.db.Exec(context.WithoutCancel(ctx), releaseSQL, key, token); err != nil && fnErr == nil {
		fnErr = fmt.Errorf("release %s: %w", key, err)
	}

	if lost {
		return errors.Join(fnErr, ErrLost)
	}
	return fnErr
}

func (l *Locks) claim(ctx context.Context, key, token string) (bool, error) {
	var got string
	err := l.db.QueryRow(ctx, claimSQL, key, token, l.ttl.Milliseconds()).Scan(&got)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return got == key, nil
}

func (l *Locks) keepAlive(ctx context.Context, cancel context.CancelCauseFunc, key, token string) {
	ticker := time.NewTicker(l.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.extend(ctx, key, token); err != nil {
				cancel(err)
				return
			}
		}
	}
}

// extend pushes the expiry out by one TTL, retrying transient errors.
func (l *Locks) extend(ctx context.Context, key, token string) error {
	var lastErr error
	for range renewAttempts {
		callCtx, cancel := context.WithTimeout(ctx, renewTimeout)
		var got string
		err := l.db.QueryRow(callCtx, extendSQL, key, token, l.ttl.Milliseconds()).Scan(&got)
		cancel()

		switch {
		case err == nil:
			return nil
		case errors.Is(err, pgx.ErrNoRows):
			return ErrLost
		case ctx.Err() != nil:
			return ctx.Err()
		}
		lastErr = err
	}
	return errors.Join(ErrLost, lastErr)
}

// claimSQL takes the row when it is free, expired or already ours.
const claimSQL = `
INSERT INTO app_locks AS l (lock_key, locked_by, expires_at)
VALUES ($1, $2, now() + make_interval(secs => $3::bigint / 1000.0))
ON CONFLICT (lock_key) DO UPDATE
SET locked_by = EXCLUDED.locked_by, expires_at = EXCLUDED.expires_at
WHERE l.expires_at < now() OR l.locked_by = EXCLUDED.locked_by
RETURNING lock_key;
`

const extendSQL = `
UPDATE app_locks
SET expires_at = now() + make_interval(secs => $3::bigint / 1000.0)
WHERE lock_key = $1 AND locked_by = $2
RETURNING lock_key;
`

const releaseSQL = `
DELETE FROM app_locks WHERE lock_key = $1 AND locked_by = $2;
`
