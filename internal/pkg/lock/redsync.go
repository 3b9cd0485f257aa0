package lock

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
)

var ErrNotAcquired = errors.New("lock not acquired")

const (
	DefaultExpiry = 10 * time.Second
	DefaultTries  = 32
)

// Distributed wraps redsync so several api/cron processes share one lock space.
type Distributed struct {
	rs     *redsync.Redsync
	prefix string
	expiry time.Duration
	tries  int
}

func NewDistributed(rs *redsync.Redsync, prefix string) *Distributed {
	return &Distributed{rs: rs, prefix: prefix, expiry: DefaultExpiry, tries: DefaultTries}
}

func (d *Distributed) Lock(ctx context.Context, key string) (func(), error) {
	mutex := d.rs.NewMutex(d.prefix+key, redsync.WithExpiry(d.expiry), redsync.WithTries(d.tries))
	if err := mutex.LockContext(ctx); err != nil {
		return nil, errors.Join(ErrNotAcquired, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if _, err := mutex.UnlockContext(context.Background()); err != nil {
				slog.Warn("redsync unlock failed", "key", mutex.Name(), "error", err)
			}
		})
	}, nil
}
