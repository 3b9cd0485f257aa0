package lock

import (
	"context"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

type slot struct {
	ch   chan struct{}
	refs int
}

// Local is an in-process keyed mutex. Slots are dropped once no goroutine
// holds or waits on them.
type Local struct {
	slots *xsync.MapOf[string, *slot]
}

func NewLocal() *Local {
	return &Local{slots: xsync.NewMapOf[string, *slot]()}
}

func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	s, _ := l.slots.Compute(key, func(old *slot, loaded bool) (*slot, bool) {
		if !loaded {
			old = &slot{ch: make(chan struct{}, 1)}
		}
		old.refs++
		return old, false
	})

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.release(key)
		})
	}, nil
}

func (l *Local) release(key string) {
	l.slots.Compute(key, func(old *slot, loaded bool) (*slot, bool) {
		if !loaded {
			return nil, true
		}
		old.refs--
		return old, old.refs <= 0
	})
}

func (l *Local) Len() int {
	return l.slots.Size()
}
