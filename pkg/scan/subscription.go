package scan

import (
	"sync"
	"sync/atomic"
)

// Subscription is the handle of an installed peer-found subscription.
// Releasing a nil or already released subscription is a no-op.
type Subscription struct {
	stop     func()
	once     sync.Once
	released atomic.Bool
}

// NewSubscription creates a subscription that calls stop once released.
func NewSubscription(stop func()) *Subscription {
	return &Subscription{
		stop: stop,
	}
}

// Active returns whether the subscription has not been released yet.
func (s *Subscription) Active() bool {
	return s != nil && !s.released.Load()
}

// Release removes the subscription.
func (s *Subscription) Release() {
	// check subscription
	if s == nil {
		return
	}

	// stop once
	s.once.Do(func() {
		s.released.Store(true)
		if s.stop != nil {
			s.stop()
		}
	})
}
