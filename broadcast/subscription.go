package broadcast

import (
	"context"
	"iter"
	"sync/atomic"
)

// Subscription is one listener on an UpdateBus. It is Active until it is
// unsubscribed, its context ends, or the bus closes; after that it is Closed
// for good.
type Subscription struct {
	id    string
	bus   *UpdateBus
	ctx   context.Context
	inbox chan string
	stop  func() bool

	closed  atomic.Bool
	dropped atomic.Uint64
}

func (s *Subscription) ID() string { return s.id }

// C returns the inbox. It is closed when the subscription ends.
func (s *Subscription) C() <-chan string { return s.inbox }

// Dropped is the number of values this subscriber skipped because it fell behind.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

func (s *Subscription) Closed() bool { return s.closed.Load() }

// Close unsubscribes from the bus.
func (s *Subscription) Close() { s.bus.Unsubscribe(s) }

// Values yields published values in order until the subscription ends or ctx
// is done. Values already consumed are not replayed by a second call.
func (s *Subscription) Values(ctx context.Context) iter.Seq[string] {
	return func(yield func(string) bool) {
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-s.inbox:
				if !ok || !yield(v) {
					return
				}
			}
		}
	}
}

// offer enqueues text without blocking. When the inbox is full the oldest
// queued value is evicted to make room. It reports false if anything was lost.
// Callers hold the bus lock, so there is a single producer per inbox.
func (s *Subscription) offer(text string) bool {
	select {
	case s.inbox <- text:
		return true
	default:
	}

	evicted := false
	select {
	case <-s.inbox:
		s.dropped.Add(1)
		evicted = true
	default:
	}

	select {
	case s.inbox <- text:
		return !evicted
	default:
		s.dropped.Add(1)
		return false
	}
}
