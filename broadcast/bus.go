package broadcast

import (
	"context"
	"errors"
	"sync"

	"sharedpad/pkg/logger"

	"github.com/google/uuid"
)

const DefaultInboxSize = 16

// ErrClosed is returned by Subscribe once the bus has been shut down.
var ErrClosed = errors.New("broadcast: bus is closed")

type Option func(*UpdateBus)

// WithInboxSize sets the capacity of every subscriber inbox. Values below 1 are ignored.
func WithInboxSize(n int) Option {
	return func(b *UpdateBus) {
		if n >= 1 {
			b.inboxSize = n
		}
	}
}

// UpdateBus fans every published value out to all active subscriptions.
// Publish never blocks: a subscriber whose inbox is full loses its oldest
// queued value instead of stalling the publisher.
type UpdateBus struct {
	mu        sync.Mutex // protects subs and closed
	subs      map[*Subscription]struct{}
	closed    bool
	inboxSize int
}

func New(opts ...Option) *UpdateBus {
	b := &UpdateBus{
		subs:      make(map[*Subscription]struct{}),
		inboxSize: DefaultInboxSize,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a new subscriber. The subscription is removed when ctx
// is cancelled, when Unsubscribe is called, or when the bus is closed.
func (b *UpdateBus) Subscribe(ctx context.Context) (*Subscription, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	sub := &Subscription{
		id:    uuid.NewString(),
		bus:   b,
		ctx:   ctx,
		inbox: make(chan string, b.inboxSize),
	}
	// The new subscriber only sees values published from here on; nothing
	// published earlier is replayed.
	b.subs[sub] = struct{}{}
	// Registered under the lock so remove always sees stop set. When the
	// consumer's context ends (client disconnected) the subscription removes itself.
	sub.stop = context.AfterFunc(ctx, func() { b.Unsubscribe(sub) })
	count := len(b.subs)
	b.mu.Unlock()

	logger.Sugar.Debugw("Subscriber joined", "subscription", sub.id, "subscribers", count)
	return sub, nil
}

// Unsubscribe removes sub and closes its inbox. It is safe to call more than once.
func (b *UpdateBus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	removed := b.remove(sub)
	count := len(b.subs)
	b.mu.Unlock()

	if removed {
		logger.Sugar.Debugw("Subscriber left", "subscription", sub.id, "subscribers", count, "dropped", sub.Dropped())
	}
}

// Publish offers text to every current subscriber and returns immediately.
// With no subscribers the value is discarded.
func (b *UpdateBus) Publish(text string) {
	var lagging, gone []*Subscription

	// The whole fan-out happens under the bus lock. Unsubscribe closes
	// inboxes under the same lock, so a send here never hits a closed channel.
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	for sub := range b.subs {
		// Failed delivery: the consumer is gone, so drop it silently.
		if sub.ctx.Err() != nil {
			// Consumer went away before its AfterFunc ran.
			b.remove(sub)
			gone = append(gone, sub)
			continue
		}
		// offer never blocks. A full inbox loses its oldest value instead.
		if !sub.offer(text) {
			lagging = append(lagging, sub)
		}
	}
	b.mu.Unlock()

	// Logging happens outside the lock so slow log output cannot stall publishers.
	for _, sub := range gone {
		logger.Sugar.Debugw("Removed dead subscriber", "subscription", sub.id)
	}
	for _, sub := range lagging {
		logger.Sugar.Debugw("Subscriber lagging, skipped oldest update", "subscription", sub.id, "dropped", sub.Dropped())
	}
}

// Close shuts the bus down. Every active subscription is closed and later
// publishes are discarded.
func (b *UpdateBus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	count := len(b.subs)
	for sub := range b.subs {
		b.remove(sub)
	}
	b.mu.Unlock()

	logger.Sugar.Infow("Update bus closed", "subscribers", count)
}

// Len reports the number of active subscriptions.
func (b *UpdateBus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// remove must be called with b.mu held.
func (b *UpdateBus) remove(sub *Subscription) bool {
	if _, ok := b.subs[sub]; !ok {
		return false
	}
	delete(b.subs, sub)
	sub.closed.Store(true)
	close(sub.inbox)
	if sub.stop != nil {
		sub.stop()
	}
	return true
}
