// Package feed is an in-process publish/subscribe bus for live updates.
// Publishers never block: a subscriber whose buffer is full misses events.
package feed

import (
	"sync"
	"time"

	"realestate-token-hub/internal/observability"
)

// EventType names a live update.
type EventType string

// Wallet lifecycle events.
const (
	WalletConnected      EventType = "connected"
	WalletDisconnected   EventType = "disconnected"
	WalletAccountChanged EventType = "account_changed"
	WalletChainChanged   EventType = "chain_changed"
)

// Transaction and cache events.
const (
	TxPending      EventType = "tx_pending"
	TxCompleted    EventType = "tx_completed"
	TxFailed       EventType = "tx_failed"
	CacheRefreshed EventType = "cache_refreshed"
)

// DefaultBuffer is the per-subscriber queue length.
const DefaultBuffer = 64

// Event is a published update.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload,omitempty"`
	Time    int64     `json:"time"` // ms
}

// CachePayload accompanies CacheRefreshed.
type CachePayload struct {
	Cache   string `json:"cache"`
	Entries int    `json:"entries"`
}

// Publisher is implemented by Bus. Services depend on it so tests can
// pass Discard.
type Publisher interface {
	Publish(t EventType, payload any)
}

type discard struct{}

func (discard) Publish(EventType, any) {}

// Discard drops every event.
var Discard Publisher = discard{}

// Bus fans events out to subscribers.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	buffer int
	closed bool
	now    func() time.Time
}

// New creates a bus with the given per-subscriber buffer.
func New(buffer int) *Bus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Bus{
		subs:   make(map[uint64]*Subscription),
		buffer: buffer,
		now:    time.Now,
	}
}

// Subscription receives events until closed.
type Subscription struct {
	id   uint64
	ch   chan Event
	bus  *Bus
	once sync.Once
}

// Events returns the receive channel. It is closed when the subscription
// or the bus is closed.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Close unsubscribes. Safe to call more than once.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	s.closeLocked()
}

func (s *Subscription) closeLocked() {
	s.once.Do(func() {
		delete(s.bus.subs, s.id)
		close(s.ch)
		observability.AddFeedSubscribers(-1)
	})
}

// Subscribe registers a new subscriber. Subscribing to a closed bus returns
// an already closed subscription.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	s := &Subscription{id: b.nextID, ch: make(chan Event, b.buffer), bus: b}
	observability.AddFeedSubscribers(1)
	if b.closed {
		s.closeLocked()
		return s
	}
	b.subs[s.id] = s
	return s
}

// Publish delivers an event to every subscriber without blocking.
func (b *Bus) Publish(t EventType, payload any) {
	ev := Event{Type: t, Payload: payload, Time: b.now().UnixMilli()}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, s := range b.subs {
		select {
		case s.ch <- ev:
		default:
			observability.RecordFeedDropped()
		}
	}
}

// Subscribers returns the number of active subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes all subscriptions. Later publishes are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, s := range b.subs {
		s.closeLocked()
	}
}
