// Package stream fans out client state changes to interested views.
package stream

import (
	"sync"
	"sync/atomic"
	"time"
)

// Kind names what changed.
type Kind string

const (
	KindStocks      Kind = "stocks"
	KindTracked     Kind = "tracked"
	KindFavorites   Kind = "favorites"
	KindSuggestions Kind = "suggestions"
	KindRoster      Kind = "roster"
	KindError       Kind = "error"
	KindLoggedOut   Kind = "logged_out"
)

// Event is a change notification. Subscribers re-read state from its owner;
// the event itself only carries enough to route and display it.
type Event struct {
	Kind Kind
	At   time.Time
	// Detail is an optional short description, e.g. the failing operation.
	Detail string
	// Err is set for KindError events.
	Err error
}

// HubConfig holds configuration for the Hub.
type HubConfig struct {
	// SubscriberBufferSize is the size of each subscriber's channel buffer.
	SubscriberBufferSize int
}

// DefaultHubConfig returns the default hub configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{SubscriberBufferSize: 64}
}

// Hub distributes events to subscribers. Publish never blocks: a full
// subscriber buffer drops the event for that subscriber only.
type Hub struct {
	config HubConfig

	mu          sync.RWMutex
	subscribers map[*Subscriber]struct{}
	stopped     bool

	metricsMu sync.Mutex
	published uint64
	delivered uint64
	dropped   uint64
}

// Subscriber is a registered event channel.
type Subscriber struct {
	C         <-chan Event
	ch        chan Event
	kinds     map[Kind]bool
	dropped   atomic.Int64
	CreatedAt time.Time
}

// Dropped returns how many events were discarded because the buffer was
// full.
func (s *Subscriber) Dropped() int64 {
	return s.dropped.Load()
}

// wants reports whether the subscriber asked for kind. An empty filter
// receives everything.
func (s *Subscriber) wants(kind Kind) bool {
	return len(s.kinds) == 0 || s.kinds[kind]
}

// NewHub creates a hub with default configuration.
func NewHub() *Hub {
	return NewHubWithConfig(DefaultHubConfig())
}

// NewHubWithConfig creates a hub with custom configuration.
func NewHubWithConfig(config HubConfig) *Hub {
	if config.SubscriberBufferSize <= 0 {
		config.SubscriberBufferSize = DefaultHubConfig().SubscriberBufferSize
	}
	return &Hub{
		config:      config,
		subscribers: make(map[*Subscriber]struct{}),
	}
}

// Subscribe registers for the given kinds, or all kinds when none are given.
// Subscribing to a stopped hub returns an already-closed channel.
func (h *Hub) Subscribe(kinds ...Kind) *Subscriber {
	ch := make(chan Event, h.config.SubscriberBufferSize)
	sub := &Subscriber{
		C:         ch,
		ch:        ch,
		kinds:     make(map[Kind]bool, len(kinds)),
		CreatedAt: time.Now(),
	}
	for _, k := range kinds {
		sub.kinds[k] = true
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		close(ch)
		return sub
	}
	h.subscribers[sub] = struct{}{}
	return sub
}

// Unsubscribe removes sub and closes its channel.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[sub]; !ok {
		return
	}
	delete(h.subscribers, sub)
	close(sub.ch)
}

// Publish delivers ev to every interested subscriber. A zero At is stamped
// with the current time.
func (h *Hub) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return
	}

	var delivered, dropped uint64
	for sub := range h.subscribers {
		if !sub.wants(ev.Kind) {
			continue
		}
		select {
		case sub.ch <- ev:
			delivered++
		default:
			sub.dropped.Add(1)
			dropped++
		}
	}

	h.metricsMu.Lock()
	h.published++
	h.delivered += delivered
	h.dropped += dropped
	h.metricsMu.Unlock()
}

// Stop closes every subscriber channel. Later publishes are ignored.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return
	}
	h.stopped = true
	for sub := range h.subscribers {
		close(sub.ch)
		delete(h.subscribers, sub)
	}
}

// SubscriberCount returns the number of live subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// HubMetrics contains hub counters.
type HubMetrics struct {
	Published   uint64
	Delivered   uint64
	Dropped     uint64
	Subscribers int
}

// Metrics returns hub counters.
func (h *Hub) Metrics() HubMetrics {
	h.metricsMu.Lock()
	m := HubMetrics{
		Published: h.published,
		Delivered: h.delivered,
		Dropped:   h.dropped,
	}
	h.metricsMu.Unlock()
	m.Subscribers = h.SubscriberCount()
	return m
}
