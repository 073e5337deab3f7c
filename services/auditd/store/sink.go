package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"corebtc/core/events"
	"corebtc/core/types"
	"corebtc/observability/metrics"
)

// Hub fans persisted records out to live subscribers. Slow subscribers miss
// records rather than blocking the engine.
type Hub struct {
	mu     sync.Mutex
	subs   map[uint64]chan EventRecord
	next   uint64
	buffer int
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{subs: make(map[uint64]chan EventRecord), buffer: buffer}
}

// Subscribe registers a subscriber. The returned cancel func closes the
// channel.
func (h *Hub) Subscribe() (<-chan EventRecord, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	ch := make(chan EventRecord, h.buffer)
	h.subs[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if sub, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(sub)
			}
		})
	}
}

func (h *Hub) Publish(record EventRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- record:
		default:
		}
	}
}

// Subscribers returns the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Sink persists engine events and publishes them to the hub. It implements
// events.Emitter.
type Sink struct {
	store  *Store
	hub    *Hub
	logger *slog.Logger
	nowFn  func() time.Time
}

func NewSink(store *Store, hub *Hub, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{store: store, hub: hub, logger: logger, nowFn: time.Now}
}

// SetNowFunc overrides the clock stamped on stored records.
func (s *Sink) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	s.nowFn = now
}

// Emit implements events.Emitter.
func (s *Sink) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	var payload *types.Event
	switch e := evt.(type) {
	case events.Payload:
		payload = e.Event()
	default:
		payload = &types.Event{Type: evt.EventType(), Attributes: map[string]string{}}
	}
	record, err := s.store.Append(context.Background(), payload, s.nowFn())
	if err != nil {
		s.logger.Error("audit event not persisted", slog.String("type", payload.Type), slog.Any("error", err))
		return
	}
	metrics.Lockers().ObserveAuditEvent(record.Type)
	if s.hub != nil {
		s.hub.Publish(*record)
	}
}
