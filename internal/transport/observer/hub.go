package observer

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"caravan.ai/internal/protocol"
)

// Hub fans plan events out to observers. Slow observers lose messages; the
// tick loop never waits on them.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]*subscriber

	dropped atomic.Uint64
}

type subscriber struct {
	out chan []byte

	mu       sync.RWMutex
	units    map[string]bool
	failures bool
}

func NewHub() *Hub {
	return &Hub{subs: map[string]*subscriber{}}
}

// Subscribe registers id and returns its outbound queue.
func (h *Hub) Subscribe(id string, sub protocol.SubscribeMsg, buffer int) <-chan []byte {
	if buffer <= 0 {
		buffer = 256
	}
	s := &subscriber{out: make(chan []byte, buffer)}
	s.update(sub)
	h.mu.Lock()
	if old, ok := h.subs[id]; ok {
		close(old.out)
	}
	h.subs[id] = s
	h.mu.Unlock()
	return s.out
}

// Update replaces the filter of an existing subscriber.
func (h *Hub) Update(id string, sub protocol.SubscribeMsg) bool {
	h.mu.RLock()
	s, ok := h.subs[id]
	h.mu.RUnlock()
	if ok {
		s.update(sub)
	}
	return ok
}

func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	if s, ok := h.subs[id]; ok {
		close(s.out)
		delete(h.subs, id)
	}
	h.mu.Unlock()
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

// RecordPlan lets the hub act as a plan sink.
func (h *Hub) RecordPlan(ev protocol.PlanEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.subs {
		if !s.wants(ev) {
			continue
		}
		select {
		case s.out <- b:
		default:
			h.dropped.Add(1)
		}
	}
	return nil
}

func (s *subscriber) update(sub protocol.SubscribeMsg) {
	units := map[string]bool{}
	for _, id := range sub.Units {
		if id != "" {
			units[id] = true
		}
	}
	s.mu.Lock()
	s.units = units
	s.failures = sub.IncludeFailures
	s.mu.Unlock()
}

func (s *subscriber) wants(ev protocol.PlanEvent) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if ev.Type != protocol.TypePlan && !s.failures {
		return false
	}
	return len(s.units) == 0 || s.units[ev.UnitID]
}
