// Package stream fans copy-trading events out to connected websocket clients.
package stream

import (
	"sync"

	"polyfolio/internal/models"
)

// Hub is a process-local broadcaster. Slow subscribers drop events rather
// than block a reconciliation pass.
type Hub struct {
	mu   sync.Mutex
	subs map[chan models.CopyTradingEvent]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: map[chan models.CopyTradingEvent]struct{}{}}
}

// Subscribe returns a buffered event channel and an unsubscribe func.
func (h *Hub) Subscribe() (<-chan models.CopyTradingEvent, func()) {
	ch := make(chan models.CopyTradingEvent, 16)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

func (h *Hub) Publish(ev models.CopyTradingEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
