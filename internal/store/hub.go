package store

import (
	"log"
	"sync"
	"sync/atomic"

	"agrimarket/internal/models"
)

// Hub fans out committed price writes to live subscribers. Delivery is
// non-blocking: a subscriber whose channel is full is dropped rather than
// allowed to stall the writer.
type Hub struct {
	mu   sync.RWMutex
	subs map[int64]chan models.PricePoint
	seq  atomic.Int64
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[int64]chan models.PricePoint),
	}
}

func (h *Hub) Subscribe() (int64, <-chan models.PricePoint) {
	id := h.seq.Add(1)
	ch := make(chan models.PricePoint, 64)

	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()

	return id, ch
}

// Unsubscribe closes the subscriber's channel. Safe to call more than
// once or for an unknown id.
func (h *Hub) Unsubscribe(id int64) {
	h.mu.Lock()
	ch, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
		close(ch)
	}
	h.mu.Unlock()
}

func (h *Hub) Broadcast(pt models.PricePoint) {
	var lagging []int64

	h.mu.RLock()
	for id, ch := range h.subs {
		select {
		case ch <- pt:
		default:
			lagging = append(lagging, id)
		}
	}
	h.mu.RUnlock()

	if len(lagging) == 0 {
		return
	}
	h.mu.Lock()
	for _, id := range lagging {
		if ch, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(ch)
			log.Printf("price hub: disconnected lagging subscriber %d (channel full)", id)
		}
	}
	h.mu.Unlock()
}
