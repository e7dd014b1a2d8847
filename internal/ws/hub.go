package ws

import (
	"context"
	"encoding/json"
	"sync"

	"trivia_backend/internal/domain"
	"trivia_backend/internal/event"
	"trivia_backend/internal/logger"
)

// Hub fans pool, draw and burn events out to the connected clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]struct{})}
}

// Subscribe wires the hub to the event bus.
func (h *Hub) Subscribe(bus *event.Bus) {
	bus.Subscribe(domain.EventNamePoolUpdated, func(ctx context.Context, e event.Event) error {
		p := e.(domain.EventPoolUpdated).Pool
		current := p.LotteryPool + p.RolloverIn
		if p.SnapshotTaken {
			current = p.FinalPool
		}
		h.Broadcast(Envelope{Type: MsgPoolUpdated, WeekID: p.WeekID, Data: PoolPayload{
			Status:            p.Status,
			TotalGames:        p.TotalGames,
			TotalLosses:       p.TotalLosses,
			ToBurnAccumulated: p.ToBurnAccumulated,
			CurrentPrizePool:  current,
		}})
		return nil
	})
	bus.Subscribe(domain.EventNameDrawCompleted, func(ctx context.Context, e event.Event) error {
		ev := e.(domain.EventDrawCompleted)
		h.Broadcast(Envelope{Type: MsgDrawCompleted, WeekID: ev.WeekID, Data: ev.Outcome})
		return nil
	})
	bus.Subscribe(domain.EventNameBurnCompleted, func(ctx context.Context, e event.Event) error {
		ev := e.(domain.EventBurnCompleted)
		h.Broadcast(Envelope{Type: MsgBurnCompleted, WeekID: ev.WeekID, Data: BurnPayload{Amount: ev.Amount, TxHash: ev.TxHash}})
		return nil
	})
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.Send)
	}
	h.mu.Unlock()
}

// Broadcast queues msg for every client following its week. Clients with a full
// buffer are dropped rather than slowing the publisher down.
func (h *Hub) Broadcast(msg Envelope) {
	b, err := json.Marshal(msg)
	if err != nil {
		logger.Error("ws marshal failed", "type", msg.Type, "error", err)
		return
	}

	var slow []*Client
	h.mu.RLock()
	for c := range h.clients {
		if !c.follows(msg.WeekID) {
			continue
		}
		select {
		case c.Send <- b:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		logger.Warn("ws client too slow, dropping", "remote", c.remote)
		h.unregister(c)
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.Send)
	}
}
