package hub

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

var ErrUnknownConn = errors.New("unknown_connection")

const (
	EventSubscribed   = "subscribed"
	EventUnsubscribed = "unsubscribed"
	EventRoundUpdate  = "round:update"
)

// Event is pushed to observers. TotalScore is only set for round updates. Subscribe
// and unsubscribe acknowledgements are written by the transport, never by the hub.
type Event struct {
	Type       string `json:"type"`
	RoundID    string `json:"roundId"`
	TotalScore *int64 `json:"totalScore,omitempty"`
}

// Sender must not block. It reports false when the event was dropped.
type Sender interface {
	Send(ev Event) bool
}

type ConnID string

// Hub tracks which observers follow which rounds. All state is process-local.
type Hub struct {
	mu     sync.Mutex
	conns  map[ConnID]*observer
	rounds map[string]map[ConnID]struct{}
	// high is the largest total already emitted per round. Entries live only
	// while the round has subscribers.
	high map[string]int64

	onDrop func(roundID string)
}

type observer struct {
	sender Sender
	rounds map[string]struct{}
}

func New() *Hub {
	return &Hub{
		conns:  map[ConnID]*observer{},
		rounds: map[string]map[ConnID]struct{}{},
		high:   map[string]int64{},
	}
}

// OnDrop registers a callback for updates a slow observer did not accept.
func (h *Hub) OnDrop(fn func(roundID string)) {
	h.mu.Lock()
	h.onDrop = fn
	h.mu.Unlock()
}

func (h *Hub) Attach(s Sender) ConnID {
	id := ConnID(uuid.NewString())
	h.mu.Lock()
	h.conns[id] = &observer{sender: s, rounds: map[string]struct{}{}}
	h.mu.Unlock()
	return id
}

// Detach unsubscribes id from every round and forgets it.
func (h *Hub) Detach(id ConnID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unsubscribeAllLocked(id)
	delete(h.conns, id)
}

func (h *Hub) Subscribe(id ConnID, roundID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	o, ok := h.conns[id]
	if !ok {
		return ErrUnknownConn
	}
	o.rounds[roundID] = struct{}{}
	subs, ok := h.rounds[roundID]
	if !ok {
		subs = map[ConnID]struct{}{}
		h.rounds[roundID] = subs
	}
	subs[id] = struct{}{}
	return nil
}

func (h *Hub) Unsubscribe(id ConnID, roundID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	o, ok := h.conns[id]
	if !ok {
		return ErrUnknownConn
	}
	delete(o.rounds, roundID)
	h.removeLocked(id, roundID)
	return nil
}

func (h *Hub) UnsubscribeAll(id ConnID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unsubscribeAllLocked(id)
}

// NotifyRound pushes total to every subscriber of roundID except exclude. A total
// lower than one already emitted for the round is discarded. Rounds without
// subscribers are not tracked.
func (h *Hub) NotifyRound(roundID string, total int64, exclude ConnID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.rounds[roundID]
	if len(subs) == 0 {
		return 0
	}
	if last, ok := h.high[roundID]; ok && total < last {
		log.Debug().Str("round_id", roundID).Int64("total_score", total).Int64("emitted", last).Msg("round_update_stale")
		return 0
	}
	h.high[roundID] = total
	sent := 0
	for id := range subs {
		if id == exclude {
			continue
		}
		if h.sendLocked(h.conns[id], Event{Type: EventRoundUpdate, RoundID: roundID, TotalScore: &total}) {
			sent++
		}
	}
	return sent
}

// Subscribers returns the connections currently following roundID.
func (h *Hub) Subscribers(roundID string) []ConnID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return lo.Keys(h.rounds[roundID])
}

// Rounds returns the rounds id follows.
func (h *Hub) Rounds(id ConnID) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	o, ok := h.conns[id]
	if !ok {
		return nil
	}
	return lo.Keys(o.rounds)
}

// Tracked reports how many rounds currently hold a high-water mark.
func (h *Hub) Tracked() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.high)
}

func (h *Hub) Stats() (conns, rounds int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns), len(h.rounds)
}

func (h *Hub) unsubscribeAllLocked(id ConnID) {
	o, ok := h.conns[id]
	if !ok {
		return
	}
	for roundID := range o.rounds {
		h.removeLocked(id, roundID)
	}
	o.rounds = map[string]struct{}{}
}

func (h *Hub) removeLocked(id ConnID, roundID string) {
	subs, ok := h.rounds[roundID]
	if !ok {
		return
	}
	delete(subs, id)
	if len(subs) == 0 {
		delete(h.rounds, roundID)
		delete(h.high, roundID)
	}
}

func (h *Hub) sendLocked(o *observer, ev Event) bool {
	if o == nil {
		return false
	}
	if o.sender.Send(ev) {
		return true
	}
	if h.onDrop != nil {
		h.onDrop(ev.RoundID)
	}
	return false
}
