package spectatorgateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"tap-arena/internal/game"
	"tap-arena/internal/hub"
	"tap-arena/internal/metrics"
	"tap-arena/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

var pingInterval = 15 * time.Second

const streamBuffer = 16

type RoundReader interface {
	GetRound(ctx context.Context, id string) (game.Round, error)
}

// chanSender adapts a buffered channel to hub.Sender.
type chanSender chan hub.Event

func (c chanSender) Send(ev hub.Event) bool {
	select {
	case c <- ev:
		return true
	default:
		return false
	}
}

// EventsHandler streams a round's live totals as SSE. Spectators are read-only hub
// observers and never tap.
func EventsHandler(h *hub.Hub, rounds RoundReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roundID := chi.URLParam(r, "id")
		round, err := rounds.GetRound(r.Context(), roundID)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			if errors.Is(err, store.ErrNotFound) {
				w.WriteHeader(http.StatusNotFound)
				_ = json.NewEncoder(w).Encode(map[string]any{"error": "round_not_found"})
				return
			}
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "internal_error"})
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		SetSSEHeaders(w)

		events := make(chanSender, streamBuffer)
		id := h.Attach(events)
		defer h.Detach(id)
		metrics.SSEConnectionsTotal.Inc()
		metrics.SSEConnectionsActive.Inc()
		defer metrics.SSEConnectionsActive.Dec()
		log.Debug().Str("conn_id", string(id)).Str("round_id", roundID).Msg("spectator_connected")

		var seq int64
		next := func() string {
			seq++
			return strconv.FormatInt(seq, 10)
		}
		if err := h.Subscribe(id, roundID); err != nil {
			return
		}
		// Re-read after subscribing so no update falls between snapshot and stream.
		if fresh, err := rounds.GetRound(r.Context(), roundID); err == nil {
			round = fresh
		}
		snapshot := map[string]any{
			"roundId":    round.ID,
			"status":     game.CurrentPhase(round.Window()),
			"totalScore": round.TotalScore,
			"startTime":  round.StartTime,
			"endTime":    round.EndTime,
		}
		if err := WriteSSE(w, StreamEvent{EventID: next(), Event: "snapshot", Data: snapshot}); err != nil {
			return
		}
		ack := hub.Event{Type: hub.EventSubscribed, RoundID: roundID}
		if err := WriteSSE(w, StreamEvent{EventID: next(), Event: ack.Type, Data: ack}); err != nil {
			return
		}
		flusher.Flush()

		// Updates queued before the snapshot read may carry an older total.
		floor := round.TotalScore
		caughtUp := false
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-r.Context().Done():
				return
			case ev := <-events:
				if ev.TotalScore != nil {
					total := *ev.TotalScore
					if total < floor || (!caughtUp && total == floor) {
						continue
					}
					floor, caughtUp = total, true
				}
				if err := WriteSSE(w, StreamEvent{EventID: next(), Event: ev.Type, Data: ev}); err != nil {
					return
				}
				flusher.Flush()
			case <-ticker.C:
				ping := StreamEvent{Event: "ping", Data: map[string]any{"ts": time.Now().UnixMilli()}}
				if err := WriteSSE(w, ping); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}
