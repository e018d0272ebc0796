package spectatorgateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"tap-arena/internal/game"
	"tap-arena/internal/hub"
	"tap-arena/internal/store"

	"github.com/go-chi/chi/v5"
)

type RoundState struct {
	RoundID    string     `json:"roundId"`
	Status     game.Phase `json:"status"`
	TotalScore int64      `json:"totalScore"`
	Observers  int        `json:"observers"`
}

// StateHandler reports a round's public state without requiring a login.
func StateHandler(h *hub.Hub, rounds RoundReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		round, err := rounds.GetRound(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			status, code := http.StatusInternalServerError, "internal_error"
			if errors.Is(err, store.ErrNotFound) {
				status, code = http.StatusNotFound, "round_not_found"
			}
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": code})
			return
		}
		_ = json.NewEncoder(w).Encode(RoundState{
			RoundID:    round.ID,
			Status:     game.CurrentPhase(round.Window()),
			TotalScore: round.TotalScore,
			Observers:  len(h.Subscribers(round.ID)),
		})
	}
}
