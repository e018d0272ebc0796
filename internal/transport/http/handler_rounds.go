package httptransport

import (
	"errors"
	"net/http"

	approunds "tap-arena/internal/app/rounds"
	"tap-arena/internal/auth"
	"tap-arena/internal/gateway"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

type RoundHandlers struct {
	svc *approunds.Service
}

func NewRoundHandlers(svc *approunds.Service) *RoundHandlers {
	return &RoundHandlers{svc: svc}
}

func (h *RoundHandlers) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset, ok := ParsePagination(r)
		if !ok {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		resp, err := h.svc.List(r.Context(), limit, offset)
		if err != nil {
			if errors.Is(err, approunds.ErrInvalidRequest) {
				WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
				return
			}
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (h *RoundHandlers) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := h.svc.Create(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("round_create_failed")
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		writeJSON(w, http.StatusCreated, resp)
	}
}

func (h *RoundHandlers) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, _ := auth.IdentityFrom(r.Context())
		resp, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"), caller)
		if err != nil {
			if errors.Is(err, approunds.ErrRoundNotFound) {
				WriteHTTPError(w, http.StatusNotFound, "round_not_found")
				return
			}
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (h *RoundHandlers) Tap() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, _ := auth.IdentityFrom(r.Context())
		roundID := chi.URLParam(r, "id")
		resp, err := h.svc.Tap(r.Context(), roundID, caller, "http")
		if err != nil {
			code := gateway.ErrorCode(err)
			if code == "internal_error" {
				log.Error().Err(err).Str("round_id", roundID).Msg("tap_failed")
			}
			WriteHTTPError(w, tapStatus(code), code)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func tapStatus(code string) int {
	switch code {
	case "round_not_found":
		return http.StatusNotFound
	case "round_not_active":
		return http.StatusBadRequest
	case "lock_acquisition_failed":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
