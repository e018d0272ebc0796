package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	appaccount "tap-arena/internal/app/account"
	"tap-arena/internal/auth"
	"tap-arena/internal/metrics"

	"github.com/rs/zerolog/log"
)

type AuthHandlers struct {
	svc          *appaccount.Service
	tokenTTL     time.Duration
	secureCookie bool
}

func NewAuthHandlers(svc *appaccount.Service, tokenTTL time.Duration, secureCookie bool) *AuthHandlers {
	return &AuthHandlers{svc: svc, tokenTTL: tokenTTL, secureCookie: secureCookie}
}

func (h *AuthHandlers) Login() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req appaccount.LoginRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
			metrics.LoginsTotal.WithLabelValues("invalid_request").Inc()
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		resp, err := h.svc.Login(r.Context(), req)
		if err != nil {
			switch {
			case errors.Is(err, appaccount.ErrInvalidRequest):
				metrics.LoginsTotal.WithLabelValues("invalid_request").Inc()
				WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			case errors.Is(err, appaccount.ErrInvalidCredentials):
				metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
				WriteHTTPError(w, http.StatusUnauthorized, "invalid_credentials")
			default:
				metrics.LoginsTotal.WithLabelValues("error").Inc()
				log.Error().Err(err).Msg("login_failed")
				WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			}
			return
		}
		metrics.LoginsTotal.WithLabelValues("ok").Inc()
		http.SetCookie(w, &http.Cookie{
			Name:     auth.CookieName,
			Value:    resp.Token,
			Path:     "/",
			MaxAge:   int(h.tokenTTL.Seconds()),
			HttpOnly: true,
			Secure:   h.secureCookie,
			SameSite: http.SameSiteLaxMode,
		})
		writeJSON(w, http.StatusOK, resp)
	}
}

func (h *AuthHandlers) Me() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, _ := auth.IdentityFrom(r.Context())
		resp, err := h.svc.Me(r.Context(), caller)
		if err != nil {
			if errors.Is(err, appaccount.ErrUserNotFound) {
				WriteHTTPError(w, http.StatusUnauthorized, "invalid_token")
				return
			}
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
