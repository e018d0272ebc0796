package httptransport

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	appaccount "tap-arena/internal/app/account"
	approunds "tap-arena/internal/app/rounds"
	"tap-arena/internal/config"
	"tap-arena/internal/hub"
	"tap-arena/internal/metrics"
	"tap-arena/internal/spectatorgateway"
	"tap-arena/internal/ws"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// Deps is everything the router serves.
type Deps struct {
	Config   config.ServerConfig
	DB       Pinger
	Rounds   spectatorgateway.RoundReader
	Tokens   TokenVerifier
	Hub      *hub.Hub
	Accounts *appaccount.Service
	RoundSvc *approunds.Service
	WS       *ws.Server
	MCP      http.Handler
}

func NewRouter(d Deps) *chi.Mux {
	authHandlers := NewAuthHandlers(d.Accounts, d.Config.TokenTTL, d.Config.SecureCookie)
	roundHandlers := NewRoundHandlers(d.RoundSvc)
	loginLimiter := NewIPRateLimiter(d.Config.LoginRatePerSec, d.Config.LoginBurst)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(APILogMiddleware()).Get("/healthz", Health(d.DB))
	r.Handle("/metrics", metrics.Handler())
	r.Get("/ws", d.WS.HandleWS)

	if d.MCP != nil {
		r.With(APILogMiddleware()).MethodFunc(http.MethodOptions, "/mcp", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Allow", "POST, GET, DELETE, OPTIONS")
			w.WriteHeader(http.StatusNoContent)
		})
		r.With(APILogMiddleware()).Method(http.MethodPost, "/mcp", d.MCP)
		r.With(APILogMiddleware()).Method(http.MethodGet, "/mcp", d.MCP)
		r.With(APILogMiddleware()).Method(http.MethodDelete, "/mcp", d.MCP)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(APILogMiddleware())
		r.With(RateLimitMiddleware(loginLimiter)).Post("/auth/login", authHandlers.Login())
		r.Get("/rounds/{id}/events", spectatorgateway.EventsHandler(d.Hub, d.Rounds))
		r.Get("/rounds/{id}/state", spectatorgateway.StateHandler(d.Hub, d.Rounds))

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(d.Tokens))
			r.Get("/auth/me", authHandlers.Me())
			r.Get("/rounds", roundHandlers.List())
			r.Get("/rounds/{id}", roundHandlers.Get())
			r.Post("/rounds/{id}/tap", roundHandlers.Tap())
			r.With(AdminOnly).Post("/rounds", roundHandlers.Create())
		})
	})
	return r
}

func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 32)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	fmt.Fprintf(&b, "Registered routes (%d):\n", len(routes))
	for _, rt := range routes {
		fmt.Fprintf(&b, "  %-6s %s\n", rt.Method, rt.Path)
	}
	fmt.Print(b.String())
}
