package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	appaccount "tap-arena/internal/app/account"
	approunds "tap-arena/internal/app/rounds"
	"tap-arena/internal/auth"
	"tap-arena/internal/config"
	"tap-arena/internal/gateway"
	"tap-arena/internal/hub"
	"tap-arena/internal/ledger"
	"tap-arena/internal/logging"
	"tap-arena/internal/mcpserver"
	"tap-arena/internal/metrics"
	"tap-arena/internal/roundpush"
	"tap-arena/internal/store"
	httptransport "tap-arena/internal/transport/http"
	"tap-arena/internal/ws"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

func main() {
	config.LoadDotEnv()
	cfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	logging.Init(cfg.Log)

	st, err := store.New(cfg.Server.PostgresDSN, store.WithLockTimeout(cfg.Server.TapLockTimeout))
	if err != nil {
		log.Fatal().Err(err).Msg("store init failed")
	}
	defer st.Close()
	if err := st.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("db ping failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r, err := newRouter(ctx, st, cfg.Server)
	if err != nil {
		log.Fatal().Err(err).Msg("router init failed")
	}
	httptransport.LogRoutes(r)

	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", cfg.Server.HTTPAddr).Msg("http listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server stopped")
	}
	log.Info().Msg("server stopped")
}

func newRouter(ctx context.Context, st *store.Store, cfg config.ServerConfig) (*chi.Mux, error) {
	h := hub.New()
	h.OnDrop(func(string) { metrics.HubDroppedTotal.Inc() })

	tokens := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	taps := gateway.New(st, ledger.New(st))
	roundSvc := approunds.NewService(st, taps, h, approunds.Timing{
		Cooldown: cfg.CooldownDuration,
		Duration: cfg.RoundDuration,
	})

	pushCfg, err := roundpush.ConfigFromServer(cfg)
	if err != nil {
		return nil, err
	}
	push := roundpush.NewManager(pushCfg, st, h)
	if err := push.Start(ctx); err != nil {
		return nil, err
	}
	roundSvc.WithAnnouncer(push)

	return httptransport.NewRouter(httptransport.Deps{
		Config:   cfg,
		DB:       st,
		Rounds:   st,
		Tokens:   tokens,
		Hub:      h,
		Accounts: appaccount.NewService(st, tokens),
		RoundSvc: roundSvc,
		WS:       ws.NewServer(h, taps, tokens, cfg.WSSendBuffer),
		MCP:      mcpserver.New(roundSvc, tokens, h).Handler(),
	}), nil
}
