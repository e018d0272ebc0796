package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"tap-arena/internal/config"
	"tap-arena/internal/logging"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var errNoRound = errors.New("no active or upcoming round")

type outbound struct {
	Type      string `json:"type"`
	RoundID   string `json:"roundId"`
	RequestID string `json:"requestId,omitempty"`
}

type inbound struct {
	Type       string `json:"type"`
	RoundID    string `json:"roundId"`
	Code       string `json:"code"`
	MyScore    int64  `json:"myScore"`
	TotalScore *int64 `json:"totalScore"`
	Taps       int64  `json:"taps"`
	RequestID  string `json:"requestId"`
}

func main() {
	config.LoadDotEnv()
	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	logging.Init(logCfg)
	cfg, err := config.LoadBot()
	if err != nil {
		log.Fatal().Err(err).Msg("load bot config failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api := newAPIClient(cfg.APIURL)
	me, err := api.login(ctx, cfg.Username, cfg.Password)
	if err != nil {
		log.Fatal().Err(err).Msg("login failed")
	}
	log.Info().Str("user_id", me.User.ID).Str("role", me.User.Role).Msg("bot_logged_in")

	round, err := resolveRound(ctx, api, cfg.RoundID, me.User.Role == "admin")
	if err != nil {
		log.Fatal().Err(err).Msg("resolve round failed")
	}
	log.Info().Str("round_id", round.ID).Time("start_time", round.StartTime).Time("end_time", round.EndTime).Msg("bot_round_selected")

	u, err := url.Parse(cfg.WSURL)
	if err != nil {
		log.Fatal().Err(err).Msg("bad ws url")
	}
	q := u.Query()
	q.Set("token", api.token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		log.Fatal().Err(err).Msg("ws dial failed")
	}
	defer conn.Close()

	go readLoop(conn)
	if err := conn.WriteJSON(outbound{Type: "subscribe", RoundID: round.ID}); err != nil {
		log.Fatal().Err(err).Msg("subscribe failed")
	}

	if wait := time.Until(round.StartTime); wait > 0 {
		log.Info().Dur("wait", wait).Msg("bot_waiting_for_round")
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}

	tapLoop(ctx, conn, round, cfg.TapInterval)
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
}

func resolveRound(ctx context.Context, api *apiClient, roundID string, admin bool) (roundInfo, error) {
	if roundID != "" {
		return api.getRound(ctx, roundID)
	}
	items, err := api.listRounds(ctx)
	if err != nil {
		return roundInfo{}, err
	}
	if r, ok := pickRound(items); ok {
		return r, nil
	}
	if !admin {
		return roundInfo{}, errNoRound
	}
	return api.createRound(ctx)
}

func tapLoop(ctx context.Context, conn *websocket.Conn, round roundInfo, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	deadline := time.NewTimer(time.Until(round.EndTime))
	defer deadline.Stop()

	var seq int
	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			log.Info().Str("round_id", round.ID).Int("sent", seq).Msg("bot_round_over")
			return
		case <-ticker.C:
			seq++
			msg := outbound{Type: "tap", RoundID: round.ID, RequestID: requestID(seq)}
			if err := conn.WriteJSON(msg); err != nil {
				log.Error().Err(err).Msg("tap_send_failed")
				return
			}
		}
	}
}

func readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Debug().Err(err).Msg("ws_read_stopped")
			return
		}
		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Warn().Err(err).Msg("ws_bad_frame")
			continue
		}
		switch msg.Type {
		case "tap:result":
			log.Info().Str("request_id", msg.RequestID).Int64("my_score", msg.MyScore).Int64("total_score", msg.total()).Int64("taps", msg.Taps).Msg("tap_result")
		case "round:update":
			log.Debug().Int64("total_score", msg.total()).Msg("round_update")
		case "error":
			log.Warn().Str("code", msg.Code).Str("request_id", msg.RequestID).Msg("tap_error")
		default:
			log.Debug().Str("type", msg.Type).Msg("ws_event")
		}
	}
}

func (m inbound) total() int64 {
	if m.TotalScore == nil {
		return 0
	}
	return *m.TotalScore
}

func requestID(seq int) string {
	return fmt.Sprintf("tap-%d", seq)
}
