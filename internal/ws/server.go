package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"tap-arena/internal/auth"
	"tap-arena/internal/game"
	"tap-arena/internal/gateway"
	"tap-arena/internal/hub"
	"tap-arena/internal/metrics"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
)

type Tapper interface {
	HandleTap(ctx context.Context, roundID string, p game.Participant) (game.TapResult, error)
}

type TokenVerifier interface {
	Verify(token string) (auth.Identity, error)
}

// Client is one authenticated connection. It is the hub's Sender for that connection.
type Client struct {
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	id       hub.ConnID
	identity auth.Identity
}

// Send queues a hub event without blocking.
func (c *Client) Send(ev hub.Event) bool {
	msg, err := json.Marshal(ev)
	if err != nil {
		return false
	}
	return safeSend(c.send, msg)
}

// reply queues a private frame for this client, waiting for buffer space.
func (c *Client) reply(ctx context.Context, v any) {
	msg, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("ws_encode_failed")
		return
	}
	defer func() { _ = recover() }()
	select {
	case c.send <- msg:
	case <-c.done:
	case <-ctx.Done():
	}
}

type Server struct {
	hub        *hub.Hub
	taps       Tapper
	tokens     TokenVerifier
	upgrader   websocket.Upgrader
	validate   *validator.Validate
	sendBuffer int
}

func NewServer(h *hub.Hub, taps Tapper, tokens TokenVerifier, sendBuffer int) *Server {
	if sendBuffer <= 0 {
		sendBuffer = 32
	}
	return &Server{
		hub:    h,
		taps:   taps,
		tokens: tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		sendBuffer: sendBuffer,
	}
}

func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	token := auth.TokenFromRequest(r)
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws_upgrade_failed")
		return
	}
	if token == "" {
		reject(conn, CloseTokenRequired, "TOKEN_REQUIRED")
		return
	}
	identity, err := s.tokens.Verify(token)
	if err != nil {
		log.Debug().Err(err).Msg("ws_invalid_token")
		reject(conn, CloseInvalidToken, "INVALID_TOKEN")
		return
	}

	c := &Client{
		conn:     conn,
		send:     make(chan []byte, s.sendBuffer),
		done:     make(chan struct{}),
		identity: identity,
	}
	c.id = s.hub.Attach(c)
	metrics.WSConnectionsTotal.Inc()
	metrics.WSConnectionsActive.Inc()
	log.Info().Str("conn_id", string(c.id)).Str("user_id", identity.UserID).Str("role", string(identity.Role)).Msg("ws_connected")

	go s.writeLoop(c)
	s.readLoop(r.Context(), c)
}

func reject(conn *websocket.Conn, code int, text string) {
	metrics.WSRejectedTotal.WithLabelValues(text).Inc()
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(writeWait))
	_ = conn.Close()
}

func (s *Server) readLoop(ctx context.Context, c *Client) {
	defer func() {
		s.hub.Detach(c.id)
		safeClose(c.send)
		_ = c.conn.Close()
		metrics.WSConnectionsActive.Dec()
		log.Info().Str("conn_id", string(c.id)).Str("user_id", c.identity.UserID).Msg("ws_disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("conn_id", string(c.id)).Msg("ws_read_error")
			}
			return
		}
		s.dispatch(ctx, c, msg)
	}
}

func (s *Server) writeLoop(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(c.done)
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) decode(raw []byte) (InboundMessage, error) {
	var in InboundMessage
	if err := json.Unmarshal(raw, &in); err != nil {
		return InboundMessage{}, ErrMalformedMessage
	}
	if err := s.validate.Struct(in); err != nil {
		return InboundMessage{}, ErrMalformedMessage
	}
	return in, nil
}

func (s *Server) dispatch(ctx context.Context, c *Client, raw []byte) {
	in, err := s.decode(raw)
	if err != nil {
		c.reply(ctx, newError(ErrMalformedMessage.Error(), "", ""))
		return
	}
	switch in.Type {
	case TypeSubscribe:
		if err := s.hub.Subscribe(c.id, in.RoundID); err != nil {
			c.reply(ctx, newError(hubErrorCode(err), in.RoundID, in.RequestID))
			return
		}
		c.reply(ctx, AckMessage{Type: hub.EventSubscribed, RoundID: in.RoundID, RequestID: in.RequestID})
	case TypeUnsubscribe:
		if err := s.hub.Unsubscribe(c.id, in.RoundID); err != nil {
			c.reply(ctx, newError(hubErrorCode(err), in.RoundID, in.RequestID))
			return
		}
		c.reply(ctx, AckMessage{Type: hub.EventUnsubscribed, RoundID: in.RoundID, RequestID: in.RequestID})
	case TypeTap:
		s.handleTap(ctx, c, in)
	}
}

func (s *Server) handleTap(ctx context.Context, c *Client, in InboundMessage) {
	started := time.Now()
	res, err := s.taps.HandleTap(ctx, in.RoundID, c.identity.Participant())
	code := gateway.ErrorCode(err)
	metrics.ObserveTap("ws", code, started)
	if err != nil {
		ev := log.Debug()
		if code == "internal_error" {
			ev = log.Error()
		}
		ev.Err(err).Str("round_id", in.RoundID).Str("user_id", c.identity.UserID).Msg("ws_tap_failed")
		c.reply(ctx, newError(code, in.RoundID, in.RequestID))
		return
	}
	c.reply(ctx, TapResultMessage{
		Type:       TypeTapResult,
		RoundID:    in.RoundID,
		MyScore:    res.MyScore,
		TotalScore: res.TotalScore,
		Taps:       res.Taps,
		RequestID:  in.RequestID,
	})
	s.hub.NotifyRound(in.RoundID, res.TotalScore, c.id)
}

func hubErrorCode(err error) string {
	if errors.Is(err, hub.ErrUnknownConn) {
		return hub.ErrUnknownConn.Error()
	}
	return "internal_error"
}

func safeClose(ch chan []byte) {
	defer func() {
		_ = recover()
	}()
	close(ch)
}

func safeSend(ch chan []byte, msg []byte) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case ch <- msg:
		return true
	default:
		return false
	}
}
