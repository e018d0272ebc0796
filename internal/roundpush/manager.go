package roundpush

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"tap-arena/internal/game"
	"tap-arena/internal/hub"
	"tap-arena/internal/metrics"
	"tap-arena/internal/roundpush/platforms"
	"tap-arena/internal/store"

	"github.com/rs/zerolog/log"
)

type trackedRound struct {
	round      game.Round
	lastSentAt time.Time
	finish     *time.Timer
}

type breakerState struct {
	consecutiveFailures int
	openUntil           time.Time
}

// Manager follows rounds through the hub like any other observer and turns their
// lifecycle into webhook announcements.
type Manager struct {
	cfg      Config
	router   Router
	adapters map[string]platforms.Adapter
	rounds   RoundSource
	hub      *hub.Hub
	conn     hub.ConnID

	events     chan hub.Event
	dispatchCh chan pushJob
	retryQ     *retryQueue
	done       chan struct{}

	mu           sync.Mutex
	started      bool
	tracked      map[string]*trackedRound
	breakerByKey map[string]breakerState
}

func NewManager(cfg Config, rounds RoundSource, h *hub.Hub) *Manager {
	client := platforms.NewHTTPClient(cfg.RequestTimeout)
	adapters := map[string]platforms.Adapter{
		"discord": platforms.NewDiscordAdapter(client),
		"feishu":  platforms.NewFeishuAdapter(client),
		"webhook": platforms.NewWebhookAdapter(client),
	}
	if cfg.DispatchBuffer <= 0 {
		cfg.DispatchBuffer = 1024
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.UpdateMinInterval <= 0 {
		cfg.UpdateMinInterval = 3 * time.Second
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.CircuitOpenDuration <= 0 {
		cfg.CircuitOpenDuration = 30 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}

	m := &Manager{
		cfg:          cfg,
		adapters:     adapters,
		rounds:       rounds,
		hub:          h,
		events:       make(chan hub.Event, 256),
		dispatchCh:   make(chan pushJob, cfg.DispatchBuffer),
		done:         make(chan struct{}),
		tracked:      map[string]*trackedRound{},
		breakerByKey: map[string]breakerState{},
	}
	m.retryQ = newRetryQueue(m.dispatchCh, m.done)
	return m
}

// Start launches the workers and re-tracks rounds that have not finished yet.
func (m *Manager) Start(ctx context.Context) error {
	if !m.cfg.Enabled {
		return nil
	}

	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.conn = m.hub.Attach(m)
	m.mu.Unlock()

	for i := 0; i < m.cfg.Workers; i++ {
		go m.worker(ctx)
	}
	if m.cfg.ConfigPath != "" {
		go m.watchConfigLoop(ctx, m.cfg.loadedRaw)
	}
	go m.consume(ctx)
	go func() {
		<-ctx.Done()
		close(m.done)
		m.stopAll()
	}()

	if m.cfg.ResumeWindow > 0 {
		recent, err := m.rounds.ListRounds(ctx, m.cfg.ResumeWindow, 0)
		if err != nil {
			return err
		}
		now := time.Now()
		for _, r := range recent {
			if game.PhaseAt(r.Window(), now) != game.PhaseFinished {
				m.track(r)
			}
		}
	}
	log.Info().Int("targets", len(m.currentTargets())).Int("workers", m.cfg.Workers).Msg("round_push_started")
	return nil
}

// Send implements hub.Sender. It never blocks the hub.
func (m *Manager) Send(ev hub.Event) bool {
	select {
	case m.events <- ev:
		return true
	default:
		return false
	}
}

// OnRoundCreated announces r and follows it until it ends.
func (m *Manager) OnRoundCreated(r game.Round) {
	if !m.isStarted() {
		return
	}
	if !m.track(r) {
		return
	}
	m.dispatch(RoundEvent{
		EventType: EventRoundCreated,
		RoundID:   r.ID,
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
		At:        time.Now(),
	})
}

func (m *Manager) isStarted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started && m.cfg.Enabled
}

func (m *Manager) track(r game.Round) bool {
	m.mu.Lock()
	if _, ok := m.tracked[r.ID]; ok {
		m.mu.Unlock()
		return false
	}
	tr := &trackedRound{round: r}
	tr.finish = time.AfterFunc(time.Until(r.EndTime), func() { m.finishRound(r.ID) })
	m.tracked[r.ID] = tr
	conn := m.conn
	m.mu.Unlock()

	if err := m.hub.Subscribe(conn, r.ID); err != nil {
		log.Warn().Err(err).Str("round_id", r.ID).Msg("round_push_subscribe_failed")
	}
	return true
}

func (m *Manager) untrack(roundID string) (*trackedRound, bool) {
	m.mu.Lock()
	tr, ok := m.tracked[roundID]
	delete(m.tracked, roundID)
	conn := m.conn
	m.mu.Unlock()
	if ok {
		tr.finish.Stop()
		_ = m.hub.Unsubscribe(conn, roundID)
	}
	return tr, ok
}

func (m *Manager) stopAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.tracked))
	for id := range m.tracked {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	for _, id := range ids {
		m.untrack(id)
	}
	m.hub.Detach(m.conn)
}

func (m *Manager) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case ev := <-m.events:
			if ev.Type == hub.EventRoundUpdate && ev.TotalScore != nil {
				m.handleUpdate(ev.RoundID, *ev.TotalScore)
			}
		}
	}
}

// handleUpdate forwards at most one live total per UpdateMinInterval per round; the
// final total always goes out with round_finished.
func (m *Manager) handleUpdate(roundID string, total int64) {
	now := time.Now()
	m.mu.Lock()
	tr, ok := m.tracked[roundID]
	if !ok || (!tr.lastSentAt.IsZero() && now.Sub(tr.lastSentAt) < m.cfg.UpdateMinInterval) {
		m.mu.Unlock()
		return
	}
	tr.lastSentAt = now
	r := tr.round
	m.mu.Unlock()

	m.dispatch(RoundEvent{
		EventType:  EventRoundUpdate,
		RoundID:    roundID,
		StartTime:  r.StartTime,
		EndTime:    r.EndTime,
		TotalScore: total,
		At:         now,
	})
}

func (m *Manager) finishRound(roundID string) {
	tr, ok := m.untrack(roundID)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.RequestTimeout)
	defer cancel()

	r, err := m.rounds.GetRound(ctx, roundID)
	if err != nil {
		log.Error().Err(err).Str("round_id", roundID).Msg("round_push_finish_lookup_failed")
		r = tr.round
	}
	ev := RoundEvent{
		EventType:  EventRoundFinished,
		RoundID:    roundID,
		StartTime:  r.StartTime,
		EndTime:    r.EndTime,
		TotalScore: r.TotalScore,
		At:         time.Now(),
	}
	w, err := m.rounds.RoundWinner(ctx, roundID)
	switch {
	case err == nil:
		ev.Winner = &w
	case !errors.Is(err, store.ErrNotFound):
		log.Error().Err(err).Str("round_id", roundID).Msg("round_push_winner_lookup_failed")
	}
	m.dispatch(ev)
}

func (m *Manager) dispatch(ev RoundEvent) {
	targets := m.router.MatchTargets(m.currentTargets(), ev)
	if len(targets) == 0 {
		return
	}
	formatted, ok := FormatMessage(ev)
	if !ok {
		return
	}
	for _, target := range targets {
		job := pushJob{
			Target:        target,
			Event:         ev,
			Formatted:     formatted,
			PanelTerminal: ev.EventType == EventRoundFinished,
		}
		if !m.enqueue(job) {
			metrics.PushJobsTotal.WithLabelValues("dropped").Inc()
		}
	}
}

func (m *Manager) enqueue(job pushJob) bool {
	select {
	case <-m.done:
		return false
	case m.dispatchCh <- job:
		metrics.PushJobsTotal.WithLabelValues("queued").Inc()
		metrics.PushQueueLen.Set(float64(len(m.dispatchCh)))
		return true
	default:
		return false
	}
}

func (m *Manager) currentTargets() []PushTarget {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PushTarget, len(m.cfg.Targets))
	copy(out, m.cfg.Targets)
	return out
}

// watchConfigLoop polls the targets file and applies any text that differs from
// lastRaw, the text the current targets came from.
func (m *Manager) watchConfigLoop(ctx context.Context, lastRaw string) {
	interval := m.cfg.ConfigReload
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case <-ticker.C:
			raw, err := os.ReadFile(m.cfg.ConfigPath)
			if err != nil {
				metrics.PushConfigReloadTotal.WithLabelValues("error").Inc()
				continue
			}
			nextRaw := strings.TrimSpace(string(raw))
			if nextRaw == lastRaw {
				continue
			}
			targets, err := parseTargetsJSON(nextRaw)
			if err != nil {
				metrics.PushConfigReloadTotal.WithLabelValues("error").Inc()
				continue
			}
			m.mu.Lock()
			m.cfg.Targets = targets
			m.mu.Unlock()
			lastRaw = nextRaw
			metrics.PushConfigReloadTotal.WithLabelValues("ok").Inc()
			log.Info().Int("targets", len(targets)).Msg("round_push_targets_reloaded")
		}
	}
}
