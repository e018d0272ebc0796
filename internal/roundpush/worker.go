package roundpush

import (
	"context"
	"errors"
	"time"

	"tap-arena/internal/metrics"
	"tap-arena/internal/roundpush/platforms"

	"github.com/rs/zerolog/log"
)

var errCircuitOpen = errors.New("circuit_open")

type panelMessageCleaner interface {
	ForgetPanel(endpoint, panelKey string)
}

func (m *Manager) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case job := <-m.dispatchCh:
			metrics.PushQueueLen.Set(float64(len(m.dispatchCh)))
			m.processJob(ctx, job)
		}
	}
}

func (m *Manager) processJob(ctx context.Context, job pushJob) {
	adapter := m.adapters[job.Target.Platform]
	if adapter == nil {
		metrics.PushJobsTotal.WithLabelValues("dropped").Inc()
		return
	}

	if err := m.beforeSend(job.key(), time.Now()); err != nil {
		metrics.PushJobsTotal.WithLabelValues("circuit_open").Inc()
		m.retryOrDrop(job, err)
		return
	}

	err := adapter.Send(ctx, job.Target.Endpoint, job.Target.Secret, toPlatformMessage(job.Formatted))
	if err != nil {
		metrics.PushJobsTotal.WithLabelValues("failed").Inc()
		m.afterFailure(job.key(), time.Now())
		m.retryOrDrop(job, err)
		return
	}

	metrics.PushJobsTotal.WithLabelValues("sent").Inc()
	m.afterSuccess(job.key())
	if job.PanelTerminal {
		if cleaner, ok := adapter.(panelMessageCleaner); ok {
			cleaner.ForgetPanel(job.Target.Endpoint, job.Formatted.PanelKey)
		}
	}
}

func (m *Manager) retryOrDrop(job pushJob, err error) bool {
	if job.Attempt >= m.cfg.RetryMax {
		metrics.PushJobsTotal.WithLabelValues("retry_dropped").Inc()
		log.Warn().Err(err).Str("platform", job.Target.Platform).Str("event", job.Event.EventType).Str("round_id", job.Event.RoundID).Msg("round_push_dropped")
		return false
	}
	job.Attempt++
	metrics.PushJobsTotal.WithLabelValues("retry").Inc()
	delay := m.cfg.RetryBase * time.Duration(1<<(job.Attempt-1))
	m.retryQ.Enqueue(job, delay)
	return true
}

func (m *Manager) beforeSend(key string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	state := m.breakerByKey[key]
	if !state.openUntil.IsZero() && now.Before(state.openUntil) {
		return errCircuitOpen
	}
	return nil
}

func (m *Manager) afterFailure(key string, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state := m.breakerByKey[key]
	state.consecutiveFailures++
	if state.consecutiveFailures >= m.cfg.FailureThreshold {
		state.openUntil = now.Add(m.cfg.CircuitOpenDuration)
		state.consecutiveFailures = 0
	}
	m.breakerByKey[key] = state
}

func (m *Manager) afterSuccess(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.breakerByKey, key)
}

func toPlatformMessage(msg FormattedMessage) platforms.Message {
	fields := make([]platforms.Field, 0, len(msg.Fields))
	for _, f := range msg.Fields {
		fields = append(fields, platforms.Field{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	return platforms.Message{
		PanelKey:    msg.PanelKey,
		Title:       msg.Title,
		Content:     msg.Content,
		Description: msg.Description,
		Color:       msg.Color,
		Timestamp:   msg.Timestamp,
		Footer:      msg.Footer,
		Fields:      fields,
	}
}
