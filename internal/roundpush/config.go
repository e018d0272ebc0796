package roundpush

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"tap-arena/internal/config"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

var targetValidate = validator.New(validator.WithRequiredStructEnabled())

type targetRule struct {
	Platform  string `validate:"oneof=discord feishu webhook"`
	Endpoint  string `validate:"required,http_url"`
	ScopeType string `validate:"oneof=all round"`
}

func ConfigFromServer(cfg config.ServerConfig) (Config, error) {
	out := Config{
		Enabled:             cfg.PushEnabled,
		ConfigPath:          strings.TrimSpace(cfg.PushConfigPath),
		ConfigReload:        cfg.PushConfigReload,
		Workers:             cfg.PushWorkers,
		RetryMax:            cfg.PushRetryMax,
		RetryBase:           cfg.PushRetryBase,
		UpdateMinInterval:   cfg.PushUpdateMinInterval,
		FailureThreshold:    3,
		CircuitOpenDuration: 30 * time.Second,
		RequestTimeout:      5 * time.Second,
		DispatchBuffer:      1024,
		ResumeWindow:        50,
	}
	if !out.Enabled {
		return out, nil
	}
	if out.RetryMax < 0 {
		out.RetryMax = 0
	}

	raw, err := loadTargetsJSON(cfg)
	if err != nil {
		return Config{}, err
	}
	if raw == "" {
		return out, nil
	}
	targets, err := parseTargetsJSON(raw)
	if err != nil {
		return Config{}, err
	}
	out.Targets = targets
	out.loadedRaw = raw
	return out, nil
}

func loadTargetsJSON(cfg config.ServerConfig) (string, error) {
	path := strings.TrimSpace(cfg.PushConfigPath)
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read round push config %q: %w", path, err)
		}
		return strings.TrimSpace(string(raw)), nil
	}
	return strings.TrimSpace(cfg.PushTargetsJSON), nil
}

// parseTargetsJSON keeps enabled targets that pass validation and logs the rest.
func parseTargetsJSON(raw string) ([]PushTarget, error) {
	var targets []PushTarget
	if err := json.Unmarshal([]byte(raw), &targets); err != nil {
		return nil, fmt.Errorf("parse round push targets: %w", err)
	}
	filtered := make([]PushTarget, 0, len(targets))
	for _, target := range targets {
		if !target.Enabled {
			continue
		}
		target.Platform = strings.ToLower(strings.TrimSpace(target.Platform))
		target.ScopeType = strings.ToLower(strings.TrimSpace(target.ScopeType))
		if target.ScopeType == "" {
			target.ScopeType = "all"
		}
		target.Endpoint = strings.TrimSpace(target.Endpoint)
		rule := targetRule{Platform: target.Platform, Endpoint: target.Endpoint, ScopeType: target.ScopeType}
		if err := targetValidate.Struct(rule); err != nil {
			log.Warn().Err(err).Str("platform", target.Platform).Msg("round_push_target_skipped")
			continue
		}
		for i := range target.EventAllowlist {
			target.EventAllowlist[i] = strings.ToLower(strings.TrimSpace(target.EventAllowlist[i]))
		}
		filtered = append(filtered, target)
	}
	return filtered, nil
}
