package roundpush

import "testing"

func TestRouterMatchTargets(t *testing.T) {
	r := Router{}
	targets := []PushTarget{
		{Platform: "discord", Endpoint: "https://x/1", ScopeType: "all", Enabled: true},
		{Platform: "feishu", Endpoint: "https://x/2", ScopeType: "round", ScopeValue: "round_a", Enabled: true},
		{Platform: "discord", Endpoint: "https://x/3", ScopeType: "all", Enabled: true, EventAllowlist: []string{"round_finished"}},
		{Platform: "webhook", Endpoint: "https://x/4", ScopeType: "all", Enabled: false},
	}

	matched := r.MatchTargets(targets, RoundEvent{EventType: EventRoundUpdate, RoundID: "round_a"})
	if len(matched) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(matched))
	}

	matched = r.MatchTargets(targets, RoundEvent{EventType: EventRoundFinished, RoundID: "round_b"})
	if len(matched) != 2 {
		t.Fatalf("expected 2 targets for other round finish, got %d", len(matched))
	}

	matched = r.MatchTargets(targets, RoundEvent{EventType: EventRoundFinished, RoundID: "round_a"})
	if len(matched) != 3 {
		t.Fatalf("expected 3 targets, got %d", len(matched))
	}
}
