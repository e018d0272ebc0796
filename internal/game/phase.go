package game

import "time"

type Phase string

const (
	PhaseCooldown Phase = "cooldown"
	PhaseActive   Phase = "active"
	PhaseFinished Phase = "finished"
)

type Window struct {
	Start time.Time
	End   time.Time
}

// PhaseAt derives the phase of w at now. Both boundaries belong to the active phase.
func PhaseAt(w Window, now time.Time) Phase {
	switch {
	case now.Before(w.Start):
		return PhaseCooldown
	case now.After(w.End):
		return PhaseFinished
	default:
		return PhaseActive
	}
}

func CurrentPhase(w Window) Phase {
	return PhaseAt(w, time.Now())
}
