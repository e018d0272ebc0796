package roundpush

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	colorCreated  = 0x5865F2
	colorUpdate   = 0x3BA55D
	colorFinished = 0xED4245
	colorNoWinner = 0xFEE75C

	shortIDLimit  = 10
	defaultFooter = "tap-arena round push"
)

// FormatMessage renders ev for chat webhooks. Updates and the final result share the
// round's panel key so platforms that support edits keep one message per round.
func FormatMessage(ev RoundEvent) (FormattedMessage, bool) {
	roundShort := shortID(fallback(ev.RoundID, "unknown"), shortIDLimit)
	base := FormattedMessage{
		Timestamp: eventTimestamp(ev.At),
		Footer:    defaultFooter,
	}
	window := []MessageField{
		{Name: "Start", Value: clockText(ev.StartTime), Inline: true},
		{Name: "End", Value: clockText(ev.EndTime), Inline: true},
	}

	switch ev.EventType {
	case EventRoundCreated:
		base.Title = fmt.Sprintf("New Round · %s", roundShort)
		base.Content = fmt.Sprintf("round %s opens at %s", roundShort, clockText(ev.StartTime))
		base.Description = "A new round is scheduled."
		base.Color = colorCreated
		base.Fields = window
	case EventRoundUpdate:
		base.PanelKey = ev.RoundID
		base.Title = fmt.Sprintf("Live · %s", roundShort)
		base.Content = fmt.Sprintf("round %s total %d", roundShort, ev.TotalScore)
		base.Description = fmt.Sprintf("Total score: %d", ev.TotalScore)
		base.Color = colorUpdate
		base.Fields = append(window, MessageField{Name: "Total", Value: strconv.FormatInt(ev.TotalScore, 10), Inline: true})
	case EventRoundFinished:
		base.PanelKey = ev.RoundID
		base.Title = fmt.Sprintf("Round Over · %s", roundShort)
		base.Color = colorFinished
		base.Fields = append(window, MessageField{Name: "Total", Value: strconv.FormatInt(ev.TotalScore, 10), Inline: true})
		if ev.Winner != nil {
			base.Content = fmt.Sprintf("round %s won by %s with %d", roundShort, ev.Winner.Username, ev.Winner.Score)
			base.Description = fmt.Sprintf("Winner: %s (%d points)", ev.Winner.Username, ev.Winner.Score)
			base.Fields = append(base.Fields,
				MessageField{Name: "Winner", Value: ev.Winner.Username, Inline: true},
				MessageField{Name: "Score", Value: strconv.FormatInt(ev.Winner.Score, 10), Inline: true},
			)
		} else {
			base.Content = fmt.Sprintf("round %s ended without a winner", roundShort)
			base.Description = "No points were scored."
			base.Color = colorNoWinner
		}
	default:
		return FormattedMessage{}, false
	}
	return base, true
}

func clockText(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("15:04:05 MST")
}

func shortID(v string, max int) string {
	if max <= 0 || len(v) <= max {
		return v
	}
	return v[len(v)-max:]
}

func eventTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func fallback(v, d string) string {
	if strings.TrimSpace(v) == "" {
		return d
	}
	return v
}
