package tui

import (
	"strings"
	"time"
)

// Ticker rotates on every flush tick. A frozen ticker means the event loop
// is blocked.
type Ticker struct {
	frames []string
	index  int
}

func NewTicker() Ticker {
	return Ticker{frames: []string{"⟲", "⟳"}}
}

func (t *Ticker) Tick() {
	t.index = (t.index + 1) % len(t.frames)
}

func (t Ticker) Current() string {
	return t.frames[t.index]
}

// Activity lights up when an engine delivers output and fades over a few
// seconds of silence.
type Activity struct {
	dots     int
	lastSeen time.Time
}

func (a *Activity) OnOutput(now time.Time) {
	a.dots = 5
	a.lastSeen = now
}

// Decay fades the dots based on time since the last output.
func (a *Activity) Decay(now time.Time) {
	if a.dots == 0 {
		return
	}
	elapsed := now.Sub(a.lastSeen)
	switch {
	case elapsed > 5*time.Second:
		a.dots = 0
	case elapsed > 4*time.Second:
		a.dots = 1
	case elapsed > 3*time.Second:
		a.dots = 2
	case elapsed > 2*time.Second:
		a.dots = 3
	case elapsed > time.Second:
		a.dots = 4
	}
}

func (a Activity) Render(theme Theme) string {
	var result strings.Builder
	for i := range 5 {
		if i < a.dots {
			result.WriteString(theme.TickerActive.Render("●"))
		} else {
			result.WriteString(theme.TickerInactive.Render("○"))
		}
	}
	return result.String()
}
