package scheduler

import "github.com/mattjoyce/enginehost/internal/command"

// Source is the host-facing side of an engine output channel.
type Source interface {
	Engine() command.Engine
	Empty() bool
	DrainAndFormat() (string, bool)
}

// DeliverFunc receives one newline-terminated, non-empty batch of engine
// output on the ticking goroutine.
type DeliverFunc func(engine command.Engine, batch string)
