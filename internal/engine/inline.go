package engine

import (
	"fmt"
	"strings"
)

// EngineFunc handles one command, emitting zero or more lines.
type EngineFunc func(cmd string, emit func(line string))

// WeightsFunc handles a weights buffer.
type WeightsFunc func(buf []byte, emit func(line string))

// Inline runs an EngineFunc on the calling (worker) goroutine.
type Inline struct {
	out Sink
	fn  EngineFunc
}

func NewInline(out Sink, fn EngineFunc) *Inline {
	return &Inline{out: out, fn: fn}
}

func (e *Inline) ProcessCommand(cmd string) {
	e.fn(cmd, e.out.Append)
}

// InlineNeural is an Inline engine that also accepts weights.
type InlineNeural struct {
	*Inline
	load WeightsFunc
}

func NewInlineNeural(out Sink, fn EngineFunc, load WeightsFunc) *InlineNeural {
	return &InlineNeural{Inline: NewInline(out, fn), load: load}
}

func (e *InlineNeural) LoadWeights(buf []byte) {
	e.load(buf, e.out.Append)
}

// Loopback answers the UCI handshake and echoes everything else. It stands in
// for a real engine in smoke tests and demos.
func Loopback(name string) EngineFunc {
	return func(cmd string, emit func(string)) {
		for _, line := range strings.Split(strings.TrimRight(cmd, "\n"), "\n") {
			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}
			switch fields[0] {
			case "uci":
				emit("id name " + name)
				emit("uciok")
			case "isready":
				emit("readyok")
			case "go":
				emit("info depth 1 multipv 1 score cp 0 pv 0000")
				emit("bestmove 0000")
			case "quit", "stop", "ucinewgame", "position", "setoption":
			default:
				emit("info string " + line)
			}
		}
	}
}

// NewLoopback returns an in-process classical stand-in.
func NewLoopback(out Sink, name string) *Inline {
	return NewInline(out, Loopback(name))
}

// NewLoopbackNeural returns an in-process neural stand-in that reports the
// digest of every weights buffer it receives.
func NewLoopbackNeural(out Sink, name string) *InlineNeural {
	return NewInlineNeural(out, Loopback(name), func(buf []byte, emit func(string)) {
		emit(fmt.Sprintf("info string weights %d bytes %s", len(buf), Digest(buf)[:12]))
	})
}
