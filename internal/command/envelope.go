package command

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Engine identifies one of the two engines behind the worker.
type Engine string

const (
	Classical Engine = "classical"
	Neural    Engine = "neural"
)

// Engines lists every engine in flush order.
var Engines = []Engine{Classical, Neural}

// ParseEngine accepts canonical names plus the short "fish"/"zero" aliases.
func ParseEngine(s string) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "classical", "fish":
		return Classical, nil
	case "neural", "zero":
		return Neural, nil
	default:
		return "", fmt.Errorf("unknown engine %q", s)
	}
}

// Envelope is implemented only by *Move, *WeightsLoad and *Shutdown.
type Envelope interface {
	ID() string
	EnqueuedAt() time.Time
	Kind() string
	sealed()
}

type meta struct {
	id         string
	enqueuedAt time.Time
}

func newMeta() meta {
	return meta{id: uuid.NewString(), enqueuedAt: time.Now().UTC()}
}

func (m meta) ID() string            { return m.id }
func (m meta) EnqueuedAt() time.Time { return m.enqueuedAt }
func (meta) sealed()                 {}

// Move is a protocol command for one engine.
type Move struct {
	meta
	Engine Engine
	Text   string
}

// WeightsLoad replaces the evaluation weights of an engine.
// Buffer is handed over, not copied; callers must not reuse it.
type WeightsLoad struct {
	meta
	Engine Engine
	Buffer []byte
}

// Shutdown stops the worker.
type Shutdown struct {
	meta
}

func NewMove(engine Engine, text string) *Move {
	return &Move{meta: newMeta(), Engine: engine, Text: text}
}

func NewWeightsLoad(engine Engine, buf []byte) *WeightsLoad {
	return &WeightsLoad{meta: newMeta(), Engine: engine, Buffer: buf}
}

func NewShutdown() *Shutdown {
	return &Shutdown{meta: newMeta()}
}

func (*Move) Kind() string        { return "move" }
func (*WeightsLoad) Kind() string { return "weights" }
func (*Shutdown) Kind() string    { return "shutdown" }
