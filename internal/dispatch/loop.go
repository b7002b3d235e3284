package dispatch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sort"
	"sync/atomic"
	"time"

	"github.com/mattjoyce/enginehost/internal/command"
	"github.com/mattjoyce/enginehost/internal/engine"
	"github.com/mattjoyce/enginehost/internal/events"
	"github.com/mattjoyce/enginehost/internal/log"
	"github.com/mattjoyce/enginehost/internal/storage"
)

// journalTimeout bounds a single journal write so a slow disk cannot stall
// the worker indefinitely.
const journalTimeout = 2 * time.Second

// State is the worker lifecycle. Running is the only non-terminal state.
type State int32

const (
	Running State = iota
	Stopped
)

func (s State) String() string {
	if s == Stopped {
		return "stopped"
	}
	return "running"
}

// Source is the consumer side of the command queue.
type Source interface {
	Pop() command.Envelope
}

// Journal records dispatched envelopes.
type Journal interface {
	Record(ctx context.Context, rec storage.CommandRecord) error
}

// Loop is the worker.
type Loop struct {
	source  Source
	engines map[command.Engine]engine.Adapter
	journal Journal
	events  *events.Hub
	logger  *slog.Logger

	state     atomic.Int32
	processed atomic.Int64
	done      chan struct{}
}

// Option configures a Loop.
type Option func(*Loop)

// WithJournal records every dispatched envelope.
func WithJournal(j Journal) Option {
	return func(l *Loop) { l.journal = j }
}

// WithEvents publishes command.* and worker.stopped events to hub.
func WithEvents(hub *events.Hub) Option {
	return func(l *Loop) { l.events = hub }
}

// WithLogger overrides the component logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

// New creates a worker loop over engines. The map is copied.
func New(src Source, engines map[command.Engine]engine.Adapter, opts ...Option) *Loop {
	l := &Loop{
		source:  src,
		engines: make(map[command.Engine]engine.Adapter, len(engines)),
		logger:  log.WithComponent("dispatch"),
		done:    make(chan struct{}),
	}
	for id, a := range engines {
		l.engines[id] = a
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start runs the loop on its own goroutine, pinned to an OS thread since
// engine calls are CPU-bound.
func (l *Loop) Start() {
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		l.Run()
	}()
}

// Run pops and dispatches until a Shutdown envelope is processed. It must be
// called at most once.
func (l *Loop) Run() {
	l.logger.Info("worker loop started", "engines", l.engineNames())
	defer l.logger.Info("worker loop stopped", "processed", l.processed.Load())

	for {
		env := l.source.Pop()
		if !l.dispatch(env) {
			return
		}
	}
}

// State reports the current lifecycle state.
func (l *Loop) State() State {
	return State(l.state.Load())
}

// Processed is the number of envelopes dispatched so far, Shutdown included.
func (l *Loop) Processed() int64 {
	return l.processed.Load()
}

// Done is closed once the loop has stopped and released its engines.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// dispatch executes one envelope and reports whether the loop should continue.
func (l *Loop) dispatch(env command.Envelope) bool {
	cmdLogger := log.WithCommand(env.ID()).With("kind", env.Kind())
	started := time.Now().UTC()

	rec := storage.CommandRecord{
		ID:         env.ID(),
		Kind:       env.Kind(),
		EnqueuedAt: env.EnqueuedAt(),
		StartedAt:  started,
	}

	switch e := env.(type) {
	case *command.Move:
		rec.Engine, rec.Payload, rec.PayloadBytes = string(e.Engine), e.Text, len(e.Text)
		l.publish(events.CommandStarted, events.CommandData{CommandID: e.ID(), Kind: e.Kind(), Engine: string(e.Engine)})
		cmdLogger.Debug("dispatching command", "engine", e.Engine, "text", e.Text)
		l.adapter(e.Engine).ProcessCommand(e.Text)

	case *command.WeightsLoad:
		rec.Engine, rec.PayloadBytes = string(e.Engine), len(e.Buffer)
		l.publish(events.CommandStarted, events.CommandData{CommandID: e.ID(), Kind: e.Kind(), Engine: string(e.Engine)})
		loader, ok := l.adapter(e.Engine).(engine.WeightsLoader)
		if !ok {
			panic(fmt.Sprintf("dispatch: engine %q does not accept weights", e.Engine))
		}
		cmdLogger.Info("loading weights", "engine", e.Engine, "bytes", len(e.Buffer))
		loader.LoadWeights(e.Buffer)

	case *command.Shutdown:
		l.state.Store(int32(Stopped))
		l.releaseEngines()
		l.processed.Add(1)
		rec.CompletedAt = time.Now().UTC()
		l.record(cmdLogger, rec)
		l.publish(events.WorkerStopped, events.CommandData{CommandID: e.ID(), Kind: e.Kind()})
		close(l.done)
		return false

	default:
		panic(fmt.Sprintf("dispatch: unknown envelope type %T", env))
	}

	l.processed.Add(1)
	rec.CompletedAt = time.Now().UTC()
	l.record(cmdLogger, rec)
	l.publish(events.CommandCompleted, events.CommandData{
		CommandID:  rec.ID,
		Kind:       rec.Kind,
		Engine:     rec.Engine,
		DurationMS: rec.Duration().Milliseconds(),
	})
	return true
}

func (l *Loop) adapter(id command.Engine) engine.Adapter {
	a, ok := l.engines[id]
	if !ok || a == nil {
		panic(fmt.Sprintf("dispatch: no adapter for engine %q", id))
	}
	return a
}

// releaseEngines closes every adapter holding resources, in a stable order.
func (l *Loop) releaseEngines() {
	for _, name := range l.engineNames() {
		closer, ok := l.engines[command.Engine(name)].(io.Closer)
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil {
			l.logger.Warn("engine close failed", "engine", name, "error", err)
		}
	}
}

func (l *Loop) record(logger *slog.Logger, rec storage.CommandRecord) {
	if l.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()
	if err := l.journal.Record(ctx, rec); err != nil {
		logger.Warn("journal write failed", "error", err)
	}
}

func (l *Loop) publish(eventType string, data events.CommandData) {
	if l.events != nil {
		l.events.Publish(eventType, data)
	}
}

func (l *Loop) engineNames() []string {
	names := make([]string, 0, len(l.engines))
	for id := range l.engines {
		names = append(names, string(id))
	}
	sort.Strings(names)
	return names
}
