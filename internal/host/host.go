// Package host wires the command queue, worker, output channels and flush
// scheduler into one process object driven by a cooperative host loop.
//
// The host side (a UI event loop, an HTTP front door, a ticker goroutine)
// only ever pushes commands and calls Tick; neither blocks. All engine work
// happens on the worker goroutine.
//
// Shutdown policy: every submission goes through one funnel. Once
// RequestShutdown has enqueued the Shutdown envelope, further submissions are
// rejected with ErrShuttingDown, so Shutdown is always the last envelope in
// the queue no matter how many goroutines submit.
package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/mattjoyce/enginehost/internal/command"
	"github.com/mattjoyce/enginehost/internal/dispatch"
	"github.com/mattjoyce/enginehost/internal/engine"
	"github.com/mattjoyce/enginehost/internal/events"
	"github.com/mattjoyce/enginehost/internal/log"
	"github.com/mattjoyce/enginehost/internal/output"
	"github.com/mattjoyce/enginehost/internal/queue"
	"github.com/mattjoyce/enginehost/internal/scheduler"
)

var (
	ErrShuttingDown       = errors.New("host is shutting down")
	ErrUnknownEngine      = errors.New("unknown engine")
	ErrWeightsUnsupported = errors.New("engine does not accept weights")
	ErrAlreadyStarted     = errors.New("host already started")
)

// EngineFactory builds an adapter writing into out.
type EngineFactory func(out *output.Channel) (engine.Adapter, error)

// Config describes the engines and optional collaborators of a Host.
type Config struct {
	Classical EngineFactory
	Neural    EngineFactory
	Journal   dispatch.Journal
	Events    *events.Hub
	Logger    *slog.Logger
}

// Host owns every piece of dispatcher state for one process.
type Host struct {
	queue    *queue.Queue
	channels map[command.Engine]*output.Channel
	engines  map[command.Engine]engine.Adapter
	loop     *dispatch.Loop
	sched    *scheduler.Scheduler
	logger   *slog.Logger

	listeners atomic.Pointer[[]scheduler.DeliverFunc]

	mu           sync.Mutex
	started      bool
	shuttingDown bool
}

// Stats is a point-in-time view of the host.
type Stats struct {
	QueueDepth   int
	WorkerState  dispatch.State
	Processed    int64
	Ticks        int64
	ShuttingDown bool
}

// New builds the host and its engines. The worker is not started.
func New(cfg Config) (*Host, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.WithComponent("host")
	}

	h := &Host{
		queue:    queue.New(),
		channels: make(map[command.Engine]*output.Channel),
		engines:  make(map[command.Engine]engine.Adapter),
		logger:   logger,
	}
	h.listeners.Store(&[]scheduler.DeliverFunc{})

	factories := map[command.Engine]EngineFactory{
		command.Classical: cfg.Classical,
		command.Neural:    cfg.Neural,
	}
	sources := make([]scheduler.Source, 0, len(command.Engines))
	for _, id := range command.Engines {
		factory := factories[id]
		if factory == nil {
			continue
		}
		ch := output.New(id)
		a, err := factory(ch)
		if err != nil {
			h.closeEngines()
			return nil, fmt.Errorf("start %s engine: %w", id, err)
		}
		h.channels[id] = ch
		h.engines[id] = a
		sources = append(sources, ch)
	}
	if len(h.engines) == 0 {
		return nil, fmt.Errorf("no engines configured")
	}

	opts := []dispatch.Option{dispatch.WithLogger(log.WithComponent("dispatch"))}
	if cfg.Journal != nil {
		opts = append(opts, dispatch.WithJournal(cfg.Journal))
	}
	if cfg.Events != nil {
		opts = append(opts, dispatch.WithEvents(cfg.Events))
	}
	h.loop = dispatch.New(h.queue, h.engines, opts...)
	h.sched = scheduler.New(sources, h.deliver, cfg.Events, log.WithComponent("scheduler"))
	return h, nil
}

// OnOutput registers fn to receive every delivered batch. Register listeners
// before ticking starts.
func (h *Host) OnOutput(fn scheduler.DeliverFunc) {
	for {
		old := h.listeners.Load()
		next := append(append([]scheduler.DeliverFunc(nil), *old...), fn)
		if h.listeners.CompareAndSwap(old, &next) {
			return
		}
	}
}

func (h *Host) deliver(e command.Engine, batch string) {
	for _, fn := range *h.listeners.Load() {
		fn(e, batch)
	}
}

// Start launches the worker goroutine. A host that was shut down before it
// started has already released its engines and cannot be started.
func (h *Host) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started {
		return ErrAlreadyStarted
	}
	if h.shuttingDown {
		return ErrShuttingDown
	}
	h.started = true
	h.loop.Start()
	h.logger.Info("host started", "engines", len(h.engines))
	return nil
}

// SubmitCommand enqueues protocol text for engine and returns the envelope ID.
func (h *Host) SubmitCommand(text string, e command.Engine) (string, error) {
	if _, ok := h.engines[e]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownEngine, e)
	}
	env := command.NewMove(e, text)
	return env.ID(), h.submit(env)
}

// SubmitWeights enqueues a weights buffer for engine. The buffer is handed
// over to the worker and must not be modified afterwards.
func (h *Host) SubmitWeights(buf []byte, e command.Engine) (string, error) {
	a, ok := h.engines[e]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownEngine, e)
	}
	if !engine.SupportsWeights(a) {
		return "", fmt.Errorf("%w: %q", ErrWeightsUnsupported, e)
	}
	env := command.NewWeightsLoad(e, buf)
	return env.ID(), h.submit(env)
}

// RequestShutdown enqueues the Shutdown envelope and halts output flushing.
func (h *Host) RequestShutdown() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.shuttingDown {
		return ErrShuttingDown
	}
	h.shuttingDown = true
	h.queue.Push(command.NewShutdown())
	h.sched.Halt()
	h.logger.Info("shutdown requested", "queue_depth", h.queue.Len())
	if !h.started {
		// Nobody will ever pop the Shutdown; release engines here instead.
		h.closeEngines()
	}
	return nil
}

func (h *Host) submit(env command.Envelope) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.shuttingDown {
		return ErrShuttingDown
	}
	h.queue.Push(env)
	return nil
}

// Tick performs one flush pass. Call it from the host loop only.
func (h *Host) Tick() int {
	return h.sched.Tick()
}

// Scheduler exposes the flush scheduler, e.g. to run a background tick loop.
func (h *Host) Scheduler() *scheduler.Scheduler {
	return h.sched
}

// Done is closed once the worker has processed Shutdown.
func (h *Host) Done() <-chan struct{} {
	return h.loop.Done()
}

// Wait blocks until the worker stops or ctx ends.
func (h *Host) Wait(ctx context.Context) error {
	select {
	case <-h.loop.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HasEngine reports whether e is configured.
func (h *Host) HasEngine(e command.Engine) bool {
	_, ok := h.engines[e]
	return ok
}

// SupportsWeights reports whether e is configured and accepts weights.
func (h *Host) SupportsWeights(e command.Engine) bool {
	a, ok := h.engines[e]
	return ok && engine.SupportsWeights(a)
}

// QueueDepth is the number of envelopes waiting for the worker.
func (h *Host) QueueDepth() int {
	return h.queue.Len()
}

// WorkerState reports whether the worker is still running.
func (h *Host) WorkerState() dispatch.State {
	return h.loop.State()
}

// Stats returns a snapshot for health reporting.
func (h *Host) Stats() Stats {
	h.mu.Lock()
	shuttingDown := h.shuttingDown
	h.mu.Unlock()
	return Stats{
		QueueDepth:   h.queue.Len(),
		WorkerState:  h.loop.State(),
		Processed:    h.loop.Processed(),
		Ticks:        h.sched.Ticks(),
		ShuttingDown: shuttingDown,
	}
}

func (h *Host) closeEngines() {
	for id, a := range h.engines {
		if c, ok := a.(io.Closer); ok {
			if err := c.Close(); err != nil {
				h.logger.Warn("engine close failed", "engine", id, "error", err)
			}
		}
	}
}
