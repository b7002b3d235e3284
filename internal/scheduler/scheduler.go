// Package scheduler flushes engine output to the host once per tick.
package scheduler

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mattjoyce/enginehost/internal/command"
	"github.com/mattjoyce/enginehost/internal/events"
)

// Scheduler drains every source on each tick and forwards non-empty batches.
// Tick never blocks and never waits for an engine: output appended at time T
// is delivered by the first tick at or after T.
type Scheduler struct {
	sources []Source
	deliver DeliverFunc
	events  *events.Hub
	logger  *slog.Logger

	halted atomic.Bool
	ticks  atomic.Int64

	mu      sync.Mutex
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
}

// New creates a Scheduler. Sources are flushed in the order given. hub may
// be nil.
func New(sources []Source, deliver DeliverFunc, hub *events.Hub, logger *slog.Logger) *Scheduler {
	if deliver == nil {
		deliver = func(_ command.Engine, _ string) {}
	}
	return &Scheduler{
		sources: sources,
		deliver: deliver,
		events:  hub,
		logger:  logger,
	}
}

// Tick performs a single flush pass and returns the number of batches
// delivered. After Halt it does nothing.
func (s *Scheduler) Tick() int {
	if s.halted.Load() {
		return 0
	}
	s.ticks.Add(1)

	delivered := 0
	for _, src := range s.sources {
		if src.Empty() {
			continue
		}
		batch, ok := src.DrainAndFormat()
		if !ok {
			continue
		}
		delivered++
		s.logger.Debug("delivering output", "engine", src.Engine(), "lines", strings.Count(batch, "\n"))
		if s.events != nil {
			s.events.Publish(events.EngineOutput, events.OutputData{Engine: string(src.Engine()), Text: batch})
		}
		s.deliver(src.Engine(), batch)
	}
	return delivered
}

// Halt stops all further ticking. It is safe to call from any goroutine and
// more than once.
func (s *Scheduler) Halt() {
	if !s.halted.Swap(true) {
		s.logger.Info("output flushing halted", "ticks", s.ticks.Load())
	}
}

// Halted reports whether Halt has been called.
func (s *Scheduler) Halted() bool {
	return s.halted.Load()
}

// Ticks is the number of flush passes performed.
func (s *Scheduler) Ticks() int64 {
	return s.ticks.Load()
}

// Start runs Tick every interval on a background goroutine until Stop, Halt
// or ctx cancellation. That goroutine then acts as the host thread.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})

	s.wg.Add(1)
	go s.tickLoop(ctx, interval, s.stopCh)
}

// Stop ends the background loop started by Start and waits for it.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Scheduler) tickLoop(ctx context.Context, interval time.Duration, stopCh <-chan struct{}) {
	defer s.wg.Done()

	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	s.logger.Info("flush loop started", "interval", interval)
	defer s.logger.Info("flush loop stopped")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if s.halted.Load() {
				return
			}
			s.Tick()
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}
