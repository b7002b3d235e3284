// Package output holds the per-engine text channels drained by the host.
package output

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mattjoyce/enginehost/internal/command"
)

// Channel is a single-producer/single-consumer FIFO of text chunks for one
// engine. The producer appends; the host drains on its tick. Nobody waits on
// a channel: it is polled.
type Channel struct {
	engine command.Engine

	mu     sync.Mutex
	chunks []string

	// empty is advisory. It lets a poller skip the lock on the common path and
	// may lag the real state by one append/drain cycle.
	empty atomic.Bool
}

// New creates an empty channel for engine.
func New(engine command.Engine) *Channel {
	c := &Channel{engine: engine}
	c.empty.Store(true)
	return c
}

// Engine returns the engine this channel carries output for.
func (c *Channel) Engine() command.Engine {
	return c.engine
}

// Append queues one chunk. It does not notify anyone.
func (c *Channel) Append(text string) {
	c.mu.Lock()
	c.chunks = append(c.chunks, text)
	c.empty.Store(false)
	c.mu.Unlock()
}

// Empty reports the advisory empty flag. A false negative or positive is
// corrected on the next tick; DrainAndFormat is authoritative.
func (c *Channel) Empty() bool {
	return c.empty.Load()
}

// DrainAndFormat removes every queued chunk and returns them concatenated,
// each terminated by exactly the newline it already had or one added. The
// boolean is false when nothing was queued.
func (c *Channel) DrainAndFormat() (string, bool) {
	c.mu.Lock()
	chunks := c.chunks
	c.chunks = nil
	c.empty.Store(true)
	c.mu.Unlock()

	if len(chunks) == 0 {
		return "", false
	}

	size := 0
	for _, s := range chunks {
		size += len(s) + 1
	}
	var b strings.Builder
	b.Grow(size)
	for _, s := range chunks {
		b.WriteString(s)
		if !strings.HasSuffix(s, "\n") {
			b.WriteByte('\n')
		}
	}
	return b.String(), true
}
