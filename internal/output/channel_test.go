package output

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/enginehost/internal/command"
)

func TestDrainAndFormatCoalesces(t *testing.T) {
	c := New(command.Classical)
	c.Append("a")
	c.Append("b\n")
	c.Append("c")

	got, ok := c.DrainAndFormat()
	require.True(t, ok)
	assert.Equal(t, "a\nb\nc\n", got)
	assert.True(t, c.Empty())
}

func TestDrainAndFormatEmptyIsIdempotent(t *testing.T) {
	c := New(command.Neural)
	assert.True(t, c.Empty())

	for i := 0; i < 2; i++ {
		got, ok := c.DrainAndFormat()
		assert.False(t, ok)
		assert.Equal(t, "", got)
	}
}

func TestDrainAndFormatKeepsMultilineChunks(t *testing.T) {
	c := New(command.Classical)
	c.Append("info depth 1\ninfo depth 2")
	c.Append("")

	got, ok := c.DrainAndFormat()
	require.True(t, ok)
	assert.Equal(t, "info depth 1\ninfo depth 2\n\n", got)
}

func TestEmptyFlagTracksAppendAndDrain(t *testing.T) {
	c := New(command.Classical)
	assert.Equal(t, command.Classical, c.Engine())

	c.Append("x")
	assert.False(t, c.Empty())

	_, _ = c.DrainAndFormat()
	assert.True(t, c.Empty())
}

func TestConcurrentAppendDrainPreservesOrder(t *testing.T) {
	c := New(command.Neural)

	const n = 10000
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			c.Append(fmt.Sprintf("line %d", i))
		}
	}()

	var lines []string
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	drain := func() {
		if batch, ok := c.DrainAndFormat(); ok {
			lines = append(lines, strings.Split(strings.TrimSuffix(batch, "\n"), "\n")...)
		}
	}
	for {
		select {
		case <-done:
			drain()
			require.Len(t, lines, n)
			for i, l := range lines {
				require.Equal(t, fmt.Sprintf("line %d", i), l)
			}
			return
		default:
			drain()
		}
	}
}
