package dispatch

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/enginehost/internal/command"
	"github.com/mattjoyce/enginehost/internal/engine"
	"github.com/mattjoyce/enginehost/internal/engine/mocks"
	"github.com/mattjoyce/enginehost/internal/events"
	"github.com/mattjoyce/enginehost/internal/log"
	"github.com/mattjoyce/enginehost/internal/output"
	"github.com/mattjoyce/enginehost/internal/queue"
	"github.com/mattjoyce/enginehost/internal/storage"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR") // Suppress logs in tests
	os.Exit(m.Run())
}

type fakeJournal struct {
	mu   sync.Mutex
	recs []storage.CommandRecord
}

func (j *fakeJournal) Record(_ context.Context, rec storage.CommandRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.recs = append(j.recs, rec)
	return nil
}

type closingEngine struct {
	engine.Adapter
	closed int
}

func (c *closingEngine) Close() error {
	c.closed++
	return nil
}

func TestLoopDispatchesInFIFOOrderAndStopsAtShutdown(t *testing.T) {
	ctrl := gomock.NewController(t)
	classical := mocks.NewMockAdapter(ctrl)
	neural := mocks.NewMockWeightsLoader(ctrl)

	weights := []byte{0x01, 0x02}
	gomock.InOrder(
		classical.EXPECT().ProcessCommand("uci"),
		neural.EXPECT().LoadWeights(weights),
		neural.EXPECT().ProcessCommand("go nodes 1"),
		classical.EXPECT().ProcessCommand("go depth 12"),
	)

	q := queue.New()
	q.Push(command.NewMove(command.Classical, "uci"))
	q.Push(command.NewWeightsLoad(command.Neural, weights))
	q.Push(command.NewMove(command.Neural, "go nodes 1"))
	q.Push(command.NewMove(command.Classical, "go depth 12"))
	q.Push(command.NewShutdown())
	q.Push(command.NewMove(command.Classical, "never dispatched"))

	l := New(q, map[command.Engine]engine.Adapter{
		command.Classical: classical,
		command.Neural:    neural,
	})
	require.Equal(t, Running, l.State())

	l.Run()

	assert.Equal(t, Stopped, l.State())
	assert.Equal(t, int64(5), l.Processed())
	assert.Equal(t, 1, q.Len(), "envelopes after Shutdown stay unprocessed")
	select {
	case <-l.Done():
	default:
		t.Fatal("Done not closed after Shutdown")
	}
}

func TestLoopReleasesEnginesOnShutdown(t *testing.T) {
	sink := output.New(command.Classical)
	classical := &closingEngine{Adapter: engine.NewLoopback(sink, "c")}
	neural := &closingEngine{Adapter: engine.NewLoopbackNeural(output.New(command.Neural), "n")}

	q := queue.New()
	q.Push(command.NewShutdown())

	New(q, map[command.Engine]engine.Adapter{
		command.Classical: classical,
		command.Neural:    neural,
	}).Run()

	assert.Equal(t, 1, classical.closed)
	assert.Equal(t, 1, neural.closed)
}

func TestLoopPanicsOnWeightsForEngineWithoutCapability(t *testing.T) {
	ctrl := gomock.NewController(t)
	classical := mocks.NewMockAdapter(ctrl)

	q := queue.New()
	q.Push(command.NewWeightsLoad(command.Classical, []byte{1}))

	l := New(q, map[command.Engine]engine.Adapter{command.Classical: classical})
	assert.Panics(t, l.Run)
}

func TestLoopPanicsOnUnknownEngine(t *testing.T) {
	q := queue.New()
	q.Push(command.NewMove(command.Neural, "uci"))

	l := New(q, map[command.Engine]engine.Adapter{})
	assert.Panics(t, l.Run)
}

func TestLoopJournalsAndPublishes(t *testing.T) {
	out := output.New(command.Classical)
	journal := &fakeJournal{}
	hub := events.NewHub(16)

	q := queue.New()
	mv := command.NewMove(command.Classical, "isready")
	sd := command.NewShutdown()
	q.Push(mv)
	q.Push(sd)

	New(q, map[command.Engine]engine.Adapter{
		command.Classical: engine.NewLoopback(out, "c"),
	}, WithJournal(journal), WithEvents(hub)).Run()

	require.Len(t, journal.recs, 2)
	assert.Equal(t, mv.ID(), journal.recs[0].ID)
	assert.Equal(t, "classical", journal.recs[0].Engine)
	assert.Equal(t, "isready", journal.recs[0].Payload)
	assert.False(t, journal.recs[0].CompletedAt.Before(journal.recs[0].StartedAt))
	assert.Equal(t, sd.ID(), journal.recs[1].ID)
	assert.Equal(t, "shutdown", journal.recs[1].Kind)

	var types []string
	for _, ev := range hub.SnapshotSince(0) {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []string{events.CommandStarted, events.CommandCompleted, events.WorkerStopped}, types)

	batch, ok := out.DrainAndFormat()
	require.True(t, ok)
	assert.Equal(t, "readyok\n", batch)
}

func TestLoopProcessesEverythingBeforeShutdown(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	record := func(cmd string, _ func(string)) {
		mu.Lock()
		seen = append(seen, cmd)
		mu.Unlock()
	}

	q := queue.New()
	l := New(q, map[command.Engine]engine.Adapter{
		command.Classical: engine.NewInline(output.New(command.Classical), record),
		command.Neural:    engine.NewInline(output.New(command.Neural), record),
	})
	l.Start()

	const k = 200
	var want []string
	for i := 0; i < k; i++ {
		id := command.Classical
		if i%3 == 0 {
			id = command.Neural
		}
		text := fmt.Sprintf("cmd %d", i)
		want = append(want, text)
		q.Push(command.NewMove(id, text))
	}
	q.Push(command.NewShutdown())

	select {
	case <-l.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, want, seen)
	assert.Equal(t, Stopped, l.State())
	assert.Equal(t, "stopped", l.State().String())
}
