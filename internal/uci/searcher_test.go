package uci

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/enginehost/internal/command"
	"github.com/mattjoyce/enginehost/internal/engine"
	"github.com/mattjoyce/enginehost/internal/host"
	"github.com/mattjoyce/enginehost/internal/log"
	"github.com/mattjoyce/enginehost/internal/output"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR") // Suppress logs in tests
	os.Exit(m.Run())
}

type sent struct {
	engine command.Engine
	text   string
}

type fakeHost struct {
	mu      sync.Mutex
	sent    []sent
	weights int
	fail    error
	engines map[command.Engine]bool
}

func newFakeHost() *fakeHost {
	return &fakeHost{engines: map[command.Engine]bool{command.Classical: true, command.Neural: true}}
}

func (f *fakeHost) SubmitCommand(text string, e command.Engine) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return "", f.fail
	}
	f.sent = append(f.sent, sent{e, text})
	return "id", nil
}

func (f *fakeHost) SubmitWeights(buf []byte, _ command.Engine) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return "", f.fail
	}
	f.weights += len(buf)
	return "id", nil
}

func (f *fakeHost) HasEngine(e command.Engine) bool { return f.engines[e] }

func (f *fakeHost) texts() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.sent...)
}

func TestGoFishSendsSearchCommands(t *testing.T) {
	h := newFakeHost()
	s := NewSearcher(h)

	_, err := s.GoFish("8/8/8/8/8/8/8/K6k w - - 0 1", SearchOpts{})
	require.NoError(t, err)
	_, err = s.GoFish("startpos-fen", SearchOpts{PVs: 3, MoveTime: 250 * time.Millisecond})
	require.NoError(t, err)

	assert.Equal(t, []sent{
		{command.Classical, "setoption name MultiPV value 1"},
		{command.Classical, "position fen 8/8/8/8/8/8/8/K6k w - - 0 1"},
		{command.Classical, "go depth 12"},
		{command.Classical, "setoption name MultiPV value 3"},
		{command.Classical, "position fen startpos-fen"},
		{command.Classical, "go movetime 250"},
	}, h.texts())
}

func TestGoFishCollectsPVsUntilBestMove(t *testing.T) {
	s := NewSearcher(newFakeHost())
	ch, err := s.GoFish("fen", SearchOpts{PVs: 2, Depth: 4})
	require.NoError(t, err)

	s.Observe(command.Classical, "info depth 3 multipv 1 score cp 20 pv e2e4\ninfo depth 3 multipv 2 score cp 10 pv d2d4\n")
	s.Observe(command.Neural, "bestmove a2a3\n")
	select {
	case <-ch:
		t.Fatal("neural output must not resolve a classical search")
	default:
	}

	s.Observe(command.Classical, "info depth 4 multipv 1 score cp 25 pv e2e4 e7e5\nbestmove e2e4\n")
	pvs := <-ch
	require.Len(t, pvs, 2)
	assert.Equal(t, []string{"e2e4", "e7e5"}, pvs[0].Moves)
	assert.Equal(t, 4, pvs[0].Depth)
	assert.Equal(t, 10, pvs[1].Score)
}

func TestGoFishReplacesPendingSearch(t *testing.T) {
	s := NewSearcher(newFakeHost())
	first, err := s.GoFish("a", SearchOpts{})
	require.NoError(t, err)
	second, err := s.GoFish("b", SearchOpts{})
	require.NoError(t, err)

	_, ok := <-first
	assert.False(t, ok, "replaced search is closed without a result")

	s.Observe(command.Classical, "info depth 1 pv h2h3\nbestmove h2h3\n")
	pvs, ok := <-second
	require.True(t, ok)
	assert.Equal(t, []string{"h2h3"}, pvs[0].Moves)
}

func TestGoFishSubmitError(t *testing.T) {
	h := newFakeHost()
	h.fail = host.ErrShuttingDown
	s := NewSearcher(h)
	_, err := s.GoFish("fen", SearchOpts{})
	assert.ErrorIs(t, err, host.ErrShuttingDown)
}

func TestGoZeroRequiresWeights(t *testing.T) {
	h := newFakeHost()
	s := NewSearcher(h)
	_, err := s.GoZero("fen")
	assert.ErrorIs(t, err, ErrNoWeights)

	require.NoError(t, s.LoadWeights([]byte{1, 2, 3}))
	assert.True(t, s.Weighted())
	assert.Equal(t, 3, h.weights)

	ch, err := s.GoZero("fen")
	require.NoError(t, err)
	assert.Equal(t, []sent{
		{command.Neural, "position fen fen"},
		{command.Neural, "go nodes 1"},
	}, h.texts())

	s.Observe(command.Neural, "info string nodes 1\nbestmove g1f3\n")
	assert.Equal(t, "g1f3", <-ch)
}

func TestLoadWeightsFailureKeepsUnweighted(t *testing.T) {
	h := newFakeHost()
	h.fail = errors.New("boom")
	s := NewSearcher(h)
	assert.Error(t, s.LoadWeights([]byte{1}))
	assert.False(t, s.Weighted())
}

func TestStopAndReset(t *testing.T) {
	h := newFakeHost()
	s := NewSearcher(h)

	require.NoError(t, s.Stop())
	assert.Equal(t, []sent{{command.Classical, "stop"}}, h.texts())

	require.NoError(t, s.LoadWeights([]byte{1}))
	require.NoError(t, s.Reset())
	assert.Equal(t, []sent{
		{command.Classical, "stop"},
		{command.Classical, "stop"},
		{command.Neural, "stop"},
		{command.Classical, "ucinewgame"},
		{command.Neural, "ucinewgame"},
	}, h.texts())
}

func TestSearcherAgainstLoopbackHost(t *testing.T) {
	h, err := host.New(host.Config{
		Classical: func(out *output.Channel) (engine.Adapter, error) {
			return engine.NewLoopback(out, "fish"), nil
		},
		Neural: func(out *output.Channel) (engine.Adapter, error) {
			return engine.NewLoopbackNeural(out, "zero"), nil
		},
	})
	require.NoError(t, err)
	s := NewSearcher(h)
	h.OnOutput(s.Observe)
	require.NoError(t, h.Start())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()

	fish, err := s.GoFish("fen", SearchOpts{Depth: 1})
	require.NoError(t, err)
	require.NoError(t, s.LoadWeights([]byte("net")))
	zero, err := s.GoZero("fen")
	require.NoError(t, err)

	var pvs []PV
	var move string
	for pvs == nil || move == "" {
		select {
		case pvs = <-fish:
		case move = <-zero:
		case <-ticker.C:
			h.Tick()
		case <-ctx.Done():
			t.Fatal("search did not finish")
		}
	}
	assert.Equal(t, []string{"0000"}, pvs[0].Moves)
	assert.Equal(t, "0000", move)

	require.NoError(t, h.RequestShutdown())
	require.NoError(t, h.Wait(ctx))
}
