package uci

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseInfo(t *testing.T) {
	tests := []struct {
		name string
		line string
		want PV
		ok   bool
	}{
		{
			name: "full stockfish line",
			line: "info depth 12 seldepth 17 multipv 2 score cp -35 nodes 123456 nps 1000000 hashfull 12 tbhits 0 time 120 pv e7e5 g1f3 b8c6",
			want: PV{Moves: []string{"e7e5", "g1f3", "b8c6"}, Score: -35, Depth: 12, MultiPV: 2},
			ok:   true,
		},
		{
			name: "mate score",
			line: "info depth 5 score mate 3 pv d1h5",
			want: PV{Moves: []string{"d1h5"}, Mate: 3, Depth: 5, MultiPV: 1},
			ok:   true,
		},
		{
			name: "bound marker",
			line: "info depth 20 multipv 1 score cp 15 lowerbound nodes 10 pv e2e4",
			want: PV{Moves: []string{"e2e4"}, Score: 15, Depth: 20, MultiPV: 1},
			ok:   true,
		},
		{name: "string payload", line: "info string NNUE evaluation enabled"},
		{name: "no pv", line: "info depth 3 currmove e2e4 currmovenumber 1"},
		{name: "empty pv", line: "info depth 3 score cp 1 pv"},
		{name: "not info", line: "bestmove e2e4"},
		{name: "empty", line: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseInfo(tt.line)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestParseBestMove(t *testing.T) {
	move, ok := ParseBestMove("bestmove e2e4 ponder e7e5")
	assert.True(t, ok)
	assert.Equal(t, "e2e4", move)

	_, ok = ParseBestMove("bestmove")
	assert.False(t, ok)
	_, ok = ParseBestMove("info depth 1 pv e2e4")
	assert.False(t, ok)
}
