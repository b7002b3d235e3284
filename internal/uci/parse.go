// Package uci holds the small slice of UCI protocol knowledge the host needs:
// parsing search output lines and running request/response searches over the
// command queue.
package uci

import (
	"strconv"
	"strings"
)

// PV is one principal variation reported by an engine.
type PV struct {
	Moves   []string `json:"moves"`
	Score   int      `json:"score"`
	Mate    int      `json:"mate,omitempty"`
	Depth   int      `json:"depth"`
	MultiPV int      `json:"multipv"`
}

// ParseInfo parses an "info" line carrying a pv. Lines without a pv, such as
// "info string ..." or currmove updates, report false.
func ParseInfo(line string) (PV, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 || fields[0] != "info" {
		return PV{}, false
	}

	pv := PV{MultiPV: 1}
	for i := 1; i < len(fields); i++ {
		switch fields[i] {
		case "string":
			return PV{}, false
		case "depth":
			pv.Depth = intAt(fields, i+1)
			i++
		case "multipv":
			pv.MultiPV = intAt(fields, i+1)
			i++
		case "score":
			if i+2 < len(fields) {
				switch fields[i+1] {
				case "cp":
					pv.Score = intAt(fields, i+2)
				case "mate":
					pv.Mate = intAt(fields, i+2)
				}
				i += 2
			}
		case "pv":
			pv.Moves = append([]string(nil), fields[i+1:]...)
			return pv, len(pv.Moves) > 0
		}
	}
	return PV{}, false
}

// ParseBestMove returns the move of a "bestmove" line.
func ParseBestMove(line string) (string, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 || fields[0] != "bestmove" {
		return "", false
	}
	return fields[1], true
}

func intAt(fields []string, i int) int {
	if i >= len(fields) {
		return 0
	}
	n, err := strconv.Atoi(fields[i])
	if err != nil {
		return 0
	}
	return n
}
