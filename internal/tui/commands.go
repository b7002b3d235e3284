package tui

import (
	"fmt"
	"strings"

	"github.com/mattjoyce/enginehost/internal/command"
)

type actionKind int

const (
	actionSend actionKind = iota
	actionWeights
	actionStop
	actionReset
	actionQuit
	actionHelp
)

// action is one parsed command line.
type action struct {
	kind   actionKind
	engine command.Engine
	text   string // protocol text or weights path
}

const helpText = "fish <uci> | zero <uci> | weights <file> | stop | reset | quit"

// parseLine turns a command line into an action.
func parseLine(line string) (action, error) {
	line = strings.TrimSpace(line)
	verb, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(verb) {
	case "":
		return action{}, fmt.Errorf("empty command")
	case "fish", "zero", "classical", "neural":
		e, err := command.ParseEngine(verb)
		if err != nil {
			return action{}, err
		}
		if rest == "" {
			return action{}, fmt.Errorf("usage: %s <uci command>", verb)
		}
		return action{kind: actionSend, engine: e, text: rest}, nil
	case "weights":
		if rest == "" {
			return action{}, fmt.Errorf("usage: weights <file>")
		}
		return action{kind: actionWeights, engine: command.Neural, text: rest}, nil
	case "stop":
		return action{kind: actionStop}, nil
	case "reset":
		return action{kind: actionReset}, nil
	case "quit", "exit":
		return action{kind: actionQuit}, nil
	case "help", "?":
		return action{kind: actionHelp}, nil
	default:
		return action{}, fmt.Errorf("unknown command %q (%s)", verb, helpText)
	}
}
