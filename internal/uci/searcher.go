package uci

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattjoyce/enginehost/internal/command"
)

// ErrNoWeights is returned by GoZero before any weights were submitted.
var ErrNoWeights = errors.New("neural engine has no weights")

const defaultDepth = 12

// Submitter is the part of the host a Searcher drives.
type Submitter interface {
	SubmitCommand(text string, e command.Engine) (string, error)
	SubmitWeights(buf []byte, e command.Engine) (string, error)
	HasEngine(e command.Engine) bool
}

// SearchOpts tunes a classical search. Zero values take defaults: depth 12,
// one PV. MoveTime, when set, replaces the depth limit.
type SearchOpts struct {
	Depth    int
	PVs      int
	MoveTime time.Duration
}

type fishSearch struct {
	pvs    []PV
	result chan []PV
}

// Searcher turns the fire-and-forget command queue into request/response
// searches. Observe must be registered as an output listener on the host.
type Searcher struct {
	host Submitter

	mu       sync.Mutex
	weighted bool
	fish     *fishSearch
	zero     chan string
}

func NewSearcher(host Submitter) *Searcher {
	return &Searcher{host: host}
}

// LoadWeights submits buf to the neural engine and enables GoZero.
func (s *Searcher) LoadWeights(buf []byte) error {
	if _, err := s.host.SubmitWeights(buf, command.Neural); err != nil {
		return err
	}
	s.mu.Lock()
	s.weighted = true
	s.mu.Unlock()
	return nil
}

// Weighted reports whether weights were submitted.
func (s *Searcher) Weighted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.weighted
}

// GoFish starts a classical search from fen. The channel receives the PVs
// once the engine reports bestmove, and is closed without a value if a newer
// search replaces this one.
func (s *Searcher) GoFish(fen string, opts SearchOpts) (<-chan []PV, error) {
	pvs := opts.PVs
	if pvs <= 0 {
		pvs = 1
	}
	depth := opts.Depth
	if depth <= 0 {
		depth = defaultDepth
	}

	search := &fishSearch{pvs: make([]PV, pvs), result: make(chan []PV, 1)}
	s.mu.Lock()
	if s.fish != nil {
		close(s.fish.result)
	}
	s.fish = search
	s.mu.Unlock()

	cmds := []string{
		fmt.Sprintf("setoption name MultiPV value %d", pvs),
		"position fen " + fen,
	}
	if opts.MoveTime > 0 {
		cmds = append(cmds, fmt.Sprintf("go movetime %d", opts.MoveTime.Milliseconds()))
	} else {
		cmds = append(cmds, fmt.Sprintf("go depth %d", depth))
	}
	if err := s.submitAll(command.Classical, cmds); err != nil {
		s.abandonFish(search)
		return nil, err
	}
	return search.result, nil
}

// GoZero asks the neural engine for its move from fen.
func (s *Searcher) GoZero(fen string) (<-chan string, error) {
	result := make(chan string, 1)
	s.mu.Lock()
	if !s.weighted {
		s.mu.Unlock()
		return nil, ErrNoWeights
	}
	if s.zero != nil {
		close(s.zero)
	}
	s.zero = result
	s.mu.Unlock()

	if err := s.submitAll(command.Neural, []string{"position fen " + fen, "go nodes 1"}); err != nil {
		s.mu.Lock()
		if s.zero == result {
			s.zero = nil
			close(result)
		}
		s.mu.Unlock()
		return nil, err
	}
	return result, nil
}

// Stop interrupts both engines. The neural engine is only told when it has
// weights, since an unweighted one is not searching.
func (s *Searcher) Stop() error {
	var errs []error
	if s.host.HasEngine(command.Classical) {
		if _, err := s.host.SubmitCommand("stop", command.Classical); err != nil {
			errs = append(errs, err)
		}
	}
	if s.Weighted() {
		if _, err := s.host.SubmitCommand("stop", command.Neural); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Reset stops both engines and starts a new game on each.
func (s *Searcher) Reset() error {
	errs := []error{s.Stop()}
	if s.host.HasEngine(command.Classical) {
		_, err := s.host.SubmitCommand("ucinewgame", command.Classical)
		errs = append(errs, err)
	}
	if s.Weighted() {
		_, err := s.host.SubmitCommand("ucinewgame", command.Neural)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Observe consumes one delivered batch. Register it with host.OnOutput.
func (s *Searcher) Observe(e command.Engine, batch string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, line := range strings.Split(batch, "\n") {
		if line == "" {
			continue
		}
		switch e {
		case command.Classical:
			s.observeFish(line)
		case command.Neural:
			if s.zero == nil {
				continue
			}
			if move, ok := ParseBestMove(line); ok {
				s.zero <- move
				s.zero = nil
			}
		}
	}
}

func (s *Searcher) observeFish(line string) {
	if s.fish == nil {
		return
	}
	if pv, ok := ParseInfo(line); ok {
		if pv.MultiPV >= 1 && pv.MultiPV <= len(s.fish.pvs) {
			s.fish.pvs[pv.MultiPV-1] = pv
		}
		return
	}
	if _, ok := ParseBestMove(line); ok {
		out := make([]PV, len(s.fish.pvs))
		copy(out, s.fish.pvs)
		s.fish.result <- out
		s.fish = nil
	}
}

func (s *Searcher) abandonFish(search *fishSearch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fish == search {
		s.fish = nil
		close(search.result)
	}
}

func (s *Searcher) submitAll(e command.Engine, cmds []string) error {
	for _, c := range cmds {
		if _, err := s.host.SubmitCommand(c, e); err != nil {
			return fmt.Errorf("submit %q to %s: %w", c, e, err)
		}
	}
	return nil
}
