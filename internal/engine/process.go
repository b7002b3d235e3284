package engine

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

const (
	// maxLineBytes caps a single engine output line.
	maxLineBytes = 1 << 20

	// defaultQuitGrace is how long Close waits for the engine to exit after "quit".
	defaultQuitGrace = 2 * time.Second

	// terminationGracePeriod is the time we wait after SIGTERM before sending SIGKILL.
	terminationGracePeriod = 5 * time.Second
)

// ProcessConfig describes an engine binary.
type ProcessConfig struct {
	Path      string
	Args      []string
	Dir       string
	Init      []string // sent once, in order, right after start
	QuitGrace time.Duration
}

// Process drives a UCI engine subprocess. Commands go to its stdin; each
// stdout line is appended to the sink by a dedicated pump goroutine.
type Process struct {
	cfg    ProcessConfig
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	logger *slog.Logger

	// pumpsDone closes once stdout and stderr have both hit EOF.
	pumpsDone chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// StartProcess launches the engine and sends its init commands.
func StartProcess(cfg ProcessConfig, out Sink, logger *slog.Logger) (*Process, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("engine path is empty")
	}
	if cfg.QuitGrace <= 0 {
		cfg.QuitGrace = defaultQuitGrace
	}

	cmd := exec.Command(cfg.Path, cfg.Args...)
	cmd.Dir = cfg.Dir
	// New process group so signals reach helper processes the engine spawns.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start engine %q: %w", cfg.Path, err)
	}

	p := &Process{
		cfg:       cfg,
		cmd:       cmd,
		stdin:     stdin,
		logger:    logger.With("pid", cmd.Process.Pid),
		pumpsDone: make(chan struct{}),
	}
	p.logger.Info("engine started", "path", cfg.Path, "args", cfg.Args)

	var pumps sync.WaitGroup
	pumps.Add(2)
	go func() {
		defer pumps.Done()
		p.pump(stdout, out)
	}()
	go func() {
		defer pumps.Done()
		p.pumpStderr(stderr)
	}()
	go func() {
		pumps.Wait()
		close(p.pumpsDone)
	}()

	for _, line := range cfg.Init {
		p.ProcessCommand(line)
	}
	return p, nil
}

func (p *Process) pump(r io.Reader, out Sink) {
	err := readLines(r, maxLineBytes, func(line string, truncated bool) {
		if truncated {
			p.logger.Warn("engine output line truncated", "limit", maxLineBytes)
		}
		out.Append(line)
	})
	if err != nil {
		p.logger.Warn("engine stdout read failed", "error", err)
	}
}

func (p *Process) pumpStderr(r io.Reader) {
	err := readLines(r, maxLineBytes, func(line string, _ bool) {
		p.logger.Warn("engine stderr", "line", line)
	})
	if err != nil {
		p.logger.Warn("engine stderr read failed", "error", err)
	}
}

// readLines calls fn for every line of r until EOF. A line longer than limit
// is cut at limit and the rest of it is discarded; reading always continues,
// so the engine never blocks on a full pipe.
func readLines(r io.Reader, limit int, fn func(line string, truncated bool)) error {
	br := bufio.NewReaderSize(r, limit)
	for {
		chunk, err := br.ReadSlice('\n')
		switch {
		case err == nil:
			fn(trimEOL(chunk), false)
		case errors.Is(err, bufio.ErrBufferFull):
			fn(trimEOL(chunk), true)
			if err := skipLine(br); err != nil {
				return endOfStream(err)
			}
		default:
			if len(chunk) > 0 {
				fn(trimEOL(chunk), false)
			}
			return endOfStream(err)
		}
	}
}

// skipLine discards input up to and including the next newline.
func skipLine(br *bufio.Reader) error {
	for {
		_, err := br.ReadSlice('\n')
		if !errors.Is(err, bufio.ErrBufferFull) {
			return err
		}
	}
}

func endOfStream(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func trimEOL(b []byte) string {
	return strings.TrimRight(string(b), "\r\n")
}

// ProcessCommand writes cmd to the engine's stdin. Output arrives
// asynchronously through the pump. A write failure means the engine is gone;
// it is logged and the command is lost.
func (p *Process) ProcessCommand(cmd string) {
	if !strings.HasSuffix(cmd, "\n") {
		cmd += "\n"
	}
	if _, err := io.WriteString(p.stdin, cmd); err != nil {
		p.logger.Error("write to engine failed", "command", strings.TrimSpace(cmd), "error", err)
	}
}

// Close asks the engine to quit, then escalates to SIGTERM and SIGKILL.
func (p *Process) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.shutdown()
	})
	return p.closeErr
}

func (p *Process) shutdown() error {
	_, _ = io.WriteString(p.stdin, "quit\n")
	_ = p.stdin.Close()

	select {
	case <-p.pumpsDone:
	case <-time.After(p.cfg.QuitGrace):
		p.logger.Warn("engine ignored quit, sending SIGTERM")
		p.signal(syscall.SIGTERM)
		select {
		case <-p.pumpsDone:
		case <-time.After(terminationGracePeriod):
			p.logger.Warn("engine did not exit after SIGTERM, sending SIGKILL")
			p.signal(syscall.SIGKILL)
			<-p.pumpsDone
		}
	}

	err := p.cmd.Wait()
	p.logger.Info("engine exited", "error", err)
	if err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return nil
		}
		return fmt.Errorf("wait for engine: %w", err)
	}
	return nil
}

func (p *Process) signal(sig syscall.Signal) {
	if p.cmd.Process == nil {
		return
	}
	if err := syscall.Kill(-p.cmd.Process.Pid, sig); err != nil {
		_ = p.cmd.Process.Signal(sig)
	}
}

// Classical is a subprocess engine without weights support.
type Classical struct {
	*Process
}

// StartClassical launches a classical engine writing into out.
func StartClassical(cfg ProcessConfig, out Sink, logger *slog.Logger) (*Classical, error) {
	p, err := StartProcess(cfg, out, logger)
	if err != nil {
		return nil, err
	}
	return &Classical{Process: p}, nil
}

// Neural is a subprocess engine whose weights are swapped by handing it a
// file path through the WeightsFile option.
type Neural struct {
	*Process
	weights *WeightsStore
}

// StartNeural launches a neural engine that stores weights buffers in store.
func StartNeural(cfg ProcessConfig, store *WeightsStore, out Sink, logger *slog.Logger) (*Neural, error) {
	if store == nil {
		return nil, fmt.Errorf("weights store is nil")
	}
	p, err := StartProcess(cfg, out, logger)
	if err != nil {
		return nil, err
	}
	return &Neural{Process: p, weights: store}, nil
}

// LoadWeights persists buf and points the engine at it.
func (n *Neural) LoadWeights(buf []byte) {
	path, err := n.weights.Put(buf)
	if err != nil {
		n.logger.Error("store weights failed", "bytes", len(buf), "error", err)
		return
	}
	n.logger.Info("loading weights", "path", path, "bytes", len(buf))
	n.ProcessCommand(WeightsFileOption(path))
}

// WeightsFileOption is the UCI command that selects a weights file.
func WeightsFileOption(path string) string {
	return "setoption name WeightsFile value " + path
}
