package tui

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/enginehost/internal/command"
	"github.com/mattjoyce/enginehost/internal/host"
)

const (
	defaultTickInterval = 50 * time.Millisecond
	defaultMaxLines     = 2000
	headerHeight        = 5
	footerHeight        = 3
)

// Host is the dispatcher surface the TUI drives.
type Host interface {
	SubmitCommand(text string, e command.Engine) (string, error)
	RequestShutdown() error
	Tick() int
	Done() <-chan struct{}
	Stats() host.Stats
	HasEngine(e command.Engine) bool
}

// Searcher provides the multi-engine controls.
type Searcher interface {
	LoadWeights(buf []byte) error
	Weighted() bool
	Stop() error
	Reset() error
}

type Options struct {
	Name         string
	TickInterval time.Duration
	// MaxLines caps the scrollback kept per engine pane.
	MaxLines int
}

type tickMsg time.Time
type doneMsg struct{}
type weightsReadMsg struct {
	path string
	buf  []byte
	err  error
}

type delivery struct {
	engine command.Engine
	text   string
}

// outputBuffer collects batches delivered during host.Tick until the model
// moves them into its panes.
type outputBuffer struct {
	mu      sync.Mutex
	pending []delivery
}

func (b *outputBuffer) add(e command.Engine, text string) {
	b.mu.Lock()
	b.pending = append(b.pending, delivery{engine: e, text: text})
	b.mu.Unlock()
}

func (b *outputBuffer) take() []delivery {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.pending
	b.pending = nil
	return out
}

type pane struct {
	engine   command.Engine
	title    string
	lines    []string
	view     viewport.Model
	activity Activity
}

// Model is the BubbleTea model of the interactive host.
type Model struct {
	host     Host
	searcher Searcher
	opts     Options
	out      *outputBuffer

	panes [2]*pane
	focus int
	input textinput.Model

	width  int
	height int

	ticker    Ticker
	stats     host.Stats
	status    string
	statusErr bool
	quitting  bool

	theme Theme
	now   func() time.Time
}

// New creates the model. Register Deliver with the host before running it.
func New(h Host, s Searcher, opts Options) *Model {
	if opts.Name == "" {
		opts.Name = "enginehost"
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = defaultTickInterval
	}
	if opts.MaxLines <= 0 {
		opts.MaxLines = defaultMaxLines
	}

	input := textinput.New()
	input.Prompt = "❯ "
	input.Placeholder = helpText
	input.CharLimit = 4096
	input.Focus()

	return &Model{
		host:     h,
		searcher: s,
		opts:     opts,
		out:      &outputBuffer{},
		panes: [2]*pane{
			{engine: command.Classical, title: "fish", view: viewport.New(0, 0)},
			{engine: command.Neural, title: "zero", view: viewport.New(0, 0)},
		},
		input:  input,
		ticker: NewTicker(),
		theme:  NewDefaultTheme(),
		now:    time.Now,
	}
}

// Deliver receives flushed engine output. It runs inside host.Tick, which the
// model calls from Update.
func (m Model) Deliver(e command.Engine, batch string) {
	m.out.add(e, batch)
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.tickCmd(),
		tea.EnterAltScreen,
	)
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.opts.TickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tickMsg:
		m.flush()
		return m, m.tickCmd()

	case doneMsg:
		m.flush()
		return m, tea.Quit

	case weightsReadMsg:
		if msg.err != nil {
			m.setError(fmt.Errorf("read weights: %w", msg.err))
			return m, nil
		}
		if err := m.searcher.LoadWeights(msg.buf); err != nil {
			m.setError(err)
			return m, nil
		}
		m.setStatus(fmt.Sprintf("weights queued: %s (%d bytes)", msg.path, len(msg.buf)))
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			if m.quitting {
				return m, tea.Quit
			}
			return m, m.quit()
		case "enter":
			line := m.input.Value()
			m.input.SetValue("")
			return m, m.execute(line)
		case "tab":
			m.focus = (m.focus + 1) % len(m.panes)
			return m, nil
		case "pgup", "pgdown":
			var cmd tea.Cmd
			p := m.panes[m.focus]
			p.view, cmd = p.view.Update(msg)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) execute(line string) tea.Cmd {
	act, err := parseLine(line)
	if err != nil {
		m.setError(err)
		return nil
	}

	switch act.kind {
	case actionSend:
		if !m.host.HasEngine(act.engine) {
			m.setError(fmt.Errorf("%s engine is not configured", act.engine))
			return nil
		}
		if _, err := m.host.SubmitCommand(act.text, act.engine); err != nil {
			m.setError(err)
			return nil
		}
		m.appendLines(m.paneFor(act.engine), []string{m.theme.Echo.Render("> " + act.text)})
		m.setStatus("")
	case actionWeights:
		return readWeights(act.text)
	case actionStop:
		m.report(m.searcher.Stop(), "stop sent")
	case actionReset:
		m.report(m.searcher.Reset(), "engines reset")
	case actionQuit:
		return m.quit()
	case actionHelp:
		m.setStatus(helpText)
	}
	return nil
}

// quit requests shutdown and exits once the worker has drained the queue.
func (m *Model) quit() tea.Cmd {
	m.quitting = true
	m.setStatus("shutting down, waiting for engines (ctrl+c again to force)")
	if err := m.host.RequestShutdown(); err != nil && !errors.Is(err, host.ErrShuttingDown) {
		m.setError(err)
	}
	done := m.host.Done()
	return func() tea.Msg {
		<-done
		return doneMsg{}
	}
}

func readWeights(path string) tea.Cmd {
	return func() tea.Msg {
		buf, err := os.ReadFile(path)
		return weightsReadMsg{path: path, buf: buf, err: err}
	}
}

// flush runs one scheduler pass and moves delivered output into the panes.
func (m *Model) flush() {
	now := m.now()
	m.host.Tick()
	for _, d := range m.out.take() {
		p := m.paneFor(d.engine)
		if p == nil {
			continue
		}
		m.appendLines(p, strings.Split(strings.TrimSuffix(d.text, "\n"), "\n"))
		p.activity.OnOutput(now)
	}
	for _, p := range m.panes {
		p.activity.Decay(now)
	}
	m.ticker.Tick()
	m.stats = m.host.Stats()
}

func (m *Model) appendLines(p *pane, lines []string) {
	if p == nil {
		return
	}
	p.lines = append(p.lines, lines...)
	if over := len(p.lines) - m.opts.MaxLines; over > 0 {
		p.lines = append(p.lines[:0:0], p.lines[over:]...)
	}
	follow := p.view.AtBottom()
	p.view.SetContent(strings.Join(p.lines, "\n"))
	if follow {
		p.view.GotoBottom()
	}
}

func (m *Model) paneFor(e command.Engine) *pane {
	for _, p := range m.panes {
		if p.engine == e {
			return p
		}
	}
	return nil
}

func (m *Model) layout() {
	paneWidth := max((m.width-4)/2-2, 10)
	paneHeight := max(m.height-headerHeight-footerHeight-4, 3)
	for _, p := range m.panes {
		p.view.Width = paneWidth
		p.view.Height = paneHeight
		p.view.GotoBottom()
	}
	m.input.Width = max(m.width-8, 10)
}

func (m *Model) report(err error, ok string) {
	if err != nil {
		m.setError(err)
		return
	}
	m.setStatus(ok)
}

func (m *Model) setStatus(s string) {
	m.status = s
	m.statusErr = false
}

func (m *Model) setError(err error) {
	m.status = err.Error()
	m.statusErr = true
}

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing enginehost..."
	}

	header := renderHeader(m.opts.Name, m.stats, m.ticker, m.panes[0].activity, m.panes[1].activity,
		m.searcher.Weighted(), m.theme, m.width, m.now())

	views := make([]string, 0, len(m.panes))
	for i, p := range m.panes {
		border := m.theme.Border
		if i == m.focus {
			border = m.theme.FocusBorder
		}
		title := m.theme.Header.Render(p.title)
		if !m.host.HasEngine(p.engine) {
			title += m.theme.Dim.Render(" (not configured)")
		}
		views = append(views, border.Width(p.view.Width).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, p.view.View()),
		))
	}
	panes := lipgloss.JoinHorizontal(lipgloss.Top, views...)

	status := m.theme.Dim.Render(" " + m.status)
	if m.statusErr {
		status = m.theme.StatusFailed.Render(" ⚠ " + m.status)
	}
	help := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Render(" [enter] Send • [tab] Focus pane • [pgup/pgdn] Scroll • [ctrl+c] Quit")

	return lipgloss.NewStyle().Margin(0, 1).Render(
		lipgloss.JoinVertical(lipgloss.Left, header, panes, m.input.View(), status, help),
	)
}
