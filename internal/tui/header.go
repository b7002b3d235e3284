package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/enginehost/internal/dispatch"
	"github.com/mattjoyce/enginehost/internal/host"
)

func renderHeader(name string, stats host.Stats, ticker Ticker, fish, zero Activity, weighted bool, theme Theme, width int, now time.Time) string {
	innerWidth := max(width-4, 20)

	statusText := theme.StatusOK.Render("RUNNING")
	switch {
	case stats.WorkerState == dispatch.Stopped:
		statusText = theme.StatusFailed.Render("STOPPED")
	case stats.ShuttingDown:
		statusText = theme.StatusRunning.Render("STOPPING")
	}

	titleText := fmt.Sprintf(" %s %s", strings.ToUpper(name), theme.Highlight.Render(ticker.Current()))
	clock := theme.Dim.Render(now.Format("15:04:05"))
	pad := max(innerWidth-lipgloss.Width(titleText)-lipgloss.Width(clock)-4, 1)
	titleLine := titleText + strings.Repeat(" ", pad) + clock + " "

	weights := theme.Dim.Render("none")
	if weighted {
		weights = theme.StatusOK.Render("loaded")
	}

	statsLine := fmt.Sprintf(" Worker: %s  Queue: %d  Processed: %d  Weights: %s",
		statusText,
		stats.QueueDepth,
		stats.Processed,
		weights,
	)
	activityLine := fmt.Sprintf(" fish %s  zero %s", fish.Render(theme), zero.Render(theme))

	content := lipgloss.JoinVertical(lipgloss.Left, titleLine, statsLine, activityLine)
	return theme.Border.Width(innerWidth).Render(content)
}
