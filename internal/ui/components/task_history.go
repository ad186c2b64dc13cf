package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	succeededStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("42")).
			Padding(0, 1)

	failedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("196")).
			Padding(0, 1)

	historyHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("252")).
				Padding(0, 1)

	subTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)
)

// TaskResult is one finished attempt as shown in the history panel.
type TaskResult struct {
	ID      string
	Branch  string
	Success bool
}

// TaskHistory shows recently finished tasks split by outcome.
type TaskHistory struct {
	Succeeded []TaskResult
	Failed    []TaskResult
	Width     int
	Title     string
}

func NewTaskHistory(width int) *TaskHistory {
	return &TaskHistory{
		Succeeded: make([]TaskResult, 0),
		Failed:    make([]TaskResult, 0),
		Width:     width,
		Title:     "Finished Tasks",
	}
}

// Add records a result, keeping at most limit entries per outcome.
func (h *TaskHistory) Add(res TaskResult, limit int) {
	if res.Success {
		h.Succeeded = appendWithLimit(h.Succeeded, res, limit)
	} else {
		h.Failed = appendWithLimit(h.Failed, res, limit)
	}
}

func appendWithLimit(slice []TaskResult, res TaskResult, limit int) []TaskResult {
	slice = append(slice, res)
	if limit > 0 && len(slice) > limit {
		return slice[len(slice)-limit:]
	}
	return slice
}

func (h *TaskHistory) View() string {
	var boxes []string

	if len(h.Succeeded) > 0 {
		boxes = append(boxes, h.renderBox("Succeeded", h.Succeeded, succeededStyle, "✓"))
	}
	if len(h.Failed) > 0 {
		boxes = append(boxes, h.renderBox("Failed", h.Failed, failedStyle, "✗"))
	}
	if len(boxes) == 0 {
		return ""
	}

	content := strings.Join(boxes, "\n")
	if h.Title != "" {
		return historyHeaderStyle.Render(h.Title) + "\n" + content
	}
	return content
}

func (h *TaskHistory) renderBox(title string, results []TaskResult, style lipgloss.Style, icon string) string {
	subTitle := subTitleStyle.Foreground(style.GetForeground()).Render(title)

	var lines []string
	for _, r := range results {
		label := r.ID
		if r.Branch != "" {
			label = fmt.Sprintf("%s (%s)", r.ID, r.Branch)
		}
		lines = append(lines, fmt.Sprintf("%s %s", icon, label))
	}

	return style.Width(h.Width).Render(subTitle + "\n" + strings.Join(lines, "\n"))
}
