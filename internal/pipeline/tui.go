package pipeline

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ldi/forge/internal/ui/components"
	"github.com/ldi/forge/pkg/models"
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Padding(0, 1)

	directiveStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), true, true, true, false).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1).
			Margin(1, 0)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true)
)

type OutputMsg string
type StatusMsg string
type TaskMsg struct {
	ID        string
	Directive string
}
type TaskResultMsg components.TaskResult
type IterationMsg int

type TUIModel struct {
	ModelName       string
	Iteration       int
	CurrentTask     string
	Directive       string
	History         *components.TaskHistory
	Output          *components.OutputPane
	ready           bool
	expanded        bool
	width           int
	height          int
	headerHeight    int
	directiveHeight int
	historyHeight   int
	err             error
}

func NewTUIModel(modelName string) *TUIModel {
	return &TUIModel{
		ModelName: modelName,
		History:   components.NewTaskHistory(0),
		Output:    components.NewOutputPane(0, 0),
	}
}

func (m TUIModel) Init() tea.Cmd {
	return nil
}

func (m *TUIModel) SetSize(width, height int) {
	m.width = width
	m.height = height
	if !m.ready {
		m.Output.SetSize(width, 0)
		m.ready = true
	}
	m.History.Width = width
	m.recalculateLayout()
}

func (m *TUIModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "e", tea.KeyEnter.String():
			m.expanded = !m.expanded
			m.recalculateLayout()
		}

	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)

	case OutputMsg:
		m.Output.Append(string(msg))

	case StatusMsg:
		m.Output.AppendStatus(string(msg))

	case TaskMsg:
		m.CurrentTask = msg.ID
		m.Directive = msg.Directive
		m.Output.Reset()
		m.recalculateLayout()

	case TaskResultMsg:
		m.History.Add(components.TaskResult(msg), 5)
		m.recalculateLayout()

	case IterationMsg:
		m.Iteration = int(msg)
		m.recalculateLayout()

	case error:
		m.err = msg
		return m, tea.Quit
	}

	cmd = m.Output.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *TUIModel) recalculateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}

	m.headerHeight = lipgloss.Height(m.headerView())
	m.directiveHeight = lipgloss.Height(m.directiveView())

	history := m.History.View()
	m.historyHeight = 0
	if history != "" {
		m.historyHeight = lipgloss.Height(history)
	}

	footerHeight := lipgloss.Height(m.helpView())

	extraLines := 3
	if m.historyHeight > 0 {
		extraLines = 5
	}
	occupied := m.headerHeight + m.directiveHeight + m.historyHeight + footerHeight + extraLines

	vHeight := 20
	if m.expanded {
		vHeight = m.height - occupied
	}
	if occupied+vHeight > m.height {
		vHeight = m.height - occupied
	}
	if vHeight < 2 {
		vHeight = 2
	}

	m.Output.SetSize(m.width, vHeight)
}

func (m TUIModel) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}

	history := m.History.View()
	if history != "" {
		return fmt.Sprintf("%s\n%s\n\n%s\n%s\n%s",
			m.headerView(),
			history,
			m.directiveView(),
			m.Output.View(),
			m.helpView(),
		)
	}

	return fmt.Sprintf("%s\n%s\n%s\n%s",
		m.headerView(),
		m.directiveView(),
		m.Output.View(),
		m.helpView(),
	)
}

func (m TUIModel) headerView() string {
	return headerStyle.Render(fmt.Sprintf("Forge Pipeline | Model: %s | Iteration: %d", m.ModelName, m.Iteration))
}

func (m TUIModel) directiveView() string {
	content := fmt.Sprintf("Task: %s\n\n%s", m.CurrentTask, m.Directive)
	return directiveStyle.Width(m.width - 2).Render(content)
}

func (m TUIModel) helpView() string {
	help := "Press 'q' to quit • 'e'/'enter' to "
	if m.expanded {
		help += "contract"
	} else {
		help += "expand"
	}
	return helpStyle.Render(help)
}

func (p *Pipeline) sendStatus(msg string) {
	if p.program != nil {
		p.program.Send(StatusMsg(msg))
	} else {
		fmt.Printf("--- %s ---\n", msg)
	}
}

func (p *Pipeline) sendOutput(msg string) {
	if p.program != nil {
		p.program.Send(OutputMsg(msg))
	} else {
		fmt.Print(msg)
	}
}

func (p *Pipeline) sendIteration(i int) {
	if p.program != nil {
		p.program.Send(IterationMsg(i))
	}
}

func (p *Pipeline) sendTask(rec *models.TaskRecord) {
	if p.program != nil {
		p.program.Send(TaskMsg{ID: rec.ID, Directive: rec.Text})
	} else {
		fmt.Printf("Processing task: %s\n", rec.ID)
	}
}

func (p *Pipeline) sendTaskResult(rec *models.TaskRecord, success bool) {
	if p.program != nil {
		p.program.Send(TaskResultMsg{ID: rec.ID, Success: success})
	}
}
