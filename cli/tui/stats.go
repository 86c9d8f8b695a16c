package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/chaossec-io/chaossec/types"
)

// StatsModel is a Bubble Tea model for the history stats view.
type StatsModel struct {
	viewType string
	data     any
	width    int
	height   int
	quitting bool
}

// NewStatsModel creates a new stats model.
func NewStatsModel(viewType string, data any) StatsModel {
	return StatsModel{
		viewType: viewType,
		data:     data,
	}
}

// Init implements tea.Model.
func (m StatsModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m StatsModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case "stats_history":
		content = m.renderStatsHistory()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m StatsModel) renderStatsHistory() string {
	data, ok := m.data.(*types.HistoryAnalysis)
	if !ok {
		return "Invalid data type for stats_history"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Validation History"))
	b.WriteString("\n\n")

	boxes := []string{
		statBox("Total Runs", fmt.Sprintf("%d", data.TotalTests)),
		statBox("Successful", fmt.Sprintf("%d", data.Successful)),
		statBox("Failed", fmt.Sprintf("%d", data.Failed)),
		statBox("Success Rate", fmt.Sprintf("%.0f%%", data.SuccessRate*100)),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))
	b.WriteString("\n")

	if len(data.CommonFailures) > 0 {
		b.WriteString("\n")
		b.WriteString(TitleStyle.Render("Common Failures"))
		b.WriteString("\n")
		for _, f := range data.CommonFailures {
			b.WriteString(fmt.Sprintf("  %s %s\n",
				ErrorStyle.Render(fmt.Sprintf("%dx", f.Count)),
				ValueStyle.Render(f.Outcome)))
		}
	}

	if data.MostRecent != nil {
		b.WriteString("\n")
		b.WriteString(TitleStyle.Render("Most Recent"))
		b.WriteString("\n")
		e := data.MostRecent
		b.WriteString(fmt.Sprintf("%s %s\n",
			LabelStyle.Render("Action:"), ValueStyle.Render(string(e.Action))))
		b.WriteString(fmt.Sprintf("%s %s\n",
			LabelStyle.Render("Target:"), ValueStyle.Render(e.Target)))
		b.WriteString(fmt.Sprintf("%s %s\n",
			LabelStyle.Render("Outcome:"), StateStyle(e.Outcome).Render(e.Outcome)))
		b.WriteString(fmt.Sprintf("%s %s\n",
			LabelStyle.Render("When:"), ValueStyle.Render(e.Timestamp.Format("2006-01-02 15:04:05"))))
	}

	return b.String()
}

func statBox(label, value string) string {
	content := StatValueStyle.Render(value) + "\n" + StatLabelStyle.Render(label)
	return StatBoxStyle.Render(content)
}

// RunStatsTUI runs the stats TUI.
func RunStatsTUI(viewType string, data any) error {
	model := NewStatsModel(viewType, data)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
