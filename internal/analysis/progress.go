package analysis

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Progress is a non-interactive progress meter rendered to an
// out-of-band stream (stderr) while the pipeline works through phases
// A-C. It never reads stdin and never competes with the pretty-printed
// JSON report, which is always the only thing written to stdout.
type Progress struct {
	program *tea.Program
	enabled bool
}

// NewProgress starts a progress program writing to out. Pass
// enabled=false (e.g. when out isn't a terminal) to get a no-op.
func NewProgress(out io.Writer, enabled bool) *Progress {
	if !enabled {
		return disabledProgress()
	}
	p := tea.NewProgram(newProgressModel(), tea.WithOutput(out), tea.WithInput(nil))
	go func() { _, _ = p.Run() }()
	return &Progress{program: p, enabled: true}
}

func disabledProgress() *Progress { return &Progress{enabled: false} }

// Update reports phase progress as current/total units completed.
func (p *Progress) Update(phase string, current, total int) {
	if !p.enabled {
		return
	}
	p.program.Send(progressMsg{phase: phase, current: current, total: total})
}

// Finish tells the progress program to exit and stop rendering.
func (p *Progress) Finish() {
	if !p.enabled {
		return
	}
	p.program.Send(progressDoneMsg{})
}

type progressMsg struct {
	phase          string
	current, total int
}

type progressDoneMsg struct{}

type progressModel struct {
	bar                progress.Model
	phase              string
	current, total     int
	done               bool
}

func newProgressModel() progressModel {
	return progressModel{bar: progress.New(progress.WithDefaultGradient())}
}

func (m progressModel) Init() tea.Cmd { return nil }

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case progressMsg:
		m.phase, m.current, m.total = msg.phase, msg.current, msg.total
		return m, nil
	case progressDoneMsg:
		m.done = true
		return m, tea.Quit
	case tea.WindowSizeMsg:
		if msg.Width > 8 {
			m.bar.Width = msg.Width - 8
		}
		return m, nil
	}
	return m, nil
}

func (m progressModel) View() string {
	if m.done {
		return ""
	}
	pct := 0.0
	if m.total > 0 {
		pct = float64(m.current) / float64(m.total)
	}
	label := lipgloss.NewStyle().Faint(true).Render(fmt.Sprintf(" %s (%d/%d)", m.phase, m.current, m.total))
	return m.bar.ViewAs(pct) + label + "\n"
}
