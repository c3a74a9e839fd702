package cli

import (
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"

	"github.com/raphaelgruber/logseq-rag/internal/service"
)

const pollInterval = 200 * time.Millisecond

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// tickMsg triggers polling the job status
type tickMsg time.Time

// progressModel is the bubbletea model for upload progress.
type progressModel struct {
	job      *service.Job
	snap     *service.Job // latest snapshot
	cancel   func()
	progress progress.Model
	theme    Theme
	done     bool
	quitting bool
	err      error
}

func newProgressModel(job *service.Job, cancel func()) progressModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)
	snap := job.Snapshot()
	return progressModel{
		job:      job,
		snap:     &snap,
		cancel:   cancel,
		progress: prog,
		theme:    defaultTheme,
	}
}

// Init starts polling.
func (m progressModel) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		m.progress.Init(),
	)
}

// Update handles messages and returns the updated model.
func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}

	case tickMsg:
		snap := m.job.Snapshot()
		m.snap = &snap
		switch m.snap.Status {
		case service.JobStatusCompleted:
			m.done = true
			return m, tea.Quit
		case service.JobStatusFailed:
			m.done = true
			m.err = fmt.Errorf("%s", m.snap.Error)
			return m, tea.Quit
		}
		return m, tickCmd()

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m progressModel) renderContent() string {
	if m.done || m.quitting {
		return m.finalView()
	}

	var pct float64
	if m.snap.Total > 0 {
		pct = float64(m.snap.Progress) / float64(m.snap.Total)
	}

	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", m.snap.Status))
	bar := m.progress.ViewAs(pct)
	counts := fmt.Sprintf("%d/%d days", m.snap.Progress, m.snap.Total)
	hint := m.theme.hintStyle().Render("Press Ctrl+C to cancel")
	if m.snap.CurrentDay != "" {
		counts += " " + m.snap.CurrentDay
	}

	return fmt.Sprintf("%s %s %s\n%s\n", status, bar, counts, hint)
}

func (m progressModel) finalView() string {
	if m.quitting {
		return m.theme.hintStyle().Render(fmt.Sprintf("\nUpload cancelled after %d/%d days.\n", m.snap.Progress, m.snap.Total))
	}
	if m.err != nil {
		return m.theme.errorStyle().Render(fmt.Sprintf("\n✗ Upload failed: %s\n", m.err))
	}
	return summary(m.theme, m.snap.Result)
}

// summary renders an upload result.
func summary(theme Theme, r *service.UploadResult) string {
	if r == nil {
		return theme.completedStyle().Render("✓ Completed") + "\n"
	}
	var sb strings.Builder
	sb.WriteString(theme.completedStyle().Render("✓ Completed") + "\n\n")
	fmt.Fprintf(&sb, "  Days uploaded:   %d\n", r.Days)
	fmt.Fprintf(&sb, "  Chunks created:  %d\n", r.Chunks)
	if len(r.Errors) > 0 {
		sb.WriteString(theme.errorStyle().Render(fmt.Sprintf("\nFailed days (%d):\n", len(r.Errors))))
		for _, e := range r.Errors {
			fmt.Fprintf(&sb, "  • %s\n", e)
		}
	}
	return sb.String()
}

func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// RunJobProgress shows a progress bar until job finishes. Ctrl+C calls
// cancel and returns once the job has stopped.
func RunJobProgress(job *service.Job, cancel func()) error {
	p := tea.NewProgram(newProgressModel(job, cancel))

	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("progress UI error: %w", err)
	}

	if m, ok := finalModel.(progressModel); ok {
		if m.quitting {
			for !job.Done() {
				time.Sleep(pollInterval)
			}
			return fmt.Errorf("upload cancelled")
		}
		if m.err != nil {
			return m.err
		}
	}
	return nil
}
