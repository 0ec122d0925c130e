package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/easel/internal/state"
)

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")
	for _, job := range m.snapshot.Jobs {
		b.WriteString(m.renderJob(job))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	if m.finished || m.aborted {
		b.WriteString(m.renderSummary())
		b.WriteString("\n")
		return b.String()
	}
	b.WriteString(m.theme.Styles().Footer.Render(m.help.View(m.keys)))
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderHeader() string {
	styles := m.theme.Styles()
	bg := newBgStyle(m.theme.Surface)

	total := len(m.snapshot.Jobs)
	parts := []string{
		bg.Render("easel", styles.Logo),
		bg.Render(m.snapshot.Server, styles.MutedText),
		bg.Render("Jobs:", styles.MutedText) + bg.Space() +
			bg.Render(fmt.Sprintf("%d/%d", m.snapshot.Completed(), total), styles.Text),
	}
	if !m.snapshot.StartedAt.IsZero() {
		parts = append(parts, bg.Render(humanizeDuration(time.Since(m.snapshot.StartedAt)), styles.MutedText))
	}
	return styles.Header.Width(m.width).Render(bg.Join(parts, 2))
}

func (m Model) renderJob(job state.Job) string {
	styles := m.theme.Styles()
	phase := job.Phase.String()

	icon := " "
	switch {
	case job.Phase.Active():
		icon = m.spinner.View()
	case job.Phase == state.PhaseDone:
		icon = styles.SuccessText.Render("✓")
	case job.Phase == state.PhaseFailed:
		icon = styles.DangerText.Render("✗")
	}

	badge := styles.PhaseStyle(phase).Render(padRight(phase, len("submitting")))
	prompt := styles.Text.Render(truncate(job.Prompt, promptWidth(m.width)))
	line := fmt.Sprintf("%s %s %s", icon, badge, prompt)

	var detail string
	switch job.Phase {
	case state.PhaseRunning:
		detail = m.bar.ViewAs(job.Ratio())
		if job.Total > 0 {
			detail += " " + styles.MutedText.Render(fmt.Sprintf("%d/%d", job.Step, job.Total))
		} else {
			detail += " " + styles.FaintText.Render("waiting for first step")
		}
	case state.PhaseSubmitting:
		detail = styles.MutedText.Render("submitting job")
	case state.PhaseSaving:
		detail = styles.MutedText.Render("saving image")
	case state.PhaseDone:
		if job.SavedPath != "" {
			detail = styles.MutedText.Render(truncateMiddle(job.SavedPath, 48))
		} else {
			detail = styles.WarningText.Render("no image returned")
		}
	case state.PhaseFailed:
		if job.Err != nil {
			detail = styles.DangerText.Render(truncate(job.Err.Error(), 72))
		}
	}
	if detail == "" {
		return line
	}
	return lipgloss.JoinVertical(lipgloss.Left, line, "    "+detail)
}

func (m Model) renderSummary() string {
	styles := m.theme.Styles()
	done := m.snapshot.Completed()
	total := len(m.snapshot.Jobs)
	switch {
	case m.aborted:
		return styles.WarningText.Render(fmt.Sprintf("Cancelled after %d of %d images.", done, total))
	case m.snapshot.LastError != nil:
		return styles.DangerText.Render(fmt.Sprintf("Stopped after %d of %d images: %v", done, total, m.snapshot.LastError))
	default:
		return styles.SuccessText.Render(fmt.Sprintf("Generated %d of %d images.", done, total))
	}
}

func promptWidth(termWidth int) int {
	w := termWidth - 20
	if w < 20 {
		return 20
	}
	return w
}
