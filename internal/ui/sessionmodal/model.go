// Package sessionmodal renders the session timeout warning.
package sessionmodal

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/clinicdesk/internal/theme"
)

// ExtendMsg asks the parent to extend the session.
type ExtendMsg struct{}

// LogoutMsg asks the parent to end the session now.
type LogoutMsg struct{}

// Model is the session timeout modal.
type Model struct {
	visible   bool
	extending bool
	remaining time.Duration
	window    time.Duration
	errMsg    string
	bar       progress.Model
	width     int
}

// New creates a hidden modal. window is the warning window the
// countdown bar is scaled to.
func New(window time.Duration, width int) Model {
	bar := progress.New(
		progress.WithGradient("#FF6B6B", "#FFD93D"),
		progress.WithoutPercentage(),
	)
	m := Model{window: window, bar: bar}
	m.SetWidth(width)
	return m
}

// Show makes the modal visible with the given remaining time.
func (m *Model) Show(remaining time.Duration) {
	m.visible = true
	m.extending = false
	m.errMsg = ""
	m.remaining = remaining
}

// Hide dismisses the modal.
func (m *Model) Hide() {
	m.visible = false
	m.extending = false
}

// Visible reports whether the modal is showing.
func (m Model) Visible() bool { return m.visible }

// SetRemaining updates the countdown.
func (m *Model) SetRemaining(d time.Duration) {
	if d < 0 {
		d = 0
	}
	m.remaining = d
}

// ExtendFailed leaves the modal open with msg.
func (m *Model) ExtendFailed(msg string) {
	m.extending = false
	m.errMsg = msg
}

// Update handles key presses while the modal is visible.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.visible {
		return m, nil
	}
	km, ok := msg.(tea.KeyMsg)
	if !ok || m.extending {
		return m, nil
	}
	switch km.String() {
	case "enter", "e":
		m.extending = true
		m.errMsg = ""
		return m, func() tea.Msg { return ExtendMsg{} }
	case "l", "L":
		return m, func() tea.Msg { return LogoutMsg{} }
	}
	return m, nil
}

// FormatCountdown renders d as m:ss, rounding up to whole seconds.
func FormatCountdown(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int((d + time.Second - 1) / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

func (m Model) percent() float64 {
	if m.window <= 0 {
		return 0
	}
	p := float64(m.remaining) / float64(m.window)
	if p > 1 {
		return 1
	}
	return p
}

// View renders the modal box, or "" when hidden.
func (m Model) View() string {
	if !m.visible {
		return ""
	}

	var b strings.Builder
	b.WriteString(theme.WarningStyle.Render("Your session is about to expire"))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("You will be logged out in %s.\n\n",
		lipgloss.NewStyle().Bold(true).Render(FormatCountdown(m.remaining))))
	b.WriteString(m.bar.ViewAs(m.percent()))
	b.WriteString("\n\n")

	switch {
	case m.extending:
		b.WriteString(theme.DimmedStyle.Render("Extending session..."))
	case m.errMsg != "":
		b.WriteString(theme.ErrorStyle.Render(m.errMsg))
		b.WriteString("\n\n")
		b.WriteString(theme.HelpStyle.Render("enter stay signed in | l log out"))
	default:
		b.WriteString(theme.HelpStyle.Render("enter stay signed in | l log out"))
	}

	return theme.PanelStyle.
		BorderForeground(theme.ColorYellow).
		Width(m.boxWidth()).
		Render(b.String())
}

// SetWidth sizes the modal relative to the terminal width.
func (m *Model) SetWidth(width int) {
	m.width = width
	m.bar.Width = m.boxWidth() - 6
}

func (m Model) boxWidth() int {
	w := m.width / 2
	if w < 40 {
		w = 40
	}
	if w > 64 {
		w = 64
	}
	return w
}
