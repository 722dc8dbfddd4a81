package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/clinicdesk/internal/theme"
)

// Layout manages the dashboard frame dimensions.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
// HeaderHeight and StatusBarHeight default to 1.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the height available for the main content area,
// accounting for the header, banner line and status bar.
func (l Layout) ContentHeight() int {
	h := l.Height - l.HeaderHeight - l.StatusBarHeight - 1
	if h < 0 {
		return 0
	}
	return h
}

// RenderHeader renders the dashboard header: title on the left, the
// unread badge and user label on the right.
func (l Layout) RenderHeader(title string, unread int, user string) string {
	titleRendered := theme.HeaderStyle.Render(title)

	right := theme.HeaderStyle.Render(user)
	if unread > 0 {
		right = lipgloss.JoinHorizontal(lipgloss.Top,
			theme.BadgeStyle.Render(UnreadBadge(unread)),
			right,
		)
	}

	gap := l.Width -
		lipgloss.Width(titleRendered) -
		lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}

	filler := lipgloss.NewStyle().
		Width(gap).
		Background(theme.HeaderStyle.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		titleRendered,
		filler,
		right,
	)
}

// UnreadBadge formats the unread count, capping large values.
func UnreadBadge(unread int) string {
	if unread > 99 {
		return "🔔 99+"
	}
	return fmt.Sprintf("🔔 %d", unread)
}

// RenderBanner renders a one-line outcome message. An empty message
// renders as a blank line so the layout does not shift.
func (l Layout) RenderBanner(message string, isErr bool) string {
	if message == "" {
		return ""
	}
	style := theme.SuccessStyle
	if isErr {
		style = theme.ErrorStyle
	}
	return style.MaxWidth(l.Width).Render(message)
}

// RenderStatusBar renders the bottom status bar with keyboard hints.
func (l Layout) RenderStatusBar(hints string) string {
	rendered := theme.StatusBarStyle.Render(hints)

	gap := l.Width - lipgloss.Width(rendered)
	if gap < 0 {
		gap = 0
	}

	filler := theme.StatusBarStyle.Render(
		lipgloss.NewStyle().
			Width(gap).
			Background(theme.StatusBarStyle.GetBackground()).
			Render(""),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, rendered, filler)
}

// RenderWithFrame composes a full terminal view by vertically joining
// the header, banner, content area, and status bar.
func (l Layout) RenderWithFrame(
	header string,
	banner string,
	content string,
	statusBar string,
) string {
	content = lipgloss.NewStyle().
		Height(l.ContentHeight()).
		MaxHeight(l.ContentHeight()).
		Render(content)

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		banner,
		content,
		statusBar,
	)
}

// Center places an overlay in the middle of the content area.
func (l Layout) Center(overlay string) string {
	return lipgloss.Place(l.ContentWidth(), l.ContentHeight(),
		lipgloss.Center, lipgloss.Center, overlay)
}
