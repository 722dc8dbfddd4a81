package notifications

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/clinicdesk/internal/model"
	"github.com/nhle/clinicdesk/internal/theme"
)

// RenderItem draws one notification as a title line and a message line.
func RenderItem(n model.Notification, patients model.PatientDirectory, selected bool, now time.Time, width int) string {
	marker := "○"
	titleStyle := theme.DimmedStyle
	if !n.IsRead() {
		marker = "●"
		titleStyle = theme.UnreadStyle
	}

	title := n.Title
	if title == "" {
		title = "(no title)"
	}

	parts := []string{
		marker,
		titleStyle.Render(title),
		theme.PriorityStyle(n.Priority).Render(string(n.Priority)),
		theme.DimmedStyle.Render(patients.NameFor(n)),
		theme.DimmedStyle.Render(formatTime(n.CreatedAt, now)),
	}
	line := strings.Join(parts, "  ")

	body := n.Message
	if width > 8 && lipgloss.Width(body) > width-6 {
		body = truncate(body, width-6)
	}
	lines := line
	if body != "" {
		lines += "\n" + theme.DimmedStyle.Render("  "+body)
	}

	if selected {
		return theme.SelectedItemStyle.Render(lines)
	}
	return theme.ListItemStyle.Render(lines)
}

// formatTime shows the clock for today and the date otherwise.
func formatTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	if DayLabel(t, now) == GroupToday {
		return t.Local().Format("15:04")
	}
	return t.Local().Format("Jan 02 15:04")
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 1 {
		return "…"
	}
	return fmt.Sprintf("%s…", string(runes[:max-1]))
}
