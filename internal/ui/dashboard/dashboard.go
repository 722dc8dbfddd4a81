// Package dashboard renders the landing screen for each role.
package dashboard

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/clinicdesk/internal/model"
	"github.com/nhle/clinicdesk/internal/theme"
)

// recentLimit caps the notifications previewed on the dashboard.
const recentLimit = 5

// Summary is everything a dashboard shows.
type Summary struct {
	User          model.User
	Notifications []model.Notification
	Patients      model.PatientDirectory
	PatientCount  int
	LastSync      time.Time
	SyncErr       string
	Now           time.Time
}

// Title returns the header title for role.
func Title(role model.Role) string {
	switch role {
	case model.RoleDoctor:
		return "Doctor Dashboard"
	case model.RoleCustomer:
		return "Patient Dashboard"
	case model.RoleAdmin:
		return "Admin Dashboard"
	case model.RoleManager:
		return "Manager Dashboard"
	case model.RoleStaff:
		return "Staff Dashboard"
	default:
		return "Dashboard"
	}
}

// Render draws the dashboard for s.User's role.
func Render(s Summary, width int) string {
	var sections []string

	welcome := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).
		Render(fmt.Sprintf("Welcome, %s", s.User.DisplayName()))
	sections = append(sections,
		lipgloss.JoinHorizontal(lipgloss.Top, welcome, " ", theme.RoleStyle(s.User.Role).Render(string(s.User.Role))),
		"",
	)

	unread := model.CountUnread(s.Notifications)
	stats := []string{stat("Unread", unread), stat("Total", len(s.Notifications))}
	if s.User.Role == model.RoleDoctor {
		stats = append(stats, stat("Patients with appointments", s.PatientCount))
	}
	sections = append(sections, strings.Join(stats, "   "), "")

	if s.SyncErr != "" {
		sections = append(sections, theme.WarningStyle.Render("⚠ "+s.SyncErr), "")
	}

	sections = append(sections, theme.GroupHeaderStyle.Render("Latest notifications"))
	recent := Recent(s.Notifications, recentLimit)
	if len(recent) == 0 {
		sections = append(sections, theme.DimmedStyle.Render("Nothing new."))
	}
	for _, n := range recent {
		sections = append(sections, recentLine(n, s, width))
	}
	sections = append(sections, "", theme.HelpStyle.Render(shortcuts(s.User.Role)))

	return lipgloss.NewStyle().Padding(1, 2).Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func stat(label string, n int) string {
	return fmt.Sprintf("%s %s",
		lipgloss.NewStyle().Bold(true).Foreground(theme.ColorBlue).Render(fmt.Sprint(n)),
		theme.DimmedStyle.Render(label))
}

func recentLine(n model.Notification, s Summary, width int) string {
	marker := theme.DimmedStyle.Render("○")
	title := theme.DimmedStyle.Render(n.Title)
	if !n.IsRead() {
		marker = theme.UnreadStyle.Render("●")
		title = theme.UnreadStyle.Render(n.Title)
	}
	line := fmt.Sprintf("%s %s  %s", marker, title, theme.DimmedStyle.Render(ago(n.CreatedAt, s.Now)))
	if s.User.Role == model.RoleDoctor && (n.PatientID != nil || n.PatientName != "") {
		line += theme.DimmedStyle.Render("  · " + s.Patients.NameFor(n))
	}
	return lipgloss.NewStyle().MaxWidth(max(width-4, 20)).Render(line)
}

// Recent returns up to limit notifications, unread first, newest first
// within each group.
func Recent(items []model.Notification, limit int) []model.Notification {
	out := make([]model.Notification, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsRead() != out[j].IsRead() {
			return !out[i].IsRead()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func ago(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return t.Local().Format("Jan 2")
	}
}

func shortcuts(role model.Role) string {
	common := "b notifications | r refresh | : commands | ? help | L log out | q quit"
	switch role {
	case model.RoleDoctor:
		return "n send | t templates | h history | " + common
	case model.RoleCustomer:
		return "p privacy | " + common
	default:
		return common
	}
}
