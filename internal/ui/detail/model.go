package detail

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/clinicdesk/internal/keys"
	"github.com/nhle/clinicdesk/internal/model"
	"github.com/nhle/clinicdesk/internal/theme"
)

// BackMsg signals the parent to navigate back to the panel.
type BackMsg struct{}

// MarkReadMsg asks the parent to mark the shown notification read.
type MarkReadMsg struct {
	ID int64
}

// Model is the notification detail view.
type Model struct {
	notification *model.Notification
	patients     model.PatientDirectory
	viewport     viewport.Model
	keys         *keys.KeyMap
	width        int
	height       int
}

// New creates a new detail view model.
func New(keys *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     keys,
		patients: model.PatientDirectory{},
		width:    width,
		height:   height,
	}
}

// Init returns the initial command for the detail view.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg {
				return BackMsg{}
			}

		case key.Matches(msg, m.keys.MarkRead):
			if m.notification != nil && !m.notification.IsRead() {
				id := m.notification.ID
				return m, func() tea.Msg {
					return MarkReadMsg{ID: id}
				}
			}
			return m, nil
		}
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the detail view.
func (m Model) View() string {
	if m.notification == nil {
		emptyStyle := lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray)
		return emptyStyle.Render("No notification selected")
	}

	return m.viewport.View()
}

// renderContent builds the full detail content string for the viewport.
func (m Model) renderContent() string {
	if m.notification == nil {
		return ""
	}

	n := m.notification
	var sections []string

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	title := n.Title
	if title == "" {
		title = "(no title)"
	}
	sections = append(sections, titleStyle.Render(title))

	// Badges line: status + priority
	badgeLine := lipgloss.JoinHorizontal(
		lipgloss.Top,
		theme.StatusStyle(n.Status).Render(string(n.Status)),
		"  ",
		theme.PriorityStyle(n.Priority).Render(string(n.Priority)),
	)
	sections = append(sections, badgeLine)
	sections = append(sections, "")

	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)
	meta := func(label, value string) {
		sections = append(sections, fmt.Sprintf("%-11s %s",
			metaStyle.Render(label+":"), valStyle.Render(value)))
	}

	if n.PatientID != nil || n.PatientName != "" {
		meta("Patient", m.patients.NameFor(*n))
	}
	if !n.CreatedAt.IsZero() {
		meta("Created", n.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	if n.SentAt != nil {
		meta("Sent", n.SentAt.Local().Format("2006-01-02 15:04"))
	}
	if n.ScheduledAt != nil {
		meta("Scheduled", n.ScheduledAt.Local().Format("2006-01-02 15:04"))
	}

	sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
	separator := sepStyle.Render(strings.Repeat("─", max(min(m.width-4, 80), 1)))
	sections = append(sections, "", separator, "")

	body := n.Message
	if body == "" {
		body = lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Italic(true).
			Render("No message")
	}
	sections = append(sections, lipgloss.NewStyle().Width(max(m.width-4, 20)).Render(body))

	if !n.IsRead() {
		sections = append(sections, "", theme.HelpStyle.Render("m mark as read | esc back"))
	} else {
		sections = append(sections, "", theme.HelpStyle.Render("esc back"))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetNotification updates the notification being displayed.
func (m *Model) SetNotification(n model.Notification, patients model.PatientDirectory) {
	m.notification = &n
	if patients != nil {
		m.patients = patients
	}
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoTop()
}

// Sync refreshes the shown notification from a newer snapshot, keeping
// the scroll position.
func (m *Model) Sync(items []model.Notification) {
	if m.notification == nil {
		return
	}
	for _, n := range items {
		if n.ID == m.notification.ID {
			m.notification = &n
			m.viewport.SetContent(m.renderContent())
			return
		}
	}
}

// Current returns the shown notification.
func (m Model) Current() (model.Notification, bool) {
	if m.notification == nil {
		return model.Notification{}, false
	}
	return *m.notification, true
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
	m.viewport.SetContent(m.renderContent())
}
