// Package notifications renders the notification panel: grouped by
// day, filterable by read state, sortable by creation time.
package notifications

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/clinicdesk/internal/keys"
	"github.com/nhle/clinicdesk/internal/model"
	"github.com/nhle/clinicdesk/internal/theme"
)

// MarkReadMsg asks the parent to mark a notification read.
type MarkReadMsg struct {
	ID int64
}

// OpenMsg asks the parent to show a notification in full.
type OpenMsg struct {
	Notification model.Notification
}

// MarkAllReadMsg asks the parent to mark every notification read.
type MarkAllReadMsg struct{}

// RefreshMsg asks the parent to fetch immediately.
type RefreshMsg struct{}

// CloseMsg signals the parent to close the panel.
type CloseMsg struct{}

// Model is the notification panel.
type Model struct {
	keys     *keys.KeyMap
	viewport viewport.Model
	now      func() time.Time

	items    []model.Notification
	patients model.PatientDirectory
	filter   ReadFilter
	sortDir  SortDirection
	groups   []Group
	visible  []model.Notification
	cursor   int
	lastSync time.Time
	err      error

	width  int
	height int
}

// New creates a notification panel.
func New(k *keys.KeyMap, width, height int) Model {
	m := Model{
		keys:     k,
		viewport: viewport.New(width, height-3),
		now:      time.Now,
		patients: model.PatientDirectory{},
		width:    width,
		height:   height,
	}
	return m
}

// SetItems replaces the list with a snapshot from the poller.
func (m *Model) SetItems(items []model.Notification, lastSync time.Time, err error) {
	var selected int64
	if m.cursor < len(m.visible) {
		selected = m.visible[m.cursor].ID
	}
	m.items = items
	m.lastSync = lastSync
	m.err = err
	m.rearrange(selected)
}

// SetPatients sets the directory used to resolve patient names.
func (m *Model) SetPatients(dir model.PatientDirectory) {
	m.patients = dir
	m.refreshContent()
}

// Unread returns the unread count of the full list.
func (m Model) Unread() int {
	return model.CountUnread(m.items)
}

// Selected returns the notification under the cursor.
func (m Model) Selected() (model.Notification, bool) {
	if m.cursor < 0 || m.cursor >= len(m.visible) {
		return model.Notification{}, false
	}
	return m.visible[m.cursor], true
}

// rearrange rebuilds groups and keeps the cursor on selectedID if it is
// still visible.
func (m *Model) rearrange(selectedID int64) {
	m.groups = Arrange(m.items, m.filter, m.sortDir, m.now())
	m.visible = Flatten(m.groups)

	m.cursor = 0
	for i, n := range m.visible {
		if n.ID == selectedID {
			m.cursor = i
			break
		}
	}
	m.refreshContent()
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the panel.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(keyMsg, m.keys.Back):
		return m, func() tea.Msg { return CloseMsg{} }

	case key.Matches(keyMsg, m.keys.Down):
		if m.cursor < len(m.visible)-1 {
			m.cursor++
			m.refreshContent()
		}
		return m, nil

	case key.Matches(keyMsg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
			m.refreshContent()
		}
		return m, nil

	case key.Matches(keyMsg, m.keys.Select):
		n, ok := m.Selected()
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg { return OpenMsg{Notification: n} }

	case key.Matches(keyMsg, m.keys.MarkRead):
		n, ok := m.Selected()
		if !ok || n.IsRead() {
			return m, nil
		}
		return m, func() tea.Msg { return MarkReadMsg{ID: n.ID} }

	case key.Matches(keyMsg, m.keys.MarkAllRead):
		return m, func() tea.Msg { return MarkAllReadMsg{} }

	case key.Matches(keyMsg, m.keys.Refresh):
		return m, func() tea.Msg { return RefreshMsg{} }

	case key.Matches(keyMsg, m.keys.CycleFilter):
		m.filter = m.filter.Next()
		m.rearrange(m.selectedID())
		return m, nil

	case key.Matches(keyMsg, m.keys.ToggleSort):
		m.sortDir = m.sortDir.Toggle()
		m.rearrange(m.selectedID())
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) selectedID() int64 {
	if n, ok := m.Selected(); ok {
		return n.ID
	}
	return 0
}

// refreshContent re-renders the list into the viewport and scrolls so
// the cursor stays visible.
func (m *Model) refreshContent() {
	var b strings.Builder
	now := m.now()
	idx := 0
	cursorLine := 0
	line := 0
	for gi, g := range m.groups {
		if gi > 0 {
			b.WriteString("\n")
			line++
		}
		b.WriteString(theme.GroupHeaderStyle.Render(g.Label))
		b.WriteString("\n")
		line++
		for _, n := range g.Items {
			if idx == m.cursor {
				cursorLine = line
			}
			rendered := RenderItem(n, m.patients, idx == m.cursor, now, m.width)
			b.WriteString(rendered)
			b.WriteString("\n")
			line += lipgloss.Height(rendered)
			idx++
		}
	}
	m.viewport.SetContent(b.String())

	if cursorLine < m.viewport.YOffset {
		m.viewport.SetYOffset(cursorLine)
	} else if bottom := m.viewport.YOffset + m.viewport.Height - 2; cursorLine > bottom {
		m.viewport.SetYOffset(cursorLine - m.viewport.Height + 2)
	}
}

// View renders the panel.
func (m Model) View() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).Render(
		fmt.Sprintf("Notifications (%d unread)", m.Unread()),
	)
	meta := theme.DimmedStyle.Render(fmt.Sprintf(
		"filter: %s | sort: %s | %s", m.filter, m.sortDir, m.syncLabel(),
	))
	header := lipgloss.JoinVertical(lipgloss.Left, title, meta)

	if len(m.visible) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, header, m.renderEmptyState())
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, "", m.viewport.View())
}

func (m Model) syncLabel() string {
	switch {
	case m.err != nil:
		return theme.WarningStyle.Render("sync failed, showing last known list")
	case m.lastSync.IsZero():
		return "syncing..."
	default:
		return "updated " + m.lastSync.Local().Format("15:04:05")
	}
}

func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height-3).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	if m.filter != FilterAll && len(m.items) > 0 {
		return style.Render(fmt.Sprintf("No %s notifications.\nPress f to change the filter.", m.filter))
	}
	return style.Render("You're all caught up.")
}

// SetSize updates the panel dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 3
	m.refreshContent()
}
