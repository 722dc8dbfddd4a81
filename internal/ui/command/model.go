package command

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/clinicdesk/internal/theme"
)

// CommandMsg is emitted when the user executes a command.
type CommandMsg string

// Names of the commands the palette suggests.
const (
	Refresh       = "refresh"
	MarkAllRead   = "mark-all-read"
	Notifications = "notifications"
	Send          = "send"
	Templates     = "templates"
	History       = "history"
	Privacy       = "privacy"
	ExtendSession = "extend-session"
	Logout        = "logout"
	Help          = "help"
	Quit          = "quit"
)

var descriptions = map[string]string{
	Refresh:       "fetch notifications now",
	MarkAllRead:   "mark every notification as read",
	Notifications: "open the notification panel",
	Send:          "send a notification to patients",
	Templates:     "manage notification templates",
	History:       "browse sent notifications",
	Privacy:       "edit privacy settings",
	ExtendSession: "keep the session alive",
	Logout:        "sign out",
	Help:          "show key bindings",
	Quit:          "exit clinicdesk",
}

// Model is the command palette: a text input with completion over the
// commands available to the signed-in user.
type Model struct {
	input    textinput.Model
	commands []string
	width    int
	height   int
}

// New creates a palette offering commands as completions.
func New(width, height int, commands []string) Model {
	ti := textinput.New()
	ti.Placeholder = "type a command..."
	ti.Prompt = ": "
	ti.ShowSuggestions = true
	ti.Focus()

	m := Model{input: ti, width: width, height: height}
	m.SetSuggestions(commands)
	m.SetSize(width, height)
	return m
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if km, ok := msg.(tea.KeyMsg); ok && km.Type == tea.KeyEnter {
		name := Resolve(m.input.Value(), m.commands)
		m.input.Reset()
		if name == "" {
			return m, nil
		}
		return m, func() tea.Msg { return CommandMsg(name) }
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// Resolve normalizes input and expands it to a command when it is an
// unambiguous prefix of one. Anything else is returned as typed so the
// caller can report it.
func Resolve(input string, commands []string) string {
	typed := strings.ToLower(strings.TrimSpace(input))
	if typed == "" {
		return ""
	}
	matches := Matching(typed, commands)
	for _, c := range matches {
		if c == typed {
			return c
		}
	}
	if len(matches) == 1 {
		return matches[0]
	}
	return typed
}

// Matching returns the commands that start with prefix, in order.
func Matching(prefix string, commands []string) []string {
	var out []string
	for _, c := range commands {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// View renders the command palette.
func (m Model) View() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1).
		Render("Command Palette")

	typed := strings.ToLower(strings.TrimSpace(m.input.Value()))
	var rows []string
	for _, c := range Matching(typed, m.commands) {
		rows = append(rows, fmt.Sprintf("%-16s %s", c, theme.DimmedStyle.Render(descriptions[c])))
	}
	if len(rows) == 0 {
		rows = append(rows, theme.DimmedStyle.Render("no matching command"))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		title,
		m.input.View(),
		"",
		strings.Join(rows, "\n"),
	)
	return theme.PanelStyle.
		Width(m.width - 4).
		Render(content)
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}

// SetSuggestions replaces the commands offered for completion.
func (m *Model) SetSuggestions(commands []string) {
	m.commands = append([]string(nil), commands...)
	m.input.SetSuggestions(m.commands)
}

// Focus gives keyboard focus to the text input and clears stale input.
func (m *Model) Focus() tea.Cmd {
	m.input.Reset()
	return m.input.Focus()
}
