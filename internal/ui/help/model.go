package help

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/clinicdesk/internal/keys"
	"github.com/nhle/clinicdesk/internal/model"
	"github.com/nhle/clinicdesk/internal/theme"
)

// Model is the help overlay view.
type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	role   model.Role
	width  int
	height int
}

// New creates a new help view model.
func New(keys *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.Width = width
	return Model{
		keys:   keys,
		help:   h,
		width:  width,
		height: height,
	}
}

// SetRole limits the shortcuts shown to the ones the role can use.
func (m *Model) SetRole(role model.Role) {
	m.role = role
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the help view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// View renders the help overlay.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	title := titleStyle.Render("Keyboard Shortcuts")

	m.help.Width = m.width - 4
	m.help.ShowAll = true
	helpText := m.help.View(roleKeys{keys: m.keys, role: m.role})

	content := lipgloss.JoinVertical(lipgloss.Left, title, helpText)

	return theme.PanelStyle.
		Width(m.width - 4).
		Height(m.height - 4).
		Render(content)
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}

// roleKeys hides doctor-only bindings from other roles.
type roleKeys struct {
	keys *keys.KeyMap
	role model.Role
}

func (r roleKeys) ShortHelp() []key.Binding {
	return r.keys.ShortHelp()
}

func (r roleKeys) FullHelp() [][]key.Binding {
	groups := r.keys.FullHelp()
	// The last group holds the doctor tools.
	switch r.role {
	case model.RoleDoctor:
		return groups
	case model.RoleCustomer:
		shared := groups[:len(groups)-1 : len(groups)-1]
		return append(shared, []key.Binding{r.keys.Privacy})
	default:
		return groups[:len(groups)-1]
	}
}
