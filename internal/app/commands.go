package app

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/clinicdesk/internal/model"
	"github.com/nhle/clinicdesk/internal/ui/command"
)

// commandsFor lists the palette commands a role may run.
func commandsFor(role model.Role) []string {
	names := []string{
		command.Refresh,
		command.MarkAllRead,
		command.Notifications,
	}
	switch role {
	case model.RoleDoctor:
		names = append(names, command.Send, command.Templates, command.History)
	case model.RoleCustomer:
		names = append(names, command.Privacy)
	}
	return append(names,
		command.ExtendSession,
		command.Logout,
		command.Help,
		command.Quit,
	)
}

// executeCommand runs a palette command. Role checks happen in the
// actions themselves so typed and keyed routes behave the same.
func (m *Model) executeCommand(name string) tea.Cmd {
	if name == "" {
		return nil
	}
	if m.user == nil && name != command.Quit {
		return nil
	}

	switch name {
	case command.Refresh:
		return m.refresh()
	case command.MarkAllRead:
		return m.markAllRead()
	case command.Notifications:
		return m.openNotifications()
	case command.Send:
		return m.openSend()
	case command.Templates:
		return m.openTemplates()
	case command.History:
		return m.openHistory()
	case command.Privacy:
		return m.openPrivacy()
	case command.ExtendSession:
		return m.extendSession()
	case command.Logout:
		return m.logout()
	case command.Help:
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return nil
	case command.Quit:
		return m.quit()
	default:
		m.setBanner("Unknown command: "+name, true)
		return nil
	}
}
