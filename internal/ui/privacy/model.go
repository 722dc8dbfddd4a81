// Package privacy edits a patient's data sharing preferences.
package privacy

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/clinicdesk/internal/api"
	"github.com/nhle/clinicdesk/internal/keys"
	"github.com/nhle/clinicdesk/internal/model"
	"github.com/nhle/clinicdesk/internal/theme"
)

// Service loads and stores privacy settings.
type Service interface {
	PrivacySettings(ctx context.Context) api.Result[model.PrivacySettings]
	UpdatePrivacySettings(ctx context.Context, ps model.PrivacySettings) api.Result[model.PrivacySettings]
}

// CloseMsg signals the parent to close the privacy view.
type CloseMsg struct{}

type loadedMsg struct {
	res api.Result[model.PrivacySettings]
}

type savedMsg struct {
	res api.Result[model.PrivacySettings]
}

// Model is the privacy settings form.
type Model struct {
	svc       Service
	settings  *model.PrivacySettings
	form      *huh.Form
	loading   bool
	saving    bool
	statusMsg string
	statusErr bool
	width     int
	height    int
}

// New creates the privacy view.
func New(svc Service, width, height int) Model {
	return Model{
		svc:      svc,
		settings: &model.PrivacySettings{},
		loading:  true,
		width:    width,
		height:   height,
	}
}

// Init loads the current settings.
func (m Model) Init() tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		return loadedMsg{res: svc.PrivacySettings(context.Background())}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		m.loading = false
		if !msg.res.OK() {
			m.setStatus(msg.res.ErrorMessage(), true)
		}
		*m.settings = msg.res.Data
		m.form = m.buildForm()
		return m, m.form.Init()

	case savedMsg:
		m.saving = false
		if !msg.res.OK() {
			m.setStatus(msg.res.ErrorMessage(), true)
		} else {
			*m.settings = msg.res.Data
			m.setStatus("Privacy settings saved", false)
		}
		m.form = m.buildForm()
		return m, m.form.Init()

	case tea.KeyMsg:
		if msg.String() == "esc" && !m.saving {
			return m, func() tea.Msg { return CloseMsg{} }
		}
	}

	if m.form == nil || m.saving {
		return m, nil
	}
	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}
	switch m.form.State {
	case huh.StateCompleted:
		m.saving = true
		svc, ps := m.svc, *m.settings
		return m, func() tea.Msg {
			return savedMsg{res: svc.UpdatePrivacySettings(context.Background(), ps)}
		}
	case huh.StateAborted:
		return m, func() tea.Msg { return CloseMsg{} }
	}
	return m, cmd
}

func (m *Model) setStatus(msg string, isErr bool) {
	m.statusMsg = msg
	m.statusErr = isErr
}

func (m Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Share medical data with my care team").
				Value(&m.settings.ShareMedicalData),
			huh.NewConfirm().
				Title("Anonymous mode").
				Description("Hide my identity in shared reports.").
				Value(&m.settings.AnonymousMode),
			huh.NewConfirm().
				Title("Receive notifications").
				Value(&m.settings.ReceiveNotifications),
			huh.NewConfirm().
				Title("Show my full name to staff").
				Value(&m.settings.ShowFullName),
		),
	).WithKeyMap(keys.FormKeyMap()).WithWidth(m.formWidth()).WithShowHelp(false)
}

// View renders the privacy form.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).Render("Privacy Settings"))
	b.WriteString("\n\n")

	switch {
	case m.loading:
		b.WriteString(theme.DimmedStyle.Render("Loading settings..."))
	case m.saving:
		b.WriteString(theme.DimmedStyle.Render("Saving..."))
	case m.form != nil:
		b.WriteString(m.form.View())
	}

	if m.statusMsg != "" {
		style := theme.SuccessStyle
		if m.statusErr {
			style = theme.ErrorStyle
		}
		b.WriteString("\n")
		b.WriteString(style.Render(m.statusMsg))
	}

	b.WriteString("\n\n")
	b.WriteString(theme.HelpStyle.Render("enter save | esc back"))

	return lipgloss.NewStyle().Padding(1, 2).Render(b.String())
}

// SetSize updates dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 80 {
		w = 80
	}
	return w
}
