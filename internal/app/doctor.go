package app

import (
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/clinicdesk/internal/api"
	"github.com/nhle/clinicdesk/internal/model"
	"github.com/nhle/clinicdesk/internal/notify"
	"github.com/nhle/clinicdesk/internal/ui/privacy"
	"github.com/nhle/clinicdesk/internal/ui/templates"
)

// Banners for actions the signed-in role may not use or cannot start.
const (
	DoctorOnlyMessage  = "This action is only available to doctors."
	PatientOnlyMessage = "Privacy settings are only available to patients."
	NoPatientsFound    = "No patients with appointments were found."
	NoTemplatesFound   = "No active templates. Create one with t first."
)

type patientsLoadedMsg struct {
	res api.Result[[]model.Patient]
}

type sendOptionsMsg struct {
	patients  api.Result[[]model.Patient]
	templates api.Result[[]model.Template]
}

type sendDoneMsg struct {
	res api.Result[notify.SendSummary]
}

func (m Model) isDoctor() bool {
	return m.user != nil && m.user.Role == model.RoleDoctor
}

func (m Model) loadPatients() tea.Cmd {
	svc, ctx, doctorID := m.notifySvc, m.ctx, m.user.UserID
	return func() tea.Msg {
		return patientsLoadedMsg{res: svc.PatientsWithAppointments(ctx, doctorID)}
	}
}

func (m *Model) applyPatients(res api.Result[[]model.Patient]) {
	if !res.OK() {
		m.setBanner(res.ErrorMessage(), true)
		return
	}
	m.patients = res.Data
	m.directory = model.NewPatientDirectory(res.Data)
	m.panel.SetPatients(m.directory)
	m.historyView.SetPatients(res.Data)
}

// openSend loads patients and templates together, then shows the form.
func (m *Model) openSend() tea.Cmd {
	if !m.isDoctor() {
		m.setBanner(DoctorOnlyMessage, true)
		return nil
	}
	m.navigate(ViewSend)

	svc, ctx, doctorID := m.notifySvc, m.ctx, m.user.UserID
	return func() tea.Msg {
		var msg sendOptionsMsg
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			msg.patients = svc.PatientsWithAppointments(gctx, doctorID)
			return nil
		})
		g.Go(func() error {
			msg.templates = svc.Templates(gctx)
			return nil
		})
		_ = g.Wait()
		return msg
	}
}

func (m *Model) startSendForm(msg sendOptionsMsg) tea.Cmd {
	if m.currentView != ViewSend {
		return nil
	}
	if msg.patients.OK() {
		m.applyPatients(msg.patients)
	}

	switch {
	case !msg.patients.OK():
		m.currentView = ViewDashboard
		m.setBanner(msg.patients.ErrorMessage(), true)
		return nil
	case !msg.templates.OK():
		m.currentView = ViewDashboard
		m.setBanner(msg.templates.ErrorMessage(), true)
		return nil
	case len(msg.patients.Data) == 0:
		m.currentView = ViewDashboard
		m.setBanner(NoPatientsFound, true)
		return nil
	case !hasActiveTemplate(msg.templates.Data):
		m.currentView = ViewDashboard
		m.setBanner(NoTemplatesFound, true)
		return nil
	}
	return m.sendForm.Start(msg.patients.Data, msg.templates.Data)
}

func hasActiveTemplate(ts []model.Template) bool {
	for _, t := range ts {
		if t.IsActive {
			return true
		}
	}
	return false
}

func (m Model) send(req notify.SendRequest) tea.Cmd {
	if !m.isDoctor() {
		return nil
	}
	svc, ctx, doctorID := m.notifySvc, m.ctx, m.user.UserID
	return func() tea.Msg {
		return sendDoneMsg{res: svc.Send(ctx, req, doctorID)}
	}
}

func (m *Model) openTemplates() tea.Cmd {
	if !m.isDoctor() {
		m.setBanner(DoctorOnlyMessage, true)
		return nil
	}
	m.navigate(ViewTemplates)
	m.templatesView = templates.New(m.notifySvc, m.keys,
		m.layout.ContentWidth(), m.layout.ContentHeight())
	return m.templatesView.Init()
}

func (m *Model) openHistory() tea.Cmd {
	if !m.isDoctor() {
		m.setBanner(DoctorOnlyMessage, true)
		return nil
	}
	m.navigate(ViewHistory)
	m.historyView.SetPatients(m.patients)
	return m.historyView.Init()
}

func (m *Model) openPrivacy() tea.Cmd {
	if m.user == nil || m.user.Role != model.RoleCustomer {
		m.setBanner(PatientOnlyMessage, true)
		return nil
	}
	m.navigate(ViewPrivacy)
	m.privacyView = privacy.New(m.authSvc, m.layout.ContentWidth(), m.layout.ContentHeight())
	return m.privacyView.Init()
}
