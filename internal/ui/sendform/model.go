// Package sendform is the doctor's send-notification form.
package sendform

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/clinicdesk/internal/api"
	"github.com/nhle/clinicdesk/internal/keys"
	"github.com/nhle/clinicdesk/internal/model"
	"github.com/nhle/clinicdesk/internal/notify"
	"github.com/nhle/clinicdesk/internal/theme"
)

// SubmitMsg is dispatched when the user confirms the send.
type SubmitMsg struct {
	Request notify.SendRequest
}

// CancelMsg is dispatched when the user leaves the form.
type CancelMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	patientIDs    []string
	templateID    string
	customMessage string
	confirm       bool
}

type mode int

const (
	modeForm mode = iota
	modeSending
	modeResult
)

// Model is the send form.
type Model struct {
	mode      mode
	form      *huh.Form
	fb        *formBindings
	patients  []model.Patient
	templates []model.Template
	result    api.Result[notify.SendSummary]
	width     int
	height    int
}

// New creates a send form.
func New(width, height int) Model {
	return Model{fb: &formBindings{}, width: width, height: height}
}

// Start resets the form with the loaded patients and templates.
func (m *Model) Start(patients []model.Patient, templates []model.Template) tea.Cmd {
	m.patients = patients
	m.templates = templates
	*m.fb = formBindings{}
	m.mode = modeForm
	m.form = m.buildForm()
	return m.form.Init()
}

// ShowResult displays the outcome of a send.
func (m *Model) ShowResult(res api.Result[notify.SendSummary]) {
	m.result = res
	m.mode = modeResult
}

// Update handles messages for the form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch m.mode {
	case modeSending:
		return m, nil
	case modeResult:
		if k, ok := msg.(tea.KeyMsg); ok && (k.String() == "esc" || k.String() == "enter") {
			return m, func() tea.Msg { return CancelMsg{} }
		}
		return m, nil
	}

	if m.form == nil {
		return m, nil
	}
	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		if !m.fb.confirm {
			return m, func() tea.Msg { return CancelMsg{} }
		}
		m.mode = modeSending
		req := m.request()
		return m, func() tea.Msg { return SubmitMsg{Request: req} }
	case huh.StateAborted:
		return m, func() tea.Msg { return CancelMsg{} }
	}
	return m, cmd
}

func (m Model) request() notify.SendRequest {
	return notify.SendRequest{
		PatientIDs:    append([]string(nil), m.fb.patientIDs...),
		TemplateID:    m.fb.templateID,
		CustomMessage: strings.TrimSpace(m.fb.customMessage),
	}
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Patients").
				Description("Patients with appointments").
				Options(PatientOptions(m.patients)...).
				Value(&m.fb.patientIDs).
				Validate(func(ids []string) error {
					if len(ids) == 0 {
						return fmt.Errorf("select at least one patient")
					}
					return nil
				}),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Template").
				Options(TemplateOptions(m.templates)...).
				Value(&m.fb.templateID).
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("select a template")
					}
					return nil
				}),
			huh.NewNote().
				Title("Preview").
				DescriptionFunc(func() string {
					return m.templatePreview(m.fb.templateID)
				}, &m.fb.templateID),
			huh.NewText().
				Title("Custom message").
				Placeholder("Optional text appended to the template").
				CharLimit(500).
				Value(&m.fb.customMessage),
		),
		huh.NewGroup(
			huh.NewConfirm().
				TitleFunc(func() string {
					return fmt.Sprintf("Send to %d patient(s)?", len(m.fb.patientIDs))
				}, &m.fb.patientIDs).
				Affirmative("Send").
				Negative("Cancel").
				Value(&m.fb.confirm),
		),
	).WithKeyMap(keys.FormKeyMap()).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

// PatientOptions lists patients as "Name <email>" keyed by id.
func PatientOptions(patients []model.Patient) []huh.Option[string] {
	ids := make([]int64, len(patients))
	for i, p := range patients {
		ids[i] = p.UserID
	}
	values := notify.FormatIDs(ids)

	opts := make([]huh.Option[string], 0, len(patients))
	for i, p := range patients {
		label := fmt.Sprintf("%s <%s>", p.DisplayName(), p.Email)
		opts = append(opts, huh.NewOption(label, values[i]))
	}
	return opts
}

// TemplateOptions lists active templates keyed by id.
func TemplateOptions(templates []model.Template) []huh.Option[string] {
	opts := make([]huh.Option[string], 0, len(templates))
	for _, t := range templates {
		if !t.IsActive {
			continue
		}
		label := t.Name
		if t.Priority != "" {
			label = fmt.Sprintf("%s (%s)", t.Name, t.Priority)
		}
		opts = append(opts, huh.NewOption(label, strconv.FormatInt(t.ID, 10)))
	}
	return opts
}

func (m *Model) templatePreview(id string) string {
	for _, t := range m.templates {
		if strconv.FormatInt(t.ID, 10) == id {
			if t.Subject != "" {
				return t.Subject + "\n" + t.Content
			}
			return t.Content
		}
	}
	return ""
}

// View renders the form or the send outcome.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	var body string
	switch m.mode {
	case modeSending:
		body = theme.DimmedStyle.Render("Sending...")
	case modeResult:
		body = RenderSummary(m.result)
	default:
		if m.form == nil {
			return ""
		}
		body = m.form.View()
	}

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(titleStyle.Render("Send Notification") + "\n" + body)
}

// RenderSummary renders per-patient outcomes of a send.
func RenderSummary(res api.Result[notify.SendSummary]) string {
	var b strings.Builder
	sum := res.Data
	switch {
	case len(sum.Items) == 0:
		b.WriteString(theme.ErrorStyle.Render(res.ErrorMessage()))
	case res.OK() && sum.FailureCount == 0:
		b.WriteString(theme.SuccessStyle.Render(fmt.Sprintf("Sent to %d patient(s).", sum.SuccessCount)))
	case res.OK():
		b.WriteString(theme.WarningStyle.Render(fmt.Sprintf(
			"Sent to %d patient(s), %d failed.", sum.SuccessCount, sum.FailureCount)))
	default:
		b.WriteString(theme.ErrorStyle.Render("No notifications were sent."))
	}
	b.WriteString("\n\n")

	for _, item := range sum.Items {
		if item.Success {
			b.WriteString(theme.SuccessStyle.Render("✓ patient " + item.PatientID))
		} else {
			b.WriteString(theme.ErrorStyle.Render("✗ patient " + item.PatientID + ": " + item.ErrorMessage()))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(theme.HelpStyle.Render("enter/esc close"))
	return b.String()
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

func (m Model) formHeight() int {
	h := m.height - 4
	if h < 10 {
		h = 10
	}
	return h
}
