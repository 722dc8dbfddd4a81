// Package history shows the notifications a doctor has sent and lets
// them retract ones that have not been read yet.
package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/clinicdesk/internal/api"
	"github.com/nhle/clinicdesk/internal/keys"
	"github.com/nhle/clinicdesk/internal/model"
	"github.com/nhle/clinicdesk/internal/theme"
)

// NotUnsendableMessage is shown when the selected notification was
// already read or cancelled.
const NotUnsendableMessage = "This notification can no longer be unsent."

// Service is the subset of the notification service this view uses.
type Service interface {
	History(ctx context.Context, doctorID int64, patientID *int64) api.Result[[]model.Notification]
	Unsend(ctx context.Context, notificationID, doctorID int64) api.Result[struct{}]
}

// CloseMsg signals the parent to close the history view.
type CloseMsg struct{}

// UnsentMsg reports a successful unsend so the parent can refresh.
type UnsentMsg struct {
	ID int64
}

type loadedMsg struct {
	patientID *int64
	res       api.Result[[]model.Notification]
}

type unsendDoneMsg struct {
	id  int64
	res api.Result[struct{}]
}

type mode int

const (
	modeTable mode = iota
	modeConfirm
)

type formBindings struct {
	confirm bool
}

// Model is the Bubble Tea model for the history table.
type Model struct {
	mode        mode
	svc         Service
	keys        *keys.KeyMap
	doctorID    int64
	table       table.Model
	items       []model.Notification
	patients    []model.Patient
	directory   model.PatientDirectory
	filterIdx   int // 0 is all patients, i > 0 is patients[i-1]
	pending     model.Notification
	confirmForm *huh.Form
	fb          *formBindings
	loading     bool
	statusMsg   string
	statusErr   bool
	width       int
	height      int
}

// New creates a history view for doctorID.
func New(svc Service, k *keys.KeyMap, doctorID int64, width, height int) Model {
	t := table.New(
		table.WithColumns(columns(width)),
		table.WithFocused(true),
		table.WithHeight(tableHeight(height)),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(theme.ColorBorder).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(theme.ColorWhite).
		Background(theme.ColorBlue).
		Bold(false)
	t.SetStyles(s)

	return Model{
		svc:       svc,
		keys:      k,
		doctorID:  doctorID,
		table:     t,
		directory: model.PatientDirectory{},
		fb:        &formBindings{},
		loading:   true,
		width:     width,
		height:    height,
	}
}

func columns(width int) []table.Column {
	title := width - 16 - 20 - 8 - 11 - 12
	if title < 16 {
		title = 16
	}
	return []table.Column{
		{Title: "Sent", Width: 16},
		{Title: "Patient", Width: 20},
		{Title: "Title", Width: title},
		{Title: "Priority", Width: 8},
		{Title: "Status", Width: 11},
	}
}

func tableHeight(height int) int {
	h := height - 8
	if h < 3 {
		h = 3
	}
	return h
}

// SetPatients supplies names for the table and the patient filter.
func (m *Model) SetPatients(patients []model.Patient) {
	m.patients = patients
	m.directory = model.NewPatientDirectory(patients)
	if m.filterIdx > len(patients) {
		m.filterIdx = 0
	}
	m.refreshRows()
}

// Init loads the history.
func (m Model) Init() tea.Cmd {
	return m.load()
}

func (m Model) patientFilter() *int64 {
	if m.filterIdx == 0 || m.filterIdx > len(m.patients) {
		return nil
	}
	id := m.patients[m.filterIdx-1].UserID
	return &id
}

func (m Model) load() tea.Cmd {
	svc, doctorID, pid := m.svc, m.doctorID, m.patientFilter()
	return func() tea.Msg {
		return loadedMsg{patientID: pid, res: svc.History(context.Background(), doctorID, pid)}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		if !samePatient(msg.patientID, m.patientFilter()) {
			return m, nil
		}
		m.loading = false
		if !msg.res.OK() {
			m.setStatus(msg.res.ErrorMessage(), true)
		}
		m.items = msg.res.Data
		m.refreshRows()
		return m, nil

	case unsendDoneMsg:
		m.mode = modeTable
		if !msg.res.OK() {
			m.setStatus(msg.res.ErrorMessage(), true)
			return m, nil
		}
		m.setStatus("Notification unsent", false)
		m.loading = true
		id := msg.id
		return m, tea.Batch(m.load(), func() tea.Msg { return UnsentMsg{ID: id} })

	case tea.KeyMsg:
		if m.mode == modeConfirm {
			return m.updateConfirm(msg)
		}
		return m.handleKey(msg)
	}

	if m.mode == modeConfirm {
		return m.updateConfirm(msg)
	}
	return m, nil
}

func samePatient(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (m *Model) setStatus(msg string, isErr bool) {
	m.statusMsg = msg
	m.statusErr = isErr
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		return m, func() tea.Msg { return CloseMsg{} }

	case key.Matches(msg, m.keys.Refresh):
		m.loading = true
		return m, m.load()

	case key.Matches(msg, m.keys.CycleFilter):
		m.filterIdx = (m.filterIdx + 1) % (len(m.patients) + 1)
		m.loading = true
		m.items = nil
		m.refreshRows()
		return m, m.load()

	case key.Matches(msg, m.keys.Unsend):
		n, ok := m.Selected()
		if !ok {
			return m, nil
		}
		if !n.CanUnsend() {
			m.setStatus(NotUnsendableMessage, true)
			return m, nil
		}
		m.pending = n
		m.fb.confirm = false
		m.confirmForm = m.buildConfirmForm(n)
		m.mode = modeConfirm
		return m, m.confirmForm.Init()
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) buildConfirmForm(n model.Notification) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Unsend %q to %s?", n.Title, m.directory.NameFor(n))).
				Description("The patient will no longer see this notification.").
				Affirmative("Yes, unsend").
				Negative("Cancel").
				Value(&m.fb.confirm),
		),
	).WithKeyMap(keys.FormKeyMap()).WithWidth(m.formWidth())
}

func (m Model) updateConfirm(msg tea.Msg) (Model, tea.Cmd) {
	if m.confirmForm == nil {
		m.mode = modeTable
		return m, nil
	}
	mdl, cmd := m.confirmForm.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.confirmForm = f
	}
	switch m.confirmForm.State {
	case huh.StateCompleted:
		if !m.fb.confirm {
			m.mode = modeTable
			return m, nil
		}
		return m, m.unsend(m.pending.ID)
	case huh.StateAborted:
		m.mode = modeTable
		return m, nil
	}
	return m, cmd
}

func (m Model) unsend(id int64) tea.Cmd {
	svc, doctorID := m.svc, m.doctorID
	return func() tea.Msg {
		return unsendDoneMsg{id: id, res: svc.Unsend(context.Background(), id, doctorID)}
	}
}

// Selected returns the notification under the cursor.
func (m Model) Selected() (model.Notification, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.items) {
		return model.Notification{}, false
	}
	return m.items[i], true
}

func (m *Model) refreshRows() {
	rows := make([]table.Row, len(m.items))
	for i, n := range m.items {
		rows[i] = Row(n, m.directory)
	}
	m.table.SetRows(rows)
	if c := m.table.Cursor(); c >= len(rows) && len(rows) > 0 {
		m.table.SetCursor(len(rows) - 1)
	}
}

// Row renders one history entry as table cells.
func Row(n model.Notification, patients model.PatientDirectory) table.Row {
	sent := n.CreatedAt
	if n.SentAt != nil {
		sent = *n.SentAt
	}
	return table.Row{
		formatSent(sent),
		patients.NameFor(n),
		n.Title,
		string(n.Priority),
		string(n.Status),
	}
}

func formatSent(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

// View renders the history view.
func (m Model) View() string {
	var b strings.Builder

	title := "Sent Notifications"
	if pid := m.patientFilter(); pid != nil {
		title += " · " + m.directory[*pid].DisplayName()
	}
	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).Render(title))
	b.WriteString("\n\n")

	switch {
	case m.mode == modeConfirm && m.confirmForm != nil:
		b.WriteString(m.confirmForm.View())
	case m.loading && len(m.items) == 0:
		b.WriteString(theme.DimmedStyle.Render("Loading history..."))
	case len(m.items) == 0:
		b.WriteString(theme.DimmedStyle.Render("No notifications sent yet."))
	default:
		b.WriteString(m.table.View())
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
	b.WriteString(theme.HelpStyle.Render("u unsend | f patient filter | r refresh | esc back"))

	return lipgloss.NewStyle().Padding(1, 2).Render(b.String())
}

// SetSize updates dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.table.SetColumns(columns(width))
	m.table.SetHeight(tableHeight(height))
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
