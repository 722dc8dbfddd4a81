// Package templates manages notification templates: list, create, edit
// and delete with confirmation.
package templates

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/clinicdesk/internal/api"
	"github.com/nhle/clinicdesk/internal/keys"
	"github.com/nhle/clinicdesk/internal/model"
	"github.com/nhle/clinicdesk/internal/theme"
)

// Service is the subset of the notification service this view uses.
type Service interface {
	Templates(ctx context.Context) api.Result[[]model.Template]
	CreateTemplate(ctx context.Context, in model.TemplateInput) api.Result[model.Template]
	UpdateTemplate(ctx context.Context, id int64, in model.TemplateInput) api.Result[model.Template]
	DeleteTemplate(ctx context.Context, id int64) api.Result[struct{}]
}

// CloseMsg signals the parent to close the template manager.
type CloseMsg struct{}

// ChangedMsg signals that templates were modified.
type ChangedMsg struct{}

type mode int

const (
	modeList mode = iota
	modeForm
	modeConfirmDelete
)

type formBindings struct {
	name     string
	kind     string
	subject  string
	content  string
	priority model.Priority
	active   bool
	confirm  bool
}

type loadedMsg struct {
	res api.Result[[]model.Template]
}

type savedMsg struct {
	res api.Result[model.Template]
}

type deletedMsg struct {
	res api.Result[struct{}]
}

// item adapts a template to bubbles/list.
type item struct {
	t model.Template
}

func (i item) FilterValue() string { return i.t.Name }

type delegate struct{}

func (delegate) Height() int                             { return 1 }
func (delegate) Spacing() int                            { return 0 }
func (delegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (delegate) Render(w io.Writer, m list.Model, index int, li list.Item) {
	it, ok := li.(item)
	if !ok {
		return
	}
	t := it.t
	state := ""
	if !t.IsActive {
		state = theme.DimmedStyle.Render(" (inactive)")
	}
	line := fmt.Sprintf("%s  %s%s",
		theme.PriorityStyle(t.Priority).Render(fmt.Sprintf("%-6s", t.Priority)),
		t.Name,
		state,
	)
	if index == m.Index() {
		fmt.Fprint(w, theme.SelectedItemStyle.Render(line))
		return
	}
	fmt.Fprint(w, theme.ListItemStyle.Render(line))
}

// Model is the Bubble Tea model for template management.
type Model struct {
	mode        mode
	svc         Service
	keys        *keys.KeyMap
	list        list.Model
	editingID   int64
	isNew       bool
	form        *huh.Form
	confirmForm *huh.Form
	fb          *formBindings
	statusMsg   string
	statusErr   bool
	width       int
	height      int
}

// New creates a new template manager model.
func New(svc Service, k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, delegate{}, width, height-4)
	l.Title = "Templates"
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	return Model{
		mode:   modeList,
		svc:    svc,
		keys:   k,
		list:   l,
		fb:     &formBindings{},
		width:  width,
		height: height,
	}
}

// Init loads templates.
func (m Model) Init() tea.Cmd {
	return m.loadTemplates()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		if !msg.res.OK() {
			m.setStatus(msg.res.ErrorMessage(), true)
		}
		items := make([]list.Item, len(msg.res.Data))
		for i, t := range msg.res.Data {
			items[i] = item{t: t}
		}
		return m, m.list.SetItems(items)

	case savedMsg:
		m.mode = modeList
		if !msg.res.OK() {
			m.setStatus(msg.res.ErrorMessage(), true)
			return m, nil
		}
		m.setStatus(msg.res.Message, false)
		return m, tea.Batch(m.loadTemplates(), func() tea.Msg { return ChangedMsg{} })

	case deletedMsg:
		m.mode = modeList
		if !msg.res.OK() {
			m.setStatus(msg.res.ErrorMessage(), true)
			return m, nil
		}
		m.setStatus(msg.res.Message, false)
		return m, tea.Batch(m.loadTemplates(), func() tea.Msg { return ChangedMsg{} })

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.updateActiveForm(msg)
}

func (m *Model) setStatus(msg string, isErr bool) {
	m.statusMsg = msg
	m.statusErr = isErr
}

func (m Model) selected() (model.Template, bool) {
	it, ok := m.list.SelectedItem().(item)
	if !ok {
		return model.Template{}, false
	}
	return it.t, true
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch m.mode {
	case modeForm:
		return m.updateForm(msg)
	case modeConfirmDelete:
		return m.updateConfirm(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Back):
		return m, func() tea.Msg { return CloseMsg{} }

	case msg.String() == "n":
		m.isNew = true
		m.editingID = 0
		*m.fb = formBindings{priority: model.PriorityMedium, active: true}
		m.form = m.buildForm()
		m.mode = modeForm
		return m, m.form.Init()

	case msg.String() == "e":
		t, ok := m.selected()
		if !ok {
			return m, nil
		}
		m.isNew = false
		m.editingID = t.ID
		*m.fb = formBindings{
			name:     t.Name,
			kind:     t.Type,
			subject:  t.Subject,
			content:  t.Content,
			priority: t.Priority,
			active:   t.IsActive,
		}
		m.form = m.buildForm()
		m.mode = modeForm
		return m, m.form.Init()

	case msg.String() == "d":
		if _, ok := m.selected(); !ok {
			return m, nil
		}
		m.fb.confirm = false
		m.confirmForm = m.buildConfirmForm()
		m.mode = modeConfirmDelete
		return m, m.confirmForm.Init()
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Placeholder("Appointment reminder").
				Value(&m.fb.name).
				Validate(required("name")),
			huh.NewInput().
				Title("Type").
				Placeholder("APPOINTMENT_REMINDER").
				Value(&m.fb.kind),
			huh.NewInput().
				Title("Subject").
				Value(&m.fb.subject),
			huh.NewText().
				Title("Content").
				Value(&m.fb.content).
				Validate(required("content")),
			huh.NewSelect[model.Priority]().
				Title("Priority").
				Options(
					huh.NewOption("Low", model.PriorityLow),
					huh.NewOption("Medium", model.PriorityMedium),
					huh.NewOption("High", model.PriorityHigh),
					huh.NewOption("Urgent", model.PriorityUrgent),
				).
				Value(&m.fb.priority),
			huh.NewConfirm().
				Title("Active").
				Value(&m.fb.active),
		),
	).WithKeyMap(keys.FormKeyMap()).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m Model) buildConfirmForm() *huh.Form {
	name := ""
	if t, ok := m.selected(); ok {
		name = t.Name
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Delete template %q?", name)).
				Description("This cannot be undone.").
				Affirmative("Yes, delete").
				Negative("Cancel").
				Value(&m.fb.confirm),
		),
	).WithKeyMap(keys.FormKeyMap()).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}
	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}
	if m.form.State == huh.StateCompleted {
		return m, m.saveTemplate()
	}
	if m.form.State == huh.StateAborted {
		m.mode = modeList
		return m, nil
	}
	return m, cmd
}

func (m Model) updateConfirm(msg tea.Msg) (Model, tea.Cmd) {
	if m.confirmForm == nil {
		return m, nil
	}
	mdl, cmd := m.confirmForm.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.confirmForm = f
	}
	if m.confirmForm.State == huh.StateCompleted {
		if t, ok := m.selected(); ok && m.fb.confirm {
			return m, m.deleteTemplate(t.ID)
		}
		m.mode = modeList
		return m, nil
	}
	if m.confirmForm.State == huh.StateAborted {
		m.mode = modeList
		return m, nil
	}
	return m, cmd
}

func (m Model) updateActiveForm(msg tea.Msg) (Model, tea.Cmd) {
	switch m.mode {
	case modeForm:
		return m.updateForm(msg)
	case modeConfirmDelete:
		return m.updateConfirm(msg)
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the template manager.
func (m Model) View() string {
	switch m.mode {
	case modeForm:
		return m.viewForm(m.form)
	case modeConfirmDelete:
		return m.viewForm(m.confirmForm)
	default:
		return m.viewList()
	}
}

func (m Model) viewList() string {
	var b strings.Builder

	if len(m.list.Items()) == 0 {
		b.WriteString(theme.HeaderStyle.Render("Templates"))
		b.WriteString("\n\n")
		b.WriteString(lipgloss.NewStyle().Foreground(theme.ColorGray).Italic(true).
			Render("No templates yet. Press 'n' to create one."))
	} else {
		b.WriteString(m.list.View())
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
	b.WriteString(theme.HelpStyle.Render("n new | e edit | d delete | esc back"))

	return lipgloss.NewStyle().Padding(1, 2).Render(b.String())
}

func (m Model) viewForm(f *huh.Form) string {
	if f == nil {
		return ""
	}
	title := "Edit Template"
	if m.isNew {
		title = "New Template"
	}
	if m.mode == modeConfirmDelete {
		title = "Delete Template"
	}
	return lipgloss.NewStyle().Padding(1, 2).Render(
		lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).Render(title) + "\n\n" + f.View(),
	)
}

// SetSize updates dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width-4, height-4)
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

func (m Model) loadTemplates() tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		return loadedMsg{res: svc.Templates(context.Background())}
	}
}

func (m Model) input() model.TemplateInput {
	return model.TemplateInput{
		Name:     strings.TrimSpace(m.fb.name),
		Type:     strings.TrimSpace(m.fb.kind),
		Subject:  strings.TrimSpace(m.fb.subject),
		Content:  m.fb.content,
		Priority: m.fb.priority,
		IsActive: m.fb.active,
	}
}

func (m Model) saveTemplate() tea.Cmd {
	svc := m.svc
	in := m.input()
	id := m.editingID
	isNew := m.isNew
	return func() tea.Msg {
		if isNew {
			return savedMsg{res: svc.CreateTemplate(context.Background(), in)}
		}
		return savedMsg{res: svc.UpdateTemplate(context.Background(), id, in)}
	}
}

func (m Model) deleteTemplate(id int64) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		return deletedMsg{res: svc.DeleteTemplate(context.Background(), id)}
	}
}
