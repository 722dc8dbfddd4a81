// Package login provides the sign-in and registration screens.
package login

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/clinicdesk/internal/api"
	"github.com/nhle/clinicdesk/internal/keys"
	"github.com/nhle/clinicdesk/internal/model"
	"github.com/nhle/clinicdesk/internal/theme"
)

// Messages shown for registration conflicts.
const (
	UsernameTakenMessage = "Username is already taken"
	EmailTakenMessage    = "Email is already registered"
	RegisteredMessage    = "Registration successful. Please log in."
)

const minPasswordLen = 6

// Authenticator signs users in and creates accounts.
type Authenticator interface {
	Login(ctx context.Context, creds model.Credentials) api.Result[model.User]
	Register(ctx context.Context, reg model.Registration) api.Result[model.User]
}

// Availability checks whether a username or email can be registered.
type Availability interface {
	CheckUsername(ctx context.Context, username string) api.Result[bool]
	CheckEmail(ctx context.Context, email string) api.Result[bool]
}

// LoggedInMsg is emitted after a successful login.
type LoggedInMsg struct {
	User model.User
}

type loginDoneMsg struct {
	res api.Result[model.User]
}

type availabilityMsg struct {
	username api.Result[bool]
	email    api.Result[bool]
}

type registerDoneMsg struct {
	res api.Result[model.User]
}

type mode int

const (
	modeLogin mode = iota
	modeRegister
	modeSubmitting
)

type formBindings struct {
	username string
	password string

	fullName    string
	regUsername string
	email       string
	regPassword string
	confirm     string
	phone       string
	gender      string
	dateOfBirth string
}

// Model is the login/registration screen.
type Model struct {
	mode      mode
	returnTo  mode
	auth      Authenticator
	checks    Availability
	form      *huh.Form
	fb        *formBindings
	spinner   spinner.Model
	banner    string
	bannerErr bool
	width     int
	height    int
}

// New creates the login screen.
func New(auth Authenticator, checks Availability, width, height int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		mode:    modeLogin,
		auth:    auth,
		checks:  checks,
		fb:      &formBindings{},
		spinner: sp,
		width:   width,
		height:  height,
	}
	m.form = m.buildLoginForm()
	return m
}

// Init focuses the first field.
func (m Model) Init() tea.Cmd {
	return m.form.Init()
}

// SetBanner shows msg above the form, e.g. why the user was signed out.
func (m *Model) SetBanner(msg string, isErr bool) {
	m.banner = msg
	m.bannerErr = isErr
}

// Reset clears the password and returns to the login form.
func (m *Model) Reset() tea.Cmd {
	m.fb.password = ""
	m.mode = modeLogin
	m.form = m.buildLoginForm()
	return m.form.Init()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loginDoneMsg:
		if !msg.res.OK() {
			m.mode = modeLogin
			m.SetBanner(msg.res.ErrorMessage(), true)
			m.fb.password = ""
			m.form = m.buildLoginForm()
			return m, m.form.Init()
		}
		m.banner = ""
		user := msg.res.Data
		return m, func() tea.Msg { return LoggedInMsg{User: user} }

	case availabilityMsg:
		if problem := availabilityProblem(msg); problem != "" {
			return m.backToRegister(problem)
		}
		return m, m.register()

	case registerDoneMsg:
		if !msg.res.OK() {
			return m.backToRegister(msg.res.ErrorMessage())
		}
		// Registration does not sign in; prefill the login form instead.
		username := m.fb.regUsername
		*m.fb = formBindings{username: username}
		m.mode = modeLogin
		m.SetBanner(RegisteredMessage, false)
		m.form = m.buildLoginForm()
		return m, m.form.Init()

	case spinner.TickMsg:
		if m.mode == modeSubmitting {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		if m.mode == modeSubmitting {
			return m, nil
		}
		if msg.String() == "ctrl+n" {
			return m.toggleMode()
		}
	}

	if m.mode == modeSubmitting || m.form == nil {
		return m, nil
	}
	return m.updateForm(msg)
}

func availabilityProblem(msg availabilityMsg) string {
	switch {
	case !msg.username.OK():
		return msg.username.ErrorMessage()
	case !msg.username.Data:
		return UsernameTakenMessage
	case !msg.email.OK():
		return msg.email.ErrorMessage()
	case !msg.email.Data:
		return EmailTakenMessage
	}
	return ""
}

func (m Model) backToRegister(problem string) (Model, tea.Cmd) {
	m.mode = modeRegister
	m.SetBanner(problem, true)
	m.fb.regPassword = ""
	m.fb.confirm = ""
	m.form = m.buildRegisterForm()
	return m, m.form.Init()
}

func (m Model) toggleMode() (Model, tea.Cmd) {
	m.banner = ""
	if m.mode == modeLogin {
		m.mode = modeRegister
		m.form = m.buildRegisterForm()
	} else {
		m.mode = modeLogin
		m.form = m.buildLoginForm()
	}
	return m, m.form.Init()
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.returnTo = m.mode
		m.mode = modeSubmitting
		m.banner = ""
		if m.returnTo == modeLogin {
			return m, tea.Batch(m.spinner.Tick, m.login())
		}
		return m, tea.Batch(m.spinner.Tick, m.checkAvailability())
	case huh.StateAborted:
		// Esc clears the form rather than leaving the screen.
		if m.mode == modeRegister {
			return m.toggleMode()
		}
		cmd := m.Reset()
		return m, cmd
	}
	return m, cmd
}

func (m Model) buildLoginForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Username").
				Value(&m.fb.username).
				Validate(required("Username")),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&m.fb.password).
				Validate(required("Password")),
		),
	).WithKeyMap(keys.FormKeyMap()).WithWidth(m.formWidth()).WithShowHelp(false)
}

func (m Model) buildRegisterForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Full name").
				Value(&m.fb.fullName).
				Validate(required("Full name")),
			huh.NewInput().
				Title("Username").
				Value(&m.fb.regUsername).
				Validate(required("Username")),
			huh.NewInput().
				Title("Email").
				Value(&m.fb.email).
				Validate(ValidateEmail),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&m.fb.regPassword).
				Validate(ValidatePassword),
			huh.NewInput().
				Title("Confirm password").
				EchoMode(huh.EchoModePassword).
				Value(&m.fb.confirm).
				Validate(func(s string) error {
					if s != m.fb.regPassword {
						return errors.New("Passwords do not match")
					}
					return nil
				}),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Phone number").
				Description("Optional").
				Value(&m.fb.phone),
			huh.NewSelect[string]().
				Title("Gender").
				Options(
					huh.NewOption("Prefer not to say", ""),
					huh.NewOption("Female", "FEMALE"),
					huh.NewOption("Male", "MALE"),
					huh.NewOption("Other", "OTHER"),
				).
				Value(&m.fb.gender),
			huh.NewInput().
				Title("Date of birth").
				Placeholder("YYYY-MM-DD").
				Value(&m.fb.dateOfBirth).
				Validate(ValidateDateOfBirth),
		),
	).WithKeyMap(keys.FormKeyMap()).WithWidth(m.formWidth()).WithShowHelp(false)
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

// ValidateEmail rejects blank or malformed addresses.
func ValidateEmail(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("Email is required")
	}
	if _, err := mail.ParseAddress(s); err != nil || !strings.Contains(s, "@") {
		return errors.New("Enter a valid email address")
	}
	return nil
}

// ValidatePassword enforces the minimum length.
func ValidatePassword(s string) error {
	if len(s) < minPasswordLen {
		return fmt.Errorf("Password must be at least %d characters", minPasswordLen)
	}
	return nil
}

// ValidateDateOfBirth accepts an empty value or a past YYYY-MM-DD date.
func ValidateDateOfBirth(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return errors.New("Use the format YYYY-MM-DD")
	}
	if d.After(time.Now()) {
		return errors.New("Date of birth cannot be in the future")
	}
	return nil
}

func (m Model) credentials() model.Credentials {
	return model.Credentials{
		Username: strings.TrimSpace(m.fb.username),
		Password: m.fb.password,
	}
}

func (m Model) registration() model.Registration {
	return model.Registration{
		Username:    strings.TrimSpace(m.fb.regUsername),
		Email:       strings.TrimSpace(m.fb.email),
		Password:    m.fb.regPassword,
		FullName:    strings.TrimSpace(m.fb.fullName),
		PhoneNumber: strings.TrimSpace(m.fb.phone),
		Gender:      m.fb.gender,
		DateOfBirth: strings.TrimSpace(m.fb.dateOfBirth),
	}
}

func (m Model) login() tea.Cmd {
	auth, creds := m.auth, m.credentials()
	return func() tea.Msg {
		return loginDoneMsg{res: auth.Login(context.Background(), creds)}
	}
}

func (m Model) checkAvailability() tea.Cmd {
	checks, reg := m.checks, m.registration()
	return func() tea.Msg {
		ctx := context.Background()
		msg := availabilityMsg{username: checks.CheckUsername(ctx, reg.Username)}
		if !msg.username.OK() || !msg.username.Data {
			return msg
		}
		msg.email = checks.CheckEmail(ctx, reg.Email)
		return msg
	}
}

func (m Model) register() tea.Cmd {
	auth, reg := m.auth, m.registration()
	return func() tea.Msg {
		return registerDoneMsg{res: auth.Register(context.Background(), reg)}
	}
}

// View renders the screen.
func (m Model) View() string {
	title := "Sign in"
	hint := "enter submit | ctrl+n create an account | ctrl+c quit"
	current := m.mode
	if current == modeSubmitting {
		current = m.returnTo
	}
	if current == modeRegister {
		title = "Create an account"
		hint = "enter next | ctrl+n back to sign in | ctrl+c quit"
	}

	var b strings.Builder
	b.WriteString(theme.HeaderStyle.Render("ClinicDesk"))
	b.WriteString("\n\n")
	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).Render(title))
	b.WriteString("\n\n")

	if m.banner != "" {
		style := theme.SuccessStyle
		if m.bannerErr {
			style = theme.ErrorStyle
		}
		b.WriteString(style.Render(m.banner))
		b.WriteString("\n\n")
	}

	if m.mode == modeSubmitting {
		label := "Signing in..."
		if m.returnTo == modeRegister {
			label = "Creating account..."
		}
		b.WriteString(m.spinner.View() + " " + label)
	} else if m.form != nil {
		b.WriteString(m.form.View())
	}

	b.WriteString("\n\n")
	b.WriteString(theme.HelpStyle.Render(hint))

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
		lipgloss.NewStyle().Width(m.formWidth()).Render(b.String()))
}

// SetSize updates dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) formWidth() int {
	w := m.width - 8
	if w < 36 {
		w = 36
	}
	if w > 60 {
		w = 60
	}
	return w
}
