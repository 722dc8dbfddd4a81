package app

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/nhle/clinicdesk/internal/auth"
	"github.com/nhle/clinicdesk/internal/keys"
	"github.com/nhle/clinicdesk/internal/model"
	"github.com/nhle/clinicdesk/internal/notify"
	"github.com/nhle/clinicdesk/internal/session"
	appsync "github.com/nhle/clinicdesk/internal/sync"
	"github.com/nhle/clinicdesk/internal/theme"
	"github.com/nhle/clinicdesk/internal/ui"
	"github.com/nhle/clinicdesk/internal/ui/command"
	"github.com/nhle/clinicdesk/internal/ui/dashboard"
	"github.com/nhle/clinicdesk/internal/ui/detail"
	helpview "github.com/nhle/clinicdesk/internal/ui/help"
	"github.com/nhle/clinicdesk/internal/ui/history"
	"github.com/nhle/clinicdesk/internal/ui/login"
	"github.com/nhle/clinicdesk/internal/ui/notifications"
	"github.com/nhle/clinicdesk/internal/ui/privacy"
	"github.com/nhle/clinicdesk/internal/ui/sendform"
	"github.com/nhle/clinicdesk/internal/ui/sessionmodal"
	"github.com/nhle/clinicdesk/internal/ui/templates"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewLogin ViewState = iota
	ViewDashboard
	ViewNotifications
	ViewDetail
	ViewSend
	ViewTemplates
	ViewHistory
	ViewPrivacy
	ViewHelp
	ViewCommand
)

// Deps are the long-lived services the root model drives.
type Deps struct {
	Config  *model.AppConfig
	Session *auth.Session
	Auth    *auth.Service
	Notify  *notify.Service
	Logger  *zap.Logger
}

// Model is the root Bubble Tea model that manages view routing, layout,
// and the lifetime of the per-login poller and session monitor.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap
	cfg          *model.AppConfig
	logger       *zap.Logger
	now          func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	session     *auth.Session
	authSvc     *auth.Service
	notifySvc   *notify.Service
	authEvents  chan auth.Event
	unsubscribe func()
	monitor     *session.Monitor
	poller      *appsync.Poller
	pollerGen   int

	user      *model.User
	snapshot  appsync.SnapshotMsg
	patients  []model.Patient
	directory model.PatientDirectory

	loginView     login.Model
	panel         notifications.Model
	detail        detail.Model
	sendForm      sendform.Model
	templatesView templates.Model
	historyView   history.Model
	privacyView   privacy.Model
	helpView      helpview.Model
	commandView   command.Model
	modal         sessionmodal.Model

	boundary  *errorBoundary
	banner    string
	bannerErr bool
	ready     bool
}

// New creates the root model. The session should already have been
// initialized so a restored login skips the sign-in screen.
func New(d Deps) Model {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	k := keys.DefaultKeyMap()
	ctx, cancel := context.WithCancel(context.Background())

	events := make(chan auth.Event, 8)
	unsubscribe := d.Session.Subscribe(func(ev auth.Event) {
		select {
		case events <- ev:
		default:
			logger.Warn("dropping auth event", zap.String("reason", ev.Reason))
		}
	})

	sess := d.Session
	monitor := session.New(d.Auth, d.Config.Session, func(reason string) {
		logger.Info("session monitor ended the session", zap.String("reason", reason))
		sess.ForceLogout(auth.ReasonExpired)
	}, logger)

	warning := time.Duration(d.Config.Session.WarningSec) * time.Second

	return Model{
		currentView:   ViewLogin,
		keys:          k,
		cfg:           d.Config,
		logger:        logger,
		now:           time.Now,
		ctx:           ctx,
		cancel:        cancel,
		session:       d.Session,
		authSvc:       d.Auth,
		notifySvc:     d.Notify,
		authEvents:    events,
		unsubscribe:   unsubscribe,
		monitor:       monitor,
		directory:     model.PatientDirectory{},
		loginView:     login.New(d.Session, d.Auth, 80, 24),
		panel:         notifications.New(k, 80, 24),
		detail:        detail.New(k, 80, 24),
		sendForm:      sendform.New(80, 24),
		templatesView: templates.New(d.Notify, k, 80, 24),
		historyView:   history.New(d.Notify, k, 0, 80, 24),
		privacyView:   privacy.New(d.Auth, 80, 24),
		helpView:      helpview.New(k, 80, 24),
		commandView:   command.New(80, 24, nil),
		modal:         sessionmodal.New(warning, 80),
		boundary:      newErrorBoundary(logger),
	}
}

// Init starts listening for auth and monitor events and, when a session
// was restored, enters it.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.loginView.Init(),
		m.waitForAuthEvent(),
		m.monitor.WaitForEvent(),
	}
	if user, ok := m.session.CurrentUser(); ok {
		cmds = append(cmds, func() tea.Msg {
			return authEventMsg{Authenticated: true, User: user, Reason: auth.ReasonRestored}
		})
	}
	return tea.Batch(cmds...)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.loginView.SetSize(msg.Width, msg.Height)
		m.panel.SetSize(w, h)
		m.detail.SetSize(w, h)
		m.sendForm.SetSize(w, h)
		m.templatesView.SetSize(w, h)
		m.historyView.SetSize(w, h)
		m.privacyView.SetSize(w, h)
		m.helpView.SetSize(w, h)
		m.commandView.SetSize(w, h)
		m.modal.SetWidth(w)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case authEventMsg:
		cmd := m.handleAuthEvent(auth.Event(msg))
		return m, tea.Batch(cmd, m.waitForAuthEvent())

	case snapshotMsg:
		if msg.gen != m.pollerGen || m.poller == nil {
			return m, nil
		}
		m.applySnapshot(msg.snap)
		return m, waitForSnapshot(m.poller.WaitForUpdate(), msg.gen)

	case session.EventMsg:
		m.handleMonitorEvent(msg)
		return m, m.monitor.WaitForEvent()

	case sessionmodal.ExtendMsg:
		return m, m.extendSession()

	case extendDoneMsg:
		if !msg.res.OK() {
			m.logger.Warn("extend session failed", zap.Stringer("kind", msg.res.Kind()))
			m.modal.ExtendFailed(withRetryHint(msg.res.ErrorMessage(), msg.res.Retryable()))
			return m, nil
		}
		m.modal.Hide()
		m.setBanner("Session extended", false)
		return m, nil

	case sessionmodal.LogoutMsg:
		m.modal.Hide()
		return m, m.logout()

	case login.LoggedInMsg:
		// The auth event carries the session start; this only logs.
		m.logger.Info("signed in", zap.Int64("user_id", msg.User.UserID))
		return m, nil

	case patientsLoadedMsg:
		m.applyPatients(msg.res)
		return m, nil

	case sendOptionsMsg:
		cmd := m.startSendForm(msg)
		return m, cmd

	case sendDoneMsg:
		m.sendForm.ShowResult(msg.res)
		if msg.res.OK() {
			m.setBanner(msg.res.Message, false)
		} else {
			m.setBanner(withRetryHint(msg.res.ErrorMessage(), msg.res.Retryable()), true)
		}
		return m, nil

	case markDoneMsg:
		switch {
		case !msg.res.OK():
			m.setBanner(withRetryHint(msg.res.ErrorMessage(), msg.res.Retryable()), true)
		case msg.all:
			m.setBanner("All notifications marked as read", false)
		}
		return m, nil

	case notifications.OpenMsg:
		m.navigate(ViewDetail)
		m.detail.SetNotification(msg.Notification, m.directory)
		if !msg.Notification.IsRead() {
			return m, m.markRead(msg.Notification.ID)
		}
		return m, nil

	case notifications.MarkReadMsg:
		return m, m.markRead(msg.ID)

	case detail.MarkReadMsg:
		return m, m.markRead(msg.ID)

	case notifications.MarkAllReadMsg:
		return m, m.markAllRead()

	case notifications.RefreshMsg:
		return m, m.refresh()

	case notifications.CloseMsg:
		m.navigate(ViewDashboard)
		return m, nil

	case detail.BackMsg:
		m.navigate(ViewNotifications)
		return m, nil

	case sendform.SubmitMsg:
		return m, m.send(msg.Request)

	case sendform.CancelMsg:
		m.currentView = ViewDashboard
		return m, nil

	case templates.CloseMsg:
		m.navigate(ViewDashboard)
		return m, nil

	case templates.ChangedMsg:
		return m, nil

	case history.CloseMsg:
		m.navigate(ViewDashboard)
		return m, nil

	case history.UnsentMsg:
		m.logger.Info("notification unsent", zap.Int64("notification_id", msg.ID))
		return m, nil

	case privacy.CloseMsg:
		m.navigate(ViewDashboard)
		return m, nil

	case command.CommandMsg:
		m.currentView = m.previousView
		cmd := m.executeCommand(string(msg))
		return m, cmd

	case tea.MouseMsg:
		m.recordActivity()

	case tea.KeyMsg:
		m.recordActivity()
		if next, cmd, handled := m.handleKey(msg); handled {
			return next, cmd
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// handleKey processes keys that are handled above the active view. It
// reports false when the key should reach the view.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	if msg.String() == "ctrl+c" {
		return m, m.quit(), true
	}

	if _, failed := m.boundary.Failed(); failed {
		switch msg.String() {
		case "r":
			m.boundary.Reset()
			if m.user != nil {
				m.currentView = ViewDashboard
			} else {
				m.currentView = ViewLogin
			}
		case "q":
			return m, m.quit(), true
		}
		return m, nil, true
	}

	if m.modal.Visible() {
		var cmd tea.Cmd
		m.modal, cmd = m.modal.Update(msg)
		return m, cmd, true
	}

	if m.currentView == ViewLogin {
		return m, nil, false
	}

	switch m.currentView {
	case ViewHelp:
		if msg.String() == "?" || msg.String() == "esc" {
			m.currentView = m.previousView
			return m, nil, true
		}
		return m, nil, true
	case ViewCommand:
		if msg.String() == "esc" {
			m.currentView = m.previousView
			return m, nil, true
		}
		return m, nil, false
	}

	if m.capturesInput() {
		return m, nil, false
	}

	switch msg.String() {
	case "?":
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return m, nil, true
	case ":":
		m.previousView = m.currentView
		m.currentView = ViewCommand
		return m, m.commandView.Focus(), true
	}

	if m.currentView != ViewDashboard {
		return m, nil, false
	}

	var (
		cmd     tea.Cmd
		handled = true
	)
	switch {
	case key.Matches(msg, m.keys.Quit):
		cmd = m.quit()
	case key.Matches(msg, m.keys.Notifications):
		cmd = m.openNotifications()
	case key.Matches(msg, m.keys.Refresh):
		cmd = m.refresh()
	case key.Matches(msg, m.keys.MarkAllRead):
		cmd = m.markAllRead()
	case key.Matches(msg, m.keys.Send):
		cmd = m.openSend()
	case key.Matches(msg, m.keys.Templates):
		cmd = m.openTemplates()
	case key.Matches(msg, m.keys.History):
		cmd = m.openHistory()
	case key.Matches(msg, m.keys.Privacy):
		cmd = m.openPrivacy()
	case key.Matches(msg, m.keys.Logout):
		cmd = m.logout()
	default:
		handled = false
	}
	return m, cmd, handled
}

// capturesInput reports whether the active view consumes printable keys
// for text entry or its own shortcuts.
func (m Model) capturesInput() bool {
	switch m.currentView {
	case ViewSend, ViewTemplates, ViewHistory, ViewPrivacy, ViewCommand, ViewLogin:
		return true
	}
	return false
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewLogin:
		m.loginView, cmd = m.loginView.Update(msg)
	case ViewNotifications:
		m.panel, cmd = m.panel.Update(msg)
	case ViewDetail:
		m.detail, cmd = m.detail.Update(msg)
	case ViewSend:
		m.sendForm, cmd = m.sendForm.Update(msg)
	case ViewTemplates:
		m.templatesView, cmd = m.templatesView.Update(msg)
	case ViewHistory:
		m.historyView, cmd = m.historyView.Update(msg)
	case ViewPrivacy:
		m.privacyView, cmd = m.privacyView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	}

	return m, cmd
}

// navigate switches to v and clears the outcome banner.
func (m *Model) navigate(v ViewState) {
	m.previousView = m.currentView
	m.currentView = v
	m.banner = ""
}

func (m *Model) setBanner(msg string, isErr bool) {
	m.banner = msg
	m.bannerErr = isErr
}

// View renders the full terminal UI. A panic while rendering is caught
// and replaced by a recovery screen.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if reason, failed := m.boundary.Failed(); failed {
		return m.renderCrash(reason)
	}
	out := m.boundary.Render(m.render)
	if reason, failed := m.boundary.Failed(); failed {
		return m.renderCrash(reason)
	}
	return out
}

func (m Model) render() string {
	if m.currentView == ViewLogin || m.user == nil {
		return m.loginView.View()
	}

	title := "ClinicDesk · " + dashboard.Title(m.user.Role)
	userLabel := fmt.Sprintf("%s (%s)", m.user.DisplayName(), m.user.Role)
	header := m.layout.RenderHeader(title, m.snapshot.Unread, userLabel)
	banner := m.layout.RenderBanner(m.banner, m.bannerErr)

	content := m.renderContent()
	if m.modal.Visible() {
		content = m.layout.Center(m.modal.View())
	}
	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, banner, content, statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewDashboard:
		summary := dashboard.Summary{
			User:          *m.user,
			Notifications: m.snapshot.Items,
			Patients:      m.directory,
			PatientCount:  len(m.patients),
			LastSync:      m.snapshot.LastSync,
			Now:           m.now(),
		}
		summary.SyncErr = syncWarning(m.snapshot.Err)
		return dashboard.Render(summary, m.layout.ContentWidth())
	case ViewNotifications:
		return m.panel.View()
	case ViewDetail:
		return m.detail.View()
	case ViewSend:
		return m.sendForm.View()
	case ViewTemplates:
		return m.templatesView.View()
	case ViewHistory:
		return m.historyView.View()
	case ViewPrivacy:
		return m.privacyView.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	default:
		return ""
	}
}

func (m Model) renderCrash(reason string) string {
	body := lipgloss.JoinVertical(lipgloss.Left,
		theme.ErrorStyle.Render("Something went wrong while drawing this screen."),
		"",
		theme.DimmedStyle.Render(reason),
		"",
		theme.HelpStyle.Render("r retry | q quit"),
	)
	box := theme.PanelStyle.BorderForeground(theme.ColorRed).Render(body)
	return lipgloss.Place(m.layout.Width, m.layout.Height, lipgloss.Center, lipgloss.Center, box)
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	if m.modal.Visible() {
		return "enter stay signed in | l log out"
	}

	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "tab complete | enter execute | esc back"
	case ViewNotifications:
		return "enter open | m mark read | M mark all | f filter | s sort | r refresh | esc back"
	case ViewDetail:
		return "m mark read | j/k scroll | esc back"
	case ViewSend:
		return "tab next | space toggle | enter confirm | esc cancel"
	case ViewTemplates:
		return "n new | e edit | d delete | esc back"
	case ViewHistory:
		return "u unsend | f patient | r refresh | esc back"
	case ViewPrivacy:
		return "enter save | esc back"
	default:
		if m.snapshot.Err != nil {
			return "⚠ offline: showing cached notifications | r retry"
		}
		return "q quit | ? help | : commands | b notifications"
	}
}
