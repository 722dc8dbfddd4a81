package app

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/clinicdesk/internal/api"
	"github.com/nhle/clinicdesk/internal/auth"
	"github.com/nhle/clinicdesk/internal/model"
	"github.com/nhle/clinicdesk/internal/session"
	appsync "github.com/nhle/clinicdesk/internal/sync"
	"github.com/nhle/clinicdesk/internal/ui/history"
)

// Sign-in screen banners for each way a session can end.
const (
	ExpiredMessage      = "Your session has expired. Please log in again."
	UnauthorizedMessage = "Your session is no longer valid. Please log in again."
	LoggedOutMessage    = "You have been logged out."
)

// authEventMsg carries an auth.Event into the update loop.
type authEventMsg auth.Event

// snapshotMsg tags a poller snapshot with the login it belongs to so a
// late result from a previous poller is ignored.
type snapshotMsg struct {
	gen  int
	snap appsync.SnapshotMsg
}

type extendDoneMsg struct {
	res api.Result[model.SessionStatus]
}

type markDoneMsg struct {
	all bool
	res api.Result[struct{}]
}

// waitForAuthEvent returns a command that delivers the next auth event.
func (m Model) waitForAuthEvent() tea.Cmd {
	ch := m.authEvents
	return func() tea.Msg {
		return authEventMsg(<-ch)
	}
}

// waitForSnapshot wraps a poller command so its result carries gen.
func waitForSnapshot(cmd tea.Cmd, gen int) tea.Cmd {
	if cmd == nil {
		return nil
	}
	return func() tea.Msg {
		snap, ok := cmd().(appsync.SnapshotMsg)
		if !ok {
			return nil
		}
		return snapshotMsg{gen: gen, snap: snap}
	}
}

// handleAuthEvent enters or leaves a session.
func (m *Model) handleAuthEvent(ev auth.Event) tea.Cmd {
	if ev.Authenticated {
		if m.user != nil && m.user.UserID == ev.User.UserID {
			user := ev.User
			m.user = &user
			return nil
		}
		if m.user != nil {
			m.endSession()
		}
		return m.startSession(ev.User)
	}

	if m.user == nil && ev.Reason != auth.ReasonLogout {
		return nil
	}
	m.endSession()
	m.currentView = ViewLogin
	m.banner = ""
	m.loginView.SetBanner(logoutMessage(ev.Reason), ev.Reason != auth.ReasonLogout)
	return m.loginView.Reset()
}

func logoutMessage(reason string) string {
	switch reason {
	case auth.ReasonExpired:
		return ExpiredMessage
	case auth.ReasonUnauthorized:
		return UnauthorizedMessage
	default:
		return LoggedOutMessage
	}
}

// startSession creates the poller for user, starts the session monitor
// and loads the doctor's patients.
func (m *Model) startSession(user model.User) tea.Cmd {
	m.logger.Info("starting session",
		zap.Int64("user_id", user.UserID),
		zap.String("role", string(user.Role)),
	)
	m.user = &user
	m.currentView = ViewDashboard
	m.previousView = ViewDashboard
	m.banner = ""
	m.snapshot = appsync.SnapshotMsg{}
	m.patients = nil
	m.directory = model.PatientDirectory{}
	m.panel.SetItems(nil, time.Time{}, nil)
	m.panel.SetPatients(m.directory)
	m.helpView.SetRole(user.Role)
	m.commandView.SetSuggestions(commandsFor(user.Role))

	m.pollerGen++
	m.poller = appsync.New(m.notifySvc, m.cfg.Polling, m.logger)
	cmds := []tea.Cmd{waitForSnapshot(m.poller.Start(), m.pollerGen)}

	// The event reader started in Init keeps running across logins.
	m.monitor.Reset()
	_ = m.monitor.Start(m.ctx)

	if user.Role == model.RoleDoctor {
		m.historyView = history.New(m.notifySvc, m.keys, user.UserID,
			m.layout.ContentWidth(), m.layout.ContentHeight())
		cmds = append(cmds, m.loadPatients())
	}
	return tea.Batch(cmds...)
}

// endSession stops everything tied to the signed-in user.
func (m *Model) endSession() {
	if m.poller != nil {
		m.poller.Stop()
		m.poller = nil
	}
	m.pollerGen++
	m.monitor.Stop()
	m.modal.Hide()
	m.user = nil
	m.snapshot = appsync.SnapshotMsg{}
	m.patients = nil
	m.directory = model.PatientDirectory{}
}

func (m *Model) applySnapshot(snap appsync.SnapshotMsg) {
	m.snapshot = snap
	m.panel.SetItems(snap.Items, snap.LastSync, snap.Err)
	m.detail.Sync(snap.Items)
}

// handleMonitorEvent drives the timeout modal from monitor events.
func (m *Model) handleMonitorEvent(ev session.EventMsg) {
	if m.user == nil {
		return
	}
	switch ev.Kind {
	case session.EventWarning:
		m.modal.Show(ev.Remaining)
	case session.EventStatus, session.EventCountdown:
		if !m.modal.Visible() {
			return
		}
		if ev.State == session.StateWarning {
			m.modal.SetRemaining(ev.Remaining)
		} else {
			m.modal.Hide()
		}
	case session.EventExtended, session.EventExpired:
		m.modal.Hide()
	}
}

func (m *Model) recordActivity() {
	if m.user != nil {
		m.monitor.RecordActivity()
	}
}

func (m Model) extendSession() tea.Cmd {
	mon, ctx := m.monitor, m.ctx
	return func() tea.Msg {
		return extendDoneMsg{res: mon.Extend(ctx)}
	}
}

func (m Model) logout() tea.Cmd {
	sess := m.session
	return func() tea.Msg {
		sess.Logout()
		return nil
	}
}

func (m Model) markRead(id int64) tea.Cmd {
	p := m.poller
	if p == nil {
		return nil
	}
	return func() tea.Msg {
		return markDoneMsg{res: p.MarkAsRead(id)}
	}
}

func (m Model) markAllRead() tea.Cmd {
	p := m.poller
	if p == nil {
		return nil
	}
	return func() tea.Msg {
		return markDoneMsg{all: true, res: p.MarkAllAsRead()}
	}
}

func (m Model) refresh() tea.Cmd {
	p := m.poller
	if p == nil {
		return nil
	}
	return func() tea.Msg {
		p.Refresh()
		return nil
	}
}

// openNotifications shows the panel and counts as a badge click.
func (m *Model) openNotifications() tea.Cmd {
	if m.poller != nil {
		m.poller.IconClicked()
	}
	m.navigate(ViewNotifications)
	return nil
}

// shutdown releases background work before the program exits.
func (m Model) shutdown() {
	if m.poller != nil {
		m.poller.Stop()
	}
	m.monitor.Close()
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	m.cancel()
}

func (m Model) quit() tea.Cmd {
	m.shutdown()
	return tea.Quit
}

// Failure texts for background sync and retryable actions.
const (
	SyncRetryWarning  = "Notifications could not be refreshed; showing the last known list. Retrying on the next sync."
	SyncFailedWarning = "Notifications could not be refreshed: "
	RetryHint         = " Try again in a moment."
)

// syncWarning describes a failed refresh for the dashboard, or returns ""
// when the last refresh succeeded.
func syncWarning(err error) string {
	if err == nil {
		return ""
	}
	if api.Retryable(err) {
		return SyncRetryWarning
	}
	return SyncFailedWarning + api.Message(err)
}

func withRetryHint(msg string, retryable bool) string {
	if !retryable || msg == "" {
		return msg
	}
	return msg + RetryHint
}
