// Package session watches the server-side session and warns before it
// expires.
package session

import (
	"context"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/clinicdesk/internal/api"
	"github.com/nhle/clinicdesk/internal/model"
)

// State is the monitor's lifecycle state.
type State int

const (
	StateUnmonitored State = iota
	StateMonitoring
	StateWarning
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateMonitoring:
		return "monitoring"
	case StateWarning:
		return "warning"
	case StateExpired:
		return "expired"
	default:
		return "unmonitored"
	}
}

// Expiry reasons passed to the logout callback.
const (
	ReasonInactive     = "inactive"
	ReasonUnauthorized = "unauthorized"
	ReasonExtendFailed = "extend_failed"
	ReasonCountdown    = "countdown"
)

// Checker is the subset of the auth service the monitor calls.
type Checker interface {
	SessionStatus(ctx context.Context) api.Result[model.SessionStatus]
	ExtendSession(ctx context.Context) api.Result[model.SessionStatus]
}

// EventKind classifies an EventMsg.
type EventKind int

const (
	EventStatus EventKind = iota
	EventWarning
	EventCountdown
	EventExtended
	EventExpired
)

// EventMsg is a tea.Msg describing a monitor state change.
type EventMsg struct {
	Kind      EventKind
	State     State
	Remaining time.Duration
	Reason    string
}

// Monitor polls the session status on a fixed interval, keeps a local
// per-second countdown, and ends the session exactly once.
type Monitor struct {
	checker  Checker
	logger   *zap.Logger
	onExpire func(reason string)
	now      func() time.Time

	checkInterval time.Duration
	warning       time.Duration
	idleTimeout   time.Duration

	events    chan EventMsg
	done      chan struct{}
	closeOnce gosync.Once

	mu           gosync.Mutex
	state        State
	remaining    time.Duration
	known        bool
	warned       bool
	lastActivity time.Time
	cancel       context.CancelFunc
}

// New creates a Monitor. onExpire is called once, from a monitor
// goroutine, when the session ends.
func New(checker Checker, cfg model.SessionConfig, onExpire func(reason string), logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Monitor{
		checker:       checker,
		logger:        logger.Named("session_monitor"),
		onExpire:      onExpire,
		now:           time.Now,
		checkInterval: seconds(cfg.CheckIntervalSec, 30),
		warning:       seconds(cfg.WarningSec, 60),
		idleTimeout:   seconds(cfg.IdleTimeoutSec, 300),
		events:        make(chan EventMsg, 16),
		done:          make(chan struct{}),
	}
	return m
}

func seconds(n, fallback int) time.Duration {
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Second
}

// Start enters the monitoring state and launches the check and
// countdown loops. The returned command delivers the first EventMsg.
func (m *Monitor) Start(ctx context.Context) tea.Cmd {
	ctx, ok := m.begin(ctx)
	if !ok {
		return nil
	}
	go m.run(ctx)
	return m.WaitForEvent()
}

func (m *Monitor) begin(parent context.Context) (context.Context, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateUnmonitored {
		return nil, false
	}
	ctx, cancel := context.WithCancel(parent)
	m.cancel = cancel
	m.state = StateMonitoring
	m.lastActivity = m.now()
	return ctx, true
}

func (m *Monitor) run(ctx context.Context) {
	check := time.NewTicker(m.checkInterval)
	defer check.Stop()
	countdown := time.NewTicker(time.Second)
	defer countdown.Stop()

	m.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-check.C:
			m.Check(ctx)
		case <-countdown.C:
			m.Tick()
		}
	}
}

// Stop halts the loops without calling the logout callback. A stopped
// monitor can be started again.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.state != StateExpired {
		m.state = StateUnmonitored
	}
	m.known = false
	m.warned = false
}

// RecordActivity notes user input. Checks are skipped once no activity
// has been seen for the idle timeout.
func (m *Monitor) RecordActivity() {
	m.mu.Lock()
	m.lastActivity = m.now()
	m.mu.Unlock()
}

// State returns the current state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Remaining returns the locally tracked time left.
func (m *Monitor) Remaining() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.remaining
}

func (m *Monitor) active() bool {
	return m.state == StateMonitoring || m.state == StateWarning
}

// Check asks the server for the session status and applies it. Transport
// errors and non-401 server errors leave the state untouched.
func (m *Monitor) Check(ctx context.Context) {
	m.mu.Lock()
	if !m.active() {
		m.mu.Unlock()
		return
	}
	idle := m.now().Sub(m.lastActivity)
	m.mu.Unlock()

	if idle >= m.idleTimeout {
		m.logger.Debug("user idle, skipping session check", zap.Duration("idle", idle))
		return
	}

	res := m.checker.SessionStatus(ctx)
	if !res.OK() {
		if api.IsUnauthorized(res.Err) {
			m.expire(ReasonUnauthorized)
			return
		}
		m.logger.Warn("session check failed", zap.Error(res.Err))
		return
	}
	m.apply(res.Data)
}

func (m *Monitor) apply(st model.SessionStatus) {
	if !st.IsActive || st.RemainingSeconds <= 0 {
		m.expire(ReasonInactive)
		return
	}

	m.mu.Lock()
	if !m.active() {
		m.mu.Unlock()
		return
	}
	m.remaining = st.Remaining()
	m.known = true
	ev := m.evaluateLocked()
	m.mu.Unlock()

	m.publish(ev)
}

// evaluateLocked moves between monitoring and warning based on the
// remaining time. The warning fires once per window.
func (m *Monitor) evaluateLocked() EventMsg {
	ev := EventMsg{Kind: EventStatus, Remaining: m.remaining}
	if m.remaining > m.warning {
		m.warned = false
		m.state = StateMonitoring
	} else if !m.warned {
		m.warned = true
		m.state = StateWarning
		ev.Kind = EventWarning
		m.logger.Info("session expiring soon", zap.Duration("remaining", m.remaining))
	}
	ev.State = m.state
	return ev
}

// Tick advances the local countdown by one second. Reaching zero ends
// the session without waiting for the next check.
func (m *Monitor) Tick() {
	m.mu.Lock()
	if !m.active() || !m.known {
		m.mu.Unlock()
		return
	}
	m.remaining -= time.Second
	if m.remaining <= 0 {
		m.remaining = 0
		m.mu.Unlock()
		m.expire(ReasonCountdown)
		return
	}
	ev := m.evaluateLocked()
	if ev.Kind == EventStatus {
		ev.Kind = EventCountdown
	}
	m.mu.Unlock()

	m.publish(ev)
}

// Extend asks the server to prolong the session. Success resets the
// warning and re-checks; failure ends the session.
func (m *Monitor) Extend(ctx context.Context) api.Result[model.SessionStatus] {
	m.RecordActivity()

	res := m.checker.ExtendSession(ctx)
	if !res.OK() {
		m.logger.Warn("extending session failed", zap.Error(res.Err))
		m.expire(ReasonExtendFailed)
		return res
	}

	m.mu.Lock()
	if !m.active() {
		m.mu.Unlock()
		return res
	}
	m.warned = false
	m.state = StateMonitoring
	if res.Data.RemainingSeconds > 0 {
		m.remaining = res.Data.Remaining()
		m.known = true
	}
	ev := EventMsg{Kind: EventExtended, State: m.state, Remaining: m.remaining}
	m.mu.Unlock()

	m.logger.Info("session extended")
	m.publish(ev)
	m.Check(ctx)
	return res
}

// expire moves to StateExpired, stops the loops and calls onExpire. Only
// the first call has any effect.
func (m *Monitor) expire(reason string) {
	m.mu.Lock()
	if !m.active() {
		m.mu.Unlock()
		return
	}
	m.state = StateExpired
	m.remaining = 0
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.mu.Unlock()

	m.logger.Info("session expired", zap.String("reason", reason))
	if m.onExpire != nil {
		m.onExpire(reason)
	}
	m.publish(EventMsg{Kind: EventExpired, State: StateExpired, Reason: reason})
}

// Reset returns an expired monitor to StateUnmonitored so it can be
// started for the next login.
func (m *Monitor) Reset() {
	m.Stop()
	m.mu.Lock()
	m.state = StateUnmonitored
	m.mu.Unlock()
}

// publish sends ev without blocking; a full channel drops the event.
func (m *Monitor) publish(ev EventMsg) {
	select {
	case m.events <- ev:
	default:
	}
}

// WaitForEvent returns a tea.Cmd that waits for the next EventMsg. Call
// it again after handling each event to keep listening. After Close the
// command returns nil.
func (m *Monitor) WaitForEvent() tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-m.events:
			return ev
		case <-m.done:
			return nil
		}
	}
}

// Close stops the monitor for good and releases pending WaitForEvent
// readers. Unlike Stop it is meant for program shutdown.
func (m *Monitor) Close() {
	m.Stop()
	m.closeOnce.Do(func() { close(m.done) })
}
