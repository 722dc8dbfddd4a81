package sync

import (
	"context"
	"errors"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/clinicdesk/internal/api"
	"github.com/nhle/clinicdesk/internal/model"
)

// Source is the subset of the notification service the poller calls.
type Source interface {
	UserNotifications(ctx context.Context) api.Result[[]model.Notification]
	MarkAsRead(ctx context.Context, id int64) api.Result[struct{}]
	MarkAllAsRead(ctx context.Context) api.Result[struct{}]
}

// ErrStopped is returned by actions on a stopped poller.
var ErrStopped = errors.New("notification poller stopped")

// SnapshotMsg is a tea.Msg carrying the current notification list.
type SnapshotMsg struct {
	Items    []model.Notification
	Unread   int
	LastSync time.Time
	// Err is the most recent fetch failure; it clears on the next
	// successful fetch.
	Err error
}

// Poller keeps the notification list approximately fresh. It fetches on
// a fixed-rate ticker, stays quiet for a short window after every user
// action, and applies mark-read actions optimistically.
type Poller struct {
	source      Source
	logger      *zap.Logger
	now         func() time.Time
	interval    time.Duration
	suppression time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	updates chan SnapshotMsg

	mu              gosync.Mutex
	items           []model.Notification
	lastSync        time.Time
	lastErr         error
	seq             uint64
	appliedSeq      uint64
	fetchSeq        uint64
	suppressedUntil time.Time
	running         bool
	stopped         bool

	// confirmedAll and confirmed hold the sequence of the latest
	// mark-read the server accepted, for all items and per id.
	confirmedAll uint64
	confirmed    map[int64]uint64
}

// mutation is an optimistic mark-read awaiting the server's answer.
type mutation struct {
	seq  uint64
	id   int64
	all  bool
	prev map[int64]model.NotificationStatus
}

func (mu mutation) covers(id int64) bool {
	return mu.all || mu.id == id
}

// New creates a Poller. It does nothing until Start is called.
func New(source Source, cfg model.PollingConfig, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := cfg.Interval()
	if interval <= 0 {
		interval = 30 * time.Second
	}
	suppression := cfg.Suppression()
	if suppression < 0 {
		suppression = 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		source:      source,
		logger:      logger.Named("poller"),
		now:         time.Now,
		interval:    interval,
		suppression: suppression,
		ctx:         ctx,
		cancel:      cancel,
		updates:     make(chan SnapshotMsg, 16),
		items:       []model.Notification{},
		confirmed:   make(map[int64]uint64),
	}
}

// Start launches the polling goroutine and returns a command that
// delivers the first SnapshotMsg.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running || p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.mu.Unlock()

	go p.run()
	return p.WaitForUpdate()
}

// Stop cancels in-flight requests and the ticker. Results that arrive
// afterwards are dropped. A stopped poller cannot be restarted.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return
	}
	p.stopped = true
	p.running = false
	p.cancel()
}

func (p *Poller) run() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Poll()
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.Poll()
		}
	}
}

// Poll fetches and replaces the list unless a user action happened
// within the suppression window. It reports whether a fetch was made.
func (p *Poller) Poll() bool {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return false
	}
	if p.now().Before(p.suppressedUntil) {
		p.mu.Unlock()
		p.logger.Debug("poll suppressed after user action")
		return false
	}
	p.mu.Unlock()

	p.fetch()
	return true
}

// Refresh fetches immediately, ignoring suppression.
func (p *Poller) Refresh() {
	p.fetch()
}

func (p *Poller) fetch() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	seq := p.nextSeqLocked()
	p.mu.Unlock()

	res := p.source.UserNotifications(p.ctx)

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	if !res.OK() {
		p.lastErr = res.Err
		snap := p.snapshotLocked()
		p.mu.Unlock()
		p.logger.Warn("fetching notifications", zap.Error(res.Err))
		p.publish(snap)
		return
	}
	if applied := p.appliedSeq; seq <= applied {
		p.mu.Unlock()
		p.logger.Debug("discarding stale notification fetch",
			zap.Uint64("seq", seq),
			zap.Uint64("applied_seq", applied),
		)
		return
	}
	p.items = res.Data
	p.appliedSeq = seq
	p.fetchSeq = seq
	p.lastSync = p.now()
	p.lastErr = nil
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.publish(snap)
}

// IconClicked records a user interaction with the notification badge.
func (p *Poller) IconClicked() {
	p.mu.Lock()
	p.suppressLocked()
	p.mu.Unlock()
}

// MarkAsRead marks one notification read. The change is visible at
// once and rolled back if the server rejects it.
func (p *Poller) MarkAsRead(id int64) api.Result[struct{}] {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return api.Failure(struct{}{}, ErrStopped)
	}
	p.suppressLocked()
	mut := mutation{id: id}
	mut.prev = p.markLocked(mut.covers)
	mut.seq = p.nextSeqLocked()
	p.appliedSeq = mut.seq
	snap := p.snapshotLocked()
	p.mu.Unlock()
	p.publish(snap)

	res := p.source.MarkAsRead(p.ctx, id)
	p.finishMutation(mut, res)
	return res
}

// MarkAllAsRead marks every unread notification read. With nothing
// unread it succeeds without contacting the server.
func (p *Poller) MarkAllAsRead() api.Result[struct{}] {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return api.Failure(struct{}{}, ErrStopped)
	}
	p.suppressLocked()
	if model.CountUnread(p.items) == 0 {
		p.mu.Unlock()
		return api.OK(struct{}{}, "")
	}
	mut := mutation{all: true}
	mut.prev = p.markLocked(mut.covers)
	mut.seq = p.nextSeqLocked()
	p.appliedSeq = mut.seq
	snap := p.snapshotLocked()
	p.mu.Unlock()
	p.publish(snap)

	res := p.source.MarkAllAsRead(p.ctx)
	p.finishMutation(mut, res)
	return res
}

// markLocked sets matching unread notifications to READ and returns
// their previous statuses by id.
func (p *Poller) markLocked(match func(id int64) bool) map[int64]model.NotificationStatus {
	prev := make(map[int64]model.NotificationStatus)
	items := model.CloneNotifications(p.items)
	for i, n := range items {
		if n.IsRead() || !match(n.ID) {
			continue
		}
		prev[n.ID] = n.Status
		items[i] = n.MarkRead()
	}
	p.items = items
	return prev
}

// finishMutation settles an optimistic change. On success the covered
// items are recorded as confirmed and marked again if an earlier failure
// reverted them. On failure the change is reverted, except for items a
// newer fetch replaced or a newer accepted mark-read already covers.
func (p *Poller) finishMutation(mut mutation, res api.Result[struct{}]) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	if res.OK() {
		changed := p.confirmLocked(mut)
		snap := p.snapshotLocked()
		p.mu.Unlock()
		if changed {
			p.publish(snap)
		}
		return
	}
	if len(mut.prev) == 0 || p.fetchSeq > mut.seq {
		p.mu.Unlock()
		return
	}

	items := model.CloneNotifications(p.items)
	reverted := 0
	for i, n := range items {
		status, ok := mut.prev[n.ID]
		if !ok || p.confirmedAfterLocked(n.ID, mut.seq) {
			continue
		}
		items[i].Status = status
		reverted++
	}
	if reverted == 0 {
		p.mu.Unlock()
		p.logger.Debug("optimistic update already confirmed by a newer action", zap.Error(res.Err))
		return
	}
	p.items = items
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.logger.Warn("reverting optimistic update",
		zap.Int("count", reverted),
		zap.Stringer("kind", res.Kind()),
		zap.Error(res.Err),
	)
	p.publish(snap)
}

// confirmLocked records an accepted mark-read and reports whether any
// item had to be marked again.
func (p *Poller) confirmLocked(mut mutation) bool {
	if mut.all {
		if mut.seq > p.confirmedAll {
			p.confirmedAll = mut.seq
		}
	} else if mut.seq > p.confirmed[mut.id] {
		p.confirmed[mut.id] = mut.seq
	}
	if p.fetchSeq > mut.seq {
		return false
	}

	changed := false
	items := model.CloneNotifications(p.items)
	for i, n := range items {
		if mut.covers(n.ID) && !n.IsRead() {
			items[i] = n.MarkRead()
			changed = true
		}
	}
	if changed {
		p.items = items
	}
	return changed
}

func (p *Poller) confirmedAfterLocked(id int64, seq uint64) bool {
	return p.confirmedAll > seq || p.confirmed[id] > seq
}

// suppressLocked pushes the quiet window out to now+suppression. It
// never shortens a window that is already longer.
func (p *Poller) suppressLocked() {
	until := p.now().Add(p.suppression)
	if until.After(p.suppressedUntil) {
		p.suppressedUntil = until
	}
}

func (p *Poller) nextSeqLocked() uint64 {
	p.seq++
	return p.seq
}

// Snapshot returns a copy of the current state.
func (p *Poller) Snapshot() SnapshotMsg {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Poller) snapshotLocked() SnapshotMsg {
	return SnapshotMsg{
		Items:    model.CloneNotifications(p.items),
		Unread:   model.CountUnread(p.items),
		LastSync: p.lastSync,
		Err:      p.lastErr,
	}
}

// publish sends a snapshot without blocking. When the channel is full
// the oldest pending snapshot is replaced, since only the latest matters.
func (p *Poller) publish(snap SnapshotMsg) {
	select {
	case p.updates <- snap:
		return
	default:
	}
	select {
	case <-p.updates:
	default:
	}
	select {
	case p.updates <- snap:
	default:
	}
}

// WaitForUpdate returns a tea.Cmd that waits for the next snapshot.
// Call it again after handling each SnapshotMsg to keep listening. Once
// the poller is stopped the command returns nil.
func (p *Poller) WaitForUpdate() tea.Cmd {
	return func() tea.Msg {
		select {
		case snap := <-p.updates:
			return snap
		case <-p.ctx.Done():
			return nil
		}
	}
}
