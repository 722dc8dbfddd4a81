package sync

import (
	"context"
	gosync "sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nhle/clinicdesk/internal/api"
	"github.com/nhle/clinicdesk/internal/model"
)

type fakeSource struct {
	mu           gosync.Mutex
	responses    []func(ctx context.Context) api.Result[[]model.Notification]
	fetchCalls   int
	markErr      error
	markAllErr   error
	markHook     func()
	markAllHook  func()
	markCalls    int
	markAllCalls int
}

func (f *fakeSource) UserNotifications(ctx context.Context) api.Result[[]model.Notification] {
	f.mu.Lock()
	f.fetchCalls++
	var respond func(context.Context) api.Result[[]model.Notification]
	if len(f.responses) > 0 {
		respond = f.responses[0]
		f.responses = f.responses[1:]
	}
	f.mu.Unlock()

	if respond == nil {
		return api.OK([]model.Notification{}, "")
	}
	return respond(ctx)
}

func (f *fakeSource) MarkAsRead(context.Context, int64) api.Result[struct{}] {
	f.mu.Lock()
	f.markCalls++
	hook, err := f.markHook, f.markErr
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return api.Failure(struct{}{}, err)
	}
	return api.OK(struct{}{}, "")
}

func (f *fakeSource) MarkAllAsRead(context.Context) api.Result[struct{}] {
	f.mu.Lock()
	f.markAllCalls++
	hook, err := f.markAllHook, f.markAllErr
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return api.Failure(struct{}{}, err)
	}
	return api.OK(struct{}{}, "")
}

func (f *fakeSource) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCalls
}

func list(items ...model.Notification) func(context.Context) api.Result[[]model.Notification] {
	return func(context.Context) api.Result[[]model.Notification] {
		return api.OK(items, "")
	}
}

// blocking returns a responder that waits for release, and a channel
// closed once the fetch has started.
func blocking(items ...model.Notification) (func(context.Context) api.Result[[]model.Notification], <-chan struct{}, chan<- struct{}) {
	started := make(chan struct{})
	release := make(chan struct{})
	return func(context.Context) api.Result[[]model.Notification] {
		close(started)
		<-release
		return api.OK(items, "")
	}, started, release
}

func note(id int64, status model.NotificationStatus) model.Notification {
	return model.Notification{ID: id, Title: "n", Status: status}
}

type clock struct {
	mu gosync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestPoller(src *fakeSource) (*Poller, *clock) {
	c := &clock{t: time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)}
	p := New(src, model.PollingConfig{IntervalSec: 30, SuppressionSec: 5}, zap.NewNop())
	p.now = c.Now
	return p, c
}

func statuses(items []model.Notification) []model.NotificationStatus {
	out := make([]model.NotificationStatus, len(items))
	for i, n := range items {
		out[i] = n.Status
	}
	return out
}

func TestPollSuppressedAfterUserAction(t *testing.T) {
	src := &fakeSource{}
	p, clk := newTestPoller(src)

	assert.True(t, p.Poll())
	assert.Equal(t, 1, src.calls())

	p.IconClicked()
	clk.Advance(4 * time.Second)
	assert.False(t, p.Poll())
	assert.Equal(t, 1, src.calls(), "suppressed poll makes no request")

	clk.Advance(time.Second)
	assert.True(t, p.Poll())
	assert.Equal(t, 2, src.calls())
}

func TestRepeatedActionsExtendSuppression(t *testing.T) {
	src := &fakeSource{}
	p, clk := newTestPoller(src)

	p.IconClicked()
	clk.Advance(3 * time.Second)
	p.IconClicked()
	clk.Advance(3 * time.Second)
	assert.False(t, p.Poll())

	clk.Advance(2 * time.Second)
	assert.True(t, p.Poll())
}

func TestStaleFetchIsDiscarded(t *testing.T) {
	slow, started, release := blocking(note(1, model.StatusSent))
	src := &fakeSource{responses: []func(context.Context) api.Result[[]model.Notification]{
		slow,
		list(note(1, model.StatusRead), note(2, model.StatusSent)),
	}}
	p, _ := newTestPoller(src)

	done := make(chan struct{})
	go func() {
		p.Poll()
		close(done)
	}()
	<-started

	p.Refresh()
	close(release)
	<-done

	snap := p.Snapshot()
	require.Len(t, snap.Items, 2)
	assert.Equal(t, []model.NotificationStatus{model.StatusRead, model.StatusSent}, statuses(snap.Items))
	assert.Equal(t, 1, snap.Unread)
}

func TestFetchStartedBeforeMutationIsDiscarded(t *testing.T) {
	slow, started, release := blocking(note(1, model.StatusSent), note(2, model.StatusSent))
	src := &fakeSource{responses: []func(context.Context) api.Result[[]model.Notification]{
		list(note(1, model.StatusSent), note(2, model.StatusSent)),
		slow,
	}}
	p, clk := newTestPoller(src)
	require.True(t, p.Poll())
	clk.Advance(time.Minute)

	done := make(chan struct{})
	go func() {
		p.Refresh()
		close(done)
	}()
	<-started

	res := p.MarkAsRead(1)
	require.True(t, res.OK())
	close(release)
	<-done

	snap := p.Snapshot()
	assert.Equal(t, []model.NotificationStatus{model.StatusRead, model.StatusSent}, statuses(snap.Items))
}

func TestMarkAsReadOptimisticThenReverted(t *testing.T) {
	src := &fakeSource{
		responses: []func(context.Context) api.Result[[]model.Notification]{
			list(note(1, model.StatusDelivered), note(2, model.StatusSent)),
		},
		markErr: &api.ServerError{Status: 500, Message: "boom"},
	}
	p, _ := newTestPoller(src)
	require.True(t, p.Poll())

	var during SnapshotMsg
	src.markHook = func() { during = p.Snapshot() }

	res := p.MarkAsRead(1)
	assert.False(t, res.OK())
	assert.Equal(t, "boom", res.ErrorMessage())

	assert.Equal(t, model.StatusRead, during.Items[0].Status, "optimistic before the call resolves")
	assert.Equal(t, 1, during.Unread)

	snap := p.Snapshot()
	assert.Equal(t, []model.NotificationStatus{model.StatusDelivered, model.StatusSent}, statuses(snap.Items))
	assert.Equal(t, 2, snap.Unread)
}

func TestMarkAsReadSuccessKeepsOptimisticState(t *testing.T) {
	src := &fakeSource{responses: []func(context.Context) api.Result[[]model.Notification]{
		list(note(1, model.StatusSent)),
	}}
	p, _ := newTestPoller(src)
	require.True(t, p.Poll())

	require.True(t, p.MarkAsRead(1).OK())
	snap := p.Snapshot()
	assert.Equal(t, model.StatusRead, snap.Items[0].Status)
	assert.Zero(t, snap.Unread)
	assert.Equal(t, 1, src.markCalls)
}

func TestRevertSkippedWhenNewerFetchApplied(t *testing.T) {
	src := &fakeSource{
		responses: []func(context.Context) api.Result[[]model.Notification]{
			list(note(1, model.StatusSent)),
			list(note(1, model.StatusDelivered), note(3, model.StatusSent)),
		},
		markErr: &api.TransportError{Err: context.DeadlineExceeded},
	}
	p, _ := newTestPoller(src)
	require.True(t, p.Poll())
	src.markHook = p.Refresh

	res := p.MarkAsRead(1)
	assert.Equal(t, api.KindTransport, res.Kind())

	snap := p.Snapshot()
	assert.Equal(t, []model.NotificationStatus{model.StatusDelivered, model.StatusSent}, statuses(snap.Items))
}

func TestMarkAllAsRead(t *testing.T) {
	src := &fakeSource{responses: []func(context.Context) api.Result[[]model.Notification]{
		list(note(1, model.StatusSent), note(2, model.StatusRead), note(3, model.StatusPending)),
	}}
	p, _ := newTestPoller(src)
	require.True(t, p.Poll())

	require.True(t, p.MarkAllAsRead().OK())
	assert.Zero(t, p.Snapshot().Unread)
	assert.Equal(t, 1, src.markAllCalls)

	// Nothing left unread: resolves without a request.
	require.True(t, p.MarkAllAsRead().OK())
	assert.Equal(t, 1, src.markAllCalls)
}

func TestMarkAllAsReadRevertsOnlyChangedItems(t *testing.T) {
	src := &fakeSource{
		responses: []func(context.Context) api.Result[[]model.Notification]{
			list(note(1, model.StatusSent), note(2, model.StatusRead), note(3, model.StatusPending)),
		},
		markAllErr: &api.ServerError{Status: 503},
	}
	p, _ := newTestPoller(src)
	require.True(t, p.Poll())

	assert.False(t, p.MarkAllAsRead().OK())
	assert.Equal(t,
		[]model.NotificationStatus{model.StatusSent, model.StatusRead, model.StatusPending},
		statuses(p.Snapshot().Items),
	)
}

func TestFetchFailureKeepsItems(t *testing.T) {
	src := &fakeSource{responses: []func(context.Context) api.Result[[]model.Notification]{
		list(note(1, model.StatusSent)),
		func(context.Context) api.Result[[]model.Notification] {
			return api.Failure([]model.Notification{}, &api.TransportError{Err: context.DeadlineExceeded})
		},
	}}
	p, _ := newTestPoller(src)
	require.True(t, p.Poll())
	require.True(t, p.Poll())

	snap := p.Snapshot()
	assert.Len(t, snap.Items, 1)
	assert.Error(t, snap.Err)
}

func TestStopDropsInFlightResults(t *testing.T) {
	slow, started, release := blocking(note(1, model.StatusSent))
	src := &fakeSource{responses: []func(context.Context) api.Result[[]model.Notification]{slow}}
	p, _ := newTestPoller(src)

	done := make(chan struct{})
	go func() {
		p.Poll()
		close(done)
	}()
	<-started
	p.Stop()
	close(release)
	<-done

	assert.Empty(t, p.Snapshot().Items)
	assert.ErrorIs(t, p.MarkAsRead(1).Err, ErrStopped)
	assert.False(t, p.Poll())
	assert.Nil(t, p.Start())
}

func TestStartDeliversInitialSnapshot(t *testing.T) {
	src := &fakeSource{responses: []func(context.Context) api.Result[[]model.Notification]{
		list(note(1, model.StatusSent), note(2, model.StatusSent)),
	}}
	p, _ := newTestPoller(src)
	defer p.Stop()

	cmd := p.Start()
	require.NotNil(t, cmd)

	msg, ok := cmd().(SnapshotMsg)
	require.True(t, ok)
	assert.Len(t, msg.Items, 2)
	assert.Equal(t, 2, msg.Unread)
}

func TestFailedMarkKeepsItemsCoveredByLaterMarkAll(t *testing.T) {
	src := &fakeSource{
		responses: []func(context.Context) api.Result[[]model.Notification]{
			list(note(1, model.StatusSent), note(2, model.StatusSent)),
		},
		markErr: &api.ServerError{Status: 500, Message: "boom"},
	}
	p, _ := newTestPoller(src)
	require.True(t, p.Poll())

	var markAll api.Result[struct{}]
	src.markHook = func() { markAll = p.MarkAllAsRead() }

	res := p.MarkAsRead(1)
	assert.False(t, res.OK())
	require.True(t, markAll.OK())
	assert.Equal(t, 1, src.markAllCalls)

	snap := p.Snapshot()
	assert.Equal(t, []model.NotificationStatus{model.StatusRead, model.StatusRead}, statuses(snap.Items))
	assert.Zero(t, snap.Unread)
}

func TestFailedMarkAllKeepsItemConfirmedMeanwhile(t *testing.T) {
	src := &fakeSource{
		responses: []func(context.Context) api.Result[[]model.Notification]{
			list(note(1, model.StatusSent), note(2, model.StatusSent)),
		},
		markAllErr: &api.ServerError{Status: 503},
	}
	p, _ := newTestPoller(src)
	require.True(t, p.Poll())

	var single api.Result[struct{}]
	src.markAllHook = func() { single = p.MarkAsRead(1) }

	assert.False(t, p.MarkAllAsRead().OK())
	require.True(t, single.OK())

	snap := p.Snapshot()
	assert.Equal(t, []model.NotificationStatus{model.StatusRead, model.StatusSent}, statuses(snap.Items))
	assert.Equal(t, 1, snap.Unread)
}

func TestWaitForUpdateReturnsAfterStop(t *testing.T) {
	p, _ := newTestPoller(&fakeSource{})
	cmd := p.WaitForUpdate()

	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()
	p.Stop()

	select {
	case msg := <-done:
		assert.Nil(t, msg)
	case <-time.After(time.Second):
		t.Fatal("reader still blocked after Stop")
	}
}
