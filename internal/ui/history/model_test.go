package history

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/clinicdesk/internal/api"
	"github.com/nhle/clinicdesk/internal/keys"
	"github.com/nhle/clinicdesk/internal/model"
)

type fakeService struct {
	items      []model.Notification
	historyFor []*int64
	unsent     []int64
	unsendErr  error
}

func (f *fakeService) History(_ context.Context, _ int64, pid *int64) api.Result[[]model.Notification] {
	f.historyFor = append(f.historyFor, pid)
	return api.OK(f.items, "")
}

func (f *fakeService) Unsend(_ context.Context, id, _ int64) api.Result[struct{}] {
	if f.unsendErr != nil {
		return api.Failure(struct{}{}, f.unsendErr)
	}
	f.unsent = append(f.unsent, id)
	return api.OK(struct{}{}, "")
}

func ptr(v int64) *int64 { return &v }

func loaded(t *testing.T, svc *fakeService) Model {
	t.Helper()
	m := New(svc, keys.DefaultKeyMap(), 9, 120, 30)
	m.SetPatients([]model.Patient{
		{UserID: 5, FirstName: "Ana", LastName: "Diaz"},
		{UserID: 6, FirstName: "Bo", LastName: "Lee"},
	})
	m, _ = m.Update(m.Init()())
	return m
}

func press(m Model, s string) (Model, tea.Cmd) {
	return m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func TestRowResolvesPatientAndSentTime(t *testing.T) {
	sent := time.Date(2024, 3, 2, 9, 30, 0, 0, time.Local)
	dir := model.NewPatientDirectory([]model.Patient{{UserID: 5, FirstName: "Ana", LastName: "Diaz"}})

	row := Row(model.Notification{
		Title: "Reminder", PatientID: ptr(5), SentAt: &sent,
		Priority: model.PriorityHigh, Status: model.StatusDelivered,
	}, dir)
	assert.Equal(t, []string{"2024-03-02 09:30", "Ana Diaz", "Reminder", "HIGH", "DELIVERED"}, []string(row))

	row = Row(model.Notification{PatientID: ptr(99)}, dir)
	assert.Equal(t, model.UnknownPatientName, row[1])
	assert.Equal(t, "-", row[0])
}

func TestLoadedShowsTable(t *testing.T) {
	svc := &fakeService{items: []model.Notification{
		{ID: 1, Title: "Reminder", PatientID: ptr(5), Status: model.StatusSent},
	}}
	m := loaded(t, svc)

	assert.False(t, m.loading)
	assert.Contains(t, m.View(), "Reminder")
	assert.Contains(t, m.View(), "Ana Diaz")
}

func TestEmptyHistory(t *testing.T) {
	m := loaded(t, &fakeService{})
	assert.Contains(t, m.View(), "No notifications sent yet.")
}

func TestUnsendGuardedByStatus(t *testing.T) {
	svc := &fakeService{items: []model.Notification{
		{ID: 1, Title: "Seen", Status: model.StatusRead},
	}}
	m := loaded(t, svc)

	m, cmd := press(m, "u")
	assert.Nil(t, cmd)
	assert.Equal(t, modeTable, m.mode)
	assert.Equal(t, NotUnsendableMessage, m.statusMsg)
	assert.Empty(t, svc.unsent)
}

func TestUnsendAsksForConfirmation(t *testing.T) {
	svc := &fakeService{items: []model.Notification{
		{ID: 4, Title: "Reminder", Status: model.StatusSent},
	}}
	m := loaded(t, svc)

	m, cmd := press(m, "u")
	require.NotNil(t, cmd)
	assert.Equal(t, modeConfirm, m.mode)
	assert.Equal(t, int64(4), m.pending.ID)
	assert.Empty(t, svc.unsent, "nothing is sent before the user confirms")
}

func TestUnsendSuccessReloadsAndNotifies(t *testing.T) {
	svc := &fakeService{items: []model.Notification{{ID: 4, Status: model.StatusSent}}}
	m := loaded(t, svc)
	m.mode = modeConfirm

	m, cmd := m.Update(m.unsend(4)())
	assert.Equal(t, []int64{4}, svc.unsent)
	assert.Equal(t, modeTable, m.mode)
	assert.False(t, m.statusErr)
	require.NotNil(t, cmd)
}

func TestUnsendFailureShowsServerMessage(t *testing.T) {
	svc := &fakeService{
		items:     []model.Notification{{ID: 4, Status: model.StatusSent}},
		unsendErr: &api.ServerError{Status: 409, Message: "Already delivered"},
	}
	m := loaded(t, svc)

	m, _ = m.Update(m.unsend(4)())
	assert.True(t, m.statusErr)
	assert.Equal(t, "Already delivered", m.statusMsg)
}

func TestFilterCyclesThroughPatients(t *testing.T) {
	svc := &fakeService{}
	m := loaded(t, svc)

	m, cmd := press(m, "f")
	require.NotNil(t, cmd)
	m, _ = m.Update(cmd())
	m, cmd = press(m, "f")
	m, _ = m.Update(cmd())
	_, cmd = press(m, "f")
	cmd()

	require.Len(t, svc.historyFor, 4)
	assert.Nil(t, svc.historyFor[0])
	assert.Equal(t, int64(5), *svc.historyFor[1])
	assert.Equal(t, int64(6), *svc.historyFor[2])
	assert.Nil(t, svc.historyFor[3])
}

func TestStaleFilterResultIgnored(t *testing.T) {
	svc := &fakeService{items: []model.Notification{{ID: 1, Title: "All"}}}
	m := loaded(t, svc)

	m, _ = press(m, "f")
	m, _ = m.Update(loadedMsg{patientID: nil, res: api.OK([]model.Notification{{ID: 9}}, "")})
	assert.Empty(t, m.items)
	assert.True(t, m.loading)
}
