package privacy

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/clinicdesk/internal/api"
	"github.com/nhle/clinicdesk/internal/model"
)

type fakeService struct {
	current model.PrivacySettings
	saved   []model.PrivacySettings
	saveErr error
}

func (f *fakeService) PrivacySettings(context.Context) api.Result[model.PrivacySettings] {
	return api.OK(f.current, "")
}

func (f *fakeService) UpdatePrivacySettings(_ context.Context, ps model.PrivacySettings) api.Result[model.PrivacySettings] {
	if f.saveErr != nil {
		return api.Failure(ps, f.saveErr)
	}
	f.saved = append(f.saved, ps)
	f.current = ps
	return api.OK(ps, "")
}

func TestLoadFillsForm(t *testing.T) {
	svc := &fakeService{current: model.PrivacySettings{ReceiveNotifications: true}}
	m := New(svc, 80, 24)
	assert.Contains(t, m.View(), "Loading settings...")

	m, _ = m.Update(m.Init()())
	require.NotNil(t, m.form)
	assert.True(t, m.settings.ReceiveNotifications)
	assert.Contains(t, m.View(), "Receive notifications")
}

func TestSaveResult(t *testing.T) {
	svc := &fakeService{}
	m := New(svc, 80, 24)
	m, _ = m.Update(m.Init()())

	m, _ = m.Update(savedMsg{res: api.OK(model.PrivacySettings{AnonymousMode: true}, "")})
	assert.True(t, m.settings.AnonymousMode)
	assert.Equal(t, "Privacy settings saved", m.statusMsg)
	assert.False(t, m.statusErr)

	m, _ = m.Update(savedMsg{res: api.Failure(model.PrivacySettings{}, &api.ServerError{Status: 500})})
	assert.True(t, m.statusErr)
	assert.Equal(t, api.GenericErrorMessage, m.statusMsg)
	assert.True(t, m.settings.AnonymousMode, "a failed save keeps the last saved values")
}

func TestEscCloses(t *testing.T) {
	m := New(&fakeService{}, 80, 24)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.IsType(t, CloseMsg{}, cmd())
}
