package sessionmodal

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatCountdown(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0:00"},
		{-time.Second, "0:00"},
		{59 * time.Second, "0:59"},
		{60 * time.Second, "1:00"},
		{90*time.Second + 200*time.Millisecond, "1:31"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatCountdown(tt.in), tt.in.String())
	}
}

func TestHiddenModalIgnoresKeys(t *testing.T) {
	m := New(time.Minute, 80)
	assert.Empty(t, m.View())

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
}

func TestEnterRequestsExtendOnce(t *testing.T) {
	m := New(time.Minute, 80)
	m.Show(45 * time.Second)
	assert.Contains(t, m.View(), "0:45")

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.IsType(t, ExtendMsg{}, cmd())
	assert.Contains(t, m.View(), "Extending session...")

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd, "a second extend is ignored while one is in flight")
}

func TestLogoutKey(t *testing.T) {
	m := New(time.Minute, 80)
	m.Show(10 * time.Second)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("l")})
	require.NotNil(t, cmd)
	assert.IsType(t, LogoutMsg{}, cmd())
}

func TestExtendFailedAllowsRetry(t *testing.T) {
	m := New(time.Minute, 80)
	m.Show(10 * time.Second)
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	m.ExtendFailed("Unable to extend session")
	assert.Contains(t, m.View(), "Unable to extend session")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.NotNil(t, cmd)
}
