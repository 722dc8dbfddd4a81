package login

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/clinicdesk/internal/api"
	"github.com/nhle/clinicdesk/internal/model"
)

type fakeAuth struct {
	loginRes    api.Result[model.User]
	registerRes api.Result[model.User]
	logins      []model.Credentials
	registered  []model.Registration
}

func (f *fakeAuth) Login(_ context.Context, creds model.Credentials) api.Result[model.User] {
	f.logins = append(f.logins, creds)
	return f.loginRes
}

func (f *fakeAuth) Register(_ context.Context, reg model.Registration) api.Result[model.User] {
	f.registered = append(f.registered, reg)
	return f.registerRes
}

type fakeChecks struct {
	usernameFree bool
	emailFree    bool
	emailCalls   int
}

func (f *fakeChecks) CheckUsername(context.Context, string) api.Result[bool] {
	return api.OK(f.usernameFree, "")
}

func (f *fakeChecks) CheckEmail(context.Context, string) api.Result[bool] {
	f.emailCalls++
	return api.OK(f.emailFree, "")
}

func TestLoginSuccessEmitsLoggedIn(t *testing.T) {
	auth := &fakeAuth{loginRes: api.OK(model.User{UserID: 3, Role: model.RoleDoctor}, "")}
	m := New(auth, &fakeChecks{}, 80, 24)
	m.fb.username = "  drsmith "
	m.fb.password = "secret"

	msg := m.login()()
	m, cmd := m.Update(msg)
	require.NotNil(t, cmd)
	out, ok := cmd().(LoggedInMsg)
	require.True(t, ok)
	assert.Equal(t, int64(3), out.User.UserID)
	assert.Equal(t, "drsmith", auth.logins[0].Username)
	assert.Empty(t, m.banner)
}

func TestLoginFailureShowsMessageAndClearsPassword(t *testing.T) {
	auth := &fakeAuth{loginRes: api.Failure(model.User{}, &api.ServerError{Status: 401, Message: "Invalid credentials"})}
	m := New(auth, &fakeChecks{}, 80, 24)
	m.fb.username = "drsmith"
	m.fb.password = "wrong"
	m.mode = modeSubmitting

	m, _ = m.Update(m.login()())
	assert.Equal(t, modeLogin, m.mode)
	assert.Equal(t, "Invalid credentials", m.banner)
	assert.True(t, m.bannerErr)
	assert.Empty(t, m.fb.password)
	assert.Equal(t, "drsmith", m.fb.username)
}

func TestToggleToRegister(t *testing.T) {
	m := New(&fakeAuth{}, &fakeChecks{}, 80, 24)
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlN})
	assert.Equal(t, modeRegister, m.mode)
	assert.Contains(t, m.View(), "Create an account")

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlN})
	assert.Equal(t, modeLogin, m.mode)
}

func TestRegisterStopsWhenUsernameTaken(t *testing.T) {
	auth := &fakeAuth{}
	checks := &fakeChecks{usernameFree: false, emailFree: true}
	m := New(auth, checks, 80, 24)
	m.mode = modeSubmitting
	m.returnTo = modeRegister

	m, _ = m.Update(m.checkAvailability()())
	assert.Equal(t, modeRegister, m.mode)
	assert.Equal(t, UsernameTakenMessage, m.banner)
	assert.Zero(t, checks.emailCalls)
	assert.Empty(t, auth.registered)
}

func TestRegisterStopsWhenEmailTaken(t *testing.T) {
	m := New(&fakeAuth{}, &fakeChecks{usernameFree: true, emailFree: false}, 80, 24)
	m, _ = m.Update(m.checkAvailability()())
	assert.Equal(t, EmailTakenMessage, m.banner)
}

func TestRegisterSuccessReturnsToLogin(t *testing.T) {
	auth := &fakeAuth{registerRes: api.OK(model.User{Username: "ana"}, "Registration successful")}
	m := New(auth, &fakeChecks{usernameFree: true, emailFree: true}, 80, 24)
	m.fb.regUsername = "ana"
	m.fb.email = "ana@example.com"
	m.fb.regPassword = "secret1"
	m.fb.fullName = "Ana Diaz"

	m, cmd := m.Update(m.checkAvailability()())
	require.NotNil(t, cmd)
	m, _ = m.Update(cmd())

	require.Len(t, auth.registered, 1)
	assert.Equal(t, "ana@example.com", auth.registered[0].Email)
	assert.Equal(t, modeLogin, m.mode)
	assert.Equal(t, RegisteredMessage, m.banner)
	assert.False(t, m.bannerErr)
	assert.Equal(t, "ana", m.fb.username)
	assert.Empty(t, m.fb.regPassword)
}

func TestValidators(t *testing.T) {
	assert.Error(t, ValidateEmail(""))
	assert.Error(t, ValidateEmail("not-an-email"))
	assert.NoError(t, ValidateEmail("ana@example.com"))

	assert.Error(t, ValidatePassword("12345"))
	assert.NoError(t, ValidatePassword("123456"))

	assert.NoError(t, ValidateDateOfBirth(""))
	assert.NoError(t, ValidateDateOfBirth("1990-04-12"))
	assert.Error(t, ValidateDateOfBirth("12/04/1990"))
	assert.Error(t, ValidateDateOfBirth("2999-01-01"))
}
