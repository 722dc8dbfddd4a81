package auth

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/nhle/clinicdesk/internal/api"
	"github.com/nhle/clinicdesk/internal/credential"
	"github.com/nhle/clinicdesk/internal/model"
)

// Accounts is the subset of Service the session store needs.
type Accounts interface {
	Login(ctx context.Context, creds model.Credentials) api.Result[LoginResponse]
	Register(ctx context.Context, reg model.Registration) api.Result[model.User]
	Me(ctx context.Context) api.Result[model.User]
}

// Logout reasons carried by Event.
const (
	ReasonLogin        = "login"
	ReasonRestored     = "restored"
	ReasonLogout       = "logout"
	ReasonUnauthorized = "unauthorized"
	ReasonExpired      = "expired"
)

// Event describes a change in authentication state.
type Event struct {
	Authenticated bool
	User          model.User
	Reason        string
}

// ErrDisposed is returned by operations on a disposed Session.
var ErrDisposed = errors.New("session disposed")

// Session is the application-scoped auth state: the signed-in user and
// the login/logout/register mutators. It is created explicitly and
// passed to whoever needs it, so tests can build isolated instances.
type Session struct {
	accounts Accounts
	tokens   credential.TokenStore
	logger   *zap.Logger
	now      func() time.Time

	mu        gosync.Mutex
	user      *model.User
	nextID    int
	listeners map[int]func(Event)
	disposed  bool
}

// NewSession creates a Session. Call Init before use and Dispose when done.
func NewSession(accounts Accounts, tokens credential.TokenStore, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		accounts:  accounts,
		tokens:    tokens,
		logger:    logger.Named("session"),
		now:       time.Now,
		listeners: make(map[int]func(Event)),
	}
}

// Init restores a persisted session. An expired or rejected token is
// discarded; Init only returns an error for token store failures.
func (s *Session) Init(ctx context.Context) error {
	token, err := s.tokens.Token()
	if err != nil {
		return fmt.Errorf("reading stored token: %w", err)
	}
	if token == "" {
		return nil
	}

	if tokenExpired(token, s.now()) {
		s.logger.Info("stored token expired, discarding")
		return s.tokens.ClearToken()
	}

	res := s.accounts.Me(ctx)
	if !res.OK() {
		if api.IsUnauthorized(res.Err) {
			// The client has already cleared the token.
			return nil
		}
		// Keep the token for transient failures; the next call retries.
		s.logger.Warn("restoring session", zap.Error(res.Err))
		return nil
	}

	s.setUser(&res.Data, ReasonRestored)
	return nil
}

// Login authenticates, persists the token and publishes the new user.
func (s *Session) Login(ctx context.Context, creds model.Credentials) api.Result[model.User] {
	if s.isDisposed() {
		return api.Failure(model.User{}, ErrDisposed)
	}

	res := s.accounts.Login(ctx, creds)
	if !res.OK() {
		return api.Result[model.User]{Err: res.Err, Message: res.Message}
	}

	if err := s.tokens.SetToken(res.Data.Token); err != nil {
		s.logger.Error("persisting token", zap.Error(err))
		return api.Failure(model.User{}, err)
	}

	user := res.Data.User
	if user.UserID == 0 {
		// Some deployments only return the token.
		me := s.accounts.Me(ctx)
		if me.OK() {
			user = me.Data
		}
	}

	s.setUser(&user, ReasonLogin)
	s.logger.Info("logged in", zap.Int64("user_id", user.UserID), zap.String("role", string(user.Role)))
	return api.OK(user, res.Message)
}

// Register creates an account. It does not sign the user in.
func (s *Session) Register(ctx context.Context, reg model.Registration) api.Result[model.User] {
	if s.isDisposed() {
		return api.Failure(model.User{}, ErrDisposed)
	}
	return s.accounts.Register(ctx, reg)
}

// Logout clears the token and the current user.
func (s *Session) Logout() {
	s.end(ReasonLogout)
}

// ForceLogout ends the session for reason (ReasonUnauthorized or
// ReasonExpired). It is safe to call when already logged out.
func (s *Session) ForceLogout(reason string) {
	s.end(reason)
}

func (s *Session) end(reason string) {
	if err := s.tokens.ClearToken(); err != nil {
		s.logger.Warn("clearing token", zap.Error(err))
	}

	s.mu.Lock()
	wasAuthenticated := s.user != nil
	s.mu.Unlock()

	if !wasAuthenticated && reason != ReasonLogout {
		return
	}
	s.logger.Info("session ended", zap.String("reason", reason))
	s.setUser(nil, reason)
}

// CurrentUser returns the signed-in user.
func (s *Session) CurrentUser() (model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return model.User{}, false
	}
	return *s.user, true
}

// Authenticated reports whether a user is signed in.
func (s *Session) Authenticated() bool {
	_, ok := s.CurrentUser()
	return ok
}

// Subscribe registers fn for auth state changes and returns a function
// that removes it. fn runs on the goroutine that caused the change.
func (s *Session) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Dispose drops all listeners and rejects further logins. The stored
// token is kept so the next run can restore the session.
func (s *Session) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disposed = true
	s.listeners = make(map[int]func(Event))
}

func (s *Session) isDisposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}

func (s *Session) setUser(user *model.User, reason string) {
	s.mu.Lock()
	s.user = user
	listeners := make([]func(Event), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	ev := Event{Authenticated: user != nil, Reason: reason}
	if user != nil {
		ev.User = *user
	}
	for _, fn := range listeners {
		fn(ev)
	}
}

// tokenExpired reads the exp claim without verifying the signature.
// The result only decides whether a stored token is worth presenting;
// the server remains the authority. Opaque tokens never expire locally.
func tokenExpired(token string, now time.Time) bool {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !now.Before(claims.ExpiresAt.Time)
}
