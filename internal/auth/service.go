// Package auth wraps the authentication endpoints and holds the
// signed-in user for the lifetime of the application.
package auth

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/clinicdesk/internal/api"
	"github.com/nhle/clinicdesk/internal/model"
)

// LoginResponse is the normalized result of a successful login.
type LoginResponse struct {
	Token string
	User  model.User
}

// Service exposes the auth and account endpoints.
type Service struct {
	client     *api.Client
	statusPath string
	extendPath string
	logger     *zap.Logger
}

// NewService creates an auth service. The session status and extend
// paths are owned by the external auth service and come from cfg.
func NewService(client *api.Client, cfg model.APIConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		client:     client,
		statusPath: cfg.SessionStatusPath,
		extendPath: cfg.SessionExtendPath,
		logger:     logger.Named("auth"),
	}
}

// rawLogin covers both {token, user} and flat {accessToken, userId, ...}
// login payloads.
type rawLogin struct {
	Token       string      `json:"token"`
	AccessToken string      `json:"accessToken"`
	Nested      *model.User `json:"user"`
	model.User
}

// Login exchanges credentials for a bearer token.
func (s *Service) Login(ctx context.Context, creds model.Credentials) api.Result[LoginResponse] {
	if creds.Username == "" {
		return api.Failure(LoginResponse{}, api.NewValidationError("username", "Username is required"))
	}
	if creds.Password == "" {
		return api.Failure(LoginResponse{}, api.NewValidationError("password", "Password is required"))
	}

	var raw json.RawMessage
	if err := s.client.Post(ctx, "/auth/login", nil, creds, &raw); err != nil {
		s.logger.Info("login failed", zap.String("username", creds.Username), zap.Error(err))
		return api.Failure(LoginResponse{}, err)
	}

	rl, err := api.DecodeObject[rawLogin](raw)
	if err != nil {
		return api.Failure(LoginResponse{}, &api.ServerError{Status: 200, Message: api.GenericErrorMessage, Err: err})
	}

	resp := LoginResponse{Token: rl.Token, User: rl.User}
	if resp.Token == "" {
		resp.Token = rl.AccessToken
	}
	if rl.Nested != nil {
		resp.User = *rl.Nested
	}
	if resp.Token == "" {
		return api.Failure(LoginResponse{}, &api.ServerError{Status: 200, Message: "Login response did not include a token"})
	}

	return api.OK(resp, "Login successful")
}

// Register creates a new patient account.
func (s *Service) Register(ctx context.Context, reg model.Registration) api.Result[model.User] {
	if reg.Username == "" || reg.Email == "" || reg.Password == "" {
		return api.Failure(model.User{}, api.NewValidationError("registration", "Username, email and password are required"))
	}

	var raw json.RawMessage
	if err := s.client.Post(ctx, "/auth/register", nil, reg, &raw); err != nil {
		return api.Failure(model.User{}, err)
	}

	user, err := api.DecodeObject[model.User](raw)
	if err != nil {
		// The account exists; only the echo was unreadable.
		s.logger.Warn("decoding register response", zap.Error(err))
		user = model.User{Username: reg.Username, Email: reg.Email, FullName: reg.FullName}
	}
	return api.OK(user, "Registration successful")
}

// Me returns the signed-in user.
func (s *Service) Me(ctx context.Context) api.Result[model.User] {
	var raw json.RawMessage
	if err := s.client.Get(ctx, "/auth/me", nil, &raw); err != nil {
		return api.Failure(model.User{}, err)
	}
	user, err := api.DecodeObject[model.User](raw)
	if err != nil {
		return api.Failure(model.User{}, &api.ServerError{Status: 200, Message: api.GenericErrorMessage, Err: err})
	}
	return api.OK(user, "")
}

// availability covers {available}, {exists} and bare boolean replies.
type availability struct {
	Available *bool `json:"available"`
	Exists    *bool `json:"exists"`
}

// CheckUsername reports whether username is free to register.
func (s *Service) CheckUsername(ctx context.Context, username string) api.Result[bool] {
	return s.checkAvailable(ctx, "/auth/check-username", "username", username)
}

// CheckEmail reports whether email is free to register.
func (s *Service) CheckEmail(ctx context.Context, email string) api.Result[bool] {
	return s.checkAvailable(ctx, "/auth/check-email", "email", email)
}

func (s *Service) checkAvailable(ctx context.Context, path, param, value string) api.Result[bool] {
	if value == "" {
		return api.Failure(false, api.NewValidationError(param, "Value is required"))
	}

	var raw json.RawMessage
	if err := s.client.Get(ctx, path, url.Values{param: {value}}, &raw); err != nil {
		return api.Failure(false, err)
	}

	inner := api.Unwrap(raw, "data")
	var b bool
	if json.Unmarshal(inner, &b) == nil {
		return api.OK(b, "")
	}

	var av availability
	if err := json.Unmarshal(inner, &av); err != nil {
		return api.Failure(false, &api.ServerError{Status: 200, Message: api.GenericErrorMessage, Err: err})
	}
	switch {
	case av.Available != nil:
		return api.OK(*av.Available, "")
	case av.Exists != nil:
		return api.OK(!*av.Exists, "")
	default:
		return api.Failure(false, &api.ServerError{Status: 200, Message: api.GenericErrorMessage})
	}
}

// rawSessionStatus accepts minutes and/or seconds from the auth service.
type rawSessionStatus struct {
	IsActive         *bool    `json:"isActive"`
	Active           *bool    `json:"active"`
	RemainingMinutes *float64 `json:"remainingMinutes"`
	RemainingSeconds *float64 `json:"remainingSeconds"`
	ExpiresAt        string   `json:"expiresAt"`
}

func (r rawSessionStatus) normalize() model.SessionStatus {
	st := model.SessionStatus{}
	switch {
	case r.IsActive != nil:
		st.IsActive = *r.IsActive
	case r.Active != nil:
		st.IsActive = *r.Active
	}
	switch {
	case r.RemainingSeconds != nil:
		st.RemainingSeconds = int(*r.RemainingSeconds)
	case r.RemainingMinutes != nil:
		st.RemainingSeconds = int(*r.RemainingMinutes * 60)
	}
	if t, ok := model.ParseTimestamp(r.ExpiresAt); ok {
		st.ExpiresAt = t
	}
	return st
}

// SessionStatus asks the auth service how long the session has left.
func (s *Service) SessionStatus(ctx context.Context) api.Result[model.SessionStatus] {
	return s.sessionCall(ctx, false)
}

// ExtendSession asks the auth service to prolong the session.
func (s *Service) ExtendSession(ctx context.Context) api.Result[model.SessionStatus] {
	return s.sessionCall(ctx, true)
}

func (s *Service) sessionCall(ctx context.Context, extend bool) api.Result[model.SessionStatus] {
	var raw json.RawMessage
	var err error
	if extend {
		err = s.client.Post(ctx, s.extendPath, nil, nil, &raw)
	} else {
		err = s.client.Get(ctx, s.statusPath, nil, &raw)
	}
	if err != nil {
		return api.Failure(model.SessionStatus{}, err)
	}

	rs, err := api.DecodeObject[rawSessionStatus](raw)
	if err != nil {
		return api.Failure(model.SessionStatus{}, &api.ServerError{Status: 200, Message: api.GenericErrorMessage, Err: err})
	}
	st := rs.normalize()
	if extend && rs.IsActive == nil && rs.Active == nil {
		// Extend endpoints commonly reply with just the new expiry.
		st.IsActive = true
	}
	if st.RemainingSeconds == 0 && !st.ExpiresAt.IsZero() {
		st.RemainingSeconds = int(time.Until(st.ExpiresAt).Seconds())
	}
	return api.OK(st, "")
}

// PrivacySettings returns the patient's sharing preferences.
func (s *Service) PrivacySettings(ctx context.Context) api.Result[model.PrivacySettings] {
	var raw json.RawMessage
	if err := s.client.Get(ctx, "/patients/privacy-settings", nil, &raw); err != nil {
		return api.Failure(model.PrivacySettings{}, err)
	}
	ps, err := api.DecodeObject[model.PrivacySettings](raw)
	if err != nil {
		return api.Failure(model.PrivacySettings{}, &api.ServerError{Status: 200, Message: api.GenericErrorMessage, Err: err})
	}
	return api.OK(ps, "")
}

// UpdatePrivacySettings saves the patient's sharing preferences.
func (s *Service) UpdatePrivacySettings(ctx context.Context, ps model.PrivacySettings) api.Result[model.PrivacySettings] {
	if err := s.client.Post(ctx, "/patients/privacy-settings", nil, ps, nil); err != nil {
		return api.Failure(ps, err)
	}
	return api.OK(ps, "Privacy settings saved")
}
