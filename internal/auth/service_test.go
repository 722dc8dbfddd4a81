package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nhle/clinicdesk/internal/api"
	"github.com/nhle/clinicdesk/internal/credential"
	"github.com/nhle/clinicdesk/internal/model"
)

func newTestService(t *testing.T, mux *http.ServeMux) *Service {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := api.NewClient(srv.URL, credential.NewMemoryStore("tok"), time.Second, zap.NewNop())
	return NewService(client, model.APIConfig{
		SessionStatusPath: "/auth/session-status",
		SessionExtendPath: "/auth/extend-session",
	}, zap.NewNop())
}

func TestLoginNestedAndFlatShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"nested user", `{"token":"abc","user":{"userId":5,"username":"drsmith","role":"DOCTOR"}}`},
		{"flat access token", `{"accessToken":"abc","userId":5,"username":"drsmith","role":"DOCTOR"}`},
		{"data envelope", `{"success":true,"data":{"token":"abc","user":{"userId":5,"username":"drsmith","role":"DOCTOR"}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
				var creds model.Credentials
				require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
				assert.Equal(t, "drsmith", creds.Username)
				_, _ = w.Write([]byte(tt.body))
			})
			svc := newTestService(t, mux)

			res := svc.Login(context.Background(), model.Credentials{Username: "drsmith", Password: "pw"})
			require.True(t, res.OK(), res.ErrorMessage())
			assert.Equal(t, "abc", res.Data.Token)
			assert.Equal(t, int64(5), res.Data.User.UserID)
			assert.Equal(t, model.RoleDoctor, res.Data.User.Role)
		})
	}
}

func TestLoginValidatesBeforeNetwork(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected request %s", r.URL.Path)
	})
	svc := newTestService(t, mux)

	res := svc.Login(context.Background(), model.Credentials{Username: "a"})
	assert.Equal(t, api.KindValidation, res.Kind())
	assert.Equal(t, "Password is required", res.ErrorMessage())
}

func TestLoginWrongPasswordSurfacesServerMessage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"Invalid username or password"}`))
	})
	svc := newTestService(t, mux)

	res := svc.Login(context.Background(), model.Credentials{Username: "a", Password: "b"})
	assert.Equal(t, api.KindServer, res.Kind())
	assert.Equal(t, "Invalid username or password", res.ErrorMessage())
}

func TestCheckAvailabilityShapes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/check-username", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("username") == "taken" {
			_, _ = w.Write([]byte(`{"exists":true}`))
			return
		}
		_, _ = w.Write([]byte(`{"available":true}`))
	})
	mux.HandleFunc("GET /auth/check-email", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`false`))
	})
	svc := newTestService(t, mux)
	ctx := context.Background()

	res := svc.CheckUsername(ctx, "taken")
	require.True(t, res.OK())
	assert.False(t, res.Data)

	res = svc.CheckUsername(ctx, "fresh")
	require.True(t, res.OK())
	assert.True(t, res.Data)

	res = svc.CheckEmail(ctx, "a@b.c")
	require.True(t, res.OK())
	assert.False(t, res.Data)
}

func TestSessionStatusMinutesToSeconds(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/session-status", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"isActive":true,"remainingMinutes":1.5,"expiresAt":"2026-10-15T10:00:00Z"}`))
	})
	mux.HandleFunc("POST /auth/extend-session", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"remainingSeconds":1800}`))
	})
	svc := newTestService(t, mux)

	res := svc.SessionStatus(context.Background())
	require.True(t, res.OK())
	assert.True(t, res.Data.IsActive)
	assert.Equal(t, 90, res.Data.RemainingSeconds)
	assert.Equal(t, 2026, res.Data.ExpiresAt.Year())

	ext := svc.ExtendSession(context.Background())
	require.True(t, ext.OK())
	assert.True(t, ext.Data.IsActive)
	assert.Equal(t, 1800, ext.Data.RemainingSeconds)
}

func TestPrivacySettingsRoundTrip(t *testing.T) {
	var saved model.PrivacySettings
	mux := http.NewServeMux()
	mux.HandleFunc("GET /patients/privacy-settings", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"shareMedicalData":true,"anonymousMode":false}}`))
	})
	mux.HandleFunc("POST /patients/privacy-settings", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&saved))
		w.WriteHeader(http.StatusOK)
	})
	svc := newTestService(t, mux)

	got := svc.PrivacySettings(context.Background())
	require.True(t, got.OK())
	assert.True(t, got.Data.ShareMedicalData)

	got.Data.AnonymousMode = true
	upd := svc.UpdatePrivacySettings(context.Background(), got.Data)
	require.True(t, upd.OK())
	assert.True(t, saved.AnonymousMode)
}
