package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nhle/clinicdesk/internal/api"
	"github.com/nhle/clinicdesk/internal/credential"
	"github.com/nhle/clinicdesk/internal/model"
)

type backend struct {
	mux      *http.ServeMux
	requests atomic.Int32
}

func newBackend() *backend {
	return &backend{mux: http.NewServeMux()}
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.requests.Add(1)
	b.mux.ServeHTTP(w, r)
}

func newTestService(t *testing.T, b *backend, logger *zap.Logger) *Service {
	t.Helper()
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)

	if logger == nil {
		logger = zap.NewNop()
	}
	client := api.NewClient(srv.URL, credential.NewMemoryStore("tok"), time.Second, logger)
	return NewService(client, 4, logger)
}

func TestPatientsWithAppointmentsFetchAndTemplates(t *testing.T) {
	b := newBackend()
	b.mux.HandleFunc("GET /v1/notifications/doctor/patients-with-appointments", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("doctorId"))
		_, _ = w.Write([]byte(`[{"userId":2,"firstName":"John","lastName":"Doe","email":"j@x.com"}]`))
	})
	b.mux.HandleFunc("GET /v1/notifications/templates", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"templateId":1,"name":"Reminder","content":"See you soon","priority":"high"}]}`))
	})
	b.mux.HandleFunc("POST /v1/notifications/doctor/send", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "1", q.Get("doctorId"))
		assert.Equal(t, "2", q.Get("patientId"))
		assert.Equal(t, "1", q.Get("templateId"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Hi", body["customMessage"])
		w.WriteHeader(http.StatusOK)
	})
	svc := newTestService(t, b, nil)
	ctx := context.Background()

	patients := svc.PatientsWithAppointments(ctx, 1)
	require.True(t, patients.OK())
	assert.Equal(t, []model.Patient{{UserID: 2, FirstName: "John", LastName: "Doe", Email: "j@x.com"}}, patients.Data)

	templates := svc.Templates(ctx)
	require.True(t, templates.OK())
	require.Len(t, templates.Data, 1)
	assert.Equal(t, int64(1), templates.Data[0].ID)
	assert.Equal(t, model.PriorityHigh, templates.Data[0].Priority)
	assert.True(t, templates.Data[0].IsActive)

	res := svc.Send(ctx, SendRequest{
		PatientIDs:    FormatIDs([]int64{patients.Data[0].UserID}),
		TemplateID:    "1",
		CustomMessage: "Hi",
	}, 1)
	require.True(t, res.OK(), res.ErrorMessage())
	assert.Equal(t, 1, res.Data.SuccessCount)
	assert.Equal(t, 0, res.Data.FailureCount)
}

func TestPatientsWithAppointmentsMissingLastNameWarns(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)

	b := newBackend()
	b.mux.HandleFunc("GET /v1/notifications/doctor/patients-with-appointments", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"userId":3,"firstName":"Ann","email":"a@x.com"}]`))
	})
	svc := newTestService(t, b, zap.New(core))

	res := svc.PatientsWithAppointments(context.Background(), 1)
	require.True(t, res.OK())
	require.Len(t, res.Data, 1)
	assert.Equal(t, "Patient", res.Data[0].LastName)
	assert.Equal(t, "Ann", res.Data[0].FirstName)

	warnings := logs.FilterMessage("patient record missing fields").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, []interface{}{"lastName"}, warnings[0].ContextMap()["missing"])
}

func TestPatientsWithAppointmentsFailureReturnsEmptyList(t *testing.T) {
	b := newBackend()
	b.mux.HandleFunc("GET /v1/notifications/doctor/patients-with-appointments", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"database unavailable"}`))
	})
	svc := newTestService(t, b, nil)

	res := svc.PatientsWithAppointments(context.Background(), 1)
	assert.False(t, res.OK())
	assert.NotNil(t, res.Data)
	assert.Empty(t, res.Data)
	assert.Equal(t, "database unavailable", res.ErrorMessage())
	assert.True(t, res.Retryable())
}

func TestUserNotificationsEnvelopes(t *testing.T) {
	bodies := map[string]string{
		"raw array":     `[{"id":1,"title":"A","status":"SENT","createdAt":"2026-10-15T09:00:00Z"}]`,
		"data":          `{"data":[{"id":1,"title":"A","status":"SENT","createdAt":"2026-10-15T09:00:00Z"}]}`,
		"notifications": `{"notifications":[{"notificationId":1,"subject":"A","status":"SENT","createdAt":"2026-10-15T09:00:00Z"}]}`,
		"page content":  `{"content":[{"id":1,"title":"A","status":"sent","createdAt":[2026,10,15,9,0,0]}],"totalElements":1}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			b := newBackend()
			b.mux.HandleFunc("GET /v1/notifications", func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			})
			svc := newTestService(t, b, nil)

			res := svc.UserNotifications(context.Background())
			require.True(t, res.OK(), res.ErrorMessage())
			require.Len(t, res.Data, 1)
			n := res.Data[0]
			assert.Equal(t, int64(1), n.ID)
			assert.Equal(t, "A", n.Title)
			assert.Equal(t, model.StatusSent, n.Status)
			assert.Equal(t, 2026, n.CreatedAt.Year())
			assert.Equal(t, model.PriorityMedium, n.Priority)
		})
	}
}

func TestUserNotificationsReadFlagBecomesStatus(t *testing.T) {
	b := newBackend()
	b.mux.HandleFunc("GET /v1/notifications", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":1,"status":"DELIVERED","isRead":true},{"id":2,"read":false}]`))
	})
	svc := newTestService(t, b, nil)

	res := svc.UserNotifications(context.Background())
	require.True(t, res.OK())
	assert.True(t, res.Data[0].IsRead())
	assert.Equal(t, model.StatusRead, res.Data[0].Status)
	assert.False(t, res.Data[1].IsRead())
	assert.Equal(t, 1, model.CountUnread(res.Data))
}

func TestHistoryEndpointShapes(t *testing.T) {
	var paths []string
	b := newBackend()
	b.mux.HandleFunc("GET /v1/notifications/doctor/history", func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		_, _ = w.Write([]byte(`[]`))
	})
	b.mux.HandleFunc("GET /v1/notifications/doctor/history/{patientID}", func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		assert.Equal(t, "7", r.URL.Query().Get("doctorId"))
		_, _ = w.Write([]byte(`{"data":[{"id":4,"patientId":9,"status":"CANCELLED"}]}`))
	})
	svc := newTestService(t, b, nil)
	ctx := context.Background()

	all := svc.History(ctx, 7, nil)
	require.True(t, all.OK())
	assert.Empty(t, all.Data)

	patient := int64(9)
	one := svc.History(ctx, 7, &patient)
	require.True(t, one.OK())
	require.Len(t, one.Data, 1)
	assert.False(t, one.Data[0].CanUnsend())

	assert.Equal(t, []string{"/v1/notifications/doctor/history", "/v1/notifications/doctor/history/9"}, paths)
}

func TestMutationEndpoints(t *testing.T) {
	var hits []string
	record := func(w http.ResponseWriter, r *http.Request) {
		hits = append(hits, r.Method+" "+r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}
	b := newBackend()
	b.mux.HandleFunc("POST /v1/notifications/{id}/read", record)
	b.mux.HandleFunc("POST /v1/notifications/read-all", record)
	b.mux.HandleFunc("POST /v1/notifications/doctor/{id}/unsend", record)
	b.mux.HandleFunc("POST /v1/notifications/bulk/mark-read", func(w http.ResponseWriter, r *http.Request) {
		var body bulkRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []int64{1, 2}, body.NotificationIDs)
		record(w, r)
	})
	b.mux.HandleFunc("DELETE /v1/notifications/templates/{id}", record)
	svc := newTestService(t, b, nil)
	ctx := context.Background()

	assert.True(t, svc.MarkAsRead(ctx, 5).OK())
	assert.True(t, svc.MarkAllAsRead(ctx).OK())
	assert.True(t, svc.Unsend(ctx, 6, 1).OK())
	assert.True(t, svc.Bulk(ctx, BulkMarkRead, []int64{1, 2}).OK())
	assert.True(t, svc.DeleteTemplate(ctx, 3).OK())

	assert.Equal(t, []string{
		"POST /v1/notifications/5/read",
		"POST /v1/notifications/read-all",
		"POST /v1/notifications/doctor/6/unsend",
		"POST /v1/notifications/bulk/mark-read",
		"DELETE /v1/notifications/templates/3",
	}, hits)
}

func TestBulkValidatesBeforeNetwork(t *testing.T) {
	b := newBackend()
	svc := newTestService(t, b, nil)

	res := svc.Bulk(context.Background(), BulkDelete, nil)
	assert.Equal(t, api.KindValidation, res.Kind())
	assert.Zero(t, b.requests.Load())
}

func TestTemplateCRUD(t *testing.T) {
	b := newBackend()
	b.mux.HandleFunc("POST /v1/notifications/templates", func(w http.ResponseWriter, r *http.Request) {
		var in model.TemplateInput
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		_, _ = w.Write([]byte(`{"data":{"templateId":11,"name":"` + in.Name + `","content":"` + in.Content + `"}}`))
	})
	b.mux.HandleFunc("PUT /v1/notifications/templates/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	b.mux.HandleFunc("GET /v1/notifications/templates/{id}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":11,"name":"Follow-up","content":"Please book","isActive":false}`))
	})
	svc := newTestService(t, b, nil)
	ctx := context.Background()

	invalid := svc.CreateTemplate(ctx, model.TemplateInput{Content: "x"})
	assert.Equal(t, "Template name is required", invalid.ErrorMessage())
	assert.Zero(t, b.requests.Load())

	created := svc.CreateTemplate(ctx, model.TemplateInput{Name: "Follow-up", Content: "Please book"})
	require.True(t, created.OK())
	assert.Equal(t, int64(11), created.Data.ID)
	assert.Equal(t, "Template created", created.Message)

	updated := svc.UpdateTemplate(ctx, 11, model.TemplateInput{Name: "Follow-up", Content: "Please book"})
	require.True(t, updated.OK())
	assert.Equal(t, int64(11), updated.Data.ID)

	got := svc.Template(ctx, 11)
	require.True(t, got.OK())
	assert.False(t, got.Data.IsActive)
	assert.Equal(t, "Please book", got.Data.Content)
}
