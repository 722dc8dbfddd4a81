package notify

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/clinicdesk/internal/api"
)

func TestSendNoPatientsShortCircuits(t *testing.T) {
	b := newBackend()
	svc := newTestService(t, b, nil)

	res := svc.Send(context.Background(), SendRequest{TemplateID: "1"}, 1)
	assert.False(t, res.OK())
	assert.Equal(t, api.KindValidation, res.Kind())
	assert.Equal(t, NoPatientsMessage, res.ErrorMessage())
	assert.Zero(t, b.requests.Load())
}

func TestSendInvalidTemplateFailsEveryItemWithoutIO(t *testing.T) {
	b := newBackend()
	svc := newTestService(t, b, nil)

	res := svc.Send(context.Background(), SendRequest{PatientIDs: []string{"1", "2", "x"}, TemplateID: "abc"}, 1)
	assert.False(t, res.OK())
	assert.Equal(t, InvalidTemplateMessage, res.ErrorMessage())
	assert.Equal(t, 0, res.Data.SuccessCount)
	assert.Equal(t, 3, res.Data.FailureCount)
	for _, item := range res.Data.Items {
		assert.Equal(t, InvalidTemplateMessage, item.ErrorMessage())
	}
	assert.Zero(t, b.requests.Load())
}

func TestSendCapturesEachPatientIndependently(t *testing.T) {
	b := newBackend()
	b.mux.HandleFunc("POST /v1/notifications/doctor/send", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("patientId") {
		case "3":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message":"Patient has opted out"}`))
		default:
			_, _ = w.Write([]byte(`{"data":{"notificationId":99,"status":"SENT"}}`))
		}
	})
	svc := newTestService(t, b, nil)

	res := svc.Send(context.Background(), SendRequest{
		PatientIDs: []string{"2", "three", "3", "4"},
		TemplateID: "1",
	}, 1)
	require.True(t, res.OK(), "partial success is success")
	assert.Equal(t, 2, res.Data.SuccessCount)
	assert.Equal(t, 2, res.Data.FailureCount)
	assert.Equal(t, "Notification sent to 2 patient(s), 2 failed", res.Message)
	assert.Equal(t, int32(3), b.requests.Load())

	items := res.Data.Items
	require.Len(t, items, 4)
	assert.Equal(t, "2", items[0].PatientID)
	assert.True(t, items[0].Success)
	require.NotNil(t, items[0].Notification)
	assert.Equal(t, int64(99), items[0].Notification.ID)

	assert.Equal(t, InvalidPatientMessage, items[1].ErrorMessage())
	assert.Equal(t, api.KindValidation, api.KindOf(items[1].Err))

	assert.False(t, items[2].Success)
	assert.Equal(t, "Patient has opted out", items[2].ErrorMessage())
	assert.Equal(t, 400, api.StatusOf(items[2].Err))

	assert.True(t, items[3].Success)
}

func TestSendAllFailuresIsFailure(t *testing.T) {
	b := newBackend()
	b.mux.HandleFunc("POST /v1/notifications/doctor/send", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	svc := newTestService(t, b, nil)

	res := svc.Send(context.Background(), SendRequest{PatientIDs: []string{"1", "2"}, TemplateID: "5"}, 1)
	assert.False(t, res.OK())
	assert.Equal(t, api.KindServer, res.Kind())
	assert.True(t, res.Retryable())
	assert.Equal(t, 2, res.Data.FailureCount)
	assert.Equal(t, api.GenericErrorMessage, res.ErrorMessage())
}
