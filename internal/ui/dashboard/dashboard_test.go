package dashboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/clinicdesk/internal/model"
)

var now = time.Date(2024, 3, 2, 12, 0, 0, 0, time.Local)

func TestRecentPutsUnreadFirst(t *testing.T) {
	items := []model.Notification{
		{ID: 1, Status: model.StatusRead, CreatedAt: now.Add(-time.Minute)},
		{ID: 2, Status: model.StatusSent, CreatedAt: now.Add(-time.Hour)},
		{ID: 3, Status: model.StatusSent, CreatedAt: now.Add(-2 * time.Minute)},
	}

	got := Recent(items, 2)
	assert.Len(t, got, 2)
	assert.Equal(t, int64(3), got[0].ID)
	assert.Equal(t, int64(2), got[1].ID)
	assert.Equal(t, int64(1), items[0].ID, "input is not reordered")
}

func TestRenderByRole(t *testing.T) {
	doctor := Render(Summary{
		User:         model.User{FullName: "Dr. Smith", Role: model.RoleDoctor},
		PatientCount: 4,
		Now:          now,
	}, 100)
	assert.Contains(t, doctor, "Welcome, Dr. Smith")
	assert.Contains(t, doctor, "Patients with appointments")
	assert.Contains(t, doctor, "n send")
	assert.Contains(t, doctor, "Nothing new.")

	patient := Render(Summary{
		User: model.User{Username: "ana", Role: model.RoleCustomer},
		Notifications: []model.Notification{
			{ID: 1, Title: "Appointment tomorrow", Status: model.StatusDelivered, CreatedAt: now.Add(-5 * time.Minute)},
		},
		Now: now,
	}, 100)
	assert.Contains(t, patient, "Welcome, ana")
	assert.Contains(t, patient, "Appointment tomorrow")
	assert.Contains(t, patient, "5m ago")
	assert.Contains(t, patient, "p privacy")
	assert.NotContains(t, patient, "Patients with appointments")
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Doctor Dashboard", Title(model.RoleDoctor))
	assert.Equal(t, "Staff Dashboard", Title(model.RoleStaff))
	assert.Equal(t, "Dashboard", Title(""))
}
