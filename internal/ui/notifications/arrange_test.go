package notifications

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/clinicdesk/internal/model"
)

var now = time.Date(2026, 10, 15, 9, 0, 0, 0, time.Local)

func at(id int64, t time.Time, status model.NotificationStatus) model.Notification {
	return model.Notification{ID: id, Title: "n", Status: status, CreatedAt: t}
}

func ids(items []model.Notification) []int64 {
	out := make([]int64, len(items))
	for i, n := range items {
		out[i] = n.ID
	}
	return out
}

func labels(groups []Group) []string {
	out := make([]string, len(groups))
	for i, g := range groups {
		out[i] = g.Label
	}
	return out
}

func TestDayLabelUsesLocalMidnight(t *testing.T) {
	midnight := time.Date(2026, 10, 15, 0, 0, 0, 0, time.Local)

	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{"this morning", now.Add(-time.Hour), GroupToday},
		{"exactly midnight", midnight, GroupToday},
		{"one second before midnight", midnight.Add(-time.Second), GroupYesterday},
		{"start of yesterday", midnight.AddDate(0, 0, -1), GroupYesterday},
		{"before yesterday", midnight.AddDate(0, 0, -1).Add(-time.Second), GroupEarlier},
		{"last month", now.AddDate(0, -1, 0), GroupEarlier},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DayLabel(tt.t, now))
		})
	}
}

func TestArrangeGroupsAndSorts(t *testing.T) {
	items := []model.Notification{
		at(1, now.AddDate(0, 0, -3), model.StatusSent),
		at(2, now.Add(-time.Hour), model.StatusRead),
		at(3, now.AddDate(0, 0, -1), model.StatusDelivered),
		at(4, now.Add(-2*time.Hour), model.StatusSent),
	}

	groups := Arrange(items, FilterAll, NewestFirst, now)
	assert.Equal(t, []string{GroupToday, GroupYesterday, GroupEarlier}, labels(groups))
	assert.Equal(t, []int64{2, 4, 3, 1}, ids(Flatten(groups)))

	groups = Arrange(items, FilterAll, OldestFirst, now)
	assert.Equal(t, []string{GroupEarlier, GroupYesterday, GroupToday}, labels(groups))
	assert.Equal(t, []int64{1, 3, 4, 2}, ids(Flatten(groups)))

	// The input order is untouched.
	assert.Equal(t, []int64{1, 2, 3, 4}, ids(items))
}

func TestArrangeFiltersByReadState(t *testing.T) {
	items := []model.Notification{
		at(1, now.Add(-time.Minute), model.StatusRead),
		at(2, now.Add(-2*time.Minute), model.StatusSent),
		at(3, now.Add(-3*time.Minute), model.StatusPending),
	}

	assert.Equal(t, []int64{2, 3}, ids(Flatten(Arrange(items, FilterUnread, NewestFirst, now))))
	assert.Equal(t, []int64{1}, ids(Flatten(Arrange(items, FilterRead, NewestFirst, now))))
	assert.Empty(t, Arrange(nil, FilterAll, NewestFirst, now))
}

func TestReadFilterCycles(t *testing.T) {
	f := FilterAll
	seen := []string{}
	for i := 0; i < 4; i++ {
		seen = append(seen, f.String())
		f = f.Next()
	}
	assert.Equal(t, []string{"all", "unread", "read", "all"}, seen)
	assert.Equal(t, OldestFirst, NewestFirst.Toggle())
}

func TestRenderItemResolvesPatientName(t *testing.T) {
	known := int64(2)
	missing := int64(99)
	dir := model.NewPatientDirectory([]model.Patient{{UserID: 2, FirstName: "John", LastName: "Doe"}})

	n := at(1, now, model.StatusSent)
	n.PatientID = &known
	assert.Contains(t, RenderItem(n, dir, false, now, 80), "John Doe")

	n.PatientID = &missing
	assert.Contains(t, RenderItem(n, dir, false, now, 80), model.UnknownPatientName)

	n.PatientID = nil
	require.Contains(t, RenderItem(n, dir, true, now, 80), model.UnknownPatientName)
}
