package notify

import (
	"strings"

	"github.com/nhle/clinicdesk/internal/model"
)

// rawNotification accepts the field-name variants of the notification
// endpoints.
type rawNotification struct {
	ID             *int64          `json:"id"`
	NotificationID *int64          `json:"notificationId"`
	Title          string          `json:"title"`
	Subject        string          `json:"subject"`
	Message        string          `json:"message"`
	Content        string          `json:"content"`
	Status         string          `json:"status"`
	IsRead         *bool           `json:"isRead"`
	Read           *bool           `json:"read"`
	Priority       string          `json:"priority"`
	CreatedAt      model.Timestamp `json:"createdAt"`
	SentAt         model.Timestamp `json:"sentAt"`
	ScheduledAt    model.Timestamp `json:"scheduledAt"`
	PatientID      *int64          `json:"patientId"`
	PatientName    string          `json:"patientName"`
	DoctorID       *int64          `json:"doctorId"`
}

func (r rawNotification) normalize() model.Notification {
	n := model.Notification{
		Title:       firstString(r.Title, r.Subject),
		Message:     firstString(r.Message, r.Content),
		Status:      model.NotificationStatus(strings.ToUpper(r.Status)),
		Priority:    model.Priority(strings.ToUpper(r.Priority)),
		CreatedAt:   r.CreatedAt.Time,
		SentAt:      r.SentAt.Ptr(),
		ScheduledAt: r.ScheduledAt.Ptr(),
		PatientID:   r.PatientID,
		PatientName: r.PatientName,
		DoctorID:    r.DoctorID,
	}

	switch {
	case r.NotificationID != nil:
		n.ID = *r.NotificationID
	case r.ID != nil:
		n.ID = *r.ID
	}

	// A read flag always wins; status is the single source of truth after this.
	if (r.IsRead != nil && *r.IsRead) || (r.Read != nil && *r.Read) {
		n.Status = model.StatusRead
	}
	if !n.Status.Valid() {
		n.Status = model.StatusSent
	}
	if !n.Priority.Valid() {
		n.Priority = model.PriorityMedium
	}
	if !r.CreatedAt.Valid && n.SentAt != nil {
		n.CreatedAt = *n.SentAt
	}
	return n
}

func normalizeNotifications(raws []rawNotification) []model.Notification {
	out := make([]model.Notification, 0, len(raws))
	for _, r := range raws {
		out = append(out, r.normalize())
	}
	return out
}

// rawTemplate accepts templateId or id.
type rawTemplate struct {
	TemplateID *int64 `json:"templateId"`
	ID         *int64 `json:"id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	Subject    string `json:"subject"`
	Content    string `json:"content"`
	Priority   string `json:"priority"`
	IsActive   *bool  `json:"isActive"`
}

func (r rawTemplate) normalize() model.Template {
	t := model.Template{
		Name:     r.Name,
		Type:     r.Type,
		Subject:  r.Subject,
		Content:  r.Content,
		Priority: model.Priority(strings.ToUpper(r.Priority)),
		IsActive: r.IsActive == nil || *r.IsActive,
	}
	switch {
	case r.TemplateID != nil:
		t.ID = *r.TemplateID
	case r.ID != nil:
		t.ID = *r.ID
	}
	if !t.Priority.Valid() {
		t.Priority = model.PriorityMedium
	}
	return t
}

func firstString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
