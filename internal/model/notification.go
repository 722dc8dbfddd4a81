package model

import "time"

// NotificationStatus is the delivery/read state of a notification.
type NotificationStatus string

const (
	StatusPending   NotificationStatus = "PENDING"
	StatusSent      NotificationStatus = "SENT"
	StatusDelivered NotificationStatus = "DELIVERED"
	StatusFailed    NotificationStatus = "FAILED"
	StatusCancelled NotificationStatus = "CANCELLED"
	StatusRead      NotificationStatus = "READ"
)

// Valid reports whether s is one of the known statuses.
func (s NotificationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusSent, StatusDelivered,
		StatusFailed, StatusCancelled, StatusRead:
		return true
	}
	return false
}

// Priority is the urgency of a notification or template.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Notification is the client's copy of a server-owned notification.
type Notification struct {
	// ID is the server-assigned identity. It never changes.
	ID int64 `json:"notificationId"`

	Title   string `json:"title"`
	Message string `json:"message"`

	Status   NotificationStatus `json:"status"`
	Priority Priority           `json:"priority"`

	CreatedAt   time.Time  `json:"createdAt"`
	SentAt      *time.Time `json:"sentAt,omitempty"`
	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`

	// PatientID may be absent or point at a patient the client does not
	// know about; renderers fall back to "Unknown Patient".
	PatientID   *int64 `json:"patientId,omitempty"`
	PatientName string `json:"patientName,omitempty"`
	DoctorID    *int64 `json:"doctorId,omitempty"`
}

// IsRead is derived from Status; there is no separate read flag.
func (n Notification) IsRead() bool {
	return n.Status == StatusRead
}

// CanUnsend reports whether the notification may still be retracted.
// This is a client-side guard only and must not be treated as
// authorization.
func (n Notification) CanUnsend() bool {
	return n.Status != StatusCancelled && n.Status != StatusRead
}

// MarkRead returns a copy of n with its status set to READ.
func (n Notification) MarkRead() Notification {
	n.Status = StatusRead
	return n
}

// CountUnread returns the number of notifications that are not READ.
func CountUnread(items []Notification) int {
	count := 0
	for _, n := range items {
		if !n.IsRead() {
			count++
		}
	}
	return count
}

// CloneNotifications returns a deep copy of items so optimistic
// mutations never alias a snapshot.
func CloneNotifications(items []Notification) []Notification {
	if items == nil {
		return nil
	}
	out := make([]Notification, len(items))
	for i, n := range items {
		out[i] = n
		out[i].SentAt = cloneTime(n.SentAt)
		out[i].ScheduledAt = cloneTime(n.ScheduledAt)
		out[i].PatientID = cloneInt64(n.PatientID)
		out[i].DoctorID = cloneInt64(n.DoctorID)
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneInt64(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
