package model

import "time"

// Role determines which dashboard a user sees.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleDoctor   Role = "DOCTOR"
	RoleCustomer Role = "CUSTOMER"
	RoleManager  Role = "MANAGER"
	RoleStaff    Role = "STAFF"
)

// User is the authenticated account returned by /auth/me.
type User struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Role     Role   `json:"role"`
}

// DisplayName returns the full name, or the username if it is empty.
func (u User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

// Credentials is the login request body.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Registration is the register request body.
type Registration struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	FullName    string `json:"fullName"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Gender      string `json:"gender,omitempty"`
	DateOfBirth string `json:"dateOfBirth,omitempty"`
}

// PrivacySettings are the patient-controlled sharing preferences.
type PrivacySettings struct {
	ShareMedicalData     bool `json:"shareMedicalData"`
	AnonymousMode        bool `json:"anonymousMode"`
	ReceiveNotifications bool `json:"receiveNotifications"`
	ShowFullName         bool `json:"showFullName"`
}

// SessionStatus is the server's view of the current session.
type SessionStatus struct {
	IsActive         bool
	RemainingSeconds int
	ExpiresAt        time.Time
}

// Remaining returns the remaining session time as a duration.
func (s SessionStatus) Remaining() time.Duration {
	return time.Duration(s.RemainingSeconds) * time.Second
}
