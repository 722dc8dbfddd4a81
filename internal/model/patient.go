package model

import "strings"

// Patient is the canonical patient shape used by the UI, whatever
// field names the backend used.
type Patient struct {
	UserID    int64  `json:"userId"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

// DisplayName joins first and last name.
func (p Patient) DisplayName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// UnknownPatientName is rendered when a notification references a
// patient that is not in the loaded patient list.
const UnknownPatientName = "Unknown Patient"

// PatientDirectory resolves patient ids to display names.
type PatientDirectory map[int64]Patient

// NewPatientDirectory indexes patients by id.
func NewPatientDirectory(patients []Patient) PatientDirectory {
	dir := make(PatientDirectory, len(patients))
	for _, p := range patients {
		dir[p.UserID] = p
	}
	return dir
}

// NameFor returns the display name for the notification's patient,
// falling back to the name embedded in the notification and finally to
// UnknownPatientName.
func (d PatientDirectory) NameFor(n Notification) string {
	if n.PatientID != nil {
		if p, ok := d[*n.PatientID]; ok {
			if name := p.DisplayName(); name != "" {
				return name
			}
		}
	}
	if n.PatientName != "" {
		return n.PatientName
	}
	return UnknownPatientName
}
