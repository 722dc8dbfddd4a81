package notify

import (
	"go.uber.org/zap"

	"github.com/nhle/clinicdesk/internal/model"
)

// Fallbacks for patient fields the backend left out.
const (
	FallbackFirstName = "Unknown"
	FallbackLastName  = "Patient"
	FallbackEmail     = "No email"
)

// PatientV1 is the user-shaped patient record.
type PatientV1 struct {
	UserID    *int64  `json:"userId"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Email     *string `json:"email"`
}

// PatientV2 is the appointment-shaped patient record.
type PatientV2 struct {
	PatientID    *int64  `json:"patientId"`
	PatientName  *string `json:"patientName"`
	PatientEmail *string `json:"patientEmail"`
}

// RawPatient is a patient as returned by patients-with-appointments.
// Either field set may be present, or a mix of both.
type RawPatient struct {
	PatientV1
	PatientV2
}

// AdaptPatient maps a raw record onto model.Patient. V1 fields win over
// V2 fields, and fallbacks fill whatever neither provides. An empty string
// counts as absent. missing lists the canonical fields that had to fall
// back.
func AdaptPatient(raw RawPatient) (p model.Patient, missing []string) {
	switch {
	case raw.UserID != nil:
		p.UserID = *raw.UserID
	case raw.PatientID != nil:
		p.UserID = *raw.PatientID
	default:
		missing = append(missing, "userId")
	}

	if v, ok := firstNonEmpty(raw.FirstName, raw.PatientName); ok {
		p.FirstName = v
	} else {
		p.FirstName = FallbackFirstName
		missing = append(missing, "firstName")
	}

	if v, ok := firstNonEmpty(raw.LastName); ok {
		p.LastName = v
	} else {
		p.LastName = FallbackLastName
		missing = append(missing, "lastName")
	}

	if v, ok := firstNonEmpty(raw.Email, raw.PatientEmail); ok {
		p.Email = v
	} else {
		p.Email = FallbackEmail
		missing = append(missing, "email")
	}
	return p, missing
}

func firstNonEmpty(values ...*string) (string, bool) {
	for _, v := range values {
		if v != nil && *v != "" {
			return *v, true
		}
	}
	return "", false
}

// adaptPatients converts a list, logging one warning per incomplete record.
func adaptPatients(raws []RawPatient, logger *zap.Logger) []model.Patient {
	out := make([]model.Patient, 0, len(raws))
	for i, raw := range raws {
		p, missing := AdaptPatient(raw)
		if len(missing) > 0 {
			logger.Warn("patient record missing fields",
				zap.Int("index", i),
				zap.Int64("patient_id", p.UserID),
				zap.Strings("missing", missing),
			)
		}
		out = append(out, p)
	}
	return out
}
