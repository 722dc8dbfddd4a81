package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/clinicdesk/internal/api"
	"github.com/nhle/clinicdesk/internal/model"
)

// Per-item validation messages.
const (
	InvalidTemplateMessage = "Invalid template ID"
	InvalidPatientMessage  = "Invalid patient ID"
	NoPatientsMessage      = "No patients selected"
)

// SendRequest sends one template to several patients. IDs are strings
// because they come straight from form fields.
type SendRequest struct {
	PatientIDs    []string
	TemplateID    string
	CustomMessage string
}

// SendItem is the outcome for one patient.
type SendItem struct {
	PatientID    string
	Success      bool
	Notification *model.Notification
	Err          error
}

// ErrorMessage returns the user-facing failure text for the item.
func (i SendItem) ErrorMessage() string {
	return api.Message(i.Err)
}

// SendSummary aggregates per-patient outcomes in input order.
type SendSummary struct {
	SuccessCount int
	FailureCount int
	Items        []SendItem
}

type sendBody struct {
	CustomMessage string `json:"customMessage,omitempty"`
}

// Send posts the template to every patient, one request per patient.
// Each outcome is captured independently; the result is OK when at
// least one send succeeded, so partial success is reported as success
// with FailureCount > 0.
func (s *Service) Send(ctx context.Context, req SendRequest, doctorID int64) api.Result[SendSummary] {
	if len(req.PatientIDs) == 0 {
		return api.Failure(SendSummary{}, api.NewValidationError("patientIds", NoPatientsMessage))
	}

	items := make([]SendItem, len(req.PatientIDs))
	templateID, templateErr := strconv.ParseInt(strings.TrimSpace(req.TemplateID), 10, 64)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, rawID := range req.PatientIDs {
		items[i].PatientID = rawID
		if templateErr != nil {
			items[i].Err = api.NewValidationError("templateId", InvalidTemplateMessage)
			continue
		}
		patientID, err := strconv.ParseInt(strings.TrimSpace(rawID), 10, 64)
		if err != nil {
			items[i].Err = api.NewValidationError("patientId", InvalidPatientMessage)
			continue
		}

		g.Go(func() error {
			// Failures are recorded per item and never cancel siblings.
			n, err := s.sendOne(gctx, doctorID, patientID, templateID, req.CustomMessage)
			items[i].Notification = n
			items[i].Err = err
			items[i].Success = err == nil
			return nil
		})
	}
	_ = g.Wait()

	summary := SendSummary{Items: items}
	var firstErr error
	for _, item := range items {
		if item.Success {
			summary.SuccessCount++
			continue
		}
		summary.FailureCount++
		if firstErr == nil {
			firstErr = item.Err
		}
	}

	s.logger.Info("notifications sent",
		zap.Int64("doctor_id", doctorID),
		zap.Int("success", summary.SuccessCount),
		zap.Int("failure", summary.FailureCount),
	)

	if summary.SuccessCount == 0 {
		return api.Result[SendSummary]{Data: summary, Err: firstErr, Message: api.Message(firstErr)}
	}
	msg := fmt.Sprintf("Notification sent to %d patient(s)", summary.SuccessCount)
	if summary.FailureCount > 0 {
		msg = fmt.Sprintf("%s, %d failed", msg, summary.FailureCount)
	}
	return api.OK(summary, msg)
}

func (s *Service) sendOne(ctx context.Context, doctorID, patientID, templateID int64, custom string) (*model.Notification, error) {
	query := doctorQuery(doctorID)
	query.Set("patientId", strconv.FormatInt(patientID, 10))
	query.Set("templateId", strconv.FormatInt(templateID, 10))

	var body interface{}
	if custom != "" {
		body = sendBody{CustomMessage: custom}
	}

	var raw json.RawMessage
	if err := s.client.Post(ctx, basePath+"/doctor/send", query, body, &raw); err != nil {
		s.logger.Warn("send failed", zap.Int64("patient_id", patientID), zap.Error(err))
		return nil, err
	}

	// The echo is informational; an unreadable body still counts as sent.
	rn, err := api.DecodeObject[rawNotification](raw)
	if err != nil || (rn.ID == nil && rn.NotificationID == nil) {
		return nil, nil
	}
	n := rn.normalize()
	return &n, nil
}

// FormatIDs converts numeric patient ids to SendRequest form.
func FormatIDs(ids []int64) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = strconv.FormatInt(id, 10)
	}
	return out
}
