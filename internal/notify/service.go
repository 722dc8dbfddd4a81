// Package notify wraps the notification endpoints and normalizes their
// responses into the model types the UI renders.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/nhle/clinicdesk/internal/api"
	"github.com/nhle/clinicdesk/internal/model"
)

const basePath = "/v1/notifications"

// Service exposes the notification, template and send endpoints. Every
// operation returns an api.Result; none of them return bare errors or
// panic on malformed responses.
type Service struct {
	client      *api.Client
	concurrency int
	logger      *zap.Logger
}

// NewService creates a notification service. concurrency bounds the
// number of in-flight send requests.
func NewService(client *api.Client, concurrency int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Service{
		client:      client,
		concurrency: concurrency,
		logger:      logger.Named("notify"),
	}
}

func doctorQuery(doctorID int64) url.Values {
	return url.Values{"doctorId": {strconv.FormatInt(doctorID, 10)}}
}

func decodeFailure(err error) *api.ServerError {
	return &api.ServerError{Status: 200, Message: api.GenericErrorMessage, Err: err}
}

// PatientsWithAppointments returns the doctor's patients. On failure the
// data is an empty list.
func (s *Service) PatientsWithAppointments(ctx context.Context, doctorID int64) api.Result[[]model.Patient] {
	var raw json.RawMessage
	if err := s.client.Get(ctx, basePath+"/doctor/patients-with-appointments", doctorQuery(doctorID), &raw); err != nil {
		s.logger.Warn("fetching patients", zap.Int64("doctor_id", doctorID), zap.Error(err))
		return api.Failure([]model.Patient{}, err)
	}

	raws, err := api.DecodeList[RawPatient](raw)
	if err != nil {
		s.logger.Error("decoding patients", zap.Error(err))
		return api.Failure([]model.Patient{}, decodeFailure(err))
	}
	return api.OK(adaptPatients(raws, s.logger), "")
}

// Templates lists the notification templates.
func (s *Service) Templates(ctx context.Context) api.Result[[]model.Template] {
	var raw json.RawMessage
	if err := s.client.Get(ctx, basePath+"/templates", nil, &raw); err != nil {
		return api.Failure([]model.Template{}, err)
	}

	raws, err := api.DecodeList[rawTemplate](raw)
	if err != nil {
		return api.Failure([]model.Template{}, decodeFailure(err))
	}
	out := make([]model.Template, 0, len(raws))
	for _, r := range raws {
		out = append(out, r.normalize())
	}
	return api.OK(out, "")
}

// Template fetches a single template.
func (s *Service) Template(ctx context.Context, id int64) api.Result[model.Template] {
	var raw json.RawMessage
	if err := s.client.Get(ctx, templatePath(id), nil, &raw); err != nil {
		return api.Failure(model.Template{}, err)
	}
	return s.decodeTemplate(raw, "")
}

// CreateTemplate creates a template.
func (s *Service) CreateTemplate(ctx context.Context, in model.TemplateInput) api.Result[model.Template] {
	if err := validateTemplate(in); err != nil {
		return api.Failure(model.Template{}, err)
	}

	var raw json.RawMessage
	if err := s.client.Post(ctx, basePath+"/templates", nil, in, &raw); err != nil {
		return api.Failure(model.Template{}, err)
	}
	s.logger.Info("template created", zap.String("name", in.Name))
	return s.decodeTemplate(raw, "Template created")
}

// UpdateTemplate replaces a template.
func (s *Service) UpdateTemplate(ctx context.Context, id int64, in model.TemplateInput) api.Result[model.Template] {
	if err := validateTemplate(in); err != nil {
		return api.Failure(model.Template{}, err)
	}

	var raw json.RawMessage
	if err := s.client.Put(ctx, templatePath(id), in, &raw); err != nil {
		return api.Failure(model.Template{}, err)
	}
	res := s.decodeTemplate(raw, "Template updated")
	if res.OK() && res.Data.ID == 0 {
		res.Data.ID = id
	}
	return res
}

// DeleteTemplate deletes a template.
func (s *Service) DeleteTemplate(ctx context.Context, id int64) api.Result[struct{}] {
	if err := s.client.Delete(ctx, templatePath(id), nil); err != nil {
		return api.Failure(struct{}{}, err)
	}
	s.logger.Info("template deleted", zap.Int64("template_id", id))
	return api.OK(struct{}{}, "Template deleted")
}

func templatePath(id int64) string {
	return fmt.Sprintf("%s/templates/%d", basePath, id)
}

func validateTemplate(in model.TemplateInput) error {
	switch {
	case in.Name == "":
		return api.NewValidationError("name", "Template name is required")
	case in.Content == "":
		return api.NewValidationError("content", "Template content is required")
	case in.Priority != "" && !in.Priority.Valid():
		return api.NewValidationError("priority", "Invalid priority")
	}
	return nil
}

func (s *Service) decodeTemplate(raw json.RawMessage, msg string) api.Result[model.Template] {
	rt, err := api.DecodeObject[rawTemplate](raw)
	if err != nil {
		return api.Failure(model.Template{}, decodeFailure(err))
	}
	return api.OK(rt.normalize(), msg)
}

// History returns the notifications a doctor has sent, optionally
// scoped to one patient.
func (s *Service) History(ctx context.Context, doctorID int64, patientID *int64) api.Result[[]model.Notification] {
	path := basePath + "/doctor/history"
	if patientID != nil {
		path = fmt.Sprintf("%s/%d", path, *patientID)
	}
	return s.fetchNotifications(ctx, path, doctorQuery(doctorID))
}

// Unsend retracts a sent notification.
func (s *Service) Unsend(ctx context.Context, notificationID, doctorID int64) api.Result[struct{}] {
	path := fmt.Sprintf("%s/doctor/%d/unsend", basePath, notificationID)
	if err := s.client.Post(ctx, path, doctorQuery(doctorID), nil, nil); err != nil {
		return api.Failure(struct{}{}, err)
	}
	s.logger.Info("notification unsent", zap.Int64("notification_id", notificationID))
	return api.OK(struct{}{}, "Notification unsent")
}

// BulkOperation names an operation accepted by the bulk endpoint.
type BulkOperation string

const (
	BulkMarkRead BulkOperation = "mark-read"
	BulkDelete   BulkOperation = "delete"
	BulkArchive  BulkOperation = "archive"
)

type bulkRequest struct {
	NotificationIDs []int64 `json:"notificationIds"`
}

// Bulk applies op to every id in one request.
func (s *Service) Bulk(ctx context.Context, op BulkOperation, ids []int64) api.Result[struct{}] {
	if op == "" {
		return api.Failure(struct{}{}, api.NewValidationError("operation", "Operation is required"))
	}
	if len(ids) == 0 {
		return api.Failure(struct{}{}, api.NewValidationError("ids", "No notifications selected"))
	}

	path := basePath + "/bulk/" + url.PathEscape(string(op))
	if err := s.client.Post(ctx, path, nil, bulkRequest{NotificationIDs: ids}, nil); err != nil {
		return api.Failure(struct{}{}, err)
	}
	return api.OK(struct{}{}, fmt.Sprintf("%d notifications updated", len(ids)))
}

// UserNotifications returns the signed-in user's notifications.
func (s *Service) UserNotifications(ctx context.Context) api.Result[[]model.Notification] {
	return s.fetchNotifications(ctx, basePath, nil)
}

func (s *Service) fetchNotifications(ctx context.Context, path string, query url.Values) api.Result[[]model.Notification] {
	var raw json.RawMessage
	if err := s.client.Get(ctx, path, query, &raw); err != nil {
		return api.Failure([]model.Notification{}, err)
	}

	raws, err := api.DecodeList[rawNotification](raw)
	if err != nil {
		s.logger.Error("decoding notifications", zap.String("path", path), zap.Error(err))
		return api.Failure([]model.Notification{}, decodeFailure(err))
	}
	return api.OK(normalizeNotifications(raws), "")
}

// MarkAsRead marks one notification read.
func (s *Service) MarkAsRead(ctx context.Context, id int64) api.Result[struct{}] {
	path := fmt.Sprintf("%s/%d/read", basePath, id)
	if err := s.client.Post(ctx, path, nil, nil, nil); err != nil {
		return api.Failure(struct{}{}, err)
	}
	return api.OK(struct{}{}, "")
}

// MarkAllAsRead marks every notification of the user read.
func (s *Service) MarkAllAsRead(ctx context.Context) api.Result[struct{}] {
	if err := s.client.Post(ctx, basePath+"/read-all", nil, nil, nil); err != nil {
		return api.Failure(struct{}{}, err)
	}
	return api.OK(struct{}{}, "All notifications marked as read")
}
