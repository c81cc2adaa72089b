package service

import (
	"context"
	"time"

	"openrequests/internal/requests/events"
	"openrequests/internal/requests/lifecycle"
	"openrequests/internal/requests/repository"
	"openrequests/internal/requests/validator"
	"openrequests/pkg/config"
	apperrors "openrequests/pkg/errors"
	"openrequests/pkg/model"
	"openrequests/pkg/sanitizer"

	"github.com/google/uuid"
)

type RequestService interface {
	Create(ctx context.Context, input *model.CreateRequestInput) (*model.Request, error)
	GetByID(ctx context.Context, id string) (*model.Request, error)
	Claim(ctx context.Context, id string, input *model.ClaimInput) (ClaimResult, error)
	Cancel(ctx context.Context, id string, input *model.CancelInput) (*model.Request, error)
	Complete(ctx context.Context, id string, input *model.CompleteInput) (*model.Request, error)
	ListOpen(ctx context.Context, limit int, offset int64) ([]*model.Request, error)
	ListByPatient(ctx context.Context, patientID string, limit int, offset int64) ([]*model.Request, error)
	ListByProvider(ctx context.Context, providerID string, limit int, offset int64) ([]*model.Request, error)
}

type requestService struct {
	store     repository.RequestStore
	claims    *ClaimCoordinator
	validator *validator.RequestValidator
	notifier  events.Notifier
	cfg       *config.Config
	now       func() time.Time
}

func NewRequestService(
	store repository.RequestStore,
	claims *ClaimCoordinator,
	validator *validator.RequestValidator,
	notifier events.Notifier,
	cfg *config.Config,
) RequestService {
	return &requestService{
		store:     store,
		claims:    claims,
		validator: validator,
		notifier:  notifier,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Create stores a new request in sent and broadcasts it to searching.
func (s *requestService) Create(ctx context.Context, input *model.CreateRequestInput) (*model.Request, error) {
	s.sanitize(input)
	if err := s.validator.ValidateCreate(input); err != nil {
		s.cfg.Log.Warn("Request validation failed", "error", err)
		return nil, apperrors.Validation("Request validation failed", map[string]any{"error": err.Error()})
	}

	createdAt := s.now().UTC().Truncate(time.Millisecond)
	request := &model.Request{
		ID:                 uuid.NewString(),
		PatientID:          input.PatientID,
		SessionType:        input.SessionType,
		PreferredTimeSlots: input.PreferredTimeSlots,
		Location:           input.Location,
		Notes:              input.Notes,
		Status:             model.StatusSent,
		CreatedAt:          createdAt,
		ExpiresAt:          createdAt.Add(s.cfg.RequestTTL),
		Version:            1,
	}

	if err := s.store.Create(ctx, request); err != nil {
		s.cfg.Log.Error("Failed to create request", "error", err)
		return nil, apperrors.Internal("Failed to create request", err)
	}
	s.publish(ctx, events.FromRequest(model.EventCreated, request))

	s.cfg.Log.Info("Request created successfully",
		"id", request.ID,
		"patient_id", request.PatientID,
		"session_type", request.SessionType,
		"expires_at", request.ExpiresAt,
	)

	broadcast, err := s.transition(ctx, request.ID, lifecycle.EventBroadcast, "")
	if err != nil {
		// The patient may already have cancelled; the stored request is still valid.
		s.cfg.Log.Warn("Request broadcast skipped", "id", request.ID, "error", err)
		return s.GetByID(ctx, request.ID)
	}
	return broadcast, nil
}

func (s *requestService) GetByID(ctx context.Context, id string) (*model.Request, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Request ID cannot be empty")
	}

	request, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, toAppError(err, id, "retrieve")
	}
	return request, nil
}

func (s *requestService) Claim(ctx context.Context, id string, input *model.ClaimInput) (ClaimResult, error) {
	if id == "" {
		return ClaimResult{Outcome: OutcomeNotFound}, apperrors.InvalidInput("Request ID cannot be empty")
	}
	input.ProviderID = sanitizer.TrimAndNormalize(input.ProviderID)
	input.Slot = sanitizer.SanitizeTimeSlot(input.Slot)
	if err := s.validator.ValidateClaim(input); err != nil {
		return ClaimResult{Outcome: OutcomeInvalidState}, apperrors.Validation("Claim validation failed", map[string]any{"error": err.Error()})
	}

	result, err := s.claims.AttemptClaim(ctx, id, input.ProviderID, input.Slot)
	if err != nil {
		return result, toAppError(err, id, "claim")
	}
	return result, nil
}

func (s *requestService) Cancel(ctx context.Context, id string, input *model.CancelInput) (*model.Request, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Request ID cannot be empty")
	}
	input.PatientID = sanitizer.TrimAndNormalize(input.PatientID)
	if err := s.validator.ValidateCancel(input); err != nil {
		return nil, apperrors.Validation("Cancel validation failed", map[string]any{"error": err.Error()})
	}

	cancelled, err := s.transition(ctx, id, lifecycle.EventCancel, input.PatientID)
	if err != nil {
		s.cfg.Log.Info("Cancel rejected", "id", id, "patient_id", input.PatientID, "error", err)
		return nil, toAppError(err, id, "cancel")
	}
	return cancelled, nil
}

func (s *requestService) Complete(ctx context.Context, id string, input *model.CompleteInput) (*model.Request, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Request ID cannot be empty")
	}
	input.ProviderID = sanitizer.TrimAndNormalize(input.ProviderID)
	if err := s.validator.ValidateComplete(input); err != nil {
		return nil, apperrors.Validation("Complete validation failed", map[string]any{"error": err.Error()})
	}

	completed, err := s.transition(ctx, id, lifecycle.EventComplete, input.ProviderID)
	if err != nil {
		s.cfg.Log.Info("Complete rejected", "id", id, "provider_id", input.ProviderID, "error", err)
		return nil, toAppError(err, id, "complete")
	}
	return completed, nil
}

func (s *requestService) ListOpen(ctx context.Context, limit int, offset int64) ([]*model.Request, error) {
	requests, err := s.store.ListSearching(ctx, limit, offset)
	if err != nil {
		s.cfg.Log.Error("Failed to list open requests", "error", err)
		return nil, apperrors.Internal("Failed to list open requests", err)
	}
	return requests, nil
}

func (s *requestService) ListByPatient(ctx context.Context, patientID string, limit int, offset int64) ([]*model.Request, error) {
	if patientID == "" {
		return nil, apperrors.InvalidInput("Patient ID cannot be empty")
	}
	requests, err := s.store.ListByPatient(ctx, patientID, limit, offset)
	if err != nil {
		s.cfg.Log.Error("Failed to list patient requests", "patient_id", patientID, "error", err)
		return nil, apperrors.Internal("Failed to list requests", err)
	}
	return requests, nil
}

func (s *requestService) ListByProvider(ctx context.Context, providerID string, limit int, offset int64) ([]*model.Request, error) {
	if providerID == "" {
		return nil, apperrors.InvalidInput("Provider ID cannot be empty")
	}
	requests, err := s.store.ListByProvider(ctx, providerID, limit, offset)
	if err != nil {
		s.cfg.Log.Error("Failed to list provider requests", "provider_id", providerID, "error", err)
		return nil, apperrors.Internal("Failed to list requests", err)
	}
	return requests, nil
}

// --- Helpers ---

func (s *requestService) transition(ctx context.Context, id string, event lifecycle.Event, actor string) (*model.Request, error) {
	cmd := func() lifecycle.Command {
		return lifecycle.Command{Event: event, Actor: actor, Now: s.now()}
	}
	updated, _, err := casLoop(ctx, s.store, s.cfg.ClaimMaxRetries, transitionEvaluator(s.store, id, cmd))
	if err != nil {
		return nil, err
	}

	s.cfg.Log.Info("Request transitioned",
		"id", id,
		"event", event,
		"status", updated.Status,
		"version", updated.Version,
	)
	s.publish(ctx, events.FromRequest(events.TypeFor(updated.Status), updated))
	return updated, nil
}

// publish runs after the write is committed, detached from the caller's
// cancellation.
func (s *requestService) publish(ctx context.Context, event model.RequestEvent) {
	if err := s.notifier.Notify(context.WithoutCancel(ctx), event); err != nil {
		s.cfg.Log.Error("Failed to publish request event",
			"request_id", event.RequestID,
			"event", event.Type,
			"error", err,
		)
	}
}

func (s *requestService) sanitize(input *model.CreateRequestInput) {
	input.PatientID = sanitizer.TrimAndNormalize(input.PatientID)
	input.SessionType = sanitizer.SanitizeLabel(input.SessionType)
	input.Location = sanitizer.NormalizeLocation(input.Location)
	input.Notes = sanitizer.NormalizeNotes(input.Notes)
	input.PreferredTimeSlots = sanitizer.SanitizeTimeSlots(input.PreferredTimeSlots)
}
