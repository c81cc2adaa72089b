package intake

import (
	"context"
	"fmt"

	"openrequests/internal/requests/service"
	apperrors "openrequests/pkg/errors"
	"openrequests/pkg/kafka"
	"openrequests/pkg/logger"
	"openrequests/pkg/model"
)

// CommandCreate is the event-type header of a create command. Messages
// without the header are treated as create commands too.
const CommandCreate = "request.create"

// Handler turns create commands from the intake topic into requests.
// Delivery is at-least-once, so a redelivered command creates a second request.
type Handler struct {
	service service.RequestService
	log     *logger.Logger
}

func NewHandler(service service.RequestService, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.Component("intake"),
	}
}

// Handle is a kafka.MessageHandler. Rejected input is a business error and
// is committed without retry; undecodable payloads go to the DLQ; store
// failures are retried.
func (h *Handler) Handle(ctx context.Context, msg kafka.Message) error {
	if eventType := msg.GetEventType(); eventType != "" && eventType != CommandCreate {
		return kafka.NewBusinessError("unsupported command "+eventType, nil)
	}

	var input model.CreateRequestInput
	if err := msg.DecodeValue(&input); err != nil {
		return err
	}

	request, err := h.service.Create(ctx, &input)
	if err != nil {
		return classify(err)
	}

	h.log.Info("Request created from intake",
		"id", request.ID,
		"patient_id", request.PatientID,
		"event_id", msg.GetEventID(),
		"correlation_id", msg.GetCorrelationID(),
	)
	return nil
}

func classify(err error) error {
	appErr := apperrors.AsAppError(err)
	if appErr == nil {
		return kafka.NewTransientError("create failed", err)
	}

	switch appErr.Code {
	case apperrors.CodeValidation, apperrors.CodeInvalidInput:
		return kafka.NewBusinessError("request rejected", err)
	case apperrors.CodeInternal, apperrors.CodeUnavailable:
		return kafka.NewTransientError("create failed", err)
	}
	return kafka.NewPermanentError(fmt.Sprintf("create failed with %s", appErr.Code), err)
}
