package intake

import (
	"context"
	"errors"
	"testing"

	"openrequests/internal/requests/service"
	apperrors "openrequests/pkg/errors"
	"openrequests/pkg/kafka"
	"openrequests/pkg/logger"
	"openrequests/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRequestService struct {
	service.RequestService
	createFunc func(ctx context.Context, input *model.CreateRequestInput) (*model.Request, error)
	calls      int
}

func (m *mockRequestService) Create(ctx context.Context, input *model.CreateRequestInput) (*model.Request, error) {
	m.calls++
	return m.createFunc(ctx, input)
}

func createMessage(t *testing.T, eventType string, value any) kafka.Message {
	t.Helper()
	builder := kafka.NewMessage().WithKey("patient-1").WithValue(value)
	if eventType != "" {
		builder = builder.WithEventType(eventType)
	}
	msg, err := builder.Build()
	require.NoError(t, err)
	return msg
}

var validInput = model.CreateRequestInput{
	PatientID:          "patient-1",
	SessionType:        "physiotherapy",
	PreferredTimeSlots: []string{"12:00", "15:00"},
	Location:           "haifa",
}

func TestHandle_CreatesRequest(t *testing.T) {
	var got *model.CreateRequestInput
	svc := &mockRequestService{createFunc: func(_ context.Context, input *model.CreateRequestInput) (*model.Request, error) {
		got = input
		return &model.Request{ID: "r1", PatientID: input.PatientID, Status: model.StatusSearching}, nil
	}}
	h := NewHandler(svc, logger.Discard())

	err := h.Handle(context.Background(), createMessage(t, CommandCreate, validInput))

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, validInput.PreferredTimeSlots, got.PreferredTimeSlots)
}

func TestHandle_MissingEventTypeIsCreate(t *testing.T) {
	svc := &mockRequestService{createFunc: func(_ context.Context, input *model.CreateRequestInput) (*model.Request, error) {
		return &model.Request{ID: "r1"}, nil
	}}
	h := NewHandler(svc, logger.Discard())

	require.NoError(t, h.Handle(context.Background(), createMessage(t, "", validInput)))
	assert.Equal(t, 1, svc.calls)
}

func TestHandle_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		eventType string
		value     []byte
		createErr error
		wantType  kafka.ErrorType
		wantCalls int
	}{
		{"unsupported command", "request.delete", nil, nil, kafka.ErrorTypeBusiness, 0},
		{"undecodable payload", CommandCreate, []byte("{broken"), nil, kafka.ErrorTypePermanent, 0},
		{"validation failure", CommandCreate, nil, apperrors.Validation("Request validation failed", nil), kafka.ErrorTypeBusiness, 1},
		{"store failure", CommandCreate, nil, apperrors.Internal("Failed to create request", errors.New("connection reset")), kafka.ErrorTypeTransient, 1},
		{"plain error", CommandCreate, nil, errors.New("boom"), kafka.ErrorTypeTransient, 1},
		{"conflict", CommandCreate, nil, apperrors.Conflict("changed"), kafka.ErrorTypePermanent, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockRequestService{createFunc: func(context.Context, *model.CreateRequestInput) (*model.Request, error) {
				return nil, tt.createErr
			}}
			h := NewHandler(svc, logger.Discard())

			msg := createMessage(t, tt.eventType, validInput)
			if tt.value != nil {
				msg.Value = tt.value
			}

			err := h.Handle(context.Background(), msg)

			require.Error(t, err)
			assert.Equal(t, tt.wantType, kafka.ClassifyError(err))
			assert.Equal(t, tt.wantCalls, svc.calls)
		})
	}
}
