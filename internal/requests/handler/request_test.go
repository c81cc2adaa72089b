package handler

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"openrequests/internal/requests/events"
	"openrequests/internal/requests/repository"
	"openrequests/internal/requests/service"
	"openrequests/internal/requests/validator"
	"openrequests/pkg/config"
	apperrors "openrequests/pkg/errors"
	httputil "openrequests/pkg/http"
	kafkamiddleware "openrequests/pkg/kafka/middleware"
	"openrequests/pkg/logger"
	"openrequests/pkg/model"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	router *httprouter.Router
	svc    service.RequestService
	store  repository.RequestStore
	broker *events.Broker
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithKeepAlive(t, time.Minute)
}

func newTestServerWithKeepAlive(t *testing.T, keepAlive time.Duration) *testServer {
	t.Helper()
	cfg := &config.Config{
		Log:             logger.Discard(),
		RequestTTL:      10 * time.Hour,
		ClaimMaxRetries: 3,
	}
	store := repository.NewMemoryRequestStore(nil)
	broker := events.NewBroker(16, cfg.Log)
	t.Cleanup(broker.Close)

	claims := service.NewClaimCoordinator(store, broker, cfg)
	svc := service.NewRequestService(store, claims, validator.NewRequestValidator(cfg.Log), broker, cfg)

	router := httprouter.New()
	stream := NewEventStream(svc, broker, keepAlive, cfg.Log)
	NewRequestHandler(svc, stream, cfg.Log).RegisterRoutes(router)
	NewHealthHandler(store, nil, cfg.Log).RegisterRoutes(router)

	return &testServer{router: router, svc: svc, store: store, broker: broker}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		payload, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func (s *testServer) create(t *testing.T, patientID string) *model.Request {
	t.Helper()
	rr := s.do(t, http.MethodPost, "/api/v1/requests", model.CreateRequestInput{
		PatientID:          patientID,
		SessionType:        "physiotherapy",
		PreferredTimeSlots: []string{"12:00", "15:00", "19:00"},
		Location:           "tel aviv",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decodeData[model.Request](t, rr)
}

func decodeData[T any](t *testing.T, rr *httptest.ResponseRecorder) *T {
	t.Helper()
	var envelope struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &envelope))
	return &envelope.Data
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) httputil.ErrorResponse {
	t.Helper()
	var body httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestCreate(t *testing.T) {
	s := newTestServer(t)

	created := s.create(t, "patient-1")

	assert.Equal(t, model.StatusSearching, created.Status)
	assert.EqualValues(t, 2, created.Version)
	assert.NotEmpty(t, created.ID)
}

func TestCreate_BadRequests(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantCode   string
	}{
		{"malformed json", "{not json", http.StatusBadRequest, ""},
		{"missing fields", model.CreateRequestInput{PatientID: "patient-1"}, http.StatusUnprocessableEntity, apperrors.CodeValidation},
		{"blank slots", model.CreateRequestInput{
			PatientID:          "patient-1",
			SessionType:        "physiotherapy",
			PreferredTimeSlots: []string{" ", ""},
			Location:           "tel aviv",
		}, http.StatusUnprocessableEntity, apperrors.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := s.do(t, http.MethodPost, "/api/v1/requests", tt.body)
			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rr).Code)
		})
	}
}

func TestGetByID(t *testing.T) {
	s := newTestServer(t)
	created := s.create(t, "patient-1")

	rr := s.do(t, http.MethodGet, "/api/v1/requests/id/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, created.ID, decodeData[model.Request](t, rr).ID)

	rr = s.do(t, http.MethodGet, "/api/v1/requests/id/6f1f4a3e-0000-4000-8000-000000000000", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apperrors.CodeNotFound, decodeError(t, rr).Code)

	rr = s.do(t, http.MethodGet, "/api/v1/requests/id/nope", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestClaim_FirstWinsSecondIsTaken(t *testing.T) {
	s := newTestServer(t)
	created := s.create(t, "patient-1")
	path := "/api/v1/requests/id/" + created.ID + "/claim"

	rr := s.do(t, http.MethodPost, path, model.ClaimInput{ProviderID: "prov-a", Slot: "15:00"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	result := decodeData[service.ClaimResult](t, rr)
	assert.Equal(t, service.OutcomeClaimed, result.Outcome)
	assert.Equal(t, "15:00", result.AcceptedSlot)
	assert.Equal(t, "prov-a", result.Request.ClaimedBy)

	rr = s.do(t, http.MethodPost, path, model.ClaimInput{ProviderID: "prov-b", Slot: "19:00"})
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apperrors.CodeAlreadyTaken, decodeError(t, rr).Code)

	rr = s.do(t, http.MethodPost, path, model.ClaimInput{ProviderID: "prov-a", Slot: "15:00"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, decodeData[service.ClaimResult](t, rr).Replayed)
}

func TestClaim_SlotNotOffered(t *testing.T) {
	s := newTestServer(t)
	created := s.create(t, "patient-1")

	for _, slot := range []string{"09:00", "noon"} {
		rr := s.do(t, http.MethodPost, "/api/v1/requests/id/"+created.ID+"/claim", model.ClaimInput{ProviderID: "prov-a", Slot: slot})

		assert.Equal(t, http.StatusConflict, rr.Code, slot)
		assert.Equal(t, apperrors.CodeInvalidState, decodeError(t, rr).Code, slot)
	}
}

func TestCancel(t *testing.T) {
	s := newTestServer(t)
	created := s.create(t, "patient-1")
	path := "/api/v1/requests/id/" + created.ID + "/cancel"

	rr := s.do(t, http.MethodPost, path, model.CancelInput{PatientID: "patient-2"})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = s.do(t, http.MethodPost, path, model.CancelInput{PatientID: "patient-1"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, model.StatusCancelled, decodeData[model.Request](t, rr).Status)

	rr = s.do(t, http.MethodPost, path, model.CancelInput{PatientID: "patient-1"})
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apperrors.CodeInvalidState, decodeError(t, rr).Code)
}

func TestComplete(t *testing.T) {
	s := newTestServer(t)
	created := s.create(t, "patient-1")
	base := "/api/v1/requests/id/" + created.ID

	rr := s.do(t, http.MethodPost, base+"/complete", model.CompleteInput{ProviderID: "prov-a"})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = s.do(t, http.MethodPost, base+"/claim", model.ClaimInput{ProviderID: "prov-a", Slot: "12:00"})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = s.do(t, http.MethodPost, base+"/complete", model.CompleteInput{ProviderID: "prov-a"})
	require.Equal(t, http.StatusOK, rr.Code)
	completed := decodeData[model.Request](t, rr)
	assert.Equal(t, model.StatusCompleted, completed.Status)
	assert.Equal(t, "prov-a", completed.ClaimedBy)
}

func TestLists(t *testing.T) {
	s := newTestServer(t)
	first := s.create(t, "patient-1")
	second := s.create(t, "patient-1")
	s.create(t, "patient-2")

	rr := s.do(t, http.MethodPost, "/api/v1/requests/id/"+first.ID+"/claim", model.ClaimInput{ProviderID: "prov-a", Slot: "12:00"})
	require.Equal(t, http.StatusOK, rr.Code)

	var page httputil.PaginatedResponse
	rr = s.do(t, http.MethodGet, "/api/v1/requests/open?limit=1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Count)
	assert.Equal(t, 1, page.Limit)

	rr = s.do(t, http.MethodGet, "/api/v1/requests/open?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(t, http.MethodGet, "/api/v1/requests/patient/patient-1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	assert.Equal(t, 2, page.Count)

	var owned struct {
		Data []model.Request `json:"data"`
	}
	rr = s.do(t, http.MethodGet, "/api/v1/requests/provider/prov-a", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &owned))
	require.Len(t, owned.Data, 1)
	assert.Equal(t, first.ID, owned.Data[0].ID)
	assert.NotEqual(t, second.ID, owned.Data[0].ID)
}

type sseFrame struct {
	id    string
	event string
	data  string
}

func readFrame(t *testing.T, r *bufio.Reader) (sseFrame, error) {
	t.Helper()
	var frame sseFrame
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return frame, err
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if frame.event != "" {
				return frame, nil
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "id: "):
			frame.id = strings.TrimPrefix(line, "id: ")
		case strings.HasPrefix(line, "event: "):
			frame.event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			frame.data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestEvents_StreamsUntilTerminal(t *testing.T) {
	s := newTestServer(t)
	server := httptest.NewServer(s.router)
	defer server.Close()

	created := s.create(t, "patient-1")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/v1/requests/id/"+created.ID+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	reader := bufio.NewReader(resp.Body)

	snapshot, err := readFrame(t, reader)
	require.NoError(t, err)
	assert.Equal(t, "request.snapshot", snapshot.event)
	assert.Equal(t, "2", snapshot.id)

	_, err = s.svc.Claim(ctx, created.ID, &model.ClaimInput{ProviderID: "prov-a", Slot: "19:00"})
	require.NoError(t, err)

	accepted, err := readFrame(t, reader)
	require.NoError(t, err)
	assert.Equal(t, string(model.EventAccepted), accepted.event)
	var event model.RequestEvent
	require.NoError(t, json.Unmarshal([]byte(accepted.data), &event))
	assert.Equal(t, "prov-a", event.ClaimedBy)
	assert.Equal(t, "19:00", event.Slot)

	_, err = readFrame(t, reader)
	assert.ErrorIs(t, err, io.EOF)
	assert.Eventually(t, func() bool { return s.broker.Subscribers(created.ID) == 0 }, time.Second, 10*time.Millisecond)
}

// A claim committed elsewhere writes the store without touching this broker.
// The stream picks it up on the next tick and ends.
func TestEvents_ChangeOutsideBrokerEndsStream(t *testing.T) {
	s := newTestServerWithKeepAlive(t, 20*time.Millisecond)
	server := httptest.NewServer(s.router)
	defer server.Close()

	created := s.create(t, "patient-1")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/v1/requests/id/"+created.ID+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	reader := bufio.NewReader(resp.Body)

	snapshot, err := readFrame(t, reader)
	require.NoError(t, err)
	assert.Equal(t, "2", snapshot.id)

	_, err = s.store.CompareAndSwap(ctx, created.ID, created.Version, model.Mutation{
		Status:           model.StatusAccepted,
		ClaimedBy:        "prov-b",
		AcceptedTimeSlot: "12:00",
	})
	require.NoError(t, err)

	accepted, err := readFrame(t, reader)
	require.NoError(t, err)
	assert.Equal(t, string(model.EventAccepted), accepted.event)
	assert.Equal(t, "3", accepted.id)
	var event model.RequestEvent
	require.NoError(t, json.Unmarshal([]byte(accepted.data), &event))
	assert.Equal(t, "prov-b", event.ClaimedBy)
	assert.Equal(t, model.StatusAccepted, event.Status)

	_, err = readFrame(t, reader)
	assert.ErrorIs(t, err, io.EOF)
}

func TestEvents_TerminalSnapshotEndsStream(t *testing.T) {
	s := newTestServer(t)
	created := s.create(t, "patient-1")
	_, err := s.svc.Cancel(context.Background(), created.ID, &model.CancelInput{PatientID: "patient-1"})
	require.NoError(t, err)

	rr := s.do(t, http.MethodGet, "/api/v1/requests/id/"+created.ID+"/events", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	frame, err := readFrame(t, bufio.NewReader(rr.Body))
	require.NoError(t, err)
	assert.Equal(t, "request.snapshot", frame.event)
	assert.Contains(t, frame.data, `"status":"cancelled"`)
	assert.Equal(t, 0, s.broker.Subscribers(created.ID))
}

func TestEvents_UnknownRequest(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, http.MethodGet, "/api/v1/requests/id/6f1f4a3e-0000-4000-8000-000000000000/events", nil)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, 0, s.broker.Subscribers("6f1f4a3e-0000-4000-8000-000000000000"))
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler(t *testing.T) {
	log := logger.Discard()
	metrics := kafkamiddleware.NewMetrics()

	tests := []struct {
		name       string
		path       string
		pingErr    error
		wantStatus int
		wantBody   string
	}{
		{"health", "/health", nil, http.StatusOK, `"status":"ok"`},
		{"ready", "/ready", nil, http.StatusOK, `"database":"ok"`},
		{"not ready", "/ready", errors.New("connection refused"), http.StatusServiceUnavailable, `"status":"unavailable"`},
		{"stats", "/stats", nil, http.StatusOK, `"messages_published":0`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := httprouter.New()
			NewHealthHandler(pingerFunc(func(context.Context) error { return tt.pingErr }), metrics, log).RegisterRoutes(router)

			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.wantBody)
		})
	}
}
