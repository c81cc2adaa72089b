package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	apperrors "openrequests/pkg/errors"
	"openrequests/pkg/model"
)

// RequestClient is a typed client for the open requests API, used by the
// intake and tracking collaborators and by the integration suite.
type RequestClient struct {
	httpClient *HttpClient
}

func NewRequestClient(baseURL string) *RequestClient {
	return &RequestClient{
		httpClient: NewHttpClient(baseURL),
	}
}

func (c *RequestClient) HTTP() *HttpClient {
	return c.httpClient
}

func (c *RequestClient) Create(ctx context.Context, input *model.CreateRequestInput) (*model.Request, error) {
	resp, err := c.httpClient.POST(ctx, "/api/v1/requests", input, nil)
	if err != nil {
		return nil, err
	}
	return decodeRequest(resp, http.StatusCreated)
}

func (c *RequestClient) Get(ctx context.Context, id string) (*model.Request, error) {
	resp, err := c.httpClient.GET(ctx, requestPath(id))
	if err != nil {
		return nil, err
	}
	return decodeRequest(resp, http.StatusOK)
}

type ClaimResponse struct {
	Outcome      string         `json:"outcome"`
	AcceptedSlot string         `json:"accepted_slot,omitempty"`
	Request      *model.Request `json:"request,omitempty"`
	Replayed     bool           `json:"replayed,omitempty"`
}

// Claim retries are safe: pass the same idempotencyKey to get the cached outcome.
func (c *RequestClient) Claim(ctx context.Context, id, providerID, slot, idempotencyKey string) (*ClaimResponse, error) {
	resp, err := c.httpClient.POST(ctx, requestPath(id)+"/claim", model.ClaimInput{
		ProviderID: providerID,
		Slot:       slot,
	}, idempotencyHeader(idempotencyKey))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}
	var result ClaimResponse
	if err := resp.DecodeData(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *RequestClient) Cancel(ctx context.Context, id, patientID string) (*model.Request, error) {
	resp, err := c.httpClient.POST(ctx, requestPath(id)+"/cancel", model.CancelInput{PatientID: patientID}, nil)
	if err != nil {
		return nil, err
	}
	return decodeRequest(resp, http.StatusOK)
}

func (c *RequestClient) Complete(ctx context.Context, id, providerID string) (*model.Request, error) {
	resp, err := c.httpClient.POST(ctx, requestPath(id)+"/complete", model.CompleteInput{ProviderID: providerID}, nil)
	if err != nil {
		return nil, err
	}
	return decodeRequest(resp, http.StatusOK)
}

func (c *RequestClient) ListOpen(ctx context.Context, limit int, offset int64) ([]*model.Request, error) {
	resp, err := c.httpClient.GET(ctx, fmt.Sprintf("/api/v1/requests/open?limit=%d&offset=%d", limit, offset))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}
	var requests []*model.Request
	if err := resp.DecodeData(&requests); err != nil {
		return nil, err
	}
	return requests, nil
}

// IsAlreadyTaken reports a lost claim race ("pick another request").
func IsAlreadyTaken(err error) bool {
	return hasAPICode(err, apperrors.CodeAlreadyTaken)
}

// IsExpired reports a request whose deadline passed before the operation landed.
func IsExpired(err error) bool {
	return hasAPICode(err, apperrors.CodeExpired)
}

func IsInvalidState(err error) bool {
	return hasAPICode(err, apperrors.CodeInvalidState)
}

func hasAPICode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

func requestPath(id string) string {
	return "/api/v1/requests/id/" + url.PathEscape(id)
}

func idempotencyHeader(key string) map[string]string {
	if key == "" {
		return nil
	}
	return map[string]string{"Idempotency-Key": key}
}

func decodeRequest(resp *Response, expectedStatus int) (*model.Request, error) {
	if resp.StatusCode != expectedStatus {
		return nil, decodeAPIError(resp)
	}
	var request model.Request
	if err := resp.DecodeData(&request); err != nil {
		return nil, err
	}
	return &request, nil
}
