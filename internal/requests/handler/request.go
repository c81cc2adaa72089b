package handler

import (
	"encoding/json"
	"net/http"

	"openrequests/internal/requests/service"
	httputil "openrequests/pkg/http"
	"openrequests/pkg/logger"
	"openrequests/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type RequestHandler struct {
	service service.RequestService
	stream  *EventStream
	log     *logger.Logger
}

func NewRequestHandler(service service.RequestService, stream *EventStream, log *logger.Logger) *RequestHandler {
	return &RequestHandler{
		service: service,
		stream:  stream,
		log:     log,
	}
}

func (h *RequestHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var input model.CreateRequestInput
	if !h.decode(w, r, &input, "Create") {
		return
	}

	request, err := h.service.Create(r.Context(), &input)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Create", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, request); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *RequestHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	request, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetByID", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, request); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *RequestHandler) Claim(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	var input model.ClaimInput
	if !h.decode(w, r, &input, "Claim") {
		return
	}

	result, err := h.service.Claim(r.Context(), id, &input)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Claim", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, result); err != nil {
		h.log.Error("failed to write success response", "handler", "Claim", "operation", "WriteSuccess", "error", err)
	}
}

func (h *RequestHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	var input model.CancelInput
	if !h.decode(w, r, &input, "Cancel") {
		return
	}

	request, err := h.service.Cancel(r.Context(), id, &input)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Cancel", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, request); err != nil {
		h.log.Error("failed to write success response", "handler", "Cancel", "operation", "WriteSuccess", "error", err)
	}
}

func (h *RequestHandler) Complete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	var input model.CompleteInput
	if !h.decode(w, r, &input, "Complete") {
		return
	}

	request, err := h.service.Complete(r.Context(), id, &input)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Complete", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, request); err != nil {
		h.log.Error("failed to write success response", "handler", "Complete", "operation", "WriteSuccess", "error", err)
	}
}

func (h *RequestHandler) Events(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	request, unsubscribe, updates, err := h.stream.Open(r.Context(), id)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Events", "operation", "WriteError", "error", writeErr)
		}
		return
	}
	defer unsubscribe()

	if err := h.stream.Serve(r.Context(), w, request, updates); err != nil {
		h.log.Debug("event stream ended", "request_id", id, "error", err)
	}
}

func (h *RequestHandler) ListOpen(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ListOpen", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	requests, err := h.service.ListOpen(r.Context(), limit, offset)
	h.writeList(w, "ListOpen", requests, limit, offset, err)
}

func (h *RequestHandler) ListByPatient(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ListByPatient", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	requests, err := h.service.ListByPatient(r.Context(), ps.ByName("patient_id"), limit, offset)
	h.writeList(w, "ListByPatient", requests, limit, offset, err)
}

func (h *RequestHandler) ListByProvider(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ListByProvider", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	requests, err := h.service.ListByProvider(r.Context(), ps.ByName("provider_id"), limit, offset)
	h.writeList(w, "ListByProvider", requests, limit, offset, err)
}

func (h *RequestHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/requests", h.Create)
	router.GET("/api/v1/requests/open", h.ListOpen)
	router.GET("/api/v1/requests/id/:id", h.GetByID)
	router.GET("/api/v1/requests/id/:id/events", h.Events)
	router.POST("/api/v1/requests/id/:id/claim", h.Claim)
	router.POST("/api/v1/requests/id/:id/cancel", h.Cancel)
	router.POST("/api/v1/requests/id/:id/complete", h.Complete)
	router.GET("/api/v1/requests/patient/:patient_id", h.ListByPatient)
	router.GET("/api/v1/requests/provider/:provider_id", h.ListByProvider)
}

func (h *RequestHandler) decode(w http.ResponseWriter, r *http.Request, dst any, handler string) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", handler, "operation", "WriteJSON", "error", writeErr)
		}
		return false
	}
	return true
}

func (h *RequestHandler) writeList(w http.ResponseWriter, handler string, requests []*model.Request, limit int, offset int64, err error) {
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WritePaginated(w, requests, len(requests), limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", handler, "operation", "WritePaginated", "error", err)
	}
}
