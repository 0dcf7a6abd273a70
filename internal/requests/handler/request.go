package handler

import (
	"encoding/json"
	"net/http"

	"istishara/internal/requests/service"
	apperrors "istishara/pkg/errors"
	httputil "istishara/pkg/http"
	"istishara/pkg/logger"
	"istishara/pkg/middleware"
	"istishara/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type RequestHandler struct {
	service service.RequestService
	log     *logger.Logger
}

func NewRequestHandler(service service.RequestService, log *logger.Logger) *RequestHandler {
	return &RequestHandler{
		service: service,
		log:     log,
	}
}

func (h *RequestHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, ok := h.actor(w, r, "Create")
	if !ok {
		return
	}

	var request model.ConsultationRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, "Create", apperrors.InvalidInput("Invalid request body"))
		return
	}

	if err := h.service.Create(r.Context(), actor, &request); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, request); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "error", err)
	}
}

func (h *RequestHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := h.actor(w, r, "GetByID")
	if !ok {
		return
	}

	request, err := h.service.GetByID(r.Context(), actor, ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, request); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "error", err)
	}
}

func (h *RequestHandler) ListMine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, ok := h.actor(w, r, "ListMine")
	if !ok {
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "ListMine", err)
		return
	}

	status := model.RequestStatus(r.URL.Query().Get("status"))
	requests, total, err := h.service.ListMine(r.Context(), actor, status, limit, offset)
	if err != nil {
		h.writeError(w, "ListMine", err)
		return
	}

	if err := httputil.WritePaginated(w, requests, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListMine", "error", err)
	}
}

func (h *RequestHandler) Respond(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := h.actor(w, r, "Respond")
	if !ok {
		return
	}

	var input model.RespondInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.writeError(w, "Respond", apperrors.InvalidInput("Invalid request body"))
		return
	}

	request, err := h.service.Respond(r.Context(), actor, ps.ByName("id"), &input)
	if err != nil {
		h.writeError(w, "Respond", err)
		return
	}

	if err := httputil.WriteSuccess(w, request); err != nil {
		h.log.Error("failed to write success response", "handler", "Respond", "error", err)
	}
}

func (h *RequestHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/requests", h.Create)
	router.GET("/api/v1/requests", h.ListMine)
	router.GET("/api/v1/requests/id/:id", h.GetByID)
	router.POST("/api/v1/requests/id/:id/respond", h.Respond)
}

func (h *RequestHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "error", writeErr)
	}
}

func (h *RequestHandler) actor(w http.ResponseWriter, r *http.Request, handler string) (model.Principal, bool) {
	actor, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		h.log.Error("principal missing from request context", "handler", handler)
		h.writeError(w, handler, apperrors.Unauthorized("authentication required"))
		return model.Principal{}, false
	}
	return actor, true
}
