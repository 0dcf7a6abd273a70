package handler

import (
	"encoding/json"
	"net/http"

	"istishara/internal/consultations/service"
	apperrors "istishara/pkg/errors"
	httputil "istishara/pkg/http"
	"istishara/pkg/logger"
	"istishara/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type ConsultationHandler struct {
	claims  service.ClaimService
	service service.ConsultationService
	log     *logger.Logger
}

func NewConsultationHandler(claims service.ClaimService, svc service.ConsultationService, log *logger.Logger) *ConsultationHandler {
	return &ConsultationHandler{
		claims:  claims,
		service: svc,
		log:     log,
	}
}

func (h *ConsultationHandler) Claim(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, ok := actorFrom(w, r, h.log, "Claim")
	if !ok {
		return
	}

	var input model.ClaimInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.writeError(w, "Claim", apperrors.InvalidInput("Invalid request body"))
		return
	}

	consultation, err := h.claims.Claim(r.Context(), actor, &input)
	if err != nil {
		h.writeError(w, "Claim", err)
		return
	}

	if err := httputil.WriteCreated(w, consultation); err != nil {
		h.log.Error("failed to write created response", "handler", "Claim", "error", err)
	}
}

func (h *ConsultationHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := actorFrom(w, r, h.log, "GetByID")
	if !ok {
		return
	}

	consultation, err := h.service.GetByID(r.Context(), actor, ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, consultation); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "error", err)
	}
}

// ResolveLink opens a sealed notification link and returns the consultation
// it points at, provided the caller is the recipient the link was issued to.
func (h *ConsultationHandler) ResolveLink(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := actorFrom(w, r, h.log, "ResolveLink")
	if !ok {
		return
	}

	consultation, err := h.service.ResolveLink(r.Context(), actor, ps.ByName("token"))
	if err != nil {
		h.writeError(w, "ResolveLink", err)
		return
	}

	if err := httputil.WriteSuccess(w, consultation); err != nil {
		h.log.Error("failed to write success response", "handler", "ResolveLink", "error", err)
	}
}

func (h *ConsultationHandler) ListMine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, ok := actorFrom(w, r, h.log, "ListMine")
	if !ok {
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "ListMine", err)
		return
	}

	consultations, total, err := h.service.ListMine(r.Context(), actor, limit, offset)
	if err != nil {
		h.writeError(w, "ListMine", err)
		return
	}

	if err := httputil.WritePaginated(w, consultations, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListMine", "error", err)
	}
}

// Transition is the single lifecycle endpoint: confirm, complete or cancel,
// subject to the transition table and the caller's authority.
func (h *ConsultationHandler) Transition(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := actorFrom(w, r, h.log, "Transition")
	if !ok {
		return
	}

	var input model.TransitionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.writeError(w, "Transition", apperrors.InvalidInput("Invalid request body"))
		return
	}

	consultation, err := h.service.Transition(r.Context(), actor, ps.ByName("id"), &input)
	if err != nil {
		h.writeError(w, "Transition", err)
		return
	}

	if err := httputil.WriteSuccess(w, consultation); err != nil {
		h.log.Error("failed to write success response", "handler", "Transition", "error", err)
	}
}

func (h *ConsultationHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/consultations/claim", h.Claim)
	router.GET("/api/v1/consultations", h.ListMine)
	router.GET("/api/v1/consultations/id/:id", h.GetByID)
	router.GET("/api/v1/consultations/link/:token", h.ResolveLink)
	router.POST("/api/v1/consultations/id/:id/transition", h.Transition)
}

func (h *ConsultationHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "error", writeErr)
	}
}
