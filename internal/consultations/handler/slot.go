package handler

import (
	"encoding/json"
	"net/http"

	"istishara/internal/consultations/service"
	apperrors "istishara/pkg/errors"
	httputil "istishara/pkg/http"
	"istishara/pkg/logger"
	"istishara/pkg/middleware"
	"istishara/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type SlotHandler struct {
	service service.SlotService
	log     *logger.Logger
}

func NewSlotHandler(service service.SlotService, log *logger.Logger) *SlotHandler {
	return &SlotHandler{
		service: service,
		log:     log,
	}
}

func (h *SlotHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, ok := actorFrom(w, r, h.log, "Create")
	if !ok {
		return
	}
	if actor.Role != model.RoleProvider {
		h.writeError(w, "Create", apperrors.NotAuthorized("only providers can publish slots"))
		return
	}

	var slot model.Slot
	if err := json.NewDecoder(r.Body).Decode(&slot); err != nil {
		h.writeError(w, "Create", apperrors.InvalidInput("Invalid request body"))
		return
	}

	if err := h.service.Create(r.Context(), actor, &slot); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, slot); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "error", err)
	}
}

func (h *SlotHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	slot, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, slot); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "error", err)
	}
}

// ListAvailable is the marketplace browse view: upcoming unbooked slots,
// optionally filtered to one provider via ?provider_id=.
func (h *SlotHandler) ListAvailable(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "ListAvailable", err)
		return
	}

	slots, total, err := h.service.ListAvailable(r.Context(), r.URL.Query().Get("provider_id"), limit, offset)
	if err != nil {
		h.writeError(w, "ListAvailable", err)
		return
	}

	if err := httputil.WritePaginated(w, slots, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListAvailable", "error", err)
	}
}

// ListMine returns the calling provider's own upcoming slots, booked ones
// included.
func (h *SlotHandler) ListMine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, ok := actorFrom(w, r, h.log, "ListMine")
	if !ok {
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "ListMine", err)
		return
	}

	slots, total, err := h.service.ListByProvider(r.Context(), actor.UserID, limit, offset)
	if err != nil {
		h.writeError(w, "ListMine", err)
		return
	}

	if err := httputil.WritePaginated(w, slots, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListMine", "error", err)
	}
}

func (h *SlotHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := actorFrom(w, r, h.log, "Update")
	if !ok {
		return
	}

	var updates model.SlotUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		h.writeError(w, "Update", apperrors.InvalidInput("Invalid request body"))
		return
	}

	if err := h.service.Update(r.Context(), actor, ps.ByName("id"), &updates); err != nil {
		h.writeError(w, "Update", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *SlotHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := actorFrom(w, r, h.log, "Delete")
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), actor, ps.ByName("id")); err != nil {
		h.writeError(w, "Delete", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *SlotHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/slots", h.Create)
	router.GET("/api/v1/slots", h.ListAvailable)
	router.GET("/api/v1/slots/mine", h.ListMine)
	router.GET("/api/v1/slots/id/:id", h.GetByID)
	router.PATCH("/api/v1/slots/id/:id", h.Update)
	router.DELETE("/api/v1/slots/id/:id", h.Delete)
}

func (h *SlotHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "error", writeErr)
	}
}

// actorFrom pulls the gateway-asserted principal off the context. Identity
// middleware guarantees it on every protected route; a miss means the route
// was wired without the middleware.
func actorFrom(w http.ResponseWriter, r *http.Request, log *logger.Logger, handler string) (model.Principal, bool) {
	actor, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		log.Error("principal missing from request context", "handler", handler)
		if writeErr := httputil.WriteError(w, apperrors.Unauthorized("authentication required")); writeErr != nil {
			log.Error("failed to write error response", "handler", handler, "error", writeErr)
		}
		return model.Principal{}, false
	}
	return actor, true
}
