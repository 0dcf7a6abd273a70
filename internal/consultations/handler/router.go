package handler

import (
	"github.com/julienschmidt/httprouter"
)

// API bundles the slot and consultation handlers behind one route
// registration, which is what the application bootstrap expects.
type API struct {
	slots         *SlotHandler
	consultations *ConsultationHandler
}

func NewAPI(slots *SlotHandler, consultations *ConsultationHandler) *API {
	return &API{
		slots:         slots,
		consultations: consultations,
	}
}

func (a *API) RegisterRoutes(router *httprouter.Router) {
	a.slots.RegisterRoutes(router)
	a.consultations.RegisterRoutes(router)
}
