package model

// ConsultationStatus is the lifecycle state of a slot-backed consultation
// and of a legacy booking. Transitions go through the table below; there is
// no other way to move between states.
type ConsultationStatus string

const (
	StatusPending   ConsultationStatus = "pending"
	StatusConfirmed ConsultationStatus = "confirmed"
	StatusCompleted ConsultationStatus = "completed"
	StatusCancelled ConsultationStatus = "cancelled"
)

// consultationTransitions maps current state to the set of states reachable
// in one step. completed and cancelled are terminal.
var consultationTransitions = map[ConsultationStatus][]ConsultationStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
	StatusCompleted: {},
	StatusCancelled: {},
}

func (s ConsultationStatus) Valid() bool {
	_, ok := consultationTransitions[s]
	return ok
}

func (s ConsultationStatus) Terminal() bool {
	return len(consultationTransitions[s]) == 0 && s.Valid()
}

// CanTransition reports whether a single-step transition from s to target is
// legal.
func (s ConsultationStatus) CanTransition(target ConsultationStatus) bool {
	for _, next := range consultationTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// RequestStatus is the lifecycle state of an async consultation request.
// It is independent from ConsultationStatus: requests have no slot and no
// confirmed state.
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestAccepted  RequestStatus = "accepted"
	RequestRejected  RequestStatus = "rejected"
	RequestCompleted RequestStatus = "completed"
)

func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestAccepted, RequestRejected, RequestCompleted:
		return true
	}
	return false
}

// Respondable reports whether the addressed consultant may still write a
// response and move the request forward.
func (s RequestStatus) Respondable() bool {
	return s == RequestPending || s == RequestAccepted
}

// RespondTargets are the states a consultant may move a request into when
// responding.
func (s RequestStatus) CanRespondTo(target RequestStatus) bool {
	if !s.Respondable() {
		return false
	}
	switch target {
	case RequestAccepted, RequestRejected, RequestCompleted:
		return true
	}
	return false
}
