package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	requesterrors "istishara/internal/requests/errors"
	"istishara/internal/requests/repository"
	"istishara/internal/requests/validator"
	"istishara/pkg/config"
	apperrors "istishara/pkg/errors"
	"istishara/pkg/model"
	"istishara/pkg/notify"
	"istishara/pkg/sanitizer"
)

type RequestService interface {
	Create(ctx context.Context, actor model.Principal, request *model.ConsultationRequest) error
	GetByID(ctx context.Context, actor model.Principal, id string) (*model.ConsultationRequest, error)
	ListMine(ctx context.Context, actor model.Principal, status model.RequestStatus, limit int, offset int64) ([]*model.ConsultationRequest, int64, error)
	Respond(ctx context.Context, actor model.Principal, id string, input *model.RespondInput) (*model.ConsultationRequest, error)
}

type requestService struct {
	repo      repository.RequestRepository
	validator *validator.RequestValidator
	notifier  notify.Notifier
	cfg       *config.Config
}

func NewRequestService(
	repo repository.RequestRepository,
	validator *validator.RequestValidator,
	notifier notify.Notifier,
	cfg *config.Config,
) RequestService {
	return &requestService{
		repo:      repo,
		validator: validator,
		notifier:  notifier,
		cfg:       cfg,
	}
}

func (s *requestService) Create(ctx context.Context, actor model.Principal, request *model.ConsultationRequest) error {
	request.ClientID = actor.UserID
	request.Status = model.RequestPending
	request.Response = ""
	request.Question = sanitizer.SanitizeFreeText(request.Question)

	if request.ConsultantID == actor.UserID {
		return apperrors.New(apperrors.CodeSelfBooking, "cannot send a consultation request to yourself", http.StatusConflict)
	}
	if err := s.validator.ValidateRequest(request); err != nil {
		s.cfg.Log.Warn("Request validation failed", "error", err)
		return apperrors.Validation("Request validation failed", map[string]any{"error": err.Error()})
	}

	if err := s.repo.Create(ctx, request); err != nil {
		s.cfg.Log.Error("Failed to create consultation request", "client_id", actor.UserID, "error", err)
		return apperrors.Internal("Failed to create consultation request", err)
	}

	s.cfg.Log.Info("Consultation request created",
		"id", request.ID,
		"client_id", request.ClientID,
		"consultant_id", request.ConsultantID,
	)

	notify.Send(ctx, s.notifier, s.cfg.Log, request.ConsultantID,
		"You have a new consultation request",
		fmt.Sprintf("/requests/%s", request.ID))

	return nil
}

func (s *requestService) GetByID(ctx context.Context, actor model.Principal, id string) (*model.ConsultationRequest, error) {
	request, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Is(request.ClientID) && !actor.Is(request.ConsultantID) {
		return nil, apperrors.NotAuthorized("only the client or consultant of a request can view it")
	}
	return request, nil
}

func (s *requestService) ListMine(ctx context.Context, actor model.Principal, status model.RequestStatus, limit int, offset int64) ([]*model.ConsultationRequest, int64, error) {
	if status != "" && !status.Valid() {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("invalid status filter: %s", status))
	}

	var (
		requests []*model.ConsultationRequest
		total    int64
		err      error
	)
	if actor.Role == model.RoleProvider {
		requests, total, err = s.repo.FindByConsultant(ctx, actor.UserID, status, limit, offset)
	} else {
		requests, total, err = s.repo.FindByClient(ctx, actor.UserID, status, limit, offset)
	}
	if err != nil {
		s.cfg.Log.Error("Failed to list consultation requests", "user_id", actor.UserID, "error", err)
		return nil, 0, apperrors.Internal("Failed to retrieve consultation requests", err)
	}
	return requests, total, nil
}

// Respond lets the addressed consultant answer and move the request into
// accepted, rejected or completed. Anyone else, and any request already
// rejected or completed, is turned away.
func (s *requestService) Respond(ctx context.Context, actor model.Principal, id string, input *model.RespondInput) (*model.ConsultationRequest, error) {
	input.Response = sanitizer.SanitizeFreeText(input.Response)
	if err := s.validator.ValidateRespond(input); err != nil {
		s.cfg.Log.Warn("Respond validation failed", "id", id, "error", err)
		return nil, apperrors.Validation("Respond validation failed", map[string]any{"error": err.Error()})
	}

	request, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Is(request.ConsultantID) {
		return nil, apperrors.NotAuthorized("only the addressed consultant can respond")
	}
	if !request.Status.CanRespondTo(input.Status) {
		return nil, apperrors.IllegalTransition(string(request.Status), string(input.Status))
	}

	if err := s.repo.Respond(ctx, id, request.Status, input.Response, input.Status); err != nil {
		if errors.Is(err, requesterrors.ErrStatusChanged) {
			current, loadErr := s.repo.FindByID(ctx, id)
			if loadErr == nil {
				return nil, apperrors.IllegalTransition(string(current.Status), string(input.Status))
			}
			return nil, apperrors.IllegalTransition(string(request.Status), string(input.Status))
		}
		if errors.Is(err, requesterrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Consultation request", id)
		}
		s.cfg.Log.Error("Failed to respond to consultation request", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to respond to consultation request", err)
	}

	request.Response = input.Response
	request.Status = input.Status

	s.cfg.Log.Info("Consultation request answered",
		"id", id,
		"consultant_id", actor.UserID,
		"status", input.Status,
	)

	notify.Send(ctx, s.notifier, s.cfg.Log, request.ClientID,
		fmt.Sprintf("Your consultation request was %s", input.Status),
		fmt.Sprintf("/requests/%s", id))

	return request, nil
}

func (s *requestService) load(ctx context.Context, id string) (*model.ConsultationRequest, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Request ID cannot be empty")
	}
	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, requesterrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Consultation request", id)
		}
		if errors.Is(err, requesterrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid request ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve consultation request", err)
	}
	return request, nil
}
