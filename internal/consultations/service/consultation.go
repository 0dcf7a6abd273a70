package service

import (
	"context"
	"errors"
	"fmt"

	consulterrors "istishara/internal/consultations/errors"
	"istishara/internal/consultations/repository"
	"istishara/internal/consultations/validator"
	"istishara/pkg/config"
	apperrors "istishara/pkg/errors"
	"istishara/pkg/model"
	"istishara/pkg/notify"
	"istishara/pkg/sanitizer"
	"istishara/pkg/sealer"
)

type ConsultationService interface {
	GetByID(ctx context.Context, actor model.Principal, id string) (*model.Consultation, error)
	ResolveLink(ctx context.Context, actor model.Principal, token string) (*model.Consultation, error)
	ListMine(ctx context.Context, actor model.Principal, limit int, offset int64) ([]*model.Consultation, int64, error)
	Transition(ctx context.Context, actor model.Principal, id string, input *model.TransitionInput) (*model.Consultation, error)
}

type consultationService struct {
	consults  repository.ConsultationRepository
	slots     repository.SlotRepository
	validator *validator.SlotValidator
	notifier  notify.Notifier
	cfg       *config.Config
}

func NewConsultationService(
	consults repository.ConsultationRepository,
	slots repository.SlotRepository,
	validator *validator.SlotValidator,
	notifier notify.Notifier,
	cfg *config.Config,
) ConsultationService {
	return &consultationService{
		consults:  consults,
		slots:     slots,
		validator: validator,
		notifier:  notifier,
		cfg:       cfg,
	}
}

func (s *consultationService) GetByID(ctx context.Context, actor model.Principal, id string) (*model.Consultation, error) {
	consultation, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Is(consultation.ClientID) && !actor.Is(consultation.ProviderID) {
		return nil, apperrors.NotAuthorized("only the client or provider of a consultation can view it")
	}
	return consultation, nil
}

// ResolveLink opens a sealed notification link. The token binds the
// consultation to the recipient it was issued to.
func (s *consultationService) ResolveLink(ctx context.Context, actor model.Principal, token string) (*model.Consultation, error) {
	consultationID, recipientID, err := sealer.ParseOpaqueToken(token)
	if err != nil {
		return nil, apperrors.InvalidInput("Invalid or expired link")
	}
	if !actor.Is(recipientID) {
		return nil, apperrors.NotAuthorized("this link was issued to a different user")
	}
	return s.GetByID(ctx, actor, consultationID)
}

// ListMine returns the actor's consultations regardless of which side of the
// booking they are on.
func (s *consultationService) ListMine(ctx context.Context, actor model.Principal, limit int, offset int64) ([]*model.Consultation, int64, error) {
	var (
		consultations []*model.Consultation
		total         int64
		err           error
	)
	if actor.Role == model.RoleProvider {
		consultations, total, err = s.consults.FindByProvider(ctx, actor.UserID, limit, offset)
	} else {
		consultations, total, err = s.consults.FindByClient(ctx, actor.UserID, limit, offset)
	}
	if err != nil {
		s.cfg.Log.Error("Failed to list consultations", "user_id", actor.UserID, "error", err)
		return nil, 0, apperrors.Internal("Failed to retrieve consultations", err)
	}
	return consultations, total, nil
}

// Transition moves a consultation through its lifecycle. Cancelling releases
// the backing slot in the same transaction, so the slot is claimable again
// the instant the cancellation commits.
func (s *consultationService) Transition(ctx context.Context, actor model.Principal, id string, input *model.TransitionInput) (*model.Consultation, error) {
	input.Reason = sanitizer.SanitizeReason(input.Reason)
	if err := s.validator.ValidateTransition(input); err != nil {
		s.cfg.Log.Warn("Transition validation failed", "id", id, "error", err)
		return nil, apperrors.Validation("Transition validation failed", map[string]any{"error": err.Error()})
	}

	consultation, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkAuthority(actor, consultation, input.Target); err != nil {
		return nil, err
	}
	if !consultation.Status.CanTransition(input.Target) {
		return nil, apperrors.IllegalTransition(string(consultation.Status), string(input.Target))
	}

	from := consultation.Status
	err = s.consults.ExecuteTransaction(ctx, func(sessCtx context.Context) error {
		if err := s.consults.UpdateStatus(sessCtx, id, from, input.Target); err != nil {
			if errors.Is(err, consulterrors.ErrStatusChanged) {
				// Re-read for an accurate conflict message.
				current, loadErr := s.consults.FindByID(sessCtx, id)
				if loadErr == nil {
					return apperrors.IllegalTransition(string(current.Status), string(input.Target))
				}
				return apperrors.IllegalTransition(string(from), string(input.Target))
			}
			if errors.Is(err, consulterrors.ErrConsultationNotFound) {
				return apperrors.NotFoundWithID("Consultation", id)
			}
			return apperrors.Internal("Failed to update consultation status", err)
		}

		if input.Target == model.StatusCancelled {
			if err := s.slots.Release(sessCtx, consultation.SlotID); err != nil {
				if errors.Is(err, consulterrors.ErrNotReleased) || errors.Is(err, consulterrors.ErrSlotNotFound) {
					// The slot is already free or gone; cancellation still
					// stands.
					s.cfg.Log.Warn("Slot was not booked at cancellation",
						"consultation_id", id,
						"slot_id", consultation.SlotID,
					)
					return nil
				}
				return apperrors.Internal("Failed to release slot", err)
			}
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to transition consultation",
			"id", id,
			"from", from,
			"to", input.Target,
			"error", err,
		)
		return nil, err
	}

	consultation.Status = input.Target
	s.cfg.Log.Info("Consultation transitioned",
		"id", id,
		"from", from,
		"to", input.Target,
		"actor_id", actor.UserID,
	)

	s.notifyTransition(ctx, actor, consultation, input)

	return consultation, nil
}

func (s *consultationService) load(ctx context.Context, id string) (*model.Consultation, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Consultation ID cannot be empty")
	}
	consultation, err := s.consults.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, consulterrors.ErrConsultationNotFound) {
			return nil, apperrors.NotFoundWithID("Consultation", id)
		}
		if errors.Is(err, consulterrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid consultation ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve consultation", err)
	}
	return consultation, nil
}

// checkAuthority enforces who may request which target state: either party
// may cancel, only the provider marks completed or confirmed.
func (s *consultationService) checkAuthority(actor model.Principal, c *model.Consultation, target model.ConsultationStatus) error {
	isClient := actor.Is(c.ClientID)
	isProvider := actor.Is(c.ProviderID)
	if !isClient && !isProvider {
		return apperrors.NotAuthorized("only the client or provider of a consultation can change it")
	}

	switch target {
	case model.StatusCancelled:
		return nil
	case model.StatusCompleted, model.StatusConfirmed:
		if !isProvider {
			return apperrors.NotAuthorized("only the provider can mark a consultation " + string(target))
		}
		return nil
	}
	return apperrors.InvalidInput("unknown target status")
}

func (s *consultationService) notifyTransition(ctx context.Context, actor model.Principal, c *model.Consultation, input *model.TransitionInput) {
	// Tell the party that did not initiate the change.
	recipient := c.ClientID
	if actor.Is(c.ClientID) {
		recipient = c.ProviderID
	}

	message := fmt.Sprintf("Your consultation is now %s", c.Status)
	if c.Status == model.StatusCancelled && input.Reason != "" {
		message = fmt.Sprintf("Your consultation was cancelled: %s", input.Reason)
	}

	notify.Send(ctx, s.notifier, s.cfg.Log, recipient, message, consultationLink(s.cfg.Log, c.ID, recipient))
}
