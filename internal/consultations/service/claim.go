package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	consulterrors "istishara/internal/consultations/errors"
	"istishara/internal/consultations/repository"
	"istishara/internal/consultations/validator"
	"istishara/pkg/config"
	apperrors "istishara/pkg/errors"
	"istishara/pkg/model"
	"istishara/pkg/notify"
	"istishara/pkg/sanitizer"
)

// ClaimService turns an unbooked slot into a confirmed consultation. The
// write path is: prechecks, advisory lock with a bounded wait, then a
// transaction that re-reads the slot, flips its booked flag conditionally and
// inserts the consultation. A slot therefore yields exactly one consultation
// no matter how many clients race for it.
type ClaimService interface {
	Claim(ctx context.Context, actor model.Principal, input *model.ClaimInput) (*model.Consultation, error)
}

type claimService struct {
	slots     repository.SlotRepository
	locks     repository.SlotLockRepository
	consults  repository.ConsultationRepository
	validator *validator.SlotValidator
	notifier  notify.Notifier
	cfg       *config.Config
}

func NewClaimService(
	slots repository.SlotRepository,
	locks repository.SlotLockRepository,
	consults repository.ConsultationRepository,
	validator *validator.SlotValidator,
	notifier notify.Notifier,
	cfg *config.Config,
) ClaimService {
	return &claimService{
		slots:     slots,
		locks:     locks,
		consults:  consults,
		validator: validator,
		notifier:  notifier,
		cfg:       cfg,
	}
}

func (s *claimService) Claim(ctx context.Context, actor model.Principal, input *model.ClaimInput) (*model.Consultation, error) {
	input.Notes = sanitizer.SanitizeFreeText(input.Notes)
	if err := s.validator.ValidateClaim(input); err != nil {
		s.cfg.Log.Warn("Claim validation failed", "error", err)
		return nil, apperrors.Validation("Claim validation failed", map[string]any{"error": err.Error()})
	}

	// Fail-fast prechecks outside the lock. Every one of them is re-checked
	// inside the transaction; this pass only spares losers the lock wait.
	slot, err := s.loadSlot(ctx, input.SlotID)
	if err != nil {
		return nil, err
	}
	if err := s.checkClaimable(slot, actor); err != nil {
		return nil, err
	}

	if err := s.acquireLock(ctx, input.SlotID); err != nil {
		return nil, err
	}
	defer func() {
		if releaseErr := s.locks.Release(ctx, input.SlotID); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release slot lock", "slot_id", input.SlotID, "error", releaseErr)
		}
	}()

	consultation := &model.Consultation{
		SlotID:    input.SlotID,
		ClientID:  actor.UserID,
		ServiceID: input.ServiceID,
		Notes:     input.Notes,
		Status:    model.StatusConfirmed,
	}

	err = s.slots.ExecuteTransaction(ctx, func(sessCtx context.Context) error {
		current, err := s.loadSlot(sessCtx, input.SlotID)
		if err != nil {
			return err
		}
		if err := s.checkClaimable(current, actor); err != nil {
			return err
		}
		consultation.ProviderID = current.ProviderID

		if err := s.slots.MarkBooked(sessCtx, input.SlotID); err != nil {
			if errors.Is(err, consulterrors.ErrAlreadyBooked) {
				return apperrors.AlreadyBooked(input.SlotID)
			}
			if errors.Is(err, consulterrors.ErrSlotNotFound) {
				return apperrors.NotFoundWithID("Slot", input.SlotID)
			}
			return apperrors.Internal("Failed to mark slot booked", err)
		}

		if err := s.consults.Create(sessCtx, consultation); err != nil {
			if errors.Is(err, consulterrors.ErrAlreadyBooked) {
				return apperrors.AlreadyBooked(input.SlotID)
			}
			return apperrors.Internal("Failed to create consultation", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to claim slot",
			"slot_id", input.SlotID,
			"client_id", actor.UserID,
			"error", err,
		)
		return nil, err
	}

	s.cfg.Log.Info("Slot claimed successfully",
		"consultation_id", consultation.ID,
		"slot_id", input.SlotID,
		"provider_id", consultation.ProviderID,
		"client_id", actor.UserID,
	)

	// Post-commit. A dropped notification never unwinds a booking.
	notify.Send(ctx, s.notifier, s.cfg.Log, consultation.ProviderID,
		fmt.Sprintf("Your slot on %s was booked", slot.StartTime.Format(time.RFC3339)),
		consultationLink(s.cfg.Log, consultation.ID, consultation.ProviderID))
	notify.Send(ctx, s.notifier, s.cfg.Log, actor.UserID,
		fmt.Sprintf("Your consultation on %s is confirmed", slot.StartTime.Format(time.RFC3339)),
		consultationLink(s.cfg.Log, consultation.ID, actor.UserID))

	return consultation, nil
}

func (s *claimService) loadSlot(ctx context.Context, slotID string) (*model.Slot, error) {
	slot, err := s.slots.FindByID(ctx, slotID)
	if err != nil {
		if errors.Is(err, consulterrors.ErrSlotNotFound) {
			return nil, apperrors.NotFoundWithID("Slot", slotID)
		}
		if errors.Is(err, consulterrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid slot ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve slot", err)
	}
	return slot, nil
}

func (s *claimService) checkClaimable(slot *model.Slot, actor model.Principal) error {
	if actor.Is(slot.ProviderID) {
		return apperrors.SelfBooking()
	}
	if !slot.StartTime.After(s.cfg.Clock.Now()) {
		return apperrors.SlotExpired(slot.ID)
	}
	if slot.Booked {
		return apperrors.AlreadyBooked(slot.ID)
	}
	return nil
}

// acquireLock polls the advisory lock until it is granted or the bounded wait
// elapses. Waiters are not queued fairly; a caller that times out gets BUSY
// and should simply retry.
func (s *claimService) acquireLock(ctx context.Context, slotID string) error {
	deadline := time.Now().Add(s.cfg.SlotLockWaitTimeout)

	for {
		err := s.locks.Acquire(ctx, slotID, s.cfg.SlotLockTTL)
		if err == nil {
			return nil
		}
		if !errors.Is(err, consulterrors.ErrLockHeld) {
			return apperrors.Internal("Failed to acquire slot lock", err)
		}
		if time.Now().After(deadline) {
			return apperrors.Busy("slot is being claimed by another request, try again")
		}

		select {
		case <-ctx.Done():
			return apperrors.Wrap(ctx.Err(), apperrors.CodeUnavailable, "request cancelled while waiting for slot lock", http.StatusServiceUnavailable)
		case <-time.After(s.cfg.SlotLockRetryInterval):
		}
	}
}
