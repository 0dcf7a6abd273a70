package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "istishara/internal/bookings/errors"
	"istishara/internal/bookings/repository"
	"istishara/internal/bookings/validator"
	consultrepo "istishara/internal/consultations/repository"
	consulterrors "istishara/internal/consultations/errors"
	"istishara/pkg/config"
	apperrors "istishara/pkg/errors"
	"istishara/pkg/model"
	"istishara/pkg/notify"
	"istishara/pkg/sanitizer"
)

// BookingService is the service-first ordering path. A booking names a
// service and optionally pins a slot; slot-backed bookings go through the
// same lock-and-flip discipline as consultations, and cancelling one hands
// the slot back.
type BookingService interface {
	Create(ctx context.Context, actor model.Principal, booking *model.Booking) error
	GetByID(ctx context.Context, actor model.Principal, id string) (*model.Booking, error)
	ListMine(ctx context.Context, actor model.Principal, status model.ConsultationStatus, limit int, offset int64) ([]*model.Booking, int64, error)
	Cancel(ctx context.Context, actor model.Principal, id string, reason string) (*model.Booking, error)
	UpdateStatus(ctx context.Context, actor model.Principal, id string, target model.ConsultationStatus) (*model.Booking, error)
}

type bookingService struct {
	repo      repository.BookingRepository
	slots     consultrepo.SlotRepository
	locks     consultrepo.SlotLockRepository
	validator *validator.BookingValidator
	notifier  notify.Notifier
	cfg       *config.Config
}

func NewBookingService(
	repo repository.BookingRepository,
	slots consultrepo.SlotRepository,
	locks consultrepo.SlotLockRepository,
	validator *validator.BookingValidator,
	notifier notify.Notifier,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:      repo,
		slots:     slots,
		locks:     locks,
		validator: validator,
		notifier:  notifier,
		cfg:       cfg,
	}
}

func (s *bookingService) Create(ctx context.Context, actor model.Principal, booking *model.Booking) error {
	booking.ClientID = actor.UserID
	booking.Status = model.StatusPending
	booking.CancelReason = ""
	booking.Notes = sanitizer.SanitizeFreeText(booking.Notes)

	if err := s.validator.Validate(booking); err != nil {
		s.cfg.Log.Warn("Booking validation failed", "error", err)
		return apperrors.Validation("Booking validation failed", map[string]any{"error": err.Error()})
	}

	if !booking.HasSlot() {
		if err := s.repo.Create(ctx, booking); err != nil {
			s.cfg.Log.Error("Failed to create booking", "client_id", actor.UserID, "error", err)
			return apperrors.Internal("Failed to create booking", err)
		}
		s.cfg.Log.Info("Booking created", "id", booking.ID, "client_id", booking.ClientID)
		return nil
	}

	slot, err := s.loadSlot(ctx, booking.SlotID)
	if err != nil {
		return err
	}
	if err := s.checkSlotClaimable(slot, actor); err != nil {
		return err
	}

	if err := s.acquireLock(ctx, booking.SlotID); err != nil {
		return err
	}
	defer func() {
		if releaseErr := s.locks.Release(ctx, booking.SlotID); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release slot lock", "slot_id", booking.SlotID, "error", releaseErr)
		}
	}()

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx context.Context) error {
		current, err := s.loadSlot(sessCtx, booking.SlotID)
		if err != nil {
			return err
		}
		if err := s.checkSlotClaimable(current, actor); err != nil {
			return err
		}
		if err := s.slots.MarkBooked(sessCtx, booking.SlotID); err != nil {
			if errors.Is(err, consulterrors.ErrAlreadyBooked) {
				return apperrors.AlreadyBooked(booking.SlotID)
			}
			return apperrors.Internal("Failed to mark slot booked", err)
		}
		if err := s.repo.Create(sessCtx, booking); err != nil {
			return apperrors.Internal("Failed to create booking", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to create slot-backed booking",
			"slot_id", booking.SlotID,
			"client_id", actor.UserID,
			"error", err,
		)
		return err
	}

	s.cfg.Log.Info("Slot-backed booking created",
		"id", booking.ID,
		"slot_id", booking.SlotID,
		"client_id", booking.ClientID,
	)

	notify.Send(ctx, s.notifier, s.cfg.Log, slot.ProviderID,
		fmt.Sprintf("Your slot on %s was reserved", slot.StartTime.Format(time.RFC3339)),
		fmt.Sprintf("/bookings/%s", booking.ID))

	return nil
}

func (s *bookingService) GetByID(ctx context.Context, actor model.Principal, id string) (*model.Booking, error) {
	booking, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Is(booking.ClientID) {
		return nil, apperrors.NotAuthorized("only the owning client can view a booking")
	}
	return booking, nil
}

func (s *bookingService) ListMine(ctx context.Context, actor model.Principal, status model.ConsultationStatus, limit int, offset int64) ([]*model.Booking, int64, error) {
	if status != "" && !status.Valid() {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("invalid status filter: %s", status))
	}

	bookings, total, err := s.repo.FindByClient(ctx, actor.UserID, status, limit, offset)
	if err != nil {
		s.cfg.Log.Error("Failed to list bookings", "client_id", actor.UserID, "error", err)
		return nil, 0, apperrors.Internal("Failed to retrieve bookings", err)
	}
	return bookings, total, nil
}

// Cancel moves the booking to cancelled and, when a slot is held, releases
// it inside the same transaction.
func (s *bookingService) Cancel(ctx context.Context, actor model.Principal, id string, reason string) (*model.Booking, error) {
	reason = sanitizer.SanitizeReason(reason)

	booking, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Is(booking.ClientID) {
		return nil, apperrors.NotAuthorized("only the owning client can cancel a booking")
	}
	if !booking.Status.CanTransition(model.StatusCancelled) {
		return nil, apperrors.IllegalTransition(string(booking.Status), string(model.StatusCancelled))
	}

	from := booking.Status
	err = s.repo.ExecuteTransaction(ctx, func(sessCtx context.Context) error {
		if err := s.repo.UpdateStatus(sessCtx, id, from, model.StatusCancelled, reason); err != nil {
			if errors.Is(err, bookingserrors.ErrStatusChanged) {
				return apperrors.IllegalTransition(string(from), string(model.StatusCancelled))
			}
			if errors.Is(err, bookingserrors.ErrNotFound) {
				return apperrors.NotFoundWithID("Booking", id)
			}
			return apperrors.Internal("Failed to cancel booking", err)
		}

		if booking.HasSlot() {
			if err := s.slots.Release(sessCtx, booking.SlotID); err != nil {
				if errors.Is(err, consulterrors.ErrNotReleased) || errors.Is(err, consulterrors.ErrSlotNotFound) {
					s.cfg.Log.Warn("Slot was not booked at booking cancellation",
						"booking_id", id,
						"slot_id", booking.SlotID,
					)
					return nil
				}
				return apperrors.Internal("Failed to release slot", err)
			}
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to cancel booking", "id", id, "error", err)
		return nil, err
	}

	booking.Status = model.StatusCancelled
	booking.CancelReason = reason

	s.cfg.Log.Info("Booking cancelled", "id", id, "client_id", actor.UserID)
	return booking, nil
}

// UpdateStatus serves the non-cancel transitions: pending to confirmed,
// confirmed to completed. Cancellation goes through Cancel so the slot
// release and reason are never skipped.
func (s *bookingService) UpdateStatus(ctx context.Context, actor model.Principal, id string, target model.ConsultationStatus) (*model.Booking, error) {
	if target == model.StatusCancelled {
		return nil, apperrors.InvalidInput("use the cancel endpoint to cancel a booking")
	}
	if !target.Valid() {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid target status: %s", target))
	}

	booking, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Is(booking.ClientID) {
		return nil, apperrors.NotAuthorized("only the owning client can update a booking")
	}
	if !booking.Status.CanTransition(target) {
		return nil, apperrors.IllegalTransition(string(booking.Status), string(target))
	}

	if err := s.repo.UpdateStatus(ctx, id, booking.Status, target, ""); err != nil {
		if errors.Is(err, bookingserrors.ErrStatusChanged) {
			return nil, apperrors.IllegalTransition(string(booking.Status), string(target))
		}
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		s.cfg.Log.Error("Failed to update booking status", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to update booking status", err)
	}

	booking.Status = target
	s.cfg.Log.Info("Booking status updated", "id", id, "status", target)
	return booking, nil
}

// --- Helpers ---

func (s *bookingService) load(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}
	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		if errors.Is(err, bookingserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid booking ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}
	return booking, nil
}

func (s *bookingService) loadSlot(ctx context.Context, slotID string) (*model.Slot, error) {
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

func (s *bookingService) checkSlotClaimable(slot *model.Slot, actor model.Principal) error {
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

func (s *bookingService) acquireLock(ctx context.Context, slotID string) error {
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
			return apperrors.Internal("request cancelled while waiting for slot lock", ctx.Err())
		case <-time.After(s.cfg.SlotLockRetryInterval):
		}
	}
}
