package service

import (
	"context"
	"errors"
	"sync"
	"time"

	consulterrors "istishara/internal/consultations/errors"
	"istishara/internal/consultations/repository"
	"istishara/internal/consultations/validator"
	"istishara/pkg/config"
	apperrors "istishara/pkg/errors"
	"istishara/pkg/model"
)

type SlotService interface {
	Create(ctx context.Context, actor model.Principal, slot *model.Slot) error
	GetByID(ctx context.Context, id string) (*model.Slot, error)
	ListAvailable(ctx context.Context, providerID string, limit int, offset int64) ([]*model.Slot, int64, error)
	ListByProvider(ctx context.Context, providerID string, limit int, offset int64) ([]*model.Slot, int64, error)
	Update(ctx context.Context, actor model.Principal, id string, updates *model.SlotUpdate) error
	Delete(ctx context.Context, actor model.Principal, id string) error
}

type slotService struct {
	repo      repository.SlotRepository
	validator *validator.SlotValidator
	cfg       *config.Config
}

func NewSlotService(
	repo repository.SlotRepository,
	validator *validator.SlotValidator,
	cfg *config.Config,
) SlotService {
	return &slotService{
		repo:      repo,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *slotService) Create(ctx context.Context, actor model.Principal, slot *model.Slot) error {
	slot.ProviderID = actor.UserID
	slot.Booked = false

	if err := s.validator.ValidateSlot(slot); err != nil {
		s.cfg.Log.Warn("Slot validation failed", "error", err)
		return apperrors.Validation("Slot validation failed", map[string]any{"error": err.Error()})
	}
	if err := s.checkInterval(slot.StartTime, slot.EndTime); err != nil {
		return err
	}
	if !slot.StartTime.After(s.cfg.Clock.Now()) {
		return apperrors.PastStart(slot.StartTime)
	}

	// Overlap check and insert share a transaction so two concurrent creates
	// for the same provider cannot both pass the check.
	err := s.repo.ExecuteTransaction(ctx, func(sessCtx context.Context) error {
		if err := s.checkOverlap(sessCtx, slot.ProviderID, slot.StartTime, slot.EndTime, ""); err != nil {
			return err
		}
		if err := s.repo.Create(sessCtx, slot); err != nil {
			return apperrors.Internal("Failed to create slot", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to create slot", "provider_id", slot.ProviderID, "error", err)
		return err
	}

	s.cfg.Log.Info("Slot created successfully",
		"id", slot.ID,
		"provider_id", slot.ProviderID,
		"start_time", slot.StartTime,
		"end_time", slot.EndTime,
	)
	return nil
}

func (s *slotService) GetByID(ctx context.Context, id string) (*model.Slot, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Slot ID cannot be empty")
	}

	slot, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, consulterrors.ErrSlotNotFound) {
			return nil, apperrors.NotFoundWithID("Slot", id)
		}
		if errors.Is(err, consulterrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid slot ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve slot", err)
	}

	return slot, nil
}

// ListAvailable returns upcoming unbooked slots, optionally scoped to one
// provider. Slots whose start has passed are excluded even if still unbooked.
func (s *slotService) ListAvailable(ctx context.Context, providerID string, limit int, offset int64) ([]*model.Slot, int64, error) {
	now := s.cfg.Clock.Now()

	var count int64
	var slots []*model.Slot
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountAvailable(ctx, providerID, now)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count available slots", "provider_id", providerID, "error", errCount)
			errCount = apperrors.Internal("Failed to count slots", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		slots, errFind = s.repo.FindAvailable(ctx, providerID, now, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list available slots", "provider_id", providerID, "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve slots", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return slots, count, nil
}

func (s *slotService) ListByProvider(ctx context.Context, providerID string, limit int, offset int64) ([]*model.Slot, int64, error) {
	if providerID == "" {
		return nil, 0, apperrors.InvalidInput("Provider ID cannot be empty")
	}

	slots, err := s.repo.FindByProvider(ctx, providerID, s.cfg.Clock.Now(), limit, offset)
	if err != nil {
		s.cfg.Log.Error("Failed to list provider slots", "provider_id", providerID, "error", err)
		return nil, 0, apperrors.Internal("Failed to retrieve slots", err)
	}

	return slots, int64(len(slots)), nil
}

func (s *slotService) Update(ctx context.Context, actor model.Principal, id string, updates *model.SlotUpdate) error {
	if id == "" {
		return apperrors.InvalidInput("Slot ID cannot be empty")
	}
	if err := s.validator.ValidateSlotUpdate(updates); err != nil {
		s.cfg.Log.Warn("Slot update validation failed", "id", id, "error", err)
		return apperrors.Validation("Invalid update input", map[string]any{"error": err.Error()})
	}

	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !actor.Is(existing.ProviderID) {
		return apperrors.NotAuthorized("only the owning provider can modify a slot")
	}
	if existing.Booked {
		return apperrors.AlreadyBooked(id)
	}

	merged := s.mergeSlotUpdates(existing, updates)
	if err := s.checkInterval(merged.StartTime, merged.EndTime); err != nil {
		return err
	}
	if !merged.StartTime.After(s.cfg.Clock.Now()) {
		return apperrors.PastStart(merged.StartTime)
	}

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx context.Context) error {
		if err := s.checkOverlap(sessCtx, existing.ProviderID, merged.StartTime, merged.EndTime, id); err != nil {
			return err
		}
		if err := s.repo.UpdateUnbooked(sessCtx, id, merged); err != nil {
			// An interleaved claim flips booked between our read and the
			// conditional update; surface it as the booking conflict it is.
			if errors.Is(err, consulterrors.ErrSlotBooked) {
				return apperrors.AlreadyBooked(id)
			}
			if errors.Is(err, consulterrors.ErrSlotNotFound) {
				return apperrors.NotFoundWithID("Slot", id)
			}
			return apperrors.Internal("Failed to update slot", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to update slot", "id", id, "error", err)
		return err
	}

	s.cfg.Log.Info("Slot updated successfully", "id", id)
	return nil
}

func (s *slotService) Delete(ctx context.Context, actor model.Principal, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Slot ID cannot be empty")
	}

	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !actor.Is(existing.ProviderID) {
		return apperrors.NotAuthorized("only the owning provider can delete a slot")
	}

	if err := s.repo.DeleteUnbooked(ctx, id); err != nil {
		if errors.Is(err, consulterrors.ErrSlotBooked) {
			return apperrors.AlreadyBooked(id)
		}
		if errors.Is(err, consulterrors.ErrSlotNotFound) {
			return apperrors.NotFoundWithID("Slot", id)
		}
		s.cfg.Log.Error("Failed to delete slot", "id", id, "error", err)
		return apperrors.Internal("Failed to delete slot", err)
	}

	s.cfg.Log.Info("Slot deleted successfully", "id", id)
	return nil
}

// --- Helpers ---

func (s *slotService) checkInterval(start, end time.Time) error {
	if !start.Before(end) {
		return apperrors.InvalidInterval(start, end)
	}
	duration := end.Sub(start)
	if duration < s.cfg.MinSlotDuration || duration > s.cfg.MaxSlotDuration {
		return apperrors.Validation("slot duration out of range", map[string]any{
			"duration":     duration.String(),
			"min_duration": s.cfg.MinSlotDuration.String(),
			"max_duration": s.cfg.MaxSlotDuration.String(),
		})
	}
	return nil
}

func (s *slotService) checkOverlap(ctx context.Context, providerID string, start, end time.Time, excludeID string) error {
	existing, err := s.repo.FindOverlapping(ctx, providerID, start, end, excludeID)
	if err != nil {
		return apperrors.Internal("Failed to check overlapping slots", err)
	}
	if len(existing) > 0 {
		return apperrors.OverlapConflict(existing[0].StartTime, existing[0].EndTime)
	}
	return nil
}

func (s *slotService) mergeSlotUpdates(existing *model.Slot, updates *model.SlotUpdate) *model.Slot {
	merged := *existing

	if updates.StartTime != nil {
		merged.StartTime = *updates.StartTime
	}
	if updates.EndTime != nil {
		merged.EndTime = *updates.EndTime
	}
	if updates.Recurring != nil {
		merged.Recurring = *updates.Recurring
	}

	return &merged
}
