package service

import (
	"context"
	"testing"
	"time"

	apperrors "istishara/pkg/errors"
	"istishara/pkg/model"
)

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func newSlotService(repo *fakeSlotRepo) SlotService {
	cfg := testConfig(testNow)
	return NewSlotService(repo, testValidator(cfg), cfg)
}

func provider(id string) model.Principal {
	return model.Principal{UserID: id, Role: model.RoleProvider}
}

func client(id string) model.Principal {
	return model.Principal{UserID: id, Role: model.RoleClient}
}

func futureSlot(providerID string, startOffset, duration time.Duration) *model.Slot {
	start := testNow.Add(startOffset)
	return &model.Slot{
		ProviderID: providerID,
		StartTime:  start,
		EndTime:    start.Add(duration),
	}
}

func TestSlotCreate(t *testing.T) {
	providerID := "507f1f77bcf86cd799439011"

	tests := []struct {
		name     string
		slot     *model.Slot
		wantCode string
	}{
		{
			name: "valid slot",
			slot: futureSlot(providerID, 2*time.Hour, time.Hour),
		},
		{
			name:     "start after end",
			slot:     &model.Slot{ProviderID: providerID, StartTime: testNow.Add(3 * time.Hour), EndTime: testNow.Add(2 * time.Hour)},
			wantCode: apperrors.CodeInvalidInterval,
		},
		{
			name:     "zero-length interval",
			slot:     &model.Slot{ProviderID: providerID, StartTime: testNow.Add(2 * time.Hour), EndTime: testNow.Add(2 * time.Hour)},
			wantCode: apperrors.CodeInvalidInterval,
		},
		{
			name:     "start in the past",
			slot:     futureSlot(providerID, -time.Hour, time.Hour),
			wantCode: apperrors.CodePastStart,
		},
		{
			name:     "start exactly now",
			slot:     futureSlot(providerID, 0, time.Hour),
			wantCode: apperrors.CodePastStart,
		},
		{
			name:     "below minimum duration",
			slot:     futureSlot(providerID, 2*time.Hour, 5*time.Minute),
			wantCode: apperrors.CodeValidation,
		},
		{
			name:     "above maximum duration",
			slot:     futureSlot(providerID, 2*time.Hour, 9*time.Hour),
			wantCode: apperrors.CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newSlotService(newFakeSlotRepo())
			err := svc.Create(context.Background(), provider(providerID), tt.slot)

			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("Create() error = %v, want nil", err)
				}
				if tt.slot.ID == "" {
					t.Error("Create() did not assign an ID")
				}
				if tt.slot.Booked {
					t.Error("Create() produced a booked slot")
				}
				return
			}

			if err == nil {
				t.Fatal("Create() error = nil, want error")
			}
			if got := apperrors.CodeOf(err); got != tt.wantCode {
				t.Errorf("Create() error code = %q, want %q", got, tt.wantCode)
			}
		})
	}
}

func TestSlotCreateOverlap(t *testing.T) {
	providerID := "507f1f77bcf86cd799439011"
	otherID := "507f1f77bcf86cd799439022"
	repo := newFakeSlotRepo()
	svc := newSlotService(repo)
	ctx := context.Background()

	// 11:00-12:00 for the first provider.
	if err := svc.Create(ctx, provider(providerID), futureSlot(providerID, 2*time.Hour, time.Hour)); err != nil {
		t.Fatalf("seed Create() error = %v", err)
	}

	tests := []struct {
		name        string
		providerID  string
		startOffset time.Duration
		duration    time.Duration
		wantCode    string
	}{
		{"same interval", providerID, 2 * time.Hour, time.Hour, apperrors.CodeOverlapConflict},
		{"straddles start", providerID, 90 * time.Minute, time.Hour, apperrors.CodeOverlapConflict},
		{"straddles end", providerID, 150 * time.Minute, time.Hour, apperrors.CodeOverlapConflict},
		{"contained", providerID, 135 * time.Minute, 30 * time.Minute, apperrors.CodeOverlapConflict},
		{"back to back after", providerID, 3 * time.Hour, time.Hour, ""},
		{"back to back before", providerID, time.Hour, time.Hour, ""},
		{"other provider same interval", otherID, 2 * time.Hour, time.Hour, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slot := futureSlot(tt.providerID, tt.startOffset, tt.duration)
			err := svc.Create(ctx, provider(tt.providerID), slot)

			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("Create() error = %v, want nil", err)
				}
				// Clean up so later cases see only the seed slot.
				if cleanupErr := svc.Delete(ctx, provider(tt.providerID), slot.ID); cleanupErr != nil {
					t.Fatalf("cleanup Delete() error = %v", cleanupErr)
				}
				return
			}
			if got := apperrors.CodeOf(err); got != tt.wantCode {
				t.Errorf("Create() error code = %q, want %q", got, tt.wantCode)
			}
		})
	}
}

func TestSlotUpdate(t *testing.T) {
	providerID := "507f1f77bcf86cd799439011"
	repo := newFakeSlotRepo()
	svc := newSlotService(repo)
	ctx := context.Background()

	slot := futureSlot(providerID, 2*time.Hour, time.Hour)
	if err := svc.Create(ctx, provider(providerID), slot); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	t.Run("owner moves the slot", func(t *testing.T) {
		newStart := testNow.Add(4 * time.Hour)
		newEnd := newStart.Add(time.Hour)
		err := svc.Update(ctx, provider(providerID), slot.ID, &model.SlotUpdate{
			StartTime: &newStart,
			EndTime:   &newEnd,
		})
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		got, err := svc.GetByID(ctx, slot.ID)
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		if !got.StartTime.Equal(newStart) {
			t.Errorf("StartTime = %v, want %v", got.StartTime, newStart)
		}
	})

	t.Run("non-owner is rejected", func(t *testing.T) {
		recurring := true
		err := svc.Update(ctx, provider("507f1f77bcf86cd799439099"), slot.ID, &model.SlotUpdate{Recurring: &recurring})
		if got := apperrors.CodeOf(err); got != apperrors.CodeNotAuthorized {
			t.Errorf("Update() error code = %q, want %q", got, apperrors.CodeNotAuthorized)
		}
	})

	t.Run("booked slot cannot be edited", func(t *testing.T) {
		if err := repo.MarkBooked(ctx, slot.ID); err != nil {
			t.Fatalf("MarkBooked() error = %v", err)
		}
		recurring := true
		err := svc.Update(ctx, provider(providerID), slot.ID, &model.SlotUpdate{Recurring: &recurring})
		if got := apperrors.CodeOf(err); got != apperrors.CodeAlreadyBooked {
			t.Errorf("Update() error code = %q, want %q", got, apperrors.CodeAlreadyBooked)
		}
	})

	t.Run("booked slot cannot be deleted", func(t *testing.T) {
		err := svc.Delete(ctx, provider(providerID), slot.ID)
		if got := apperrors.CodeOf(err); got != apperrors.CodeAlreadyBooked {
			t.Errorf("Delete() error code = %q, want %q", got, apperrors.CodeAlreadyBooked)
		}
	})
}

func TestSlotListAvailable(t *testing.T) {
	providerID := "507f1f77bcf86cd799439011"
	repo := newFakeSlotRepo()
	svc := newSlotService(repo)
	ctx := context.Background()

	repo.put(futureSlot(providerID, 2*time.Hour, time.Hour))       // upcoming, free
	repo.put(futureSlot(providerID, -2*time.Hour, time.Hour))      // already started
	booked := repo.put(futureSlot(providerID, 5*time.Hour, time.Hour)) // upcoming, booked
	if err := repo.MarkBooked(ctx, booked.ID); err != nil {
		t.Fatalf("MarkBooked() error = %v", err)
	}

	slots, total, err := svc.ListAvailable(ctx, providerID, 50, 0)
	if err != nil {
		t.Fatalf("ListAvailable() error = %v", err)
	}
	if total != 1 || len(slots) != 1 {
		t.Fatalf("ListAvailable() returned %d slots (total %d), want 1", len(slots), total)
	}
	if slots[0].Booked {
		t.Error("ListAvailable() returned a booked slot")
	}
	if !slots[0].StartTime.After(testNow) {
		t.Error("ListAvailable() returned a started slot")
	}
}
