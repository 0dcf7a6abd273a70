package service

import (
	"context"
	"sync"
	"testing"
	"time"

	apperrors "istishara/pkg/errors"
	"istishara/pkg/model"
)

type claimFixture struct {
	slots    *fakeSlotRepo
	locks    *fakeLockRepo
	consults *fakeConsultationRepo
	notifier *fakeNotifier
	svc      ClaimService
}

func newClaimFixture() *claimFixture {
	cfg := testConfig(testNow)
	f := &claimFixture{
		slots:    newFakeSlotRepo(),
		locks:    newFakeLockRepo(cfg.Clock),
		consults: newFakeConsultationRepo(),
		notifier: &fakeNotifier{},
	}
	f.svc = NewClaimService(f.slots, f.locks, f.consults, testValidator(cfg), f.notifier, cfg)
	return f
}

const (
	claimProviderID = "507f1f77bcf86cd799439011"
	claimClientID   = "507f1f77bcf86cd799439022"
)

func (f *claimFixture) seedSlot(t *testing.T, startOffset time.Duration) *model.Slot {
	t.Helper()
	slot := futureSlot(claimProviderID, startOffset, time.Hour)
	f.slots.put(slot)
	return slot
}

func TestClaimSuccess(t *testing.T) {
	f := newClaimFixture()
	slot := f.seedSlot(t, 2*time.Hour)

	consultation, err := f.svc.Claim(context.Background(), client(claimClientID), &model.ClaimInput{SlotID: slot.ID})
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}

	if consultation.Status != model.StatusConfirmed {
		t.Errorf("Status = %q, want %q", consultation.Status, model.StatusConfirmed)
	}
	if consultation.ProviderID != claimProviderID {
		t.Errorf("ProviderID = %q, want %q", consultation.ProviderID, claimProviderID)
	}
	if consultation.ClientID != claimClientID {
		t.Errorf("ClientID = %q, want %q", consultation.ClientID, claimClientID)
	}

	stored, err := f.slots.FindByID(context.Background(), slot.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if !stored.Booked {
		t.Error("slot not marked booked after claim")
	}

	// Both parties hear about the booking.
	delivered := f.notifier.delivered()
	if len(delivered) != 2 {
		t.Fatalf("delivered %d notifications, want 2", len(delivered))
	}
	recipients := map[string]bool{}
	for _, n := range delivered {
		recipients[n.UserID] = true
	}
	if !recipients[claimProviderID] || !recipients[claimClientID] {
		t.Errorf("notification recipients = %v, want provider and client", recipients)
	}
}

func TestClaimRejections(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(f *claimFixture, t *testing.T) (actor model.Principal, slotID string)
		wantCode string
	}{
		{
			name: "unknown slot",
			setup: func(f *claimFixture, t *testing.T) (model.Principal, string) {
				return client(claimClientID), "missing-slot"
			},
			wantCode: apperrors.CodeNotFound,
		},
		{
			name: "provider claims own slot",
			setup: func(f *claimFixture, t *testing.T) (model.Principal, string) {
				slot := f.seedSlot(t, 2*time.Hour)
				return provider(claimProviderID), slot.ID
			},
			wantCode: apperrors.CodeSelfBooking,
		},
		{
			name: "slot start has passed",
			setup: func(f *claimFixture, t *testing.T) (model.Principal, string) {
				slot := f.seedSlot(t, -time.Hour)
				return client(claimClientID), slot.ID
			},
			wantCode: apperrors.CodeSlotExpired,
		},
		{
			name: "slot starts exactly now",
			setup: func(f *claimFixture, t *testing.T) (model.Principal, string) {
				slot := f.seedSlot(t, 0)
				return client(claimClientID), slot.ID
			},
			wantCode: apperrors.CodeSlotExpired,
		},
		{
			name: "slot already booked",
			setup: func(f *claimFixture, t *testing.T) (model.Principal, string) {
				slot := f.seedSlot(t, 2*time.Hour)
				if _, err := f.svc.Claim(context.Background(), client("507f1f77bcf86cd799439033"), &model.ClaimInput{SlotID: slot.ID}); err != nil {
					t.Fatalf("seed Claim() error = %v", err)
				}
				return client(claimClientID), slot.ID
			},
			wantCode: apperrors.CodeAlreadyBooked,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newClaimFixture()
			actor, slotID := tt.setup(f, t)

			_, err := f.svc.Claim(context.Background(), actor, &model.ClaimInput{SlotID: slotID})
			if err == nil {
				t.Fatal("Claim() error = nil, want error")
			}
			if got := apperrors.CodeOf(err); got != tt.wantCode {
				t.Errorf("Claim() error code = %q, want %q", got, tt.wantCode)
			}
		})
	}
}

// TestClaimMutualExclusion races many clients for one slot and checks that
// exactly one wins and exactly one consultation exists afterwards.
func TestClaimMutualExclusion(t *testing.T) {
	f := newClaimFixture()
	slot := f.seedSlot(t, 2*time.Hour)

	const contenders = 16
	var wg sync.WaitGroup
	results := make([]error, contenders)

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			clientID := client("507f1f77bcf86cd7994390" + string(rune('a'+i%26)) + string(rune('a'+i/26)))
			_, results[i] = f.svc.Claim(context.Background(), clientID, &model.ClaimInput{SlotID: slot.ID})
		}(i)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		default:
			switch apperrors.CodeOf(err) {
			case apperrors.CodeAlreadyBooked, apperrors.CodeBusy:
				conflicts++
			default:
				t.Errorf("unexpected claim error: %v", err)
			}
		}
	}

	if wins != 1 {
		t.Errorf("wins = %d, want exactly 1", wins)
	}
	if wins+conflicts != contenders {
		t.Errorf("wins+conflicts = %d, want %d", wins+conflicts, contenders)
	}

	consultations, total, err := f.consults.FindByProvider(context.Background(), claimProviderID, 100, 0)
	if err != nil {
		t.Fatalf("FindByProvider() error = %v", err)
	}
	if total != 1 || len(consultations) != 1 {
		t.Errorf("consultations created = %d, want exactly 1", total)
	}

	stored, err := f.slots.FindByID(context.Background(), slot.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if !stored.Booked {
		t.Error("slot not booked after the race")
	}
}

func TestClaimLockWaitTimeout(t *testing.T) {
	f := newClaimFixture()
	slot := f.seedSlot(t, 2*time.Hour)

	// Hold the lock for longer than the bounded wait.
	if err := f.locks.Acquire(context.Background(), slot.ID, time.Minute); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	_, err := f.svc.Claim(context.Background(), client(claimClientID), &model.ClaimInput{SlotID: slot.ID})
	if got := apperrors.CodeOf(err); got != apperrors.CodeBusy {
		t.Errorf("Claim() error code = %q, want %q", got, apperrors.CodeBusy)
	}

	// The slot itself is untouched: an outside lock never books anything.
	stored, _ := f.slots.FindByID(context.Background(), slot.ID)
	if stored.Booked {
		t.Error("slot booked despite lock timeout")
	}
}

func TestClaimWaitsOutShortLockHold(t *testing.T) {
	f := newClaimFixture()
	slot := f.seedSlot(t, 2*time.Hour)

	if err := f.locks.Acquire(context.Background(), slot.ID, time.Minute); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = f.locks.Release(context.Background(), slot.ID)
	}()

	consultation, err := f.svc.Claim(context.Background(), client(claimClientID), &model.ClaimInput{SlotID: slot.ID})
	if err != nil {
		t.Fatalf("Claim() after lock release error = %v", err)
	}
	if consultation.Status != model.StatusConfirmed {
		t.Errorf("Status = %q, want %q", consultation.Status, model.StatusConfirmed)
	}
}

func TestClaimTakesOverStaleLock(t *testing.T) {
	f := newClaimFixture()
	slot := f.seedSlot(t, 2*time.Hour)

	// A crashed claimer left an expired lock behind.
	f.locks.mu.Lock()
	f.locks.held[slot.ID] = time.Now().Add(-time.Second)
	f.locks.mu.Unlock()

	consultation, err := f.svc.Claim(context.Background(), client(claimClientID), &model.ClaimInput{SlotID: slot.ID})
	if err != nil {
		t.Fatalf("Claim() over stale lock error = %v", err)
	}
	if consultation.Status != model.StatusConfirmed {
		t.Errorf("Status = %q, want %q", consultation.Status, model.StatusConfirmed)
	}
}

// A notification failure must never unwind a committed booking.
func TestClaimNotificationFailureDoesNotFailClaim(t *testing.T) {
	f := newClaimFixture()
	f.notifier.fail = true
	slot := f.seedSlot(t, 2*time.Hour)

	consultation, err := f.svc.Claim(context.Background(), client(claimClientID), &model.ClaimInput{SlotID: slot.ID})
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if consultation.ID == "" {
		t.Error("consultation not persisted")
	}

	stored, _ := f.slots.FindByID(context.Background(), slot.ID)
	if !stored.Booked {
		t.Error("slot not booked")
	}
}

func TestClaimAfterCancellationRelease(t *testing.T) {
	f := newClaimFixture()
	cfg := testConfig(testNow)
	consultSvc := NewConsultationService(f.consults, f.slots, testValidator(cfg), f.notifier, cfg)

	slot := f.seedSlot(t, 2*time.Hour)
	first, err := f.svc.Claim(context.Background(), client(claimClientID), &model.ClaimInput{SlotID: slot.ID})
	if err != nil {
		t.Fatalf("first Claim() error = %v", err)
	}

	_, err = consultSvc.Transition(context.Background(), client(claimClientID), first.ID, &model.TransitionInput{
		Target: model.StatusCancelled,
		Reason: "schedule conflict",
	})
	if err != nil {
		t.Fatalf("Transition(cancelled) error = %v", err)
	}

	// The released slot is claimable by someone else.
	second, err := f.svc.Claim(context.Background(), client("507f1f77bcf86cd799439033"), &model.ClaimInput{SlotID: slot.ID})
	if err != nil {
		t.Fatalf("second Claim() error = %v", err)
	}
	if second.ID == first.ID {
		t.Error("second claim reused the cancelled consultation")
	}
	if second.Status != model.StatusConfirmed {
		t.Errorf("Status = %q, want %q", second.Status, model.StatusConfirmed)
	}
}
