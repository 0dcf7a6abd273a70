package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	consulterrors "istishara/internal/consultations/errors"
	"istishara/internal/consultations/validator"
	"istishara/pkg/clock"
	"istishara/pkg/config"
	mongotx "istishara/pkg/db/mongo"
	"istishara/pkg/logger"
	"istishara/pkg/model"
)

func testConfig(now time.Time) *config.Config {
	return &config.Config{
		ReadTimeout:           time.Second,
		WriteTimeout:          time.Second,
		SlotLockTTL:           200 * time.Millisecond,
		SlotLockWaitTimeout:   100 * time.Millisecond,
		SlotLockRetryInterval: 5 * time.Millisecond,
		MinSlotDuration:       15 * time.Minute,
		MaxSlotDuration:       8 * time.Hour,
		Log:                   logger.New(logger.Config{Level: logger.ERROR, Output: io.Discard}),
		Clock:                 clock.Fixed{T: now},
	}
}

func testValidator(cfg *config.Config) *validator.SlotValidator {
	return validator.NewSlotValidator(cfg.Log)
}

// fakeSlotRepo keeps slots in a mutex-protected map. Conditional updates are
// atomic under the mutex, mirroring the single-document atomicity of the real
// store.
type fakeSlotRepo struct {
	mu     sync.Mutex
	slots  map[string]*model.Slot
	nextID int
}

func newFakeSlotRepo() *fakeSlotRepo {
	return &fakeSlotRepo{slots: map[string]*model.Slot{}}
}

func (r *fakeSlotRepo) put(slot *model.Slot) *model.Slot {
	r.mu.Lock()
	defer r.mu.Unlock()
	if slot.ID == "" {
		r.nextID++
		slot.ID = fmt.Sprintf("slot-%03d", r.nextID)
	}
	copied := *slot
	r.slots[slot.ID] = &copied
	return slot
}

func (r *fakeSlotRepo) Create(ctx context.Context, slot *model.Slot) error {
	r.put(slot)
	return nil
}

func (r *fakeSlotRepo) FindByID(ctx context.Context, id string) (*model.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	slot, ok := r.slots[id]
	if !ok {
		return nil, consulterrors.ErrSlotNotFound
	}
	copied := *slot
	return &copied, nil
}

func (r *fakeSlotRepo) FindAvailable(ctx context.Context, providerID string, from time.Time, limit int, offset int64) ([]*model.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Slot
	for _, slot := range r.slots {
		if slot.Booked || !slot.StartTime.After(from) {
			continue
		}
		if providerID != "" && slot.ProviderID != providerID {
			continue
		}
		copied := *slot
		out = append(out, &copied)
	}
	return out, nil
}

func (r *fakeSlotRepo) CountAvailable(ctx context.Context, providerID string, from time.Time) (int64, error) {
	slots, _ := r.FindAvailable(ctx, providerID, from, 0, 0)
	return int64(len(slots)), nil
}

func (r *fakeSlotRepo) FindByProvider(ctx context.Context, providerID string, from time.Time, limit int, offset int64) ([]*model.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Slot
	for _, slot := range r.slots {
		if slot.ProviderID == providerID && !slot.StartTime.Before(from) {
			copied := *slot
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeSlotRepo) FindOverlapping(ctx context.Context, providerID string, start, end time.Time, excludeID string) ([]*model.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Slot
	for _, slot := range r.slots {
		if slot.ProviderID != providerID || slot.ID == excludeID {
			continue
		}
		if slot.Overlaps(start, end) {
			copied := *slot
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeSlotRepo) MarkBooked(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	slot, ok := r.slots[id]
	if !ok {
		return consulterrors.ErrSlotNotFound
	}
	if slot.Booked {
		return consulterrors.ErrAlreadyBooked
	}
	slot.Booked = true
	return nil
}

func (r *fakeSlotRepo) Release(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	slot, ok := r.slots[id]
	if !ok {
		return consulterrors.ErrSlotNotFound
	}
	if !slot.Booked {
		return consulterrors.ErrNotReleased
	}
	slot.Booked = false
	return nil
}

func (r *fakeSlotRepo) UpdateUnbooked(ctx context.Context, id string, updated *model.Slot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	slot, ok := r.slots[id]
	if !ok {
		return consulterrors.ErrSlotNotFound
	}
	if slot.Booked {
		return consulterrors.ErrSlotBooked
	}
	slot.StartTime = updated.StartTime
	slot.EndTime = updated.EndTime
	slot.Recurring = updated.Recurring
	return nil
}

func (r *fakeSlotRepo) DeleteUnbooked(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	slot, ok := r.slots[id]
	if !ok {
		return consulterrors.ErrSlotNotFound
	}
	if slot.Booked {
		return consulterrors.ErrSlotBooked
	}
	delete(r.slots, id)
	return nil
}

func (r *fakeSlotRepo) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(ctx)
}

// fakeLockRepo is an in-process advisory lock with the same contract as the
// real one: Acquire fails with ErrLockHeld while another claim holds the key.
type fakeLockRepo struct {
	mu    sync.Mutex
	held  map[string]time.Time
	clock clock.Clock
}

func newFakeLockRepo(c clock.Clock) *fakeLockRepo {
	return &fakeLockRepo{held: map[string]time.Time{}, clock: c}
}

func (r *fakeLockRepo) Acquire(ctx context.Context, slotID string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if expiry, ok := r.held[slotID]; ok && expiry.After(time.Now()) {
		return consulterrors.ErrLockHeld
	}
	r.held[slotID] = time.Now().Add(ttl)
	return nil
}

func (r *fakeLockRepo) Release(ctx context.Context, slotID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.held, slotID)
	return nil
}

type fakeConsultationRepo struct {
	mu      sync.Mutex
	records map[string]*model.Consultation
	nextID  int

	createErr error
}

func newFakeConsultationRepo() *fakeConsultationRepo {
	return &fakeConsultationRepo{records: map[string]*model.Consultation{}}
}

func (r *fakeConsultationRepo) put(c *model.Consultation) *model.Consultation {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == "" {
		r.nextID++
		c.ID = fmt.Sprintf("consult-%03d", r.nextID)
	}
	copied := *c
	r.records[c.ID] = &copied
	return c
}

func (r *fakeConsultationRepo) Create(ctx context.Context, c *model.Consultation) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.put(c)
	return nil
}

func (r *fakeConsultationRepo) FindByID(ctx context.Context, id string) (*model.Consultation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.records[id]
	if !ok {
		return nil, consulterrors.ErrConsultationNotFound
	}
	copied := *c
	return &copied, nil
}

func (r *fakeConsultationRepo) FindBySlotID(ctx context.Context, slotID string) (*model.Consultation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.records {
		if c.SlotID == slotID {
			copied := *c
			return &copied, nil
		}
	}
	return nil, consulterrors.ErrConsultationNotFound
}

func (r *fakeConsultationRepo) FindByClient(ctx context.Context, clientID string, limit int, offset int64) ([]*model.Consultation, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Consultation
	for _, c := range r.records {
		if c.ClientID == clientID {
			copied := *c
			out = append(out, &copied)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeConsultationRepo) FindByProvider(ctx context.Context, providerID string, limit int, offset int64) ([]*model.Consultation, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Consultation
	for _, c := range r.records {
		if c.ProviderID == providerID {
			copied := *c
			out = append(out, &copied)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeConsultationRepo) UpdateStatus(ctx context.Context, id string, from, to model.ConsultationStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.records[id]
	if !ok {
		return consulterrors.ErrConsultationNotFound
	}
	if c.Status != from {
		return consulterrors.ErrStatusChanged
	}
	c.Status = to
	return nil
}

func (r *fakeConsultationRepo) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(ctx)
}

// fakeNotifier records deliveries and can be told to fail.
type fakeNotifier struct {
	mu       sync.Mutex
	sent     []sentNotification
	fail     bool
	closeErr error
}

type sentNotification struct {
	UserID  string
	Message string
	Link    string
}

func (n *fakeNotifier) Notify(ctx context.Context, userID, message, link string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return fmt.Errorf("broker unreachable")
	}
	n.sent = append(n.sent, sentNotification{UserID: userID, Message: message, Link: link})
	return nil
}

func (n *fakeNotifier) Close() error {
	return n.closeErr
}

func (n *fakeNotifier) delivered() []sentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]sentNotification, len(n.sent))
	copy(out, n.sent)
	return out
}
