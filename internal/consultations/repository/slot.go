package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	consulterrors "istishara/internal/consultations/errors"
	"istishara/pkg/config"
	mongotx "istishara/pkg/db/mongo"
	"istishara/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	SlotCollectionName = "Slots"
)

type SlotRepository interface {
	Create(ctx context.Context, slot *model.Slot) error
	FindByID(ctx context.Context, id string) (*model.Slot, error)
	FindAvailable(ctx context.Context, providerID string, from time.Time, limit int, offset int64) ([]*model.Slot, error)
	CountAvailable(ctx context.Context, providerID string, from time.Time) (int64, error)
	FindByProvider(ctx context.Context, providerID string, from time.Time, limit int, offset int64) ([]*model.Slot, error)
	FindOverlapping(ctx context.Context, providerID string, start, end time.Time, excludeID string) ([]*model.Slot, error)
	MarkBooked(ctx context.Context, id string) error
	Release(ctx context.Context, id string) error
	UpdateUnbooked(ctx context.Context, id string, slot *model.Slot) error
	DeleteUnbooked(ctx context.Context, id string) error
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoSlotRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoSlotRepository(cfg *config.Config) SlotRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSlotRepository{
		cfg:        cfg,
		collection: db.Collection(SlotCollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout wraps the context with a timeout unless a session is already
// driving it: deadlines on a transaction context belong to the transaction.
func (r *mongoSlotRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if mongo.SessionFromContext(ctx) != nil {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline && time.Until(deadline) < timeout {
		return context.WithTimeout(ctx, time.Until(deadline))
	}

	return context.WithTimeout(ctx, timeout)
}

func (r *mongoSlotRepository) Create(ctx context.Context, slot *model.Slot) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	slot.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	slot.Booked = false
	result, err := r.collection.InsertOne(ctx, slot)
	if err != nil {
		return fmt.Errorf("failed to create slot: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		slot.ID = oid.Hex()
	}
	return nil
}

func (r *mongoSlotRepository) FindByID(ctx context.Context, id string) (*model.Slot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", consulterrors.ErrInvalidID, id)
	}

	var slot model.Slot
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&slot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, consulterrors.ErrSlotNotFound
		}
		return nil, fmt.Errorf("failed to find slot: %w", err)
	}

	return &slot, nil
}

func (r *mongoSlotRepository) FindAvailable(ctx context.Context, providerID string, from time.Time, limit int, offset int64) ([]*model.Slot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "start_time", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, availableFilter(providerID, from), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find available slots: %w", err)
	}
	defer cursor.Close(ctx)

	var slots []*model.Slot
	if err = cursor.All(ctx, &slots); err != nil {
		return nil, fmt.Errorf("failed to decode slots: %w", err)
	}

	return slots, nil
}

func (r *mongoSlotRepository) CountAvailable(ctx context.Context, providerID string, from time.Time) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, availableFilter(providerID, from))
	if err != nil {
		return 0, fmt.Errorf("failed to count available slots: %w", err)
	}
	return count, nil
}

func availableFilter(providerID string, from time.Time) bson.M {
	filter := bson.M{
		"booked":     false,
		"start_time": bson.M{"$gt": from},
	}
	if providerID != "" {
		filter["provider_id"] = providerID
	}
	return filter
}

func (r *mongoSlotRepository) FindByProvider(ctx context.Context, providerID string, from time.Time, limit int, offset int64) ([]*model.Slot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"provider_id": providerID,
		"start_time":  bson.M{"$gte": from},
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "start_time", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find provider slots: %w", err)
	}
	defer cursor.Close(ctx)

	var slots []*model.Slot
	if err = cursor.All(ctx, &slots); err != nil {
		return nil, fmt.Errorf("failed to decode slots: %w", err)
	}

	return slots, nil
}

// FindOverlapping returns the provider's slots intersecting [start, end).
// Half-open interval test: a.start < b.end AND b.start < a.end.
func (r *mongoSlotRepository) FindOverlapping(ctx context.Context, providerID string, start, end time.Time, excludeID string) ([]*model.Slot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"provider_id": providerID,
		"start_time":  bson.M{"$lt": end},
		"end_time":    bson.M{"$gt": start},
	}
	if excludeID != "" {
		objectID, err := primitive.ObjectIDFromHex(excludeID)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", consulterrors.ErrInvalidID, excludeID)
		}
		filter["_id"] = bson.M{"$ne": objectID}
	}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find overlapping slots: %w", err)
	}
	defer cursor.Close(ctx)

	var slots []*model.Slot
	if err = cursor.All(ctx, &slots); err != nil {
		return nil, fmt.Errorf("failed to decode slots: %w", err)
	}

	return slots, nil
}

// MarkBooked flips booked false->true conditionally: the filter includes
// booked=false, so a concurrent claim that got there first makes this a
// no-match and the caller observes ErrAlreadyBooked.
func (r *mongoSlotRepository) MarkBooked(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", consulterrors.ErrInvalidID, id)
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": objectID, "booked": false},
		bson.M{"$set": bson.M{"booked": true}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark slot booked: %w", err)
	}

	if result.MatchedCount == 0 {
		exists, err := r.exists(ctx, objectID)
		if err != nil {
			return err
		}
		if !exists {
			return consulterrors.ErrSlotNotFound
		}
		return consulterrors.ErrAlreadyBooked
	}

	return nil
}

// Release resets booked to false. Callers invoke it only inside the
// cancellation transaction.
func (r *mongoSlotRepository) Release(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", consulterrors.ErrInvalidID, id)
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": objectID, "booked": true},
		bson.M{"$set": bson.M{"booked": false}},
	)
	if err != nil {
		return fmt.Errorf("failed to release slot: %w", err)
	}

	if result.MatchedCount == 0 {
		exists, err := r.exists(ctx, objectID)
		if err != nil {
			return err
		}
		if !exists {
			return consulterrors.ErrSlotNotFound
		}
		return consulterrors.ErrNotReleased
	}

	return nil
}

// UpdateUnbooked applies a provider edit. The booked=false filter is the
// optimistic guard: an edit losing the race against a claim matches nothing
// and fails with ErrSlotBooked.
func (r *mongoSlotRepository) UpdateUnbooked(ctx context.Context, id string, slot *model.Slot) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", consulterrors.ErrInvalidID, id)
	}

	update := bson.M{
		"$set": bson.M{
			"start_time": slot.StartTime,
			"end_time":   slot.EndTime,
			"recurring":  slot.Recurring,
		},
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": objectID, "booked": false},
		update,
	)
	if err != nil {
		return fmt.Errorf("failed to update slot: %w", err)
	}

	if result.MatchedCount == 0 {
		exists, err := r.exists(ctx, objectID)
		if err != nil {
			return err
		}
		if !exists {
			return consulterrors.ErrSlotNotFound
		}
		return consulterrors.ErrSlotBooked
	}

	return nil
}

func (r *mongoSlotRepository) DeleteUnbooked(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", consulterrors.ErrInvalidID, id)
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objectID, "booked": false})
	if err != nil {
		return fmt.Errorf("failed to delete slot: %w", err)
	}

	if result.DeletedCount == 0 {
		exists, err := r.exists(ctx, objectID)
		if err != nil {
			return err
		}
		if !exists {
			return consulterrors.ErrSlotNotFound
		}
		return consulterrors.ErrSlotBooked
	}

	return nil
}

func (r *mongoSlotRepository) exists(ctx context.Context, objectID primitive.ObjectID) (bool, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": objectID})
	if err != nil {
		return false, fmt.Errorf("failed to check slot existence: %w", err)
	}
	return count > 0, nil
}

func (r *mongoSlotRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
