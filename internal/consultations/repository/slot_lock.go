package repository

import (
	"context"
	"fmt"
	"time"

	consulterrors "istishara/internal/consultations/errors"
	"istishara/pkg/config"
	"istishara/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	SlotLockCollectionName = "Slot_locks"
)

// SlotLockRepository is an advisory lock keyed by slot id. Acquire inserts a
// document whose _id is the slot id; the unique index makes a second insert
// fail with a duplicate key, which maps to ErrLockHeld.
type SlotLockRepository interface {
	Acquire(ctx context.Context, slotID string, ttl time.Duration) error
	Release(ctx context.Context, slotID string) error
}

type mongoSlotLockRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoSlotLockRepository(cfg *config.Config) SlotLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSlotLockRepository{
		cfg:        cfg,
		collection: db.Collection(SlotLockCollectionName),
	}
}

func (r *mongoSlotLockRepository) Acquire(ctx context.Context, slotID string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := r.cfg.Clock.Now()
	lock := model.SlotLock{
		SlotID:    slotID,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	_, err := r.collection.InsertOne(ctx, lock)
	if err == nil {
		return nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("failed to acquire slot lock: %w", err)
	}

	// A lock document exists. If its holder died past the TTL, take it over
	// by swapping the expiry; otherwise report the lock as held. The TTL
	// monitor also reaps expired locks, but only once a minute.
	result, takeoverErr := r.collection.UpdateOne(ctx,
		bson.M{"_id": slotID, "expires_at": bson.M{"$lte": now}},
		bson.M{"$set": bson.M{"expires_at": now.Add(ttl), "created_at": now}},
	)
	if takeoverErr != nil {
		return fmt.Errorf("failed to take over stale slot lock: %w", takeoverErr)
	}
	if result.ModifiedCount == 0 {
		return consulterrors.ErrLockHeld
	}

	return nil
}

func (r *mongoSlotLockRepository) Release(ctx context.Context, slotID string) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": slotID})
	if err != nil {
		return fmt.Errorf("failed to release slot lock: %w", err)
	}
	return nil
}
