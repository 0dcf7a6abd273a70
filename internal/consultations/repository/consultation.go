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
	ConsultationCollectionName = "Consultations"
)

type ConsultationRepository interface {
	Create(ctx context.Context, consultation *model.Consultation) error
	FindByID(ctx context.Context, id string) (*model.Consultation, error)
	FindBySlotID(ctx context.Context, slotID string) (*model.Consultation, error)
	FindByClient(ctx context.Context, clientID string, limit int, offset int64) ([]*model.Consultation, int64, error)
	FindByProvider(ctx context.Context, providerID string, limit int, offset int64) ([]*model.Consultation, int64, error)
	UpdateStatus(ctx context.Context, id string, from, to model.ConsultationStatus) error
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoConsultationRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoConsultationRepository(cfg *config.Config) ConsultationRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoConsultationRepository{
		cfg:        cfg,
		collection: db.Collection(ConsultationCollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func (r *mongoConsultationRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if mongo.SessionFromContext(ctx) != nil {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline && time.Until(deadline) < timeout {
		return context.WithTimeout(ctx, time.Until(deadline))
	}

	return context.WithTimeout(ctx, timeout)
}

func (r *mongoConsultationRepository) Create(ctx context.Context, consultation *model.Consultation) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	consultation.CreatedAt = now
	consultation.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, consultation)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return consulterrors.ErrAlreadyBooked
		}
		return fmt.Errorf("failed to create consultation: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		consultation.ID = oid.Hex()
	}
	return nil
}

func (r *mongoConsultationRepository) FindByID(ctx context.Context, id string) (*model.Consultation, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", consulterrors.ErrInvalidID, id)
	}

	var consultation model.Consultation
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&consultation)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, consulterrors.ErrConsultationNotFound
		}
		return nil, fmt.Errorf("failed to find consultation: %w", err)
	}

	return &consultation, nil
}

func (r *mongoConsultationRepository) FindBySlotID(ctx context.Context, slotID string) (*model.Consultation, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var consultation model.Consultation
	err := r.collection.FindOne(ctx, bson.M{"slot_id": slotID}).Decode(&consultation)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, consulterrors.ErrConsultationNotFound
		}
		return nil, fmt.Errorf("failed to find consultation by slot: %w", err)
	}

	return &consultation, nil
}

func (r *mongoConsultationRepository) FindByClient(ctx context.Context, clientID string, limit int, offset int64) ([]*model.Consultation, int64, error) {
	return r.findBy(ctx, bson.M{"client_id": clientID}, limit, offset)
}

func (r *mongoConsultationRepository) FindByProvider(ctx context.Context, providerID string, limit int, offset int64) ([]*model.Consultation, int64, error) {
	return r.findBy(ctx, bson.M{"provider_id": providerID}, limit, offset)
}

func (r *mongoConsultationRepository) findBy(ctx context.Context, filter bson.M, limit int, offset int64) ([]*model.Consultation, int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count consultations: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to find consultations: %w", err)
	}
	defer cursor.Close(ctx)

	var consultations []*model.Consultation
	if err = cursor.All(ctx, &consultations); err != nil {
		return nil, 0, fmt.Errorf("failed to decode consultations: %w", err)
	}

	return consultations, total, nil
}

// UpdateStatus moves a consultation from one status to another. The filter
// pins the current status so two racing transitions cannot both apply.
func (r *mongoConsultationRepository) UpdateStatus(ctx context.Context, id string, from, to model.ConsultationStatus) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", consulterrors.ErrInvalidID, id)
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": objectID, "status": from},
		bson.M{"$set": bson.M{
			"status":     to,
			"updated_at": time.Now().UTC().Truncate(time.Millisecond),
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to update consultation status: %w", err)
	}

	if result.MatchedCount == 0 {
		exists, err := r.exists(ctx, objectID)
		if err != nil {
			return err
		}
		if !exists {
			return consulterrors.ErrConsultationNotFound
		}
		return consulterrors.ErrStatusChanged
	}

	return nil
}

func (r *mongoConsultationRepository) exists(ctx context.Context, objectID primitive.ObjectID) (bool, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": objectID})
	if err != nil {
		return false, fmt.Errorf("failed to check consultation existence: %w", err)
	}
	return count > 0, nil
}

func (r *mongoConsultationRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
