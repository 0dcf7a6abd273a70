package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	requesterrors "istishara/internal/requests/errors"
	"istishara/pkg/config"
	"istishara/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	RequestCollectionName = "Consultation_requests"
)

type RequestRepository interface {
	Create(ctx context.Context, request *model.ConsultationRequest) error
	FindByID(ctx context.Context, id string) (*model.ConsultationRequest, error)
	FindByClient(ctx context.Context, clientID string, status model.RequestStatus, limit int, offset int64) ([]*model.ConsultationRequest, int64, error)
	FindByConsultant(ctx context.Context, consultantID string, status model.RequestStatus, limit int, offset int64) ([]*model.ConsultationRequest, int64, error)
	Respond(ctx context.Context, id string, from model.RequestStatus, response string, to model.RequestStatus) error
}

type mongoRequestRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoRequestRepository(cfg *config.Config) RequestRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoRequestRepository{
		cfg:        cfg,
		collection: db.Collection(RequestCollectionName),
	}
}

func (r *mongoRequestRepository) Create(ctx context.Context, request *model.ConsultationRequest) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	request.CreatedAt = now
	request.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, request)
	if err != nil {
		return fmt.Errorf("failed to create consultation request: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		request.ID = oid.Hex()
	}
	return nil
}

func (r *mongoRequestRepository) FindByID(ctx context.Context, id string) (*model.ConsultationRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", requesterrors.ErrInvalidID, id)
	}

	var request model.ConsultationRequest
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&request)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, requesterrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find consultation request: %w", err)
	}

	return &request, nil
}

func (r *mongoRequestRepository) FindByClient(ctx context.Context, clientID string, status model.RequestStatus, limit int, offset int64) ([]*model.ConsultationRequest, int64, error) {
	filter := bson.M{"client_id": clientID}
	if status != "" {
		filter["status"] = status
	}
	return r.findBy(ctx, filter, limit, offset)
}

func (r *mongoRequestRepository) FindByConsultant(ctx context.Context, consultantID string, status model.RequestStatus, limit int, offset int64) ([]*model.ConsultationRequest, int64, error) {
	filter := bson.M{"consultant_id": consultantID}
	if status != "" {
		filter["status"] = status
	}
	return r.findBy(ctx, filter, limit, offset)
}

func (r *mongoRequestRepository) findBy(ctx context.Context, filter bson.M, limit int, offset int64) ([]*model.ConsultationRequest, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count consultation requests: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to find consultation requests: %w", err)
	}
	defer cursor.Close(ctx)

	var requests []*model.ConsultationRequest
	if err = cursor.All(ctx, &requests); err != nil {
		return nil, 0, fmt.Errorf("failed to decode consultation requests: %w", err)
	}

	return requests, total, nil
}

// Respond writes the response and the new status in one conditional update.
// The filter pins the status the caller read, so two racing responses cannot
// both land.
func (r *mongoRequestRepository) Respond(ctx context.Context, id string, from model.RequestStatus, response string, to model.RequestStatus) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", requesterrors.ErrInvalidID, id)
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": objectID, "status": from},
		bson.M{"$set": bson.M{
			"response":   response,
			"status":     to,
			"updated_at": time.Now().UTC().Truncate(time.Millisecond),
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to respond to consultation request: %w", err)
	}

	if result.MatchedCount == 0 {
		count, countErr := r.collection.CountDocuments(ctx, bson.M{"_id": objectID})
		if countErr != nil {
			return fmt.Errorf("failed to check request existence: %w", countErr)
		}
		if count == 0 {
			return requesterrors.ErrNotFound
		}
		return requesterrors.ErrStatusChanged
	}

	return nil
}
