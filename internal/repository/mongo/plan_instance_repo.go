package mongo

import (
	"context"
	"errors"
	"time"

	"veloplan/training-app/internal/domain"
	"veloplan/training-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const planInstanceCollectionName = "plan_instances"

// mongoPlanInstanceRepository implements repository.PlanInstanceRepository.
type mongoPlanInstanceRepository struct {
	collection *mongo.Collection
}

// NewMongoPlanInstanceRepository creates a new PlanInstance repository backed by MongoDB.
func NewMongoPlanInstanceRepository(db *mongo.Database) repository.PlanInstanceRepository {
	return &mongoPlanInstanceRepository{
		collection: db.Collection(planInstanceCollectionName),
	}
}

// Create saves a new plan instance.
func (r *mongoPlanInstanceRepository) Create(ctx context.Context, instance *domain.PlanInstance) (primitive.ObjectID, error) {
	if instance.UserID == primitive.NilObjectID || instance.PlanID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("instance user ID and plan ID are required")
	}

	instance.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	instance.CreatedAt = now
	instance.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, instance)
	if err != nil {
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}

	return insertedID, nil
}

// GetByID retrieves a single plan instance by its ID.
func (r *mongoPlanInstanceRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.PlanInstance, error) {
	var instance domain.PlanInstance
	filter := bson.M{"_id": id}

	err := r.collection.FindOne(ctx, filter).Decode(&instance)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &instance, nil
}

// GetByUserID retrieves all plan instances for a user, newest start first.
func (r *mongoPlanInstanceRepository) GetByUserID(ctx context.Context, userID primitive.ObjectID) ([]domain.PlanInstance, error) {
	var instances []domain.PlanInstance
	filter := bson.M{"userId": userID}
	opts := options.Find().SetSort(bson.D{{Key: "startDate", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err := cursor.All(ctx, &instances); err != nil {
		return nil, err
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return instances, nil
}

// GetActiveByUserID retrieves only the active instances for a user. The
// overlap check runs against this set, so cancelled and completed plans
// never block new scheduling.
func (r *mongoPlanInstanceRepository) GetActiveByUserID(ctx context.Context, userID primitive.ObjectID) ([]domain.PlanInstance, error) {
	var instances []domain.PlanInstance
	filter := bson.M{"userId": userID, "status": domain.InstanceStatusActive}
	opts := options.Find().SetSort(bson.D{{Key: "startDate", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err := cursor.All(ctx, &instances); err != nil {
		return nil, err
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return instances, nil
}

// UpdateStatus transitions an instance, scoped to its user.
func (r *mongoPlanInstanceRepository) UpdateStatus(ctx context.Context, id, userID primitive.ObjectID, status domain.InstanceStatus) error {
	filter := bson.M{"_id": id, "userId": userID}
	update := bson.M{
		"$set": bson.M{
			"status":    status,
			"updatedAt": time.Now().UTC(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsurePlanInstanceIndexes creates necessary indexes for the plan_instances collection.
func EnsurePlanInstanceIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "userId", Value: 1}, {Key: "status", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "userId", Value: 1}, {Key: "startDate", Value: -1}},
		},
	}

	_, _ = collection.Indexes().CreateMany(ctx, indexes)
}
