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

const activityCollectionName = "activities"

// mongoActivityRepository implements repository.ActivityRepository.
type mongoActivityRepository struct {
	collection *mongo.Collection
}

// NewMongoActivityRepository creates a new Activity repository backed by MongoDB.
func NewMongoActivityRepository(db *mongo.Database) repository.ActivityRepository {
	return &mongoActivityRepository{
		collection: db.Collection(activityCollectionName),
	}
}

// Create saves a new activity. Provider imports carry an external ID; the
// unique sparse index turns a replayed import into ErrDuplicate so sync
// stays idempotent.
func (r *mongoActivityRepository) Create(ctx context.Context, activity *domain.Activity) (primitive.ObjectID, error) {
	if activity.UserID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("activity user ID is required")
	}

	activity.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	activity.CreatedAt = now
	activity.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, activity)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}

	return insertedID, nil
}

// GetByID retrieves a single activity by its ID.
func (r *mongoActivityRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Activity, error) {
	var activity domain.Activity
	filter := bson.M{"_id": id}

	err := r.collection.FindOne(ctx, filter).Decode(&activity)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &activity, nil
}

// GetByUserAndTimeRange retrieves a user's activities with start times in
// [from, to), newest first.
func (r *mongoActivityRepository) GetByUserAndTimeRange(ctx context.Context, userID primitive.ObjectID, from, to time.Time) ([]domain.Activity, error) {
	var activities []domain.Activity
	filter := bson.M{
		"userId":    userID,
		"startTime": bson.M{"$gte": from, "$lt": to},
	}
	opts := options.Find().SetSort(bson.D{{Key: "startTime", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err := cursor.All(ctx, &activities); err != nil {
		return nil, err
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return activities, nil
}

// GetByExternalID looks up an activity imported from a provider.
func (r *mongoActivityRepository) GetByExternalID(ctx context.Context, userID primitive.ObjectID, source domain.ActivitySource, externalID string) (*domain.Activity, error) {
	var activity domain.Activity
	filter := bson.M{"userId": userID, "source": source, "externalId": externalID}

	err := r.collection.FindOne(ctx, filter).Decode(&activity)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &activity, nil
}

// GetUnmatchedByUser retrieves the activities not yet linked to a
// scheduled workout, oldest first so sweeps match in recording order.
func (r *mongoActivityRepository) GetUnmatchedByUser(ctx context.Context, userID primitive.ObjectID) ([]domain.Activity, error) {
	var activities []domain.Activity
	filter := bson.M{"userId": userID, "matchedWorkoutId": nil}
	opts := options.Find().SetSort(bson.D{{Key: "startTime", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err := cursor.All(ctx, &activities); err != nil {
		return nil, err
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return activities, nil
}

// SetFile attaches or detaches the stored file reference.
func (r *mongoActivityRepository) SetFile(ctx context.Context, id primitive.ObjectID, fileID *primitive.ObjectID) error {
	filter := bson.M{"_id": id}

	set := bson.M{"updatedAt": time.Now().UTC()}
	if fileID != nil {
		set["fileId"] = *fileID
	} else {
		set["fileId"] = nil
	}

	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// SetMatch links or unlinks the scheduled workout this activity fulfilled.
func (r *mongoActivityRepository) SetMatch(ctx context.Context, id primitive.ObjectID, workoutID *primitive.ObjectID) error {
	filter := bson.M{"_id": id}

	set := bson.M{"updatedAt": time.Now().UTC()}
	if workoutID != nil {
		set["matchedWorkoutId"] = *workoutID
	} else {
		set["matchedWorkoutId"] = nil
	}

	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete removes an activity, scoped to its user.
func (r *mongoActivityRepository) Delete(ctx context.Context, id, userID primitive.ObjectID) error {
	filter := bson.M{"_id": id, "userId": userID}

	result, err := r.collection.DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureActivityIndexes creates necessary indexes for the activities collection.
func EnsureActivityIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "userId", Value: 1}, {Key: "startTime", Value: -1}},
		},
		{
			// Idempotent provider imports. Partial so manual and GPX
			// activities, which carry no external ID, do not collide.
			Keys: bson.D{
				{Key: "userId", Value: 1},
				{Key: "source", Value: 1},
				{Key: "externalId", Value: 1},
			},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "externalId", Value: bson.D{{Key: "$exists", Value: true}}}}),
		},
		{
			Keys:    bson.D{{Key: "matchedWorkoutId", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	}

	_, _ = collection.Indexes().CreateMany(ctx, indexes)
}
