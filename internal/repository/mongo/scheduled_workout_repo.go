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

const scheduledWorkoutCollectionName = "scheduled_workouts"

// mongoScheduledWorkoutRepository implements repository.ScheduledWorkoutRepository.
type mongoScheduledWorkoutRepository struct {
	collection *mongo.Collection
}

// NewMongoScheduledWorkoutRepository creates a new ScheduledWorkout repository backed by MongoDB.
func NewMongoScheduledWorkoutRepository(db *mongo.Database) repository.ScheduledWorkoutRepository {
	return &mongoScheduledWorkoutRepository{
		collection: db.Collection(scheduledWorkoutCollectionName),
	}
}

// Create saves a single scheduled workout.
func (r *mongoScheduledWorkoutRepository) Create(ctx context.Context, workout *domain.ScheduledWorkout) (primitive.ObjectID, error) {
	if workout.UserID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("workout user ID is required")
	}

	workout.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	workout.CreatedAt = now
	workout.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, workout)
	if err != nil {
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}

	return insertedID, nil
}

// CreateMany inserts a batch of scheduled workouts. Used when a plan
// instance is materialized onto the calendar.
func (r *mongoScheduledWorkoutRepository) CreateMany(ctx context.Context, workouts []domain.ScheduledWorkout) error {
	if len(workouts) == 0 {
		return nil
	}

	now := time.Now().UTC()
	docs := make([]interface{}, 0, len(workouts))
	for i := range workouts {
		workouts[i].ID = primitive.NewObjectID()
		workouts[i].CreatedAt = now
		workouts[i].UpdatedAt = now
		docs = append(docs, workouts[i])
	}

	_, err := r.collection.InsertMany(ctx, docs)
	return err
}

// GetByID retrieves a single scheduled workout by its ID.
func (r *mongoScheduledWorkoutRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.ScheduledWorkout, error) {
	var workout domain.ScheduledWorkout
	filter := bson.M{"_id": id}

	err := r.collection.FindOne(ctx, filter).Decode(&workout)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &workout, nil
}

// GetByInstanceID retrieves every workout materialized from one plan instance.
func (r *mongoScheduledWorkoutRepository) GetByInstanceID(ctx context.Context, instanceID primitive.ObjectID) ([]domain.ScheduledWorkout, error) {
	var workouts []domain.ScheduledWorkout
	filter := bson.M{"instanceId": instanceID}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err := cursor.All(ctx, &workouts); err != nil {
		return nil, err
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return workouts, nil
}

// GetByUserAndDateRange retrieves a user's calendar slice, both bounds inclusive.
func (r *mongoScheduledWorkoutRepository) GetByUserAndDateRange(ctx context.Context, userID primitive.ObjectID, from, to time.Time) ([]domain.ScheduledWorkout, error) {
	var workouts []domain.ScheduledWorkout
	filter := bson.M{
		"userId": userID,
		"date":   bson.M{"$gte": from, "$lte": to},
	}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err := cursor.All(ctx, &workouts); err != nil {
		return nil, err
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return workouts, nil
}

// UpdateStatus transitions a workout between planned/completed/skipped,
// scoped to its user.
func (r *mongoScheduledWorkoutRepository) UpdateStatus(ctx context.Context, id, userID primitive.ObjectID, status domain.WorkoutStatus) error {
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

// SetMatch links an activity to the workout and marks it completed.
func (r *mongoScheduledWorkoutRepository) SetMatch(ctx context.Context, id, activityID primitive.ObjectID) error {
	filter := bson.M{"_id": id}
	update := bson.M{
		"$set": bson.M{
			"matchedActivityId": activityID,
			"status":            domain.WorkoutStatusCompleted,
			"updatedAt":         time.Now().UTC(),
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

// ClearMatchByActivity unlinks whatever workout referenced the given
// activity. Called when an activity is deleted; a no-op when nothing
// was matched.
func (r *mongoScheduledWorkoutRepository) ClearMatchByActivity(ctx context.Context, activityID primitive.ObjectID) error {
	filter := bson.M{"matchedActivityId": activityID}
	update := bson.M{
		"$set": bson.M{
			"matchedActivityId": nil,
			"status":            domain.WorkoutStatusPlanned,
			"updatedAt":         time.Now().UTC(),
		},
	}

	_, err := r.collection.UpdateMany(ctx, filter, update)
	return err
}

// DeleteUnmatchedByInstance removes the planned, never-matched workouts of
// an instance. Completed and matched entries survive cancellation so the
// training history stays intact.
func (r *mongoScheduledWorkoutRepository) DeleteUnmatchedByInstance(ctx context.Context, instanceID primitive.ObjectID) error {
	filter := bson.M{
		"instanceId":        instanceID,
		"status":            domain.WorkoutStatusPlanned,
		"matchedActivityId": nil,
	}

	_, err := r.collection.DeleteMany(ctx, filter)
	return err
}

// EnsureScheduledWorkoutIndexes creates necessary indexes for the scheduled_workouts collection.
func EnsureScheduledWorkoutIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "userId", Value: 1}, {Key: "date", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "instanceId", Value: 1}},
		},
		{
			Keys:    bson.D{{Key: "matchedActivityId", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	}

	_, _ = collection.Indexes().CreateMany(ctx, indexes)
}
