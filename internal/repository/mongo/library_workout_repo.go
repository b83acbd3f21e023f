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

const libraryWorkoutCollectionName = "library_workouts"

// mongoLibraryWorkoutRepository implements repository.LibraryWorkoutRepository.
type mongoLibraryWorkoutRepository struct {
	collection *mongo.Collection
}

// NewMongoLibraryWorkoutRepository creates a new LibraryWorkout repository backed by MongoDB.
func NewMongoLibraryWorkoutRepository(db *mongo.Database) repository.LibraryWorkoutRepository {
	return &mongoLibraryWorkoutRepository{
		collection: db.Collection(libraryWorkoutCollectionName),
	}
}

// Create saves a new library workout.
func (r *mongoLibraryWorkoutRepository) Create(ctx context.Context, workout *domain.LibraryWorkout) (primitive.ObjectID, error) {
	if workout.Name == "" || workout.OwnerID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("workout name and owner ID are required")
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

// GetByID retrieves a single library workout by its ID.
func (r *mongoLibraryWorkoutRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.LibraryWorkout, error) {
	var workout domain.LibraryWorkout
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

// GetByOwnerID retrieves all library workouts owned by a user, by name.
func (r *mongoLibraryWorkoutRepository) GetByOwnerID(ctx context.Context, ownerID primitive.ObjectID) ([]domain.LibraryWorkout, error) {
	var workouts []domain.LibraryWorkout
	filter := bson.M{"ownerId": ownerID}
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})

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

// Update replaces the mutable fields of a library workout, scoped to its owner.
func (r *mongoLibraryWorkoutRepository) Update(ctx context.Context, workout *domain.LibraryWorkout) error {
	if workout.ID == primitive.NilObjectID {
		return errors.New("workout ID is required for update")
	}

	filter := bson.M{"_id": workout.ID, "ownerId": workout.OwnerID}
	update := bson.M{
		"$set": bson.M{
			"name":        workout.Name,
			"sport":       workout.Sport,
			"description": workout.Description,
			"durationMin": workout.DurationMin,
			"targetTss":   workout.TargetTSS,
			"distanceKm":  workout.DistanceKM,
			"updatedAt":   time.Now().UTC(),
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

// Delete removes a library workout, scoped to its owner.
func (r *mongoLibraryWorkoutRepository) Delete(ctx context.Context, id, ownerID primitive.ObjectID) error {
	filter := bson.M{"_id": id, "ownerId": ownerID}

	result, err := r.collection.DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureLibraryWorkoutIndexes creates necessary indexes for the library_workouts collection.
func EnsureLibraryWorkoutIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "ownerId", Value: 1}, {Key: "name", Value: 1}},
		},
	}

	_, _ = collection.Indexes().CreateMany(ctx, indexes)
}
