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
)

const fileCollectionName = "files"

// mongoFileRepository implements repository.FileRepository.
type mongoFileRepository struct {
	collection *mongo.Collection
}

// NewMongoFileRepository creates a new File repository backed by MongoDB.
func NewMongoFileRepository(db *mongo.Database) repository.FileRepository {
	return &mongoFileRepository{
		collection: db.Collection(fileCollectionName),
	}
}

// Create records the metadata of an object confirmed in storage.
func (r *mongoFileRepository) Create(ctx context.Context, file *domain.FileObject) (primitive.ObjectID, error) {
	if file.UserID == primitive.NilObjectID || file.ObjectKey == "" {
		return primitive.NilObjectID, errors.New("file user ID and object key are required")
	}

	file.ID = primitive.NewObjectID()
	file.UploadedAt = time.Now().UTC()

	result, err := r.collection.InsertOne(ctx, file)
	if err != nil {
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}

	return insertedID, nil
}

// GetByID retrieves file metadata by its ID.
func (r *mongoFileRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.FileObject, error) {
	var file domain.FileObject
	filter := bson.M{"_id": id}

	err := r.collection.FindOne(ctx, filter).Decode(&file)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &file, nil
}

// Delete removes file metadata. The object itself is deleted from storage
// by the service before this runs.
func (r *mongoFileRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	filter := bson.M{"_id": id}

	result, err := r.collection.DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureFileIndexes creates necessary indexes for the files collection.
func EnsureFileIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "userId", Value: 1}},
		},
	}

	_, _ = collection.Indexes().CreateMany(ctx, indexes)
}
