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

const connectionCollectionName = "connections"

// mongoConnectionRepository implements repository.ConnectionRepository.
type mongoConnectionRepository struct {
	collection *mongo.Collection
}

// NewMongoConnectionRepository creates a new Connection repository backed by MongoDB.
func NewMongoConnectionRepository(db *mongo.Database) repository.ConnectionRepository {
	return &mongoConnectionRepository{
		collection: db.Collection(connectionCollectionName),
	}
}

// Upsert stores the connection for (user, provider), replacing any previous
// one. Reconnecting after a revoked token just overwrites the stale record.
func (r *mongoConnectionRepository) Upsert(ctx context.Context, conn *domain.Connection) (*domain.Connection, error) {
	now := time.Now().UTC()
	filter := bson.M{"userId": conn.UserID, "provider": conn.Provider}
	update := bson.M{
		"$set": bson.M{
			"providerUserId": conn.ProviderUserID,
			"athleteName":    conn.AthleteName,
			"accessToken":    conn.AccessToken,
			"refreshToken":   conn.RefreshToken,
			"expiresAt":      conn.ExpiresAt,
			"scope":          conn.Scope,
			"updatedAt":      now,
		},
		"$setOnInsert": bson.M{
			"userId":    conn.UserID,
			"provider":  conn.Provider,
			"createdAt": now,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var updated domain.Connection
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, repository.ErrDuplicate
		}
		return nil, err
	}
	return &updated, nil
}

// GetByUserAndProvider retrieves one user's connection to one provider.
func (r *mongoConnectionRepository) GetByUserAndProvider(ctx context.Context, userID primitive.ObjectID, provider domain.Provider) (*domain.Connection, error) {
	var conn domain.Connection
	filter := bson.M{"userId": userID, "provider": provider}

	err := r.collection.FindOne(ctx, filter).Decode(&conn)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &conn, nil
}

// GetByUserID retrieves all of a user's provider connections.
func (r *mongoConnectionRepository) GetByUserID(ctx context.Context, userID primitive.ObjectID) ([]domain.Connection, error) {
	var conns []domain.Connection
	filter := bson.M{"userId": userID}
	opts := options.Find().SetSort(bson.D{{Key: "provider", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err := cursor.All(ctx, &conns); err != nil {
		return nil, err
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return conns, nil
}

// GetByProviderUserID resolves an inbound webhook's owner ID to a connection.
func (r *mongoConnectionRepository) GetByProviderUserID(ctx context.Context, provider domain.Provider, providerUserID string) (*domain.Connection, error) {
	var conn domain.Connection
	filter := bson.M{"provider": provider, "providerUserId": providerUserID}

	err := r.collection.FindOne(ctx, filter).Decode(&conn)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &conn, nil
}

// GetExpiring retrieves connections whose access token expires before the
// cutoff. The refresh sweep feeds on this.
func (r *mongoConnectionRepository) GetExpiring(ctx context.Context, cutoff time.Time) ([]domain.Connection, error) {
	var conns []domain.Connection
	filter := bson.M{"expiresAt": bson.M{"$lt": cutoff}}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err := cursor.All(ctx, &conns); err != nil {
		return nil, err
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return conns, nil
}

// UpdateTokens stores a refreshed token pair.
func (r *mongoConnectionRepository) UpdateTokens(ctx context.Context, id primitive.ObjectID, accessToken, refreshToken string, expiresAt time.Time) error {
	filter := bson.M{"_id": id}
	update := bson.M{
		"$set": bson.M{
			"accessToken":  accessToken,
			"refreshToken": refreshToken,
			"expiresAt":    expiresAt,
			"updatedAt":    time.Now().UTC(),
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

// UpdateLastSync records when the provider was last pulled.
func (r *mongoConnectionRepository) UpdateLastSync(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	filter := bson.M{"_id": id}
	update := bson.M{
		"$set": bson.M{
			"lastSyncAt": at,
			"updatedAt":  time.Now().UTC(),
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

// Delete removes a user's connection to a provider.
func (r *mongoConnectionRepository) Delete(ctx context.Context, userID primitive.ObjectID, provider domain.Provider) error {
	filter := bson.M{"userId": userID, "provider": provider}

	result, err := r.collection.DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureConnectionIndexes creates necessary indexes for the connections collection.
func EnsureConnectionIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			// One connection per user per provider.
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "provider", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "provider", Value: 1}, {Key: "providerUserId", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "expiresAt", Value: 1}},
		},
	}

	_, _ = collection.Indexes().CreateMany(ctx, indexes)
}
