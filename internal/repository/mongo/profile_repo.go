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

const profileCollectionName = "profiles"

// mongoProfileRepository implements repository.ProfileRepository.
type mongoProfileRepository struct {
	collection *mongo.Collection
}

// NewMongoProfileRepository creates a new Profile repository backed by MongoDB.
func NewMongoProfileRepository(db *mongo.Database) repository.ProfileRepository {
	return &mongoProfileRepository{
		collection: db.Collection(profileCollectionName),
	}
}

// Upsert creates the user's profile on first write and fully replaces the
// wizard-editable fields afterwards. The unique index on userId guarantees
// the one-profile-per-user invariant even under concurrent first writes.
func (r *mongoProfileRepository) Upsert(ctx context.Context, profile *domain.Profile) (*domain.Profile, error) {
	if profile.UserID == primitive.NilObjectID {
		return nil, errors.New("profile user ID is required")
	}

	now := time.Now().UTC()
	filter := bson.M{"userId": profile.UserID}
	update := bson.M{
		"$set": bson.M{
			"fullName":           profile.FullName,
			"sex":                profile.Sex,
			"birthDate":          profile.BirthDate,
			"weightKg":           profile.WeightKG,
			"heightCm":           profile.HeightCM,
			"ftpWatts":           profile.FTPWatts,
			"maxHeartRate":       profile.MaxHeartRate,
			"restingHeartRate":   profile.RestingHeartRate,
			"weeklyHours":        profile.WeeklyHours,
			"goals":              profile.Goals,
			"onboardingStep":     profile.OnboardingStep,
			"onboardingComplete": profile.OnboardingComplete,
			"updatedAt":          now,
		},
		"$setOnInsert": bson.M{
			"userId":    profile.UserID,
			"locale":    profile.Locale,
			"theme":     profile.Theme,
			"units":     profile.Units,
			"timezone":  profile.Timezone,
			"createdAt": now,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var updated domain.Profile
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, repository.ErrDuplicate
		}
		return nil, err
	}
	return &updated, nil
}

// GetByUserID retrieves the profile belonging to a user.
func (r *mongoProfileRepository) GetByUserID(ctx context.Context, userID primitive.ObjectID) (*domain.Profile, error) {
	var profile domain.Profile
	filter := bson.M{"userId": userID}

	err := r.collection.FindOne(ctx, filter).Decode(&profile)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &profile, nil
}

// UpdateSettings changes only the locale/appearance fields, leaving the
// wizard data untouched.
func (r *mongoProfileRepository) UpdateSettings(ctx context.Context, userID primitive.ObjectID, locale string, theme domain.Theme, units domain.Units, timezone string) (*domain.Profile, error) {
	filter := bson.M{"userId": userID}
	update := bson.M{
		"$set": bson.M{
			"locale":    locale,
			"theme":     theme,
			"units":     units,
			"timezone":  timezone,
			"updatedAt": time.Now().UTC(),
		},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated domain.Profile
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &updated, nil
}

// EnsureProfileIndexes creates necessary indexes for the profiles collection.
func EnsureProfileIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			// One profile per user.
			Keys:    bson.D{{Key: "userId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	_, _ = collection.Indexes().CreateMany(ctx, indexes)
}
