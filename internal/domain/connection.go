package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Provider identifies an external fitness platform.
type Provider string

const (
	ProviderStrava        Provider = "strava"
	ProviderTrainingPeaks Provider = "trainingpeaks"
)

// ValidProvider reports whether p is a supported platform.
func ValidProvider(p Provider) bool {
	return p == ProviderStrava || p == ProviderTrainingPeaks
}

// Connection stores the OAuth grant a user gave us for one provider.
// At most one connection exists per (user, provider). Tokens are internal
// and never serialized to API responses.
type Connection struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID         primitive.ObjectID `bson:"userId" json:"userId"`
	Provider       Provider           `bson:"provider" json:"provider"`
	ProviderUserID string             `bson:"providerUserId" json:"providerUserId"` // Athlete ID on the provider's side
	AthleteName    string             `bson:"athleteName,omitempty" json:"athleteName,omitempty"`
	AccessToken    string             `bson:"accessToken" json:"-"`
	RefreshToken   string             `bson:"refreshToken" json:"-"`
	ExpiresAt      time.Time          `bson:"expiresAt" json:"expiresAt"`
	Scope          string             `bson:"scope,omitempty" json:"scope,omitempty"`
	LastSyncAt     *time.Time         `bson:"lastSyncAt,omitempty" json:"lastSyncAt,omitempty"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// TokenExpired reports whether the access token is past (or within a minute
// of) its expiry and needs a refresh before the next API call.
func (c *Connection) TokenExpired(now time.Time) bool {
	return !c.ExpiresAt.After(now.Add(time.Minute))
}
