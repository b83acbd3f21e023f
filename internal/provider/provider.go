package provider

import (
	"context"
	"errors"
	"time"

	"veloplan/training-app/internal/domain"
)

// Provider API errors.
var (
	ErrUnauthorized = errors.New("provider rejected the access token")
	ErrUnavailable  = errors.New("provider request failed")
)

// TokenPair is the result of an OAuth code exchange or token refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Scope        string
}

// Identity names the provider-side account a token belongs to.
type Identity struct {
	ProviderUserID string
	AthleteName    string
}

// Activity is a recorded activity normalized from a provider's payload.
type Activity struct {
	ExternalID   string
	Name         string
	Sport        domain.Sport
	StartTime    time.Time
	DurationSec  int
	DistanceKM   float64
	AverageWatts *int
}

// WebhookEvent is a push notification from a provider. Only activity
// creation events trigger a sync; everything else is logged and dropped.
type WebhookEvent struct {
	ObjectType     string
	ObjectID       string
	AspectType     string
	ProviderUserID string
}

// Client is implemented once per external training platform. All methods
// that talk to the platform take a context and honor its deadline.
type Client interface {
	// Name identifies the platform this client talks to.
	Name() domain.Provider

	// AuthCodeURL builds the consent page URL the user is redirected to.
	AuthCodeURL(state string) string

	// Exchange trades an authorization code for tokens and resolves the
	// identity of the account that granted them.
	Exchange(ctx context.Context, code string) (TokenPair, Identity, error)

	// Refresh trades a refresh token for a new token pair.
	Refresh(ctx context.Context, refreshToken string) (TokenPair, error)

	// Deauthorize revokes the application's access on the provider side.
	Deauthorize(ctx context.Context, accessToken string) error

	// FetchActivities pulls activities recorded after the given time.
	FetchActivities(ctx context.Context, accessToken string, after time.Time) ([]Activity, error)
}

// Registry resolves a provider name to its client.
type Registry map[domain.Provider]Client

// Get returns the client for a provider, or false when the platform is
// not configured.
func (r Registry) Get(p domain.Provider) (Client, bool) {
	c, ok := r[p]
	return c, ok
}
