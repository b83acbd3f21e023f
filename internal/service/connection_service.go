package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"veloplan/training-app/internal/cache"
	"veloplan/training-app/internal/domain"
	"veloplan/training-app/internal/metrics"
	"veloplan/training-app/internal/provider"
	"veloplan/training-app/internal/repository"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// --- Error Definitions ---
var (
	ErrConnectionNotFound    = errors.New("connection not found")
	ErrUnknownProvider       = errors.New("unknown provider")
	ErrProviderNotConfigured = errors.New("provider is not configured")
	ErrStateInvalid          = errors.New("oauth state is invalid or expired")
	ErrExchangeFailed        = errors.New("authorization code exchange failed")
)

const (
	// First sync after connecting backfills this far; later syncs resume
	// from lastSyncAt.
	initialSyncWindow = 90 * 24 * time.Hour

	// Tokens expiring within this window get refreshed by the sweep.
	// Sized to the hourly refresh schedule.
	refreshAhead = time.Hour
)

// --- Service Interface ---
type ConnectionService interface {
	// List returns the user's provider connections, tokens excluded.
	List(ctx context.Context, userID primitive.ObjectID) ([]domain.Connection, error)

	// AuthorizationURL starts the OAuth flow: it issues a single-use state
	// token and returns the provider consent URL to redirect the user to.
	AuthorizationURL(ctx context.Context, userID primitive.ObjectID, providerName domain.Provider) (string, error)

	// HandleCallback completes the OAuth flow: it consumes the state token,
	// verifies it was issued to this user, exchanges the code, stores the
	// connection, and runs an initial sync.
	HandleCallback(ctx context.Context, userID primitive.ObjectID, providerName domain.Provider, state, code string) (*domain.Connection, error)

	// Disconnect revokes the grant on the provider side when possible and
	// always removes the local connection.
	Disconnect(ctx context.Context, userID primitive.ObjectID, providerName domain.Provider) error

	// Sync pulls new activities from the provider and matches them against
	// the calendar. Returns the number of activities imported.
	Sync(ctx context.Context, userID primitive.ObjectID, providerName domain.Provider) (int, error)

	// RefreshExpiring renews access tokens that are about to expire.
	// Intended for the background scheduler.
	RefreshExpiring(ctx context.Context) error

	// HandleWebhookEvent reacts to a provider push notification. Failures
	// are logged, never returned, so the webhook endpoint can always ack.
	HandleWebhookEvent(ctx context.Context, providerName domain.Provider, event provider.WebhookEvent)
}

// --- Service Implementation ---

// connectionService implements the ConnectionService interface.
type connectionService struct {
	connRepo     repository.ConnectionRepository
	activityRepo repository.ActivityRepository
	schedule     ScheduleService
	providers    provider.Registry
	states       cache.StateStore
	logger       *zap.Logger
}

// NewConnectionService creates a new instance of connectionService.
func NewConnectionService(
	connRepo repository.ConnectionRepository,
	activityRepo repository.ActivityRepository,
	schedule ScheduleService,
	providers provider.Registry,
	states cache.StateStore,
	logger *zap.Logger,
) ConnectionService {
	return &connectionService{
		connRepo:     connRepo,
		activityRepo: activityRepo,
		schedule:     schedule,
		providers:    providers,
		states:       states,
		logger:       logger,
	}
}

// List returns the user's provider connections.
func (s *connectionService) List(ctx context.Context, userID primitive.ObjectID) ([]domain.Connection, error) {
	if userID == primitive.NilObjectID {
		return nil, errors.New("user ID cannot be nil")
	}
	return s.connRepo.GetByUserID(ctx, userID)
}

// AuthorizationURL issues a state token and builds the consent URL.
func (s *connectionService) AuthorizationURL(ctx context.Context, userID primitive.ObjectID, providerName domain.Provider) (string, error) {
	client, err := s.client(providerName)
	if err != nil {
		return "", err
	}

	state := uuid.NewString()
	payload := fmt.Sprintf("%s:%s", userID.Hex(), providerName)
	if err := s.states.Put(ctx, state, payload); err != nil {
		return "", fmt.Errorf("storing oauth state: %w", err)
	}

	return client.AuthCodeURL(state), nil
}

// HandleCallback consumes the state token, exchanges the code, and stores
// the resulting connection.
func (s *connectionService) HandleCallback(ctx context.Context, userID primitive.ObjectID, providerName domain.Provider, state, code string) (*domain.Connection, error) {
	client, err := s.client(providerName)
	if err != nil {
		return nil, err
	}
	if state == "" || code == "" {
		return nil, ErrStateInvalid
	}

	payload, err := s.states.Take(ctx, state)
	if err != nil {
		if errors.Is(err, cache.ErrStateNotFound) {
			return nil, ErrStateInvalid
		}
		return nil, fmt.Errorf("loading oauth state: %w", err)
	}

	// The state must have been issued to this user for this provider;
	// anything else is a replayed or cross-wired flow.
	userHex, stateProvider, ok := strings.Cut(payload, ":")
	if !ok || domain.Provider(stateProvider) != providerName || userHex != userID.Hex() {
		return nil, ErrStateInvalid
	}

	tokens, identity, err := client.Exchange(ctx, code)
	if err != nil {
		s.logger.Warn("oauth code exchange failed",
			zap.String("provider", string(providerName)),
			zap.Error(err))
		return nil, ErrExchangeFailed
	}

	conn, err := s.connRepo.Upsert(ctx, &domain.Connection{
		UserID:         userID,
		Provider:       providerName,
		ProviderUserID: identity.ProviderUserID,
		AthleteName:    identity.AthleteName,
		AccessToken:    tokens.AccessToken,
		RefreshToken:   tokens.RefreshToken,
		ExpiresAt:      tokens.ExpiresAt,
		Scope:          tokens.Scope,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("provider connected",
		zap.String("provider", string(providerName)),
		zap.String("userId", userID.Hex()))

	// Initial backfill. The connection is established either way; the user
	// can re-sync from the UI or wait for the next webhook.
	if _, err := s.syncConnection(ctx, conn, client); err != nil {
		s.logger.Warn("initial sync failed",
			zap.String("provider", string(providerName)),
			zap.String("userId", userID.Hex()),
			zap.Error(err))
	}

	return s.connRepo.GetByUserAndProvider(ctx, userID, providerName)
}

// Disconnect revokes the grant remotely when possible and always deletes
// the local connection.
func (s *connectionService) Disconnect(ctx context.Context, userID primitive.ObjectID, providerName domain.Provider) error {
	if !domain.ValidProvider(providerName) {
		return ErrUnknownProvider
	}

	conn, err := s.connRepo.GetByUserAndProvider(ctx, userID, providerName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrConnectionNotFound
		}
		return err
	}

	// Best effort: a dead provider must not trap the user in a connected
	// state. Imported activities stay.
	if client, ok := s.providers.Get(providerName); ok {
		if err := client.Deauthorize(ctx, conn.AccessToken); err != nil {
			s.logger.Warn("remote deauthorize failed",
				zap.String("provider", string(providerName)),
				zap.String("userId", userID.Hex()),
				zap.Error(err))
		}
	}

	return s.connRepo.Delete(ctx, userID, providerName)
}

// Sync pulls new provider activities for one user.
func (s *connectionService) Sync(ctx context.Context, userID primitive.ObjectID, providerName domain.Provider) (int, error) {
	client, err := s.client(providerName)
	if err != nil {
		return 0, err
	}

	conn, err := s.connRepo.GetByUserAndProvider(ctx, userID, providerName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, ErrConnectionNotFound
		}
		return 0, err
	}

	return s.syncConnection(ctx, conn, client)
}

// RefreshExpiring renews access tokens expiring within the refresh window.
func (s *connectionService) RefreshExpiring(ctx context.Context) error {
	conns, err := s.connRepo.GetExpiring(ctx, time.Now().Add(refreshAhead))
	if err != nil {
		return fmt.Errorf("listing expiring connections: %w", err)
	}

	refreshed := 0
	for i := range conns {
		conn := &conns[i]
		client, ok := s.providers.Get(conn.Provider)
		if !ok {
			s.logger.Warn("connection for unconfigured provider",
				zap.String("provider", string(conn.Provider)),
				zap.String("userId", conn.UserID.Hex()))
			continue
		}
		if err := s.refreshTokens(ctx, conn, client); err != nil {
			// The user keeps their connection; the next sweep retries until
			// the refresh token itself is rejected.
			s.logger.Warn("token refresh failed",
				zap.String("provider", string(conn.Provider)),
				zap.String("userId", conn.UserID.Hex()),
				zap.Error(err))
			continue
		}
		refreshed++
	}

	s.logger.Info("token refresh sweep complete",
		zap.Int("expiring", len(conns)),
		zap.Int("refreshed", refreshed))
	return nil
}

// HandleWebhookEvent triggers a sync for the athlete an activity-created
// event belongs to. All failures are logged and swallowed.
func (s *connectionService) HandleWebhookEvent(ctx context.Context, providerName domain.Provider, event provider.WebhookEvent) {
	if event.ObjectType != "activity" || event.AspectType != "create" {
		s.logger.Debug("ignoring webhook event",
			zap.String("provider", string(providerName)),
			zap.String("objectType", event.ObjectType),
			zap.String("aspectType", event.AspectType))
		return
	}

	conn, err := s.connRepo.GetByProviderUserID(ctx, providerName, event.ProviderUserID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("webhook connection lookup failed", zap.Error(err))
		}
		// Not an athlete of ours or already disconnected.
		return
	}

	client, ok := s.providers.Get(providerName)
	if !ok {
		return
	}

	if _, err := s.syncConnection(ctx, conn, client); err != nil {
		s.logger.Warn("webhook-triggered sync failed",
			zap.String("provider", string(providerName)),
			zap.String("userId", conn.UserID.Hex()),
			zap.Error(err))
	}
}

// syncConnection fetches provider activities since the last sync, stores the
// new ones, and matches each against the calendar.
func (s *connectionService) syncConnection(ctx context.Context, conn *domain.Connection, client provider.Client) (int, error) {
	providerName := string(conn.Provider)
	syncStart := time.Now().UTC()

	if conn.TokenExpired(syncStart) {
		if err := s.refreshTokens(ctx, conn, client); err != nil {
			metrics.RecordProviderSync(providerName, 0, false)
			return 0, err
		}
	}

	after := syncStart.Add(-initialSyncWindow)
	if conn.LastSyncAt != nil {
		after = *conn.LastSyncAt
	}

	activities, err := client.FetchActivities(ctx, conn.AccessToken, after)
	if errors.Is(err, provider.ErrUnauthorized) {
		// Token was revoked or invalidated ahead of its expiry; refresh
		// once and retry.
		if rerr := s.refreshTokens(ctx, conn, client); rerr != nil {
			metrics.RecordProviderSync(providerName, 0, false)
			return 0, rerr
		}
		activities, err = client.FetchActivities(ctx, conn.AccessToken, after)
	}
	if err != nil {
		metrics.RecordProviderSync(providerName, 0, false)
		return 0, fmt.Errorf("fetching %s activities: %w", providerName, err)
	}

	imported := 0
	for _, pa := range activities {
		activity := &domain.Activity{
			UserID:       conn.UserID,
			Source:       sourceForProvider(conn.Provider),
			ExternalID:   pa.ExternalID,
			Name:         pa.Name,
			Sport:        pa.Sport,
			StartTime:    pa.StartTime.UTC(),
			DurationSec:  pa.DurationSec,
			DistanceKM:   pa.DistanceKM,
			AverageWatts: pa.AverageWatts,
		}

		activityID, err := s.activityRepo.Create(ctx, activity)
		if err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				// Already imported by an earlier sync or webhook.
				continue
			}
			s.logger.Warn("storing synced activity failed",
				zap.String("provider", providerName),
				zap.String("externalId", pa.ExternalID),
				zap.Error(err))
			continue
		}
		imported++

		activity.ID = activityID
		if _, err := s.schedule.MatchActivity(ctx, activity); err != nil {
			s.logger.Warn("auto-match failed after sync",
				zap.String("activityId", activityID.Hex()),
				zap.Error(err))
		}
	}

	if err := s.connRepo.UpdateLastSync(ctx, conn.ID, syncStart); err != nil {
		s.logger.Warn("updating last sync time failed",
			zap.String("connectionId", conn.ID.Hex()),
			zap.Error(err))
	}

	metrics.RecordProviderSync(providerName, imported, true)
	s.logger.Info("provider sync complete",
		zap.String("provider", providerName),
		zap.String("userId", conn.UserID.Hex()),
		zap.Int("fetched", len(activities)),
		zap.Int("imported", imported))
	return imported, nil
}

// refreshTokens renews the connection's token pair and persists it. The
// connection is updated in place so callers can keep using it.
func (s *connectionService) refreshTokens(ctx context.Context, conn *domain.Connection, client provider.Client) error {
	tokens, err := client.Refresh(ctx, conn.RefreshToken)
	if err != nil {
		return fmt.Errorf("refreshing %s token: %w", conn.Provider, err)
	}

	// Some providers rotate refresh tokens, some return the pair unchanged.
	if tokens.RefreshToken == "" {
		tokens.RefreshToken = conn.RefreshToken
	}

	if err := s.connRepo.UpdateTokens(ctx, conn.ID, tokens.AccessToken, tokens.RefreshToken, tokens.ExpiresAt); err != nil {
		return fmt.Errorf("storing refreshed tokens: %w", err)
	}

	conn.AccessToken = tokens.AccessToken
	conn.RefreshToken = tokens.RefreshToken
	conn.ExpiresAt = tokens.ExpiresAt
	return nil
}

// client resolves a provider name, distinguishing unknown platforms from
// known ones that are missing credentials.
func (s *connectionService) client(providerName domain.Provider) (provider.Client, error) {
	if !domain.ValidProvider(providerName) {
		return nil, ErrUnknownProvider
	}
	client, ok := s.providers.Get(providerName)
	if !ok {
		return nil, ErrProviderNotConfigured
	}
	return client, nil
}

func sourceForProvider(p domain.Provider) domain.ActivitySource {
	switch p {
	case domain.ProviderStrava:
		return domain.SourceStrava
	case domain.ProviderTrainingPeaks:
		return domain.SourceTrainingPeaks
	default:
		return domain.ActivitySource(p)
	}
}
