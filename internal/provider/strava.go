package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"veloplan/training-app/internal/config"
	"veloplan/training-app/internal/domain"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
	"golang.org/x/time/rate"
)

const stravaAPIBase = "https://www.strava.com/api/v3"

// stravaClient talks to the Strava v3 API. Outbound calls go through a
// shared limiter so a sync burst stays inside Strava's per-15-minute
// application quota.
type stravaClient struct {
	oauth      *oauth2.Config
	httpClient *http.Client
	limiter    *rate.Limiter
	apiBase    string
}

// NewStravaClient creates a Client for Strava.
func NewStravaClient(cfg config.ProviderConfig) Client {
	return &stravaClient{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"read,activity:read_all"},
			Endpoint:     endpoints.Strava,
		},
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 5),
		apiBase:    stravaAPIBase,
	}
}

func (s *stravaClient) Name() domain.Provider {
	return domain.ProviderStrava
}

func (s *stravaClient) AuthCodeURL(state string) string {
	return s.oauth.AuthCodeURL(state)
}

// Exchange trades the authorization code for tokens, then resolves the
// athlete behind them. Strava embeds the athlete in the token response but
// the athlete endpoint is authoritative and keeps the parsing in one place.
func (s *stravaClient) Exchange(ctx context.Context, code string) (TokenPair, Identity, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return TokenPair{}, Identity{}, fmt.Errorf("strava code exchange: %w", err)
	}

	pair := tokenPairFrom(token)

	identity, err := s.fetchAthlete(ctx, pair.AccessToken)
	if err != nil {
		return TokenPair{}, Identity{}, err
	}
	return pair, identity, nil
}

// Refresh trades a refresh token for a fresh pair.
func (s *stravaClient) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)

	source := s.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return TokenPair{}, fmt.Errorf("strava token refresh: %w", err)
	}
	return tokenPairFrom(token), nil
}

// Deauthorize revokes the grant. Strava returns 401 when the token is
// already dead, which callers treat as best-effort success.
func (s *stravaClient) Deauthorize(ctx context.Context, accessToken string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	form := url.Values{"access_token": {accessToken}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://www.strava.com/oauth/deauthorize", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	default:
		return fmt.Errorf("%w: deauthorize returned %d", ErrUnavailable, resp.StatusCode)
	}
}

// FetchActivities pulls the athlete's activities recorded after the given
// time, paging until Strava returns an empty page.
func (s *stravaClient) FetchActivities(ctx context.Context, accessToken string, after time.Time) ([]Activity, error) {
	const perPage = 100

	var all []Activity
	for page := 1; ; page++ {
		body, err := s.get(ctx, accessToken, fmt.Sprintf("/athlete/activities?after=%d&page=%d&per_page=%d", after.Unix(), page, perPage))
		if err != nil {
			return nil, err
		}

		results := gjson.ParseBytes(body).Array()
		if len(results) == 0 {
			break
		}

		for _, item := range results {
			all = append(all, activityFromStrava(item))
		}

		if len(results) < perPage {
			break
		}
	}
	return all, nil
}

func (s *stravaClient) fetchAthlete(ctx context.Context, accessToken string) (Identity, error) {
	body, err := s.get(ctx, accessToken, "/athlete")
	if err != nil {
		return Identity{}, err
	}

	parsed := gjson.ParseBytes(body)
	name := strings.TrimSpace(parsed.Get("firstname").String() + " " + parsed.Get("lastname").String())
	return Identity{
		ProviderUserID: parsed.Get("id").String(),
		AthleteName:    name,
	}, nil
}

func (s *stravaClient) get(ctx context.Context, accessToken, path string) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiBase+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %d", ErrUnavailable, path, resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

func tokenPairFrom(token *oauth2.Token) TokenPair {
	pair := TokenPair{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry.UTC(),
	}
	if scope, ok := token.Extra("scope").(string); ok {
		pair.Scope = scope
	}
	return pair
}

func activityFromStrava(item gjson.Result) Activity {
	activity := Activity{
		ExternalID:  item.Get("id").String(),
		Name:        item.Get("name").String(),
		Sport:       sportFromStravaType(item.Get("type").String()),
		DurationSec: int(item.Get("moving_time").Int()),
		DistanceKM:  item.Get("distance").Float() / 1000,
	}
	if start, err := time.Parse(time.RFC3339, item.Get("start_date").String()); err == nil {
		activity.StartTime = start.UTC()
	}
	if watts := item.Get("average_watts"); watts.Exists() {
		w := int(watts.Float())
		activity.AverageWatts = &w
	}
	return activity
}

func sportFromStravaType(t string) domain.Sport {
	switch t {
	case "Ride", "VirtualRide", "GravelRide", "MountainBikeRide", "EBikeRide":
		return domain.SportRide
	case "Run", "VirtualRun", "TrailRun":
		return domain.SportRun
	case "Swim":
		return domain.SportSwim
	case "WeightTraining", "Workout", "Crossfit":
		return domain.SportStrength
	default:
		return domain.SportOther
	}
}

// ParseStravaWebhook extracts the fields we act on from a Strava push
// notification body.
func ParseStravaWebhook(body []byte) WebhookEvent {
	parsed := gjson.ParseBytes(body)
	return WebhookEvent{
		ObjectType:     parsed.Get("object_type").String(),
		ObjectID:       parsed.Get("object_id").String(),
		AspectType:     parsed.Get("aspect_type").String(),
		ProviderUserID: parsed.Get("owner_id").String(),
	}
}

// StravaChallengeResponse answers Strava's subscription validation
// handshake. The verify token check happens in the handler.
func StravaChallengeResponse(challenge string) map[string]string {
	return map[string]string{"hub.challenge": challenge}
}
