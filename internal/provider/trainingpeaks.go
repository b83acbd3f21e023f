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
	"golang.org/x/time/rate"
)

const trainingPeaksAPIBase = "https://api.trainingpeaks.com/v1"

// trainingPeaksEndpoint is not in the oauth2 endpoints catalog, so it is
// spelled out here.
var trainingPeaksEndpoint = oauth2.Endpoint{
	AuthURL:  "https://oauth.trainingpeaks.com/OAuth/Authorize",
	TokenURL: "https://oauth.trainingpeaks.com/oauth/token",
}

// trainingPeaksClient talks to the TrainingPeaks partner API.
type trainingPeaksClient struct {
	oauth      *oauth2.Config
	httpClient *http.Client
	limiter    *rate.Limiter
	apiBase    string
}

// NewTrainingPeaksClient creates a Client for TrainingPeaks.
func NewTrainingPeaksClient(cfg config.ProviderConfig) Client {
	return &trainingPeaksClient{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"athlete:profile", "workouts:read"},
			Endpoint:     trainingPeaksEndpoint,
		},
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 5),
		apiBase:    trainingPeaksAPIBase,
	}
}

func (t *trainingPeaksClient) Name() domain.Provider {
	return domain.ProviderTrainingPeaks
}

func (t *trainingPeaksClient) AuthCodeURL(state string) string {
	return t.oauth.AuthCodeURL(state)
}

func (t *trainingPeaksClient) Exchange(ctx context.Context, code string) (TokenPair, Identity, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, t.httpClient)

	token, err := t.oauth.Exchange(ctx, code)
	if err != nil {
		return TokenPair{}, Identity{}, fmt.Errorf("trainingpeaks code exchange: %w", err)
	}

	pair := tokenPairFrom(token)

	identity, err := t.fetchProfile(ctx, pair.AccessToken)
	if err != nil {
		return TokenPair{}, Identity{}, err
	}
	return pair, identity, nil
}

func (t *trainingPeaksClient) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, t.httpClient)

	source := t.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return TokenPair{}, fmt.Errorf("trainingpeaks token refresh: %w", err)
	}
	return tokenPairFrom(token), nil
}

func (t *trainingPeaksClient) Deauthorize(ctx context.Context, accessToken string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}

	form := url.Values{"token": {accessToken}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://oauth.trainingpeaks.com/oauth/deauthorize", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK, resp.StatusCode == http.StatusNoContent:
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	default:
		return fmt.Errorf("%w: deauthorize returned %d", ErrUnavailable, resp.StatusCode)
	}
}

// FetchActivities pulls completed workouts recorded after the given time.
// TrainingPeaks reports durations in hours and distances in meters.
func (t *trainingPeaksClient) FetchActivities(ctx context.Context, accessToken string, after time.Time) ([]Activity, error) {
	path := fmt.Sprintf("/workouts?startDate=%s", after.UTC().Format("2006-01-02"))
	body, err := t.get(ctx, accessToken, path)
	if err != nil {
		return nil, err
	}

	var all []Activity
	for _, item := range gjson.ParseBytes(body).Array() {
		// Planned-only entries have no completion data yet.
		if !item.Get("completed").Bool() {
			continue
		}

		activity := Activity{
			ExternalID:  item.Get("id").String(),
			Name:        item.Get("title").String(),
			Sport:       sportFromTrainingPeaksType(item.Get("workoutType").String()),
			DurationSec: int(item.Get("totalTime").Float() * 3600),
			DistanceKM:  item.Get("distance").Float() / 1000,
		}
		if start, err := time.Parse(time.RFC3339, item.Get("startTime").String()); err == nil {
			activity.StartTime = start.UTC()
		}
		if watts := item.Get("averagePower"); watts.Exists() {
			w := int(watts.Float())
			activity.AverageWatts = &w
		}
		all = append(all, activity)
	}
	return all, nil
}

func (t *trainingPeaksClient) fetchProfile(ctx context.Context, accessToken string) (Identity, error) {
	body, err := t.get(ctx, accessToken, "/athlete/profile")
	if err != nil {
		return Identity{}, err
	}

	parsed := gjson.ParseBytes(body)
	name := strings.TrimSpace(parsed.Get("firstName").String() + " " + parsed.Get("lastName").String())
	return Identity{
		ProviderUserID: parsed.Get("id").String(),
		AthleteName:    name,
	}, nil
}

func (t *trainingPeaksClient) get(ctx context.Context, accessToken, path string) ([]byte, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.apiBase+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := t.httpClient.Do(req)
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

func sportFromTrainingPeaksType(t string) domain.Sport {
	switch strings.ToLower(t) {
	case "bike", "mtb":
		return domain.SportRide
	case "run", "walk":
		return domain.SportRun
	case "swim":
		return domain.SportSwim
	case "strength":
		return domain.SportStrength
	default:
		return domain.SportOther
	}
}
