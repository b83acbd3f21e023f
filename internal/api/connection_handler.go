package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"veloplan/training-app/internal/domain"
	"veloplan/training-app/internal/provider"
	"veloplan/training-app/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ConnectionHandler serves provider connections and the Strava webhook
// endpoints.
type ConnectionHandler struct {
	connectionService service.ConnectionService
	webhookSecret     string // Strava subscription verify token
	logger            *zap.Logger
}

// NewConnectionHandler creates a new ConnectionHandler.
func NewConnectionHandler(connectionService service.ConnectionService, webhookSecret string, logger *zap.Logger) *ConnectionHandler {
	return &ConnectionHandler{
		connectionService: connectionService,
		webhookSecret:     webhookSecret,
		logger:            logger,
	}
}

// --- DTOs for API ---

// AuthURLResponse carries the provider consent URL the client redirects to.
type AuthURLResponse struct {
	AuthURL string `json:"authUrl"`
}

// SyncResponse reports a completed manual sync.
type SyncResponse struct {
	Imported int `json:"imported"`
}

// ConnectionResponse is the DTO for returning a connection. Tokens never
// leave the server.
type ConnectionResponse struct {
	ID             string          `json:"id"`
	UserID         string          `json:"userId"`
	Provider       domain.Provider `json:"provider"`
	ProviderUserID string          `json:"providerUserId"`
	AthleteName    string          `json:"athleteName,omitempty"`
	ExpiresAt      time.Time       `json:"expiresAt"`
	Scope          string          `json:"scope,omitempty"`
	LastSyncAt     *time.Time      `json:"lastSyncAt,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// MapConnectionToResponse converts a domain.Connection to its DTO.
func MapConnectionToResponse(conn *domain.Connection) ConnectionResponse {
	if conn == nil {
		return ConnectionResponse{}
	}
	return ConnectionResponse{
		ID:             conn.ID.Hex(),
		UserID:         conn.UserID.Hex(),
		Provider:       conn.Provider,
		ProviderUserID: conn.ProviderUserID,
		AthleteName:    conn.AthleteName,
		ExpiresAt:      conn.ExpiresAt,
		Scope:          conn.Scope,
		LastSyncAt:     conn.LastSyncAt,
		CreatedAt:      conn.CreatedAt,
		UpdatedAt:      conn.UpdatedAt,
	}
}

// MapConnectionsToResponse converts a slice of connections to DTOs.
func MapConnectionsToResponse(conns []domain.Connection) []ConnectionResponse {
	responses := make([]ConnectionResponse, len(conns))
	for i := range conns {
		responses[i] = MapConnectionToResponse(&conns[i])
	}
	return responses
}

// abortWithConnectionError maps connection service errors to status codes.
func abortWithConnectionError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrUnknownProvider):
		abortWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrProviderNotConfigured):
		abortWithError(c, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, service.ErrConnectionNotFound):
		abortWithError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrStateInvalid):
		abortWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrExchangeFailed):
		abortWithError(c, http.StatusBadGateway, err.Error())
	default:
		abortWithError(c, http.StatusInternalServerError, fallback)
	}
}

// --- Handler Methods ---

// GetConnections returns the user's provider connections.
func (h *ConnectionHandler) GetConnections(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token")
		return
	}

	conns, err := h.connectionService.List(c.Request.Context(), userID)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to load connections")
		return
	}

	c.JSON(http.StatusOK, MapConnectionsToResponse(conns))
}

// Connect godoc
// @Summary Start the OAuth flow for a provider
// @Tags Connections
// @Produce json
// @Security BearerAuth
// @Param provider path string true "Provider (strava, trainingpeaks)"
// @Success 200 {object} AuthURLResponse
// @Failure 400 {object} gin.H "Unknown provider"
// @Router /connections/{provider}/connect [get]
func (h *ConnectionHandler) Connect(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token")
		return
	}

	authURL, err := h.connectionService.AuthorizationURL(c.Request.Context(), userID, domain.Provider(c.Param("provider")))
	if err != nil {
		abortWithConnectionError(c, err, "Failed to start connect flow")
		return
	}

	c.JSON(http.StatusOK, AuthURLResponse{AuthURL: authURL})
}

// Callback godoc
// @Summary Complete the OAuth flow for a provider
// @Description Exchanges the authorization code for tokens, stores the connection, and runs an initial activity sync.
// @Tags Connections
// @Produce json
// @Security BearerAuth
// @Param provider path string true "Provider (strava, trainingpeaks)"
// @Param state query string true "State token from the connect step"
// @Param code query string true "Authorization code from the provider"
// @Success 200 {object} ConnectionResponse
// @Failure 400 {object} gin.H "Invalid or expired state"
// @Failure 502 {object} gin.H "Code exchange failed at the provider"
// @Router /connections/{provider}/callback [get]
func (h *ConnectionHandler) Callback(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token")
		return
	}

	conn, err := h.connectionService.HandleCallback(
		c.Request.Context(),
		userID,
		domain.Provider(c.Param("provider")),
		c.Query("state"),
		c.Query("code"),
	)
	if err != nil {
		abortWithConnectionError(c, err, "Failed to complete connect flow")
		return
	}

	c.JSON(http.StatusOK, MapConnectionToResponse(conn))
}

// Disconnect revokes the provider grant when reachable and always removes
// the local connection.
func (h *ConnectionHandler) Disconnect(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token")
		return
	}

	if err := h.connectionService.Disconnect(c.Request.Context(), userID, domain.Provider(c.Param("provider"))); err != nil {
		abortWithConnectionError(c, err, "Failed to disconnect provider")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Provider disconnected successfully"})
}

// Sync pulls new activities from the provider on demand.
func (h *ConnectionHandler) Sync(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token")
		return
	}

	imported, err := h.connectionService.Sync(c.Request.Context(), userID, domain.Provider(c.Param("provider")))
	if err != nil {
		abortWithConnectionError(c, err, "Sync failed")
		return
	}

	c.JSON(http.StatusOK, SyncResponse{Imported: imported})
}

// --- Webhook Endpoints (public) ---

// VerifyStravaWebhook answers Strava's subscription validation handshake.
func (h *ConnectionHandler) VerifyStravaWebhook(c *gin.Context) {
	if c.Query("hub.verify_token") != h.webhookSecret {
		abortWithError(c, http.StatusForbidden, "Verify token mismatch")
		return
	}
	c.JSON(http.StatusOK, provider.StravaChallengeResponse(c.Query("hub.challenge")))
}

// ReceiveStravaWebhook ingests a Strava push event. Strava expects a fast
// 200 regardless of what we do with the event, so all processing errors
// are swallowed after logging.
func (h *ConnectionHandler) ReceiveStravaWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.logger.Warn("failed to read webhook body", zap.Error(err))
		c.Status(http.StatusOK)
		return
	}

	event := provider.ParseStravaWebhook(body)
	h.connectionService.HandleWebhookEvent(c.Request.Context(), domain.ProviderStrava, event)
	c.Status(http.StatusOK)
}
