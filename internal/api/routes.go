package api

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/ob1hnk/triolingo/domain/entities"
	"github.com/ob1hnk/triolingo/internal/auth"
	"github.com/ob1hnk/triolingo/internal/websocket"
	"github.com/ob1hnk/triolingo/usecase"
)

// websocketRoutes maps each websocket endpoint to its path
var websocketRoutes = []struct {
	path     string
	endpoint websocket.Endpoint
}{
	{"/ws/speech/v1", websocket.EndpointSpeechTwoStage},
	{"/ws/speech/v2", websocket.EndpointSpeechSingleStage},
	{"/ws/speech/v3", websocket.EndpointSpeechStreaming},
	{"/ws/realtime/v1", websocket.EndpointRealtime},
}

// Deps are the services exposed over HTTP
type Deps struct {
	Hub     *websocket.Hub
	Letters *usecase.LetterService
	// Tokens is nil when client authentication is disabled
	Tokens       *auth.TokenIssuer
	ClientSecret string
}

type handlers struct {
	deps   Deps
	logger *zap.Logger
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, deps Deps, logger *zap.Logger) {
	h := &handlers{deps: deps, logger: logger}

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "triolingo-server",
		})
	})

	// API v1 routes
	v1 := e.Group("/api/v1")

	v1.POST("/auth/token", h.issueToken)

	v1.POST("/letter/generate", h.generateLetter)
	v1.GET("/letter/:id", h.getLetter)
	v1.GET("/users/:userID/letters", h.listLetters)

	v1.GET("/realtime/status", h.realtimeStatus)

	for _, route := range websocketRoutes {
		endpoint := route.endpoint
		e.GET(route.path, func(c echo.Context) error {
			return h.websocketWithAuth(c, endpoint)
		})
	}
}

func (h *handlers) issueToken(c echo.Context) error {
	if h.deps.Tokens == nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "auth_disabled",
			Message: "Client authentication is not enabled",
		})
	}

	var req TokenRequest
	if err := c.Bind(&req); err != nil {
		h.logger.Error("Failed to bind token request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	if req.ClientID == "" || req.ClientSecret == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Client id and client secret are required",
		})
	}

	if subtle.ConstantTimeCompare([]byte(req.ClientSecret), []byte(h.deps.ClientSecret)) != 1 {
		h.logger.Warn("Client authentication failed", zap.String("clientID", req.ClientID))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "authentication_failed",
			Message: "Invalid client credentials",
		})
	}

	token, expiresAt, err := h.deps.Tokens.Issue(req.ClientID)
	if err != nil {
		h.logger.Error("Failed to generate client token",
			zap.String("clientID", req.ClientID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate authentication token",
		})
	}

	h.logger.Info("Client authenticated successfully", zap.String("clientID", req.ClientID))

	return c.JSON(http.StatusOK, TokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		ClientID:  req.ClientID,
	})
}

func (h *handlers) generateLetter(c echo.Context) error {
	var req GenerateLetterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	h.logger.Info("Generating letter response", zap.String("userID", req.UserID))

	letter, err := h.deps.Letters.Generate(c.Request().Context(), req.UserID, req.UserLetter, req.TaskID)
	if err != nil {
		if errors.Is(err, entities.ErrValidation) {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "missing_fields",
				Message: err.Error(),
			})
		}
		h.logger.Error("Error generating letter response", zap.String("userID", req.UserID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "generation_failed",
			Message: "Failed to generate letter response: " + err.Error(),
		})
	}

	return c.JSON(http.StatusOK, GenerateLetterResponse{
		LetterID:                letter.ID,
		UserLetter:              letter.UserLetter,
		GeneratedResponseLetter: letter.GeneratedResponseLetter,
	})
}

func (h *handlers) getLetter(c echo.Context) error {
	letter, err := h.deps.Letters.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.letterError(c, err)
	}
	return c.JSON(http.StatusOK, letter)
}

func (h *handlers) listLetters(c echo.Context) error {
	letters, err := h.deps.Letters.ListByUser(c.Request().Context(), c.Param("userID"))
	if err != nil {
		return h.letterError(c, err)
	}
	if letters == nil {
		letters = []*entities.Letter{}
	}
	return c.JSON(http.StatusOK, letters)
}

func (h *handlers) letterError(c echo.Context, err error) error {
	if errors.Is(err, entities.ErrLetterNotFound) {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Letter not found",
		})
	}
	h.logger.Error("Failed to read letters", zap.Error(err))
	return c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "Failed to read letters",
	})
}

func (h *handlers) realtimeStatus(c echo.Context) error {
	status := "available"
	if !h.deps.Hub.RealtimeAvailable() {
		status = "unavailable"
	}

	endpoints := make(map[string]string, len(websocketRoutes))
	for _, route := range websocketRoutes {
		endpoints[string(route.endpoint)] = route.path
	}
	connections := make(map[string]int, len(websocketRoutes))
	for endpoint, count := range h.deps.Hub.ActiveClients() {
		connections[string(endpoint)] = count
	}

	return c.JSON(http.StatusOK, RealtimeStatusResponse{
		Status:             status,
		AvailableEndpoints: endpoints,
		ActiveConnections:  connections,
		ActiveRelays:       h.deps.Hub.ActiveRelays(),
	})
}

// websocketWithAuth checks the client token when authentication is
// enabled, then hands the connection to the hub
func (h *handlers) websocketWithAuth(c echo.Context, endpoint websocket.Endpoint) error {
	logger := h.logger.With(zap.String("endpoint", string(endpoint)))

	if h.deps.Tokens != nil {
		claims, err := h.deps.Tokens.Validate(auth.TokenFromRequest(c.Request()))
		if errors.Is(err, auth.ErrMissingToken) {
			logger.Warn("WebSocket connection rejected: missing token")
			return c.JSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "missing_token",
				Message: "JWT token is required in Authorization header or token query parameter",
			})
		}
		if err != nil {
			logger.Warn("WebSocket connection rejected: invalid token", zap.Error(err))
			return c.JSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "invalid_token",
				Message: "Invalid or expired JWT token",
			})
		}
		logger = logger.With(zap.String("authClientID", claims.ClientID))
		logger.Info("WebSocket connection authenticated")
	}

	return websocket.HandleWebSocket(h.deps.Hub, c, endpoint, logger)
}
