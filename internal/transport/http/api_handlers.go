package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/pulsechat/pulsechat-server/internal/auth"
	"github.com/pulsechat/pulsechat-server/internal/config"
	"github.com/pulsechat/pulsechat-server/internal/core"
	"github.com/pulsechat/pulsechat-server/internal/perf"
)

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// TokenResponse carries an issued credential token.
type TokenResponse struct {
	Token     string `json:"token"`
	SessionID string `json:"sessionId,omitempty"`
}

type registerRequest struct {
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"displayName"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type notifyRequest struct {
	Type      string     `json:"type" binding:"required"`
	Title     string     `json:"title" binding:"required"`
	Message   string     `json:"message" binding:"required"`
	Priority  string     `json:"priority"`
	UserID    string     `json:"userId"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

type apiHandlers struct {
	authService *auth.Service
	hub         *core.Hub
	metrics     *perf.Metrics
	cfg         *config.Config
	log         *zerolog.Logger
}

func (h *apiHandlers) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "username and password are required"})
		return
	}

	token, err := h.authService.Register(c.Request.Context(), req.Username, req.Password, req.DisplayName)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserExists):
			c.JSON(http.StatusConflict, ErrorResponse{Error: "user already exists"})
		case errors.Is(err, auth.ErrInvalidUsername), errors.Is(err, auth.ErrInvalidPassword):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		default:
			h.log.Error().Err(err).Msg("register failed")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "registration failed"})
		}
		return
	}

	c.JSON(http.StatusCreated, TokenResponse{Token: token})
}

func (h *apiHandlers) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "username and password are required"})
		return
	}

	token, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
		return
	}

	c.JSON(http.StatusOK, TokenResponse{Token: token})
}

func (h *apiHandlers) guest(c *gin.Context) {
	token, sessionID, err := h.authService.CreateGuestUser(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("guest creation failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "guest creation failed"})
		return
	}

	c.JSON(http.StatusCreated, TokenResponse{Token: token, SessionID: sessionID})
}

// clientConfig advertises the connection tuning clients should use.
func (h *apiHandlers) clientConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"heartbeatInterval": h.cfg.HeartbeatInterval.Milliseconds(),
		"reconnectAttempts": h.cfg.ReconnectAttempts,
		"reconnectDelay":    h.cfg.ReconnectDelay.Milliseconds(),
		"historyCap":        h.cfg.HistoryCap,
		"notificationCap":   h.cfg.NotificationCap,
	})
}

func (h *apiHandlers) metricsSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, h.metrics.Snapshot())
}

func (h *apiHandlers) metricsReset(c *gin.Context) {
	h.metrics.Reset()
	c.Status(http.StatusNoContent)
}

// notify lets capability holders push a notification through the dispatcher.
func (h *apiHandlers) notify(c *gin.Context) {
	var req notifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "type, title and message are required"})
		return
	}

	h.hub.Notify(&core.Notification{
		Type:      req.Type,
		Title:     req.Title,
		Message:   req.Message,
		Priority:  core.NotificationPriority(req.Priority),
		UserID:    req.UserID,
		ExpiresAt: req.ExpiresAt,
	})
	c.Status(http.StatusAccepted)
}
