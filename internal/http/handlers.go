package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"healthchat/internal/core"
	"healthchat/internal/db"
	"healthchat/internal/logging"
	"healthchat/pkg"
)

// Store is the persistence surface the handlers need on top of the
// pipeline's own store.
type Store interface {
	core.Store
	CreateConversation(ctx context.Context, profileID string) (*pkg.Conversation, error)
	ListConversations(ctx context.Context, limit int) ([]pkg.Conversation, error)
	SaveProfile(ctx context.Context, p *pkg.Profile) error
}

// AlertSource streams urgent-reply alerts.
type AlertSource interface {
	Listen(ctx context.Context) (<-chan db.Alert, error)
}

// Handler bundles together the dependencies required by HTTP handlers.
type Handler struct {
	store    Store
	pipeline *core.Pipeline
	alerts   AlertSource
	logger   *logging.Logger
}

// NewHandler creates a new handler.  alerts may be nil when no database
// notification channel is available.
func NewHandler(store Store, pipeline *core.Pipeline, alerts AlertSource, logger *logging.Logger) *Handler {
	return &Handler{store: store, pipeline: pipeline, alerts: alerts, logger: logging.OrNop(logger)}
}

// RegisterRoutes registers every route with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")
	api.POST("/conversations", h.CreateConversation)
	api.GET("/conversations", h.ListConversations)
	api.GET("/conversations/:id", h.GetConversation)
	api.POST("/conversations/:id/messages", h.PostMessage)
	api.GET("/conversations/:id/stats", h.GetTokenStats)

	api.POST("/profiles", h.SaveProfile)
	api.PUT("/profiles/:id", h.SaveProfile)
	api.GET("/profiles/:id", h.GetProfile)

	api.GET("/health/llm", h.TestConnectivity)
	api.GET("/alerts/stream", h.StreamAlerts)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

type createConversationRequest struct {
	ProfileID string `json:"profile_id"`
}

// CreateConversation starts a new conversation.
// POST /api/conversations
func (h *Handler) CreateConversation(c echo.Context) error {
	var req createConversationRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, errorBody("invalid request body"))
		}
	}
	ctx := c.Request().Context()
	if req.ProfileID != "" {
		if _, err := h.store.GetProfile(ctx, req.ProfileID); err != nil {
			return h.storeError(c, err)
		}
	}
	conv, err := h.store.CreateConversation(ctx, req.ProfileID)
	if err != nil {
		return h.storeError(c, err)
	}
	return c.JSON(http.StatusCreated, conv)
}

// ListConversations returns the most recently active conversations.
// GET /api/conversations
func (h *Handler) ListConversations(c echo.Context) error {
	limit := 50
	if l := c.QueryParam("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil && val > 0 {
			limit = val
		}
	}
	convs, err := h.store.ListConversations(c.Request().Context(), limit)
	if err != nil {
		return h.storeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"conversations": convs})
}

// GetConversation returns a conversation with its full transcript.
// GET /api/conversations/:id
func (h *Handler) GetConversation(c echo.Context) error {
	conv, err := h.store.GetConversation(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.storeError(c, err)
	}
	return c.JSON(http.StatusOK, conv)
}

type postMessageRequest struct {
	Content       string       `json:"content"`
	HealthContext *pkg.Profile `json:"health_context,omitempty"`
}

// PostMessage runs one user message through the pipeline.
// POST /api/conversations/:id/messages
func (h *Handler) PostMessage(c echo.Context) error {
	var req postMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid request body"))
	}
	if strings.TrimSpace(req.Content) == "" {
		return c.JSON(http.StatusBadRequest, errorBody("empty message"))
	}
	ctx := c.Request().Context()
	id := c.Param("id")
	if _, err := h.store.GetConversation(ctx, id); err != nil {
		return h.storeError(c, err)
	}

	res := h.pipeline.ProcessMessage(ctx, id, req.Content, req.HealthContext)
	if res.UserMessage == nil {
		return c.JSON(http.StatusInternalServerError, res)
	}
	return c.JSON(http.StatusOK, res)
}

// GetTokenStats reports the token breakdown of a conversation.
// GET /api/conversations/:id/stats
func (h *Handler) GetTokenStats(c echo.Context) error {
	stats, err := h.pipeline.GetTokenStats(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.storeError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

// SaveProfile creates or replaces a health profile.
// POST /api/profiles, PUT /api/profiles/:id
func (h *Handler) SaveProfile(c echo.Context) error {
	var p pkg.Profile
	if err := c.Bind(&p); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid request body"))
	}
	status := http.StatusCreated
	if id := c.Param("id"); id != "" {
		p.ID = id
		status = http.StatusOK
	}
	if p.Age != nil && (*p.Age < 0 || *p.Age > 150) {
		return c.JSON(http.StatusBadRequest, errorBody("age out of range"))
	}
	if err := h.store.SaveProfile(c.Request().Context(), &p); err != nil {
		return h.storeError(c, err)
	}
	return c.JSON(status, p)
}

// GetProfile returns a health profile.
// GET /api/profiles/:id
func (h *Handler) GetProfile(c echo.Context) error {
	p, err := h.store.GetProfile(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.storeError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// TestConnectivity round-trips a trivial completion.
// GET /api/health/llm
func (h *Handler) TestConnectivity(c echo.Context) error {
	res := h.pipeline.TestConnectivity(c.Request().Context())
	if !res.Success {
		return c.JSON(http.StatusServiceUnavailable, res)
	}
	return c.JSON(http.StatusOK, res)
}

// StreamAlerts streams urgent-reply alerts as server-sent events until the
// client disconnects.
// GET /api/alerts/stream
func (h *Handler) StreamAlerts(c echo.Context) error {
	if h.alerts == nil {
		return c.JSON(http.StatusServiceUnavailable, errorBody("alerts require a postgres database"))
	}
	ctx := c.Request().Context()
	ch, err := h.alerts.Listen(ctx)
	if err != nil {
		h.logger.Errorw("listen for alerts failed", "error", err)
		return c.JSON(http.StatusInternalServerError, errorBody("alerts unavailable"))
	}

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	for alert := range ch {
		data, err := json.Marshal(map[string]string{
			"type":            "urgent_reply",
			"conversation_id": alert.ConversationID,
			"urgency_level":   string(alert.Level),
		})
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return nil
		}
		w.Flush()
	}
	return nil
}

// storeError maps persistence errors to responses.
func (h *Handler) storeError(c echo.Context, err error) error {
	if errors.Is(err, db.ErrNotFound) {
		return c.JSON(http.StatusNotFound, errorBody(err.Error()))
	}
	h.logger.Errorw("store error", "path", c.Path(), "error", err)
	return c.JSON(http.StatusInternalServerError, errorBody("internal error"))
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}
