package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-social/interaction-service/internal/domain"
	"github.com/weiawesome/wes-io-social/interaction-service/internal/service"
	pkglog "github.com/weiawesome/wes-io-social/pkg/log"
	"github.com/weiawesome/wes-io-social/pkg/middleware"
	"github.com/weiawesome/wes-io-social/pkg/response"
)

// Handler handles HTTP requests for the interaction service.
type Handler struct {
	svc            service.InteractionService
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler creates a new HTTP handler.
func NewHandler(svc service.InteractionService, authMiddleware *middleware.AuthMiddleware) *Handler {
	return &Handler{
		svc:            svc,
		authMiddleware: authMiddleware,
	}
}

// RegisterRoutes registers all routes onto the Gin engine.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	api := r.Group("/api/v1")
	{
		interactions := api.Group("/interactions")
		{
			// POST /api/v1/interactions/batch (auth required)
			interactions.POST("/batch", h.authMiddleware.RequireAuth(), h.BatchToggle)
			// POST /api/v1/interactions/:kind/:target_id/toggle (auth required)
			interactions.POST("/:kind/:target_id/toggle", h.authMiddleware.RequireAuth(), h.Toggle)
			// PUT /api/v1/interactions/:kind/:target_id (auth required)
			interactions.PUT("/:kind/:target_id", h.authMiddleware.RequireAuth(), h.Apply)
			// GET /api/v1/interactions/:kind/:target_id/count (no auth)
			interactions.GET("/:kind/:target_id/count", h.GetCount)
		}

		// POST /api/v1/users/:user_id/interactions/:kind/status (no auth)
		api.POST("/users/:user_id/interactions/:kind/status", h.BatchStatus)
	}

	internal := r.Group("/internal/v1")
	{
		// PUT /internal/v1/targets/:target_id (service to service)
		internal.PUT("/targets/:target_id", h.RegisterTarget)
	}
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Toggle handles POST /api/v1/interactions/:kind/:target_id/toggle.
func (h *Handler) Toggle(c *gin.Context) {
	h.apply(c, domain.ActionToggle)
}

type applyRequest struct {
	Action string `json:"action" binding:"required"`
}

// Apply handles PUT /api/v1/interactions/:kind/:target_id.
// The body selects "on", "off" or "toggle".
func (h *Handler) Apply(c *gin.Context) {
	var req applyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	action, err := domain.ParseAction(req.Action)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	h.apply(c, action)
}

func (h *Handler) apply(c *gin.Context, action domain.ToggleAction) {
	ctx := c.Request.Context()
	l := pkglog.Ctx(ctx)

	actorID := middleware.GetUserID(c)
	if actorID == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}

	kind, err := domain.ParseKind(c.Param("kind"))
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	targetID := c.Param("target_id")

	out, err := h.svc.Apply(ctx, actorID, targetID, kind, action)
	if err != nil {
		if writeError(c, err) {
			l.Error().Err(err).
				Str(pkglog.FieldUserID, actorID).
				Str(pkglog.FieldTargetID, targetID).
				Str(pkglog.FieldKind, string(kind)).
				Msg("toggle failed")
		}
		return
	}

	response.Success(c, out)
}

type batchRequest struct {
	Items []domain.BatchItem `json:"items" binding:"required"`
}

// BatchToggle handles POST /api/v1/interactions/batch.
func (h *Handler) BatchToggle(c *gin.Context) {
	ctx := c.Request.Context()
	l := pkglog.Ctx(ctx)

	actorID := middleware.GetUserID(c)
	if actorID == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}

	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("invalid batch toggle request")
		response.BadRequest(c, err.Error())
		return
	}

	results, err := h.svc.BatchToggle(ctx, actorID, req.Items)
	if err != nil {
		if writeError(c, err) {
			l.Error().Err(err).Str(pkglog.FieldUserID, actorID).Msg("batch toggle failed")
		}
		return
	}

	response.Success(c, gin.H{"results": results})
}

// GetCount handles GET /api/v1/interactions/:kind/:target_id/count.
func (h *Handler) GetCount(c *gin.Context) {
	ctx := c.Request.Context()
	l := pkglog.Ctx(ctx)

	kind, err := domain.ParseKind(c.Param("kind"))
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	targetID := c.Param("target_id")

	agg, err := h.svc.GetCount(ctx, targetID, kind)
	if err != nil {
		if writeError(c, err) {
			l.Error().Err(err).Str(pkglog.FieldTargetID, targetID).Msg("get count failed")
		}
		return
	}

	response.Success(c, gin.H{"count": agg.Value, "version": agg.Version})
}

type statusRequest struct {
	TargetIDs []string `json:"target_ids" binding:"required"`
}

// BatchStatus handles POST /api/v1/users/:user_id/interactions/:kind/status.
func (h *Handler) BatchStatus(c *gin.Context) {
	ctx := c.Request.Context()
	l := pkglog.Ctx(ctx)

	userID := c.Param("user_id")
	kind, err := domain.ParseKind(c.Param("kind"))
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("invalid interaction status request")
		response.BadRequest(c, err.Error())
		return
	}

	results, err := h.svc.BatchStatus(ctx, userID, kind, req.TargetIDs)
	if err != nil {
		if writeError(c, err) {
			l.Error().Err(err).Str(pkglog.FieldUserID, userID).Msg("batch status failed")
		}
		return
	}

	response.Success(c, gin.H{"results": results})
}

type registerTargetRequest struct {
	OwnerID string `json:"owner_id"`
	Type    string `json:"type"`
}

// RegisterTarget handles PUT /internal/v1/targets/:target_id.
func (h *Handler) RegisterTarget(c *gin.Context) {
	ctx := c.Request.Context()
	l := pkglog.Ctx(ctx)

	var req registerTargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	target, err := h.svc.RegisterTarget(ctx, domain.Target{
		ID:      c.Param("target_id"),
		OwnerID: req.OwnerID,
		Type:    req.Type,
	})
	if err != nil {
		if writeError(c, err) {
			l.Error().Err(err).Str(pkglog.FieldTargetID, c.Param("target_id")).Msg("register target failed")
		}
		return
	}

	response.Success(c, target)
}

// writeError maps a service error to a response envelope. It reports true
// when the error was unexpected and worth logging.
func writeError(c *gin.Context, err error) bool {
	switch {
	case errors.Is(err, domain.ErrInvalidKind),
		errors.Is(err, domain.ErrInvalidAction),
		errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrSelfInteraction),
		errors.Is(err, domain.ErrBatchTooLarge):
		response.BadRequest(c, err.Error())
		return false
	case errors.Is(err, domain.ErrNotFound):
		response.NotFound(c, "target not found")
		return false
	case errors.Is(err, domain.ErrToggleConflict):
		response.Conflict(c, "too much contention, try again")
		return true
	case errors.Is(err, domain.ErrStorageUnavailable):
		response.ServiceUnavailable(c, "storage unavailable")
		return true
	default:
		response.InternalError(c, "internal error")
		return true
	}
}
