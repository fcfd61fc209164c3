package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"rillscope/internal/core/charts"
	"rillscope/internal/core/domain"
	"rillscope/internal/core/services"
	"rillscope/internal/infrastructure/canvas"
	"rillscope/internal/infrastructure/middleware"
	"rillscope/pkg/errors"
	"rillscope/pkg/validation"

	"github.com/gin-gonic/gin"
)

// Dashboard is the controller surface the HTTP API drives.
type Dashboard interface {
	RoomID() string
	View(admin bool) services.DashboardView
	ParticipantViews(admin bool) []services.ParticipantView
	SetActiveTab(tab domain.Tab) error
	SetTimeRange(rng domain.RangeToken) error
	SetAutoRefresh(enabled bool) error
	SetSearchFilter(q string) error
	SetStatusFilter(f domain.StatusFilter) error
	DismissAlert(id string) error
	ClearAlerts() (int, error)
	BuildExport() *domain.ExportPayload
	Export(ctx context.Context) (string, error)
	StoredExports(ctx context.Context) ([]*domain.ExportRecord, error)
	OpenExport(ctx context.Context, name string) (io.ReadCloser, error)
	Chart(name string) (charts.CommandList, error)
	ChartSize() charts.Size
	Moderate(ctx context.Context, admin bool, participantID string, action domain.ModerationAction) error
}

// WebSocketHandler upgrades a request into a live dashboard feed.
type WebSocketHandler interface {
	HandleWebSocket(w http.ResponseWriter, r *http.Request, admin bool)
}

// ErrorRules maps domain errors onto API responses.
var ErrorRules = []errors.Rule{
	{Target: domain.ErrInvalidRange, Code: errors.ErrCodeInvalidInput, HTTPStatus: http.StatusBadRequest},
	{Target: domain.ErrInvalidTab, Code: errors.ErrCodeInvalidInput, HTTPStatus: http.StatusBadRequest},
	{Target: domain.ErrInvalidStatusFilter, Code: errors.ErrCodeInvalidInput, HTTPStatus: http.StatusBadRequest},
	{Target: domain.ErrUnknownModerationAction, Code: errors.ErrCodeInvalidInput, HTTPStatus: http.StatusBadRequest},
	{Target: domain.ErrAlertNotFound, Code: errors.ErrCodeNotFound, HTTPStatus: http.StatusNotFound},
	{Target: domain.ErrUnknownChart, Code: errors.ErrCodeNotFound, HTTPStatus: http.StatusNotFound},
	{Target: domain.ErrParticipantNotFound, Code: errors.ErrCodeNotFound, HTTPStatus: http.StatusNotFound},
	{Target: domain.ErrExportNotFound, Code: errors.ErrCodeNotFound, HTTPStatus: http.StatusNotFound},
	{Target: domain.ErrForbidden, Code: errors.ErrCodeForbidden, HTTPStatus: http.StatusForbidden},
	{Target: domain.ErrNotMounted, Code: errors.ErrCodeConflict, HTTPStatus: http.StatusConflict},
	{Target: domain.ErrModerationUnavailable, Code: errors.ErrCodeServiceUnavailable, HTTPStatus: http.StatusServiceUnavailable},
	{Target: domain.ErrNoExportTarget, Code: errors.ErrCodeServiceUnavailable, HTTPStatus: http.StatusServiceUnavailable},
	{Target: domain.ErrProviderUnavailable, Code: errors.ErrCodeBadGateway, HTTPStatus: http.StatusBadGateway},
}

// DashboardHandler serves the room dashboard API.
type DashboardHandler struct {
	dashboard Dashboard
	live      WebSocketHandler
}

// NewDashboardHandler creates a new dashboard handler. live may be nil.
func NewDashboardHandler(dashboard Dashboard, live WebSocketHandler) *DashboardHandler {
	return &DashboardHandler{
		dashboard: dashboard,
		live:      live,
	}
}

// SetupRoutes mounts the dashboard API at /rooms/:room relative to router,
// which is the /api/v1 group in serve. Callers put auth middleware on
// router before calling; moderation still checks the admin flag itself.
func (h *DashboardHandler) SetupRoutes(router gin.IRouter) {
	room := router.Group("/rooms/:room", h.requireRoom)
	{
		room.GET("/dashboard", h.GetDashboard)
		room.PUT("/dashboard/tab", h.SetTab)
		room.PUT("/dashboard/range", h.SetRange)
		room.PUT("/dashboard/auto-refresh", h.SetAutoRefresh)
		room.PUT("/dashboard/filters", h.SetFilters)

		room.GET("/participants", h.ListParticipants)
		room.POST("/participants/:pid/:action", h.ModerateParticipant)

		room.DELETE("/alerts/:id", h.DismissAlert)
		room.DELETE("/alerts", h.ClearAlerts)

		room.GET("/export", h.DownloadExport)
		room.POST("/export", h.CreateExport)
		room.GET("/exports", h.ListExports)
		room.GET("/exports/:id", h.GetExport)

		room.GET("/charts/:name", h.GetChart)

		if h.live != nil {
			room.GET("/ws", h.ServeWebSocket)
		}
	}
}

func (h *DashboardHandler) requireRoom(c *gin.Context) {
	roomID := c.Param("room")
	if err := validation.ValidateRoomID(roomID); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		c.Abort()
		return
	}
	if roomID != h.dashboard.RoomID() {
		c.Error(errors.NewNotFoundError("room").WithContext("room_id", roomID))
		c.Abort()
		return
	}
	c.Next()
}

// GetDashboard returns the current view.
func (h *DashboardHandler) GetDashboard(c *gin.Context) {
	c.JSON(http.StatusOK, h.dashboard.View(middleware.IsAdmin(c)))
}

func (h *DashboardHandler) respondView(c *gin.Context, err error) {
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, h.dashboard.View(middleware.IsAdmin(c)))
}

// SetTabRequest selects a tab.
type SetTabRequest struct {
	Tab string `json:"tab" binding:"required"`
}

// SetTab switches the active tab.
func (h *DashboardHandler) SetTab(c *gin.Context) {
	var req SetTabRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}
	h.respondView(c, h.dashboard.SetActiveTab(domain.Tab(req.Tab)))
}

// SetRangeRequest selects a history range.
type SetRangeRequest struct {
	Range string `json:"range" binding:"required"`
}

// SetRange changes the history range.
func (h *DashboardHandler) SetRange(c *gin.Context) {
	var req SetRangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}
	rng, err := domain.ParseRangeToken(req.Range)
	if err != nil {
		c.Error(err)
		return
	}
	h.respondView(c, h.dashboard.SetTimeRange(rng))
}

// SetAutoRefreshRequest pauses or resumes polling.
type SetAutoRefreshRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// SetAutoRefresh pauses or resumes polling.
func (h *DashboardHandler) SetAutoRefresh(c *gin.Context) {
	var req SetAutoRefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("enabled is required"))
		return
	}
	h.respondView(c, h.dashboard.SetAutoRefresh(*req.Enabled))
}

// SetFiltersRequest updates only the fields present.
type SetFiltersRequest struct {
	Search *string `json:"search"`
	Status *string `json:"status"`
}

// SetFilters updates the participant search and status filters.
func (h *DashboardHandler) SetFilters(c *gin.Context) {
	var req SetFiltersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	// both fields are checked before either is applied
	var status domain.StatusFilter
	if req.Status != nil {
		var err error
		if status, err = domain.ParseStatusFilter(*req.Status); err != nil {
			c.Error(err)
			return
		}
	}
	if req.Search != nil {
		if err := validation.ValidateSearchQuery(*req.Search); err != nil {
			c.Error(errors.NewInvalidInputError(err.Error()))
			return
		}
	}

	if req.Status != nil {
		if err := h.dashboard.SetStatusFilter(status); err != nil {
			c.Error(err)
			return
		}
	}
	if req.Search != nil {
		if err := h.dashboard.SetSearchFilter(*req.Search); err != nil {
			c.Error(err)
			return
		}
	}

	h.respondView(c, nil)
}

// ListParticipants returns the filtered participant list.
func (h *DashboardHandler) ListParticipants(c *gin.Context) {
	participants := h.dashboard.ParticipantViews(middleware.IsAdmin(c))
	c.JSON(http.StatusOK, gin.H{
		"participants": participants,
		"count":        len(participants),
	})
}

// ModerateParticipant mutes or kicks a participant. Admin only.
func (h *DashboardHandler) ModerateParticipant(c *gin.Context) {
	pid := c.Param("pid")
	if err := validation.ValidateParticipantID(pid); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}
	action, err := domain.ParseModerationAction(c.Param("action"))
	if err != nil {
		c.Error(err)
		return
	}

	if err := h.dashboard.Moderate(c.Request.Context(), middleware.IsAdmin(c), pid, action); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"participant_id": pid,
		"action":         action,
	})
}

// DismissAlert dismisses one active alert.
func (h *DashboardHandler) DismissAlert(c *gin.Context) {
	if err := h.dashboard.DismissAlert(c.Param("id")); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ClearAlerts dismisses every active alert.
func (h *DashboardHandler) ClearAlerts(c *gin.Context) {
	n, err := h.dashboard.ClearAlerts()
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": n})
}

// DownloadExport streams the current state as a JSON attachment without
// delivering it anywhere.
func (h *DashboardHandler) DownloadExport(c *gin.Context) {
	payload := h.dashboard.BuildExport()
	data, err := services.Encode(payload)
	if err != nil {
		c.Error(err)
		return
	}

	name := services.ExportFilename(h.dashboard.RoomID(), payload.ExportedAt)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, "application/json", data)
}

// CreateExport delivers an export to the configured target.
func (h *DashboardHandler) CreateExport(c *gin.Context) {
	name, err := h.dashboard.Export(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"export": name})
}

// ListExports lists stored exports for the room.
func (h *DashboardHandler) ListExports(c *gin.Context) {
	records, err := h.dashboard.StoredExports(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"exports": records,
		"count":   len(records),
	})
}

// GetExport streams a stored export.
func (h *DashboardHandler) GetExport(c *gin.Context) {
	id := c.Param("id")
	if err := validation.ValidateExportID(id); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}

	rc, err := h.dashboard.OpenExport(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	defer rc.Close()

	name := id
	if !strings.HasSuffix(name, ".json") {
		name += ".json"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.DataFromReader(http.StatusOK, -1, "application/json", rc, nil)
}

// GetChart returns a chart's draw commands, or an SVG rendering of them
// with ?format=svg.
func (h *DashboardHandler) GetChart(c *gin.Context) {
	name := c.Param("name")
	list, err := h.dashboard.Chart(name)
	if err != nil {
		c.Error(err)
		return
	}

	switch c.DefaultQuery("format", "json") {
	case "svg":
		c.Data(http.StatusOK, "image/svg+xml", canvas.RenderSVG(h.dashboard.ChartSize(), list))
	case "json":
		c.JSON(http.StatusOK, gin.H{
			"name":     name,
			"size":     h.dashboard.ChartSize(),
			"commands": list,
		})
	default:
		c.Error(errors.NewInvalidInputError("format must be json or svg"))
	}
}

// ServeWebSocket upgrades to the live feed.
func (h *DashboardHandler) ServeWebSocket(c *gin.Context) {
	h.live.HandleWebSocket(c.Writer, c.Request, middleware.IsAdmin(c))
}
