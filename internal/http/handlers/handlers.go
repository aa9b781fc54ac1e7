package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/vogaflex/crm-insights/internal/export"
	"github.com/vogaflex/crm-insights/internal/models"
	"github.com/vogaflex/crm-insights/internal/session"
	"github.com/vogaflex/crm-insights/internal/upstream"
)

// Pinger checks the data source backing the session.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	Session   *session.Session
	Source    Pinger
	Validator *validator.Validate
	Logger    zerolog.Logger
}

type DashboardParams struct {
	DateFrom string `form:"date_from" validate:"omitempty,datetime=2006-01-02"`
	DateTo   string `form:"date_to" validate:"omitempty,datetime=2006-01-02"`
	Preset   string `form:"preset" validate:"omitempty,oneof=week month quarter"`
	Vendedor string `form:"vendedor"`
	Selected string `form:"selected"`
}

type MessagesResponse struct {
	Conversation models.Conversation   `json:"conversation"`
	Messages     []models.MessageEntry `json:"messages"`
}

func (h *Handler) Healthz(c *gin.Context) {
	if h.Source == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.Source.Ping(ctx); err != nil {
		writeError(c, http.StatusServiceUnavailable, "SOURCE_UNAVAILABLE", "Data source unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary Session state
// @Description Current filters, error banner, loading flags and last fetch per flow
// @Tags session
// @Produce json
// @Success 200 {object} session.StateView
// @Router /api/state [get]
func (h *Handler) State(c *gin.Context) {
	c.JSON(http.StatusOK, h.Session.State())
}

// @Summary Update filters
// @Description Partial filter update. Search text is debounced; status, stage, vendor and dates refetch the conversation list.
// @Tags session
// @Accept json
// @Produce json
// @Param patch body session.StatePatch true "Filter changes"
// @Success 200 {object} session.StateView
// @Failure 400 {object} map[string]any
// @Router /api/state [patch]
func (h *Handler) UpdateState(c *gin.Context) {
	var patch session.StatePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", err.Error())
		return
	}
	if err := h.Validator.Struct(patch); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid filter values", err.Error())
		return
	}
	refetch := false
	if c.Query("reset") == "1" {
		refetch = h.Session.Reset()
	}
	if h.Session.Update(patch) {
		refetch = true
	}
	if refetch {
		if err := h.Session.RefreshConversations(c.Request.Context()); err != nil && !errors.Is(err, session.ErrStale) {
			h.Logger.Warn().Err(err).Msg("refresh after filter change failed")
		}
	}
	c.JSON(http.StatusOK, h.Session.State())
}

// @Summary Refresh conversations
// @Tags conversations
// @Produce json
// @Success 200 {object} session.ListView
// @Failure 502 {object} map[string]any
// @Router /api/refresh [post]
func (h *Handler) Refresh(c *gin.Context) {
	if err := h.Session.RefreshConversations(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.Session.List())
}

// @Summary Conversation list
// @Description Filtered conversations with select options, summary metrics and active filter chips
// @Tags conversations
// @Produce json
// @Success 200 {object} session.ListView
// @Failure 502 {object} map[string]any
// @Router /api/conversations [get]
func (h *Handler) Conversations(c *gin.Context) {
	if err := h.Session.EnsureLoaded(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.Session.List())
}

// @Summary Conversation messages
// @Description Selects the conversation and returns its classified message timeline
// @Tags conversations
// @Produce json
// @Param id path string true "Conversation key"
// @Success 200 {object} MessagesResponse
// @Failure 404 {object} map[string]any
// @Router /api/conversations/{id}/messages [get]
func (h *Handler) Messages(c *gin.Context) {
	if err := h.Session.EnsureLoaded(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	conv, entries, err := h.Session.Select(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if entries == nil {
		entries = []models.MessageEntry{}
	}
	c.JSON(http.StatusOK, MessagesResponse{Conversation: conv, Messages: entries})
}

// @Summary Analytics dashboard
// @Description Funnel, daily series, vendor table and stats for a period. Explicit dates win over the preset.
// @Tags dashboard
// @Produce json
// @Param date_from query string false "YYYY-MM-DD"
// @Param date_to query string false "YYYY-MM-DD"
// @Param preset query string false "week, month or quarter"
// @Param vendedor query string false "Vendor filter"
// @Param selected query string false "Selected vendor row"
// @Success 200 {object} analytics.Snapshot
// @Failure 400 {object} map[string]any
// @Router /api/dashboard [get]
func (h *Handler) Dashboard(c *gin.Context) {
	params, ok := h.bindDashboard(c)
	if !ok {
		return
	}
	q, preset := h.Session.DashboardQuery(params.DateFrom, params.DateTo, params.Preset, params.Vendedor)
	snap, err := h.Session.Snapshot(c.Request.Context(), q, preset, params.Selected)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// @Summary Vendor contact breakdown
// @Tags dashboard
// @Produce json
// @Param vendor path string true "Vendor name"
// @Param date_from query string false "YYYY-MM-DD"
// @Param date_to query string false "YYYY-MM-DD"
// @Param preset query string false "week, month or quarter"
// @Success 200 {object} analytics.ContactBreakdown
// @Router /api/dashboard/vendors/{vendor}/breakdown [get]
func (h *Handler) VendorBreakdown(c *gin.Context) {
	params, ok := h.bindDashboard(c)
	if !ok {
		return
	}
	q, _ := h.Session.DashboardQuery(params.DateFrom, params.DateTo, params.Preset, params.Vendedor)
	b, err := h.Session.VendorBreakdown(c.Request.Context(), q, c.Param("vendor"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// @Summary Export conversations
// @Description CSV of the currently filtered conversation list
// @Tags conversations
// @Produce text/csv
// @Success 200 {string} string
// @Router /api/export.csv [get]
func (h *Handler) Export(c *gin.Context) {
	if err := h.Session.EnsureLoaded(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	convs := h.Session.Filtered()
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="orcamentos.csv"`)
	c.Status(http.StatusOK)
	if err := export.WriteCSV(c.Writer, convs); err != nil {
		h.Logger.Error().Err(err).Msg("csv export failed")
	}
}

func (h *Handler) bindDashboard(c *gin.Context) (DashboardParams, bool) {
	var params DashboardParams
	if err := c.ShouldBindQuery(&params); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid query parameters", err.Error())
		return params, false
	}
	if err := h.Validator.Struct(params); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid query parameters", err.Error())
		return params, false
	}
	return params, true
}

// fail maps session and upstream errors onto the error envelope. Boundary API
// messages are passed through verbatim.
func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeError(c, http.StatusNotFound, "NOT_FOUND", "Conversation not found", nil)
	case errors.Is(err, session.ErrStale):
		writeError(c, http.StatusConflict, "SUPERSEDED", "A newer request replaced this one", nil)
	case errors.Is(err, context.Canceled):
		writeError(c, 499, "CANCELED", "Request canceled", nil)
	default:
		if apiErr, ok := upstream.AsAPIError(err); ok {
			writeError(c, http.StatusBadGateway, "UPSTREAM_ERROR", apiErr.Message, gin.H{"status": apiErr.Status})
			return
		}
		writeError(c, http.StatusBadGateway, "FETCH_FAILED", session.BannerMessage(err), nil)
	}
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}
