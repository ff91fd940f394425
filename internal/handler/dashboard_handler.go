package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nucleo-eljunko/comodato-api/internal/service"
	"github.com/nucleo-eljunko/comodato-api/pkg/response"
)

// DashboardHandler exposes aggregated counters, alerts and search.
type DashboardHandler struct {
	dashboard *service.DashboardService
}

// NewDashboardHandler constructs DashboardHandler.
func NewDashboardHandler(dashboard *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// Stats godoc
// @Summary Entity counters for the home screen
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /dashboard/stats [get]
func (h *DashboardHandler) Stats(c *gin.Context) {
	stats, err := h.dashboard.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Alerts godoc
// @Summary Overdue and soon-to-expire loans
// @Tags Dashboard
// @Produce json
// @Param days query int false "Window in days, default 30"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /dashboard/alerts [get]
func (h *DashboardHandler) Alerts(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	alerts, err := h.dashboard.Alerts(c.Request.Context(), days)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, alerts, nil)
}

// Search godoc
// @Summary Cross-entity search
// @Tags Dashboard
// @Produce json
// @Param q query string true "Search term, at least 2 characters"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /search [get]
func (h *DashboardHandler) Search(c *gin.Context) {
	results, err := h.dashboard.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, nil)
}
