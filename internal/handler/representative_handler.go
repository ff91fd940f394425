package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nucleo-eljunko/comodato-api/internal/models"
	"github.com/nucleo-eljunko/comodato-api/internal/service"
	appErrors "github.com/nucleo-eljunko/comodato-api/pkg/errors"
	"github.com/nucleo-eljunko/comodato-api/pkg/response"
)

// RepresentativeHandler exposes representative endpoints.
type RepresentativeHandler struct {
	representatives *service.RepresentativeService
}

// NewRepresentativeHandler constructs RepresentativeHandler.
func NewRepresentativeHandler(representatives *service.RepresentativeService) *RepresentativeHandler {
	return &RepresentativeHandler{representatives: representatives}
}

// List godoc
// @Summary List representatives
// @Tags Representatives
// @Produce json
// @Param search query string false "Search by name or national ID"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /representatives [get]
func (h *RepresentativeHandler) List(c *gin.Context) {
	var filter models.RepresentativeFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	representatives, pagination, err := h.representatives.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, representatives, pagination)
}

// Get godoc
// @Summary Get one representative
// @Tags Representatives
// @Produce json
// @Param id path string true "Representative ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /representatives/{id} [get]
func (h *RepresentativeHandler) Get(c *gin.Context) {
	representative, err := h.representatives.Get(c.Request.Context(), currentClaims(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, representative, nil)
}

// Update godoc
// @Summary Update a representative profile
// @Tags Representatives
// @Accept json
// @Produce json
// @Param id path string true "Representative ID"
// @Param payload body service.UpdateRepresentativeRequest true "Profile payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /representatives/{id} [put]
func (h *RepresentativeHandler) Update(c *gin.Context) {
	var req service.UpdateRepresentativeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	representative, err := h.representatives.Update(c.Request.Context(), currentClaims(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, representative, nil)
}

// Stats godoc
// @Summary Per-representative counters
// @Tags Representatives
// @Produce json
// @Param id path string true "Representative ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /representatives/{id}/stats [get]
func (h *RepresentativeHandler) Stats(c *gin.Context) {
	stats, err := h.representatives.Stats(c.Request.Context(), currentClaims(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
