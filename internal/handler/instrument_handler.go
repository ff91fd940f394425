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

// InstrumentHandler exposes inventory endpoints.
type InstrumentHandler struct {
	instruments *service.InstrumentService
}

// NewInstrumentHandler constructs InstrumentHandler.
func NewInstrumentHandler(instruments *service.InstrumentService) *InstrumentHandler {
	return &InstrumentHandler{instruments: instruments}
}

func instrumentFilterFromQuery(c *gin.Context) models.InstrumentFilter {
	var filter models.InstrumentFilter
	if state := c.Query("state"); state != "" {
		st := models.StateName(state)
		filter.State = &st
	}
	filter.MeasureID = c.Query("measure_id")
	filter.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")
	return filter
}

// List godoc
// @Summary List instruments
// @Tags Instruments
// @Produce json
// @Param state query string false "Filter by state"
// @Param measure_id query string false "Filter by measure"
// @Param search query string false "Search by description, brand or serial"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /instruments [get]
func (h *InstrumentHandler) List(c *gin.Context) {
	instruments, pagination, err := h.instruments.List(c.Request.Context(), instrumentFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, instruments, pagination)
}

// Available godoc
// @Summary List instruments free for loan
// @Tags Instruments
// @Produce json
// @Param search query string false "Search by description, brand or serial"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /instruments/available [get]
func (h *InstrumentHandler) Available(c *gin.Context) {
	instruments, pagination, err := h.instruments.Available(c.Request.Context(), instrumentFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, instruments, pagination)
}

// Get godoc
// @Summary Get one instrument
// @Tags Instruments
// @Produce json
// @Param id path string true "Instrument ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /instruments/{id} [get]
func (h *InstrumentHandler) Get(c *gin.Context) {
	instrument, err := h.instruments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, instrument, nil)
}

// Create godoc
// @Summary Register an instrument
// @Tags Instruments
// @Accept json
// @Produce json
// @Param payload body service.CreateInstrumentRequest true "Instrument payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /instruments [post]
func (h *InstrumentHandler) Create(c *gin.Context) {
	var req service.CreateInstrumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	instrument, err := h.instruments.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, instrument)
}

// Update godoc
// @Summary Update instrument descriptive fields
// @Tags Instruments
// @Accept json
// @Produce json
// @Param id path string true "Instrument ID"
// @Param payload body service.UpdateInstrumentRequest true "Instrument payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /instruments/{id} [put]
func (h *InstrumentHandler) Update(c *gin.Context) {
	var req service.UpdateInstrumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	instrument, err := h.instruments.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, instrument, nil)
}

// ChangeState godoc
// @Summary Move an instrument to another state
// @Tags Instruments
// @Accept json
// @Produce json
// @Param id path string true "Instrument ID"
// @Param payload body service.ChangeStateRequest true "Target state"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /instruments/{id}/state [patch]
func (h *InstrumentHandler) ChangeState(c *gin.Context) {
	var req service.ChangeStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	instrument, err := h.instruments.ChangeState(c.Request.Context(), currentClaims(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, instrument, nil)
}

// Delete godoc
// @Summary Delete an instrument without loan history
// @Tags Instruments
// @Produce json
// @Param id path string true "Instrument ID"
// @Success 204 "No Content"
// @Security BearerAuth
// @Router /instruments/{id} [delete]
func (h *InstrumentHandler) Delete(c *gin.Context) {
	if err := h.instruments.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// History godoc
// @Summary Instrument state history
// @Tags Instruments
// @Produce json
// @Param id path string true "Instrument ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /instruments/{id}/history [get]
func (h *InstrumentHandler) History(c *gin.Context) {
	history, err := h.instruments.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, nil)
}

// ValidateSerial godoc
// @Summary Check an inventory serial
// @Tags Instruments
// @Produce json
// @Param serial query string true "Inventory serial"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /instruments/validate-serial [get]
func (h *InstrumentHandler) ValidateSerial(c *gin.Context) {
	serial := c.Query("serial")
	valid, free, err := h.instruments.ValidateSerial(c.Request.Context(), serial)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"valid": valid, "available": free}, nil)
}

// SuggestSerial godoc
// @Summary Generate a free inventory serial
// @Tags Instruments
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /instruments/suggest-serial [get]
func (h *InstrumentHandler) SuggestSerial(c *gin.Context) {
	serial, err := h.instruments.SuggestSerial(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"serial": serial}, nil)
}

// Accessories godoc
// @Summary List accessories of an instrument
// @Tags Instruments
// @Produce json
// @Param id path string true "Instrument ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /instruments/{id}/accessories [get]
func (h *InstrumentHandler) Accessories(c *gin.Context) {
	accessories, err := h.instruments.Accessories(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, accessories, nil)
}

// AddAccessory godoc
// @Summary Attach an accessory
// @Tags Instruments
// @Accept json
// @Produce json
// @Param id path string true "Instrument ID"
// @Param payload body service.AccessoryRequest true "Accessory payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /instruments/{id}/accessories [post]
func (h *InstrumentHandler) AddAccessory(c *gin.Context) {
	var req service.AccessoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	accessory, err := h.instruments.AddAccessory(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, accessory)
}

// UpdateAccessory godoc
// @Summary Update an accessory
// @Tags Instruments
// @Accept json
// @Produce json
// @Param accessoryId path string true "Accessory ID"
// @Param payload body service.AccessoryRequest true "Accessory payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /accessories/{accessoryId} [put]
func (h *InstrumentHandler) UpdateAccessory(c *gin.Context) {
	var req service.AccessoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	accessory, err := h.instruments.UpdateAccessory(c.Request.Context(), c.Param("accessoryId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, accessory, nil)
}

// RemoveAccessory godoc
// @Summary Remove an accessory
// @Tags Instruments
// @Produce json
// @Param accessoryId path string true "Accessory ID"
// @Success 204 "No Content"
// @Security BearerAuth
// @Router /accessories/{accessoryId} [delete]
func (h *InstrumentHandler) RemoveAccessory(c *gin.Context) {
	if err := h.instruments.RemoveAccessory(c.Request.Context(), c.Param("accessoryId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Import godoc
// @Summary Bulk import instruments from a spreadsheet
// @Tags Instruments
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "XLSX file with a header row"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /instruments/import [post]
func (h *InstrumentHandler) Import(c *gin.Context) {
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file field is required"))
		return
	}
	defer file.Close()

	report, err := h.instruments.Import(c.Request.Context(), currentClaims(c), file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// States godoc
// @Summary Instrument state catalog
// @Tags Catalogs
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /states [get]
func (h *InstrumentHandler) States(c *gin.Context) {
	states, err := h.instruments.States(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, states, nil)
}

// CreateState godoc
// @Summary Add a state to the catalog
// @Tags Catalogs
// @Accept json
// @Produce json
// @Param payload body service.CatalogRequest true "State"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /states [post]
func (h *InstrumentHandler) CreateState(c *gin.Context) {
	var req service.CatalogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	state, err := h.instruments.CreateState(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, state)
}

// Measures godoc
// @Summary Measure catalog
// @Tags Catalogs
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /measures [get]
func (h *InstrumentHandler) Measures(c *gin.Context) {
	measures, err := h.instruments.Measures(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, measures, nil)
}

// CreateMeasure godoc
// @Summary Add a measure to the catalog
// @Tags Catalogs
// @Accept json
// @Produce json
// @Param payload body service.CatalogRequest true "Measure"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /measures [post]
func (h *InstrumentHandler) CreateMeasure(c *gin.Context) {
	var req service.CatalogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	measure, err := h.instruments.CreateMeasure(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, measure)
}
