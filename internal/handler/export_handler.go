package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/nucleo-eljunko/comodato-api/internal/models"
	"github.com/nucleo-eljunko/comodato-api/internal/service"
	"github.com/nucleo-eljunko/comodato-api/pkg/response"
)

// ExportHandler streams rendered reports.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Loans godoc
// @Summary Export loans
// @Tags Exports
// @Produce octet-stream
// @Param format query string true "csv, pdf or xlsx"
// @Param status query string false "Filter by status"
// @Param representative_id query string false "Filter by representative"
// @Success 200 {file} binary
// @Security BearerAuth
// @Router /exports/loans [get]
func (h *ExportHandler) Loans(c *gin.Context) {
	var filter models.LoanFilter
	filter.RepresentativeID = c.Query("representative_id")
	if status := c.Query("status"); status != "" {
		st := models.LoanStatus(status)
		filter.Status = &st
	}
	filter.OverdueOnly = c.Query("overdue") == "true"

	file, err := h.exports.Loans(c.Request.Context(), currentClaims(c), filter, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Name, file.ContentType, file.Bytes)
}

// Instruments godoc
// @Summary Export the inventory
// @Tags Exports
// @Produce octet-stream
// @Param format query string true "csv, pdf or xlsx"
// @Param state query string false "Filter by state"
// @Success 200 {file} binary
// @Security BearerAuth
// @Router /exports/instruments [get]
func (h *ExportHandler) Instruments(c *gin.Context) {
	var filter models.InstrumentFilter
	if state := c.Query("state"); state != "" {
		st := models.StateName(state)
		filter.State = &st
	}

	file, err := h.exports.Instruments(c.Request.Context(), currentClaims(c), filter, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Name, file.ContentType, file.Bytes)
}

// Students godoc
// @Summary Export the student roster
// @Tags Exports
// @Produce octet-stream
// @Param format query string true "csv, pdf or xlsx"
// @Param program query string false "Filter by program"
// @Param representative_id query string false "Filter by representative"
// @Success 200 {file} binary
// @Security BearerAuth
// @Router /exports/students [get]
func (h *ExportHandler) Students(c *gin.Context) {
	var filter models.StudentFilter
	filter.RepresentativeID = c.Query("representative_id")
	if program := c.Query("program"); program != "" {
		p := models.StudentProgram(program)
		filter.Program = &p
	}
	if status := c.Query("status"); status != "" {
		st := models.StudentStatus(status)
		filter.Status = &st
	}

	file, err := h.exports.Students(c.Request.Context(), currentClaims(c), filter, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Name, file.ContentType, file.Bytes)
}

// Representatives godoc
// @Summary Export the representative directory
// @Tags Exports
// @Produce octet-stream
// @Param format query string true "csv, pdf or xlsx"
// @Success 200 {file} binary
// @Security BearerAuth
// @Router /exports/representatives [get]
func (h *ExportHandler) Representatives(c *gin.Context) {
	file, err := h.exports.Representatives(c.Request.Context(), currentClaims(c), models.RepresentativeFilter{}, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Name, file.ContentType, file.Bytes)
}
