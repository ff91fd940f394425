package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nucleo-eljunko/comodato-api/internal/models"
	"github.com/nucleo-eljunko/comodato-api/internal/service"
	appErrors "github.com/nucleo-eljunko/comodato-api/pkg/errors"
	"github.com/nucleo-eljunko/comodato-api/pkg/response"
)

// LoanHandler exposes loan lifecycle endpoints.
type LoanHandler struct {
	loans *service.LoanService
}

// NewLoanHandler constructs LoanHandler.
func NewLoanHandler(loans *service.LoanService) *LoanHandler {
	return &LoanHandler{loans: loans}
}

// List godoc
// @Summary List loans
// @Tags Loans
// @Produce json
// @Param representative_id query string false "Filter by representative"
// @Param student_id query string false "Filter by student"
// @Param instrument_id query string false "Filter by instrument"
// @Param status query string false "Filter by status"
// @Param overdue query bool false "Only overdue loans"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /loans [get]
func (h *LoanHandler) List(c *gin.Context) {
	var filter models.LoanFilter
	filter.RepresentativeID = c.Query("representative_id")
	filter.StudentID = c.Query("student_id")
	filter.InstrumentID = c.Query("instrument_id")
	if status := c.Query("status"); status != "" {
		st := models.LoanStatus(status)
		filter.Status = &st
	}
	filter.OverdueOnly = c.Query("overdue") == "true"
	if from := c.Query("start_from"); from != "" {
		if ts, err := time.Parse("2006-01-02", from); err == nil {
			filter.StartFrom = &ts
		}
	}
	if to := c.Query("start_to"); to != "" {
		if ts, err := time.Parse("2006-01-02", to); err == nil {
			filter.StartTo = &ts
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	loans, pagination, err := h.loans.List(c.Request.Context(), currentClaims(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, loans, pagination)
}

// ByInstrument godoc
// @Summary Loan history of one instrument
// @Tags Loans
// @Produce json
// @Param id path string true "Instrument ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /instruments/{id}/loans [get]
func (h *LoanHandler) ByInstrument(c *gin.Context) {
	var filter models.LoanFilter
	filter.InstrumentID = c.Param("id")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	loans, pagination, err := h.loans.List(c.Request.Context(), currentClaims(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, loans, pagination)
}

// Get godoc
// @Summary Get one loan
// @Tags Loans
// @Produce json
// @Param id path string true "Loan ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /loans/{id} [get]
func (h *LoanHandler) Get(c *gin.Context) {
	loan, err := h.loans.Get(c.Request.Context(), currentClaims(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, loan, nil)
}

// Create godoc
// @Summary Open a loan
// @Tags Loans
// @Accept json
// @Produce json
// @Param payload body service.CreateLoanRequest true "Loan payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /loans [post]
func (h *LoanHandler) Create(c *gin.Context) {
	var req service.CreateLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	loan, err := h.loans.Create(c.Request.Context(), currentClaims(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, loan)
}

// Update godoc
// @Summary Adjust end date or notes of an active loan
// @Tags Loans
// @Accept json
// @Produce json
// @Param id path string true "Loan ID"
// @Param payload body service.UpdateLoanRequest true "Loan payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /loans/{id} [put]
func (h *LoanHandler) Update(c *gin.Context) {
	var req service.UpdateLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	loan, err := h.loans.Update(c.Request.Context(), currentClaims(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, loan, nil)
}

// Finalize godoc
// @Summary Close an active loan and release its instrument
// @Tags Loans
// @Accept json
// @Produce json
// @Param id path string true "Loan ID"
// @Param payload body service.FinalizeLoanRequest true "Finalization payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /loans/{id}/finalize [post]
func (h *LoanHandler) Finalize(c *gin.Context) {
	var req service.FinalizeLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	loan, err := h.loans.Finalize(c.Request.Context(), currentClaims(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, loan, nil)
}

// Cancel godoc
// @Summary Void an active loan
// @Tags Loans
// @Accept json
// @Produce json
// @Param id path string true "Loan ID"
// @Param payload body service.CancelLoanRequest true "Cancellation reason"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /loans/{id}/cancel [post]
func (h *LoanHandler) Cancel(c *gin.Context) {
	var req service.CancelLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	loan, err := h.loans.Cancel(c.Request.Context(), currentClaims(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, loan, nil)
}

// Renew godoc
// @Summary Renew an active loan into a successor loan
// @Tags Loans
// @Accept json
// @Produce json
// @Param id path string true "Loan ID"
// @Param payload body service.RenewLoanRequest true "Renewal payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /loans/{id}/renew [post]
func (h *LoanHandler) Renew(c *gin.Context) {
	var req service.RenewLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	loan, err := h.loans.Renew(c.Request.Context(), currentClaims(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, loan)
}

// Overdue godoc
// @Summary Active loans past their end date
// @Tags Loans
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /loans/overdue [get]
func (h *LoanHandler) Overdue(c *gin.Context) {
	loans, err := h.loans.Overdue(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, loans, nil)
}

// Expiring godoc
// @Summary Active loans ending inside a window
// @Tags Loans
// @Produce json
// @Param days query int false "Window in days, default 30"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /loans/expiring [get]
func (h *LoanHandler) Expiring(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	loans, err := h.loans.ExpiringWithin(c.Request.Context(), days)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, loans, nil)
}
