package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/nucleo-eljunko/comodato-api/internal/models"
	"github.com/nucleo-eljunko/comodato-api/internal/validation"
	appErrors "github.com/nucleo-eljunko/comodato-api/pkg/errors"
)

type loanRepository interface {
	List(ctx context.Context, filter models.LoanFilter, today time.Time) ([]models.LoanDetail, int, error)
	FindByID(ctx context.Context, id string, today time.Time) (*models.LoanDetail, error)
	ActiveLoanExistsForInstrument(ctx context.Context, instrumentID string) (bool, error)
	CreateWithAssignment(ctx context.Context, loan *models.Loan, unitCode, assignedStateID, historyNote string) error
	CloseWithRelease(ctx context.Context, loan *models.Loan, releaseStateID, historyNote string) error
	Update(ctx context.Context, loan *models.Loan) error
	Overdue(ctx context.Context, today time.Time) ([]models.LoanDetail, error)
	ExpiringWithin(ctx context.Context, today time.Time, days int) ([]models.LoanDetail, error)
}

type loanInstrumentReader interface {
	FindByID(ctx context.Context, id string) (*models.InstrumentDetail, error)
	FindStateByName(ctx context.Context, name models.StateName) (*models.InstrumentState, error)
}

type loanStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// CreateLoanRequest holds payload for opening a loan.
type CreateLoanRequest struct {
	StudentID    string    `json:"student_id" validate:"required"`
	InstrumentID string    `json:"instrument_id" validate:"required"`
	StartDate    time.Time `json:"start_date" validate:"required"`
	EndDate      time.Time `json:"end_date" validate:"required"`
	Notes        string    `json:"notes"`
}

// FinalizeLoanRequest closes an active loan. ReturnState overrides the
// state the instrument comes back in; empty means available.
type FinalizeLoanRequest struct {
	ReceptionDate *time.Time `json:"reception_date"`
	ReturnState   string     `json:"return_state"`
	Notes         string     `json:"notes"`
}

// CancelLoanRequest voids an active loan.
type CancelLoanRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// RenewLoanRequest closes an active loan as renewed and opens a
// successor for the same student and instrument.
type RenewLoanRequest struct {
	EndDate time.Time `json:"end_date" validate:"required"`
	Notes   string    `json:"notes"`
}

// UpdateLoanRequest adjusts the end date or notes of an active loan.
type UpdateLoanRequest struct {
	EndDate time.Time `json:"end_date" validate:"required"`
	Notes   string    `json:"notes"`
}

// LoanService drives the loan lifecycle and keeps instrument state in
// step with it.
type LoanService struct {
	repo        loanRepository
	instruments loanInstrumentReader
	students    loanStudentReader
	audits      auditWriter
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
	unitCode    string
	now         func() time.Time
}

// NewLoanService constructs the loan service.
func NewLoanService(repo loanRepository, instruments loanInstrumentReader, students loanStudentReader, audits auditWriter, cache *CacheService, validate *validator.Validate, logger *zap.Logger, unitCode string) *LoanService {
	if validate == nil {
		validate = validation.NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoanService{
		repo:        repo,
		instruments: instruments,
		students:    students,
		audits:      audits,
		cache:       cache,
		validator:   validate,
		logger:      logger,
		unitCode:    unitCode,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// List returns loans visible to the caller with pagination metadata.
func (s *LoanService) List(ctx context.Context, claims *models.JWTClaims, filter models.LoanFilter) ([]models.LoanDetail, *models.Pagination, error) {
	scoped, ok := scopeToRepresentative(claims, filter.RepresentativeID)
	if !ok {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "you cannot list loans")
	}
	filter.RepresentativeID = scoped

	loans, total, err := s.repo.List(ctx, filter, s.now())
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list loans")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return loans, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one loan if the caller may see it.
func (s *LoanService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.LoanDetail, error) {
	loan, err := s.repo.FindByID(ctx, id, s.now())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "loan not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load loan")
	}
	if !ownsRepresentative(claims, loan.RepresentativeID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you cannot view this loan")
	}
	return loan, nil
}

// Create opens a loan. The student must be active, the instrument must
// be available, and the whole write happens in one transaction so the
// loan row, the instrument state and its history never diverge.
func (s *LoanService) Create(ctx context.Context, claims *models.JWTClaims, req CreateLoanRequest) (*models.LoanDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid loan payload")
	}
	if reason := validation.CheckLoanDateRange(req.StartDate, req.EndDate, s.now()); reason != validation.RangeOK {
		return nil, appErrors.Clone(appErrors.ErrValidation, dateRangeMessage(reason))
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !ownsRepresentative(claims, student.RepresentativeID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you cannot open loans for this student")
	}
	if student.Status != models.StudentActive {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "student is inactive")
	}

	instrument, err := s.instruments.FindByID(ctx, req.InstrumentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "instrument not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instrument")
	}
	if instrument.StateName != models.StateAvailable {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "instrument is not available")
	}
	onLoan, err := s.repo.ActiveLoanExistsForInstrument(ctx, req.InstrumentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check active loans")
	}
	if onLoan {
		return nil, appErrors.Clone(appErrors.ErrConflict, "instrument already has an active loan")
	}

	assigned, err := s.instruments.FindStateByName(ctx, models.StateAssigned)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load state catalog")
	}

	loan := &models.Loan{
		StudentID:        student.ID,
		InstrumentID:     instrument.ID,
		RepresentativeID: student.RepresentativeID,
		StartDate:        req.StartDate,
		EndDate:          req.EndDate,
		Status:           models.LoanActive,
		Notes:            validation.SanitizeText(req.Notes),
	}
	if err := s.repo.CreateWithAssignment(ctx, loan, s.unitCode, assigned.ID, "Assigned on loan"); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create loan")
	}

	s.audit(ctx, claims, models.AuditLoanCreate, loan.ID, fmt.Sprintf("loan %s opened", loan.Code))
	s.invalidateDashboard(ctx)
	return s.repo.FindByID(ctx, loan.ID, s.now())
}

// Finalize closes an active loan and releases the instrument, either
// back to available or to the state the request names.
func (s *LoanService) Finalize(ctx context.Context, claims *models.JWTClaims, id string, req FinalizeLoanRequest) (*models.LoanDetail, error) {
	detail, err := s.activeLoan(ctx, claims, id)
	if err != nil {
		return nil, err
	}

	target := models.StateAvailable
	switch req.ReturnState {
	case "", string(models.StateAvailable):
	case string(models.StateNonOperational):
		target = models.StateNonOperational
	case string(models.StateMaintenance):
		target = models.StateMaintenance
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown return state")
	}
	release, err := s.instruments.FindStateByName(ctx, target)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load state catalog")
	}

	reception := s.now()
	if req.ReceptionDate != nil {
		reception = *req.ReceptionDate
	}

	loan := detail.Loan
	loan.Status = models.LoanFinished
	loan.ReceptionDate = &reception
	loan.Notes = appendNote(loan.Notes, "Finished", req.Notes)

	note := fmt.Sprintf("Released from loan %s", loan.Code)
	if err := s.repo.CloseWithRelease(ctx, &loan, release.ID, note); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to finalize loan")
	}

	s.audit(ctx, claims, models.AuditLoanFinalize, loan.ID, fmt.Sprintf("loan %s finished", loan.Code))
	s.invalidateDashboard(ctx)
	return s.repo.FindByID(ctx, loan.ID, s.now())
}

// Cancel voids an active loan and returns the instrument to available.
func (s *LoanService) Cancel(ctx context.Context, claims *models.JWTClaims, id string, req CancelLoanRequest) (*models.LoanDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid cancel payload")
	}
	detail, err := s.activeLoan(ctx, claims, id)
	if err != nil {
		return nil, err
	}
	available, err := s.instruments.FindStateByName(ctx, models.StateAvailable)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load state catalog")
	}

	reception := s.now()
	loan := detail.Loan
	loan.Status = models.LoanCancelled
	loan.ReceptionDate = &reception
	loan.Notes = appendNote(loan.Notes, "Cancelled", req.Reason)

	note := fmt.Sprintf("Released on cancellation of loan %s", loan.Code)
	if err := s.repo.CloseWithRelease(ctx, &loan, available.ID, note); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel loan")
	}

	s.audit(ctx, claims, models.AuditLoanFinalize, loan.ID, fmt.Sprintf("loan %s cancelled", loan.Code))
	s.invalidateDashboard(ctx)
	return s.repo.FindByID(ctx, loan.ID, s.now())
}

// Renew closes an active loan with the renewed status and opens a new
// loan for the same student and instrument. The instrument stays
// assigned through the handover.
func (s *LoanService) Renew(ctx context.Context, claims *models.JWTClaims, id string, req RenewLoanRequest) (*models.LoanDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid renewal payload")
	}
	detail, err := s.activeLoan(ctx, claims, id)
	if err != nil {
		return nil, err
	}

	start := s.now()
	if reason := validation.CheckLoanDateRange(start, req.EndDate, start); reason != validation.RangeOK {
		return nil, appErrors.Clone(appErrors.ErrValidation, dateRangeMessage(reason))
	}

	assigned, err := s.instruments.FindStateByName(ctx, models.StateAssigned)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load state catalog")
	}

	reception := s.now()
	old := detail.Loan
	old.Status = models.LoanRenewed
	old.ReceptionDate = &reception
	old.Notes = appendNote(old.Notes, "Renewed", req.Notes)
	if err := s.repo.CloseWithRelease(ctx, &old, assigned.ID, fmt.Sprintf("Loan %s renewed", old.Code)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to close renewed loan")
	}

	successor := &models.Loan{
		StudentID:        old.StudentID,
		InstrumentID:     old.InstrumentID,
		RepresentativeID: old.RepresentativeID,
		StartDate:        start,
		EndDate:          req.EndDate,
		Status:           models.LoanActive,
		Notes:            validation.SanitizeText(req.Notes),
	}
	if err := s.repo.CreateWithAssignment(ctx, successor, s.unitCode, assigned.ID, fmt.Sprintf("Assigned on renewal of %s", old.Code)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open renewal loan")
	}

	s.audit(ctx, claims, models.AuditLoanCreate, successor.ID, fmt.Sprintf("loan %s opened renewing %s", successor.Code, old.Code))
	s.invalidateDashboard(ctx)
	return s.repo.FindByID(ctx, successor.ID, s.now())
}

// Update adjusts the end date or notes of an active loan. The start
// date is fixed so the end date is checked against it, not today.
func (s *LoanService) Update(ctx context.Context, claims *models.JWTClaims, id string, req UpdateLoanRequest) (*models.LoanDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid loan payload")
	}
	detail, err := s.activeLoan(ctx, claims, id)
	if err != nil {
		return nil, err
	}
	if reason := validation.CheckLoanDateRange(detail.StartDate, req.EndDate, detail.StartDate); reason != validation.RangeOK {
		return nil, appErrors.Clone(appErrors.ErrValidation, dateRangeMessage(reason))
	}

	loan := detail.Loan
	loan.EndDate = req.EndDate
	loan.Notes = validation.SanitizeText(req.Notes)
	if err := s.repo.Update(ctx, &loan); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update loan")
	}
	s.invalidateDashboard(ctx)
	return s.repo.FindByID(ctx, id, s.now())
}

// Overdue lists active loans past their end date.
func (s *LoanService) Overdue(ctx context.Context) ([]models.LoanDetail, error) {
	loans, err := s.repo.Overdue(ctx, s.now())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list overdue loans")
	}
	return loans, nil
}

// ExpiringWithin lists active loans ending inside the next days.
func (s *LoanService) ExpiringWithin(ctx context.Context, days int) ([]models.LoanDetail, error) {
	if days <= 0 {
		days = 30
	}
	loans, err := s.repo.ExpiringWithin(ctx, s.now(), days)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list expiring loans")
	}
	return loans, nil
}

// activeLoan loads a loan, checks ownership and requires ACTIVE status.
func (s *LoanService) activeLoan(ctx context.Context, claims *models.JWTClaims, id string) (*models.LoanDetail, error) {
	loan, err := s.repo.FindByID(ctx, id, s.now())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "loan not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load loan")
	}
	if !ownsRepresentative(claims, loan.RepresentativeID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you cannot modify this loan")
	}
	if loan.Status != models.LoanActive {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "loan is not active")
	}
	return loan, nil
}

func (s *LoanService) audit(ctx context.Context, claims *models.JWTClaims, action, loanID, detail string) {
	if s.audits == nil {
		return
	}
	var userID *string
	if claims != nil {
		userID = &claims.UserID
	}
	entityID := loanID
	if err := s.audits.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     userID,
		Action:     action,
		EntityType: "loan",
		EntityID:   &entityID,
		Detail:     detail,
	}); err != nil {
		s.logger.Warn("audit write failed", zap.Error(err))
	}
}

func (s *LoanService) invalidateDashboard(ctx context.Context) {
	if s.cache == nil || !s.cache.Enabled() {
		return
	}
	if err := s.cache.Invalidate(ctx, "dashboard:*"); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", zap.Error(err))
	}
}

func appendNote(existing, prefix, extra string) string {
	line := prefix
	if extra = validation.SanitizeText(extra); extra != "" {
		line = fmt.Sprintf("%s: %s", prefix, extra)
	}
	if existing == "" {
		return line
	}
	return existing + "\n" + line
}

func dateRangeMessage(reason validation.DateRangeReason) string {
	switch reason {
	case validation.EndBeforeStart:
		return "end date must be after start date"
	case validation.StartInPast:
		return "start date cannot be in the past"
	case validation.ExceedsMaxDuration:
		return fmt.Sprintf("loan cannot exceed %d days", validation.MaxLoanDays)
	default:
		return "invalid date range"
	}
}
