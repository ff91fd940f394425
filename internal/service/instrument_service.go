package service

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/nucleo-eljunko/comodato-api/internal/codes"
	"github.com/nucleo-eljunko/comodato-api/internal/models"
	"github.com/nucleo-eljunko/comodato-api/internal/validation"
	appErrors "github.com/nucleo-eljunko/comodato-api/pkg/errors"
	"github.com/nucleo-eljunko/comodato-api/pkg/export"
)

type instrumentRepository interface {
	List(ctx context.Context, filter models.InstrumentFilter) ([]models.InstrumentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.InstrumentDetail, error)
	InventorySerialExists(ctx context.Context, serial string) (bool, error)
	Create(ctx context.Context, instrument *models.Instrument, note string) error
	Update(ctx context.Context, instrument *models.Instrument) error
	UpdateState(ctx context.Context, instrumentID, stateID, note string) error
	Delete(ctx context.Context, id string) error
	HasLoans(ctx context.Context, id string) (bool, error)
	StateHistory(ctx context.Context, instrumentID string) ([]models.StateHistoryDetail, error)
	ListStates(ctx context.Context) ([]models.InstrumentState, error)
	FindStateByName(ctx context.Context, name models.StateName) (*models.InstrumentState, error)
	ListMeasures(ctx context.Context) ([]models.Measure, error)
	FindMeasureByID(ctx context.Context, id string) (*models.Measure, error)
	MeasureNameExists(ctx context.Context, name string) (bool, error)
	CreateMeasure(ctx context.Context, measure *models.Measure) error
	CreateState(ctx context.Context, state *models.InstrumentState) error
	ListAccessories(ctx context.Context, instrumentID string) ([]models.Accessory, error)
	FindAccessoryByID(ctx context.Context, id string) (*models.Accessory, error)
	CreateAccessory(ctx context.Context, accessory *models.Accessory) error
	UpdateAccessory(ctx context.Context, accessory *models.Accessory) error
	DeleteAccessory(ctx context.Context, id string) error
}

// CreateInstrumentRequest holds payload for registering instruments.
// The inventory serial is generated when omitted.
type CreateInstrumentRequest struct {
	Description     string     `json:"description" validate:"required"`
	Brand           string     `json:"brand"`
	Model           string     `json:"model"`
	MeasureID       *string    `json:"measure_id"`
	Color           string     `json:"color"`
	FactorySerial   string     `json:"factory_serial"`
	InventorySerial string     `json:"inventory_serial" validate:"omitempty,inventory_serial"`
	AcquiredOn      *time.Time `json:"acquired_on"`
	Notes           string     `json:"notes"`
}

// UpdateInstrumentRequest holds payload for updating instruments. The
// state is changed through ChangeState, never here.
type UpdateInstrumentRequest struct {
	Description   string     `json:"description" validate:"required"`
	Brand         string     `json:"brand"`
	Model         string     `json:"model"`
	MeasureID     *string    `json:"measure_id"`
	Color         string     `json:"color"`
	FactorySerial string     `json:"factory_serial"`
	AcquiredOn    *time.Time `json:"acquired_on"`
	Notes         string     `json:"notes"`
}

// ChangeStateRequest moves an instrument to a new inventory state.
type ChangeStateRequest struct {
	State string `json:"state" validate:"required"`
	Note  string `json:"note"`
}

// AccessoryRequest holds payload for creating or updating accessories.
type AccessoryRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Serial      string `json:"serial"`
	Condition   string `json:"condition" validate:"required"`
}

// CatalogRequest holds payload for adding a measure or state to a catalog.
type CatalogRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

// ImportReport summarises a bulk inventory import.
type ImportReport struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

type instrumentLoanChecker interface {
	ActiveLoanExistsForInstrument(ctx context.Context, instrumentID string) (bool, error)
}

// InstrumentService handles inventory use-cases.
type InstrumentService struct {
	repo      instrumentRepository
	loans     instrumentLoanChecker
	audits    auditWriter
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewInstrumentService constructs the instrument service.
func NewInstrumentService(repo instrumentRepository, loans instrumentLoanChecker, audits auditWriter, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *InstrumentService {
	if validate == nil {
		validate = validation.NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstrumentService{repo: repo, loans: loans, audits: audits, cache: cache, validator: validate, logger: logger}
}

// List returns instruments with pagination metadata.
func (s *InstrumentService) List(ctx context.Context, filter models.InstrumentFilter) ([]models.InstrumentDetail, *models.Pagination, error) {
	instruments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list instruments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return instruments, pagination, nil
}

// Available returns instruments in the available state, for loan forms.
func (s *InstrumentService) Available(ctx context.Context, filter models.InstrumentFilter) ([]models.InstrumentDetail, *models.Pagination, error) {
	state := models.StateAvailable
	filter.State = &state
	return s.List(ctx, filter)
}

// Get returns one instrument.
func (s *InstrumentService) Get(ctx context.Context, id string) (*models.InstrumentDetail, error) {
	instrument, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "instrument not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instrument")
	}
	return instrument, nil
}

// Create registers a new instrument in the available state and writes
// its first history row.
func (s *InstrumentService) Create(ctx context.Context, req CreateInstrumentRequest) (*models.InstrumentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid instrument payload")
	}

	serial := req.InventorySerial
	if serial == "" {
		generated, err := codes.UniqueInventorySerial(ctx, s.repo)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate inventory serial")
		}
		serial = generated
	} else {
		if !validation.ValidInventorySerial(serial) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "inventory serial must be exactly 16 digits")
		}
		exists, err := s.repo.InventorySerialExists(ctx, serial)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check inventory serial")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrConflict, "inventory serial already registered")
		}
	}

	if req.MeasureID != nil && *req.MeasureID != "" {
		if _, err := s.repo.FindMeasureByID(ctx, *req.MeasureID); err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "measure not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load measure")
		}
	}

	available, err := s.repo.FindStateByName(ctx, models.StateAvailable)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load state catalog")
	}

	instrument := &models.Instrument{
		Description:     validation.SanitizeText(req.Description),
		Brand:           validation.SanitizeText(req.Brand),
		Model:           validation.SanitizeText(req.Model),
		MeasureID:       req.MeasureID,
		Color:           validation.SanitizeText(req.Color),
		FactorySerial:   validation.SanitizeText(req.FactorySerial),
		InventorySerial: serial,
		StateID:         available.ID,
		AcquiredOn:      req.AcquiredOn,
		Notes:           validation.SanitizeText(req.Notes),
	}
	if err := s.repo.Create(ctx, instrument, "Registered in inventory"); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create instrument")
	}

	s.invalidateDashboard(ctx)
	return s.Get(ctx, instrument.ID)
}

// Update modifies descriptive fields of an instrument.
func (s *InstrumentService) Update(ctx context.Context, id string, req UpdateInstrumentRequest) (*models.InstrumentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid instrument payload")
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "instrument not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instrument")
	}

	if req.MeasureID != nil && *req.MeasureID != "" {
		if _, err := s.repo.FindMeasureByID(ctx, *req.MeasureID); err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "measure not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load measure")
		}
	}

	instrument := existing.Instrument
	instrument.Description = validation.SanitizeText(req.Description)
	instrument.Brand = validation.SanitizeText(req.Brand)
	instrument.Model = validation.SanitizeText(req.Model)
	instrument.MeasureID = req.MeasureID
	instrument.Color = validation.SanitizeText(req.Color)
	instrument.FactorySerial = validation.SanitizeText(req.FactorySerial)
	instrument.AcquiredOn = req.AcquiredOn
	instrument.Notes = validation.SanitizeText(req.Notes)

	if err := s.repo.Update(ctx, &instrument); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update instrument")
	}
	return s.Get(ctx, id)
}

// ChangeState moves an instrument through the inventory state machine.
// Moving to the current state is rejected, the assigned state is only
// entered through loan creation, and an assigned instrument cannot
// change state while its loan is open.
func (s *InstrumentService) ChangeState(ctx context.Context, claims *models.JWTClaims, id string, req ChangeStateRequest) (*models.InstrumentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid state payload")
	}

	target := models.StateName(req.State)
	if !validState(target) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown state")
	}
	if target == models.StateAssigned {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "instruments are assigned through loans")
	}

	instrument, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "instrument not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instrument")
	}

	if instrument.StateName == target {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "instrument is already in that state")
	}
	if instrument.StateName == models.StateAssigned {
		onLoan, err := s.loans.ActiveLoanExistsForInstrument(ctx, id)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check loans")
		}
		if onLoan {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "instrument is on an active loan; finalize the loan first")
		}
	}

	state, err := s.repo.FindStateByName(ctx, target)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load state catalog")
	}

	note := validation.SanitizeText(req.Note)
	if note == "" {
		note = fmt.Sprintf("State changed to %s", target)
	}
	if err := s.repo.UpdateState(ctx, id, state.ID, note); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to change state")
	}

	s.audit(ctx, claims, models.AuditInstrumentState, id, fmt.Sprintf("state changed from %s to %s", instrument.StateName, target))
	s.invalidateDashboard(ctx)
	return s.Get(ctx, id)
}

// Delete removes an instrument that never had loans.
func (s *InstrumentService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "instrument not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instrument")
	}
	loaned, err := s.repo.HasLoans(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check loans")
	}
	if loaned {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "instrument has loan history; retire it instead")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete instrument")
	}
	s.invalidateDashboard(ctx)
	return nil
}

// History returns the state trail of an instrument.
func (s *InstrumentService) History(ctx context.Context, id string) ([]models.StateHistoryDetail, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "instrument not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instrument")
	}
	history, err := s.repo.StateHistory(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load history")
	}
	return history, nil
}

// States returns the state catalog.
func (s *InstrumentService) States(ctx context.Context) ([]models.InstrumentState, error) {
	states, err := s.repo.ListStates(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list states")
	}
	return states, nil
}

// Measures returns the measure catalog.
func (s *InstrumentService) Measures(ctx context.Context) ([]models.Measure, error) {
	measures, err := s.repo.ListMeasures(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list measures")
	}
	return measures, nil
}

// CreateMeasure adds a measure to the catalog. Names are unique.
func (s *InstrumentService) CreateMeasure(ctx context.Context, req CatalogRequest) (*models.Measure, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid measure payload")
	}

	name := validation.SanitizeText(req.Name)
	taken, err := s.repo.MeasureNameExists(ctx, name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check measure name")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "measure already exists")
	}

	measure := &models.Measure{
		Name:        name,
		Description: validation.SanitizeText(req.Description),
	}
	if err := s.repo.CreateMeasure(ctx, measure); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create measure")
	}
	return measure, nil
}

// CreateState adds an operational state to the catalog. Names are unique.
func (s *InstrumentService) CreateState(ctx context.Context, req CatalogRequest) (*models.InstrumentState, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid state payload")
	}

	name := models.StateName(validation.SanitizeText(req.Name))
	if _, err := s.repo.FindStateByName(ctx, name); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "state already exists")
	} else if err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check state name")
	}

	state := &models.InstrumentState{
		Name:        name,
		Description: validation.SanitizeText(req.Description),
	}
	if err := s.repo.CreateState(ctx, state); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create state")
	}
	return state, nil
}

// ValidateSerial reports whether a serial is well-formed and free.
func (s *InstrumentService) ValidateSerial(ctx context.Context, serial string) (bool, bool, error) {
	valid := validation.ValidInventorySerial(serial)
	if !valid {
		return false, false, nil
	}
	exists, err := s.repo.InventorySerialExists(ctx, serial)
	if err != nil {
		return false, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check inventory serial")
	}
	return true, !exists, nil
}

// SuggestSerial draws a free 16-digit inventory serial for registration forms.
func (s *InstrumentService) SuggestSerial(ctx context.Context) (string, error) {
	serial, err := codes.UniqueInventorySerial(ctx, s.repo)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate an inventory serial")
	}
	return serial, nil
}

// Accessories returns the accessories of an instrument.
func (s *InstrumentService) Accessories(ctx context.Context, instrumentID string) ([]models.Accessory, error) {
	if _, err := s.repo.FindByID(ctx, instrumentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "instrument not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instrument")
	}
	accessories, err := s.repo.ListAccessories(ctx, instrumentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list accessories")
	}
	return accessories, nil
}

// AddAccessory attaches a new accessory to an instrument.
func (s *InstrumentService) AddAccessory(ctx context.Context, instrumentID string, req AccessoryRequest) (*models.Accessory, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid accessory payload")
	}
	condition := models.AccessoryCondition(req.Condition)
	if !validCondition(condition) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown condition")
	}
	if _, err := s.repo.FindByID(ctx, instrumentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "instrument not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instrument")
	}

	accessory := &models.Accessory{
		InstrumentID: instrumentID,
		Name:         validation.SanitizeText(req.Name),
		Description:  validation.SanitizeText(req.Description),
		Serial:       validation.SanitizeText(req.Serial),
		Condition:    condition,
	}
	if err := s.repo.CreateAccessory(ctx, accessory); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create accessory")
	}
	return accessory, nil
}

// UpdateAccessory modifies an accessory.
func (s *InstrumentService) UpdateAccessory(ctx context.Context, id string, req AccessoryRequest) (*models.Accessory, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid accessory payload")
	}
	condition := models.AccessoryCondition(req.Condition)
	if !validCondition(condition) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown condition")
	}

	accessory, err := s.repo.FindAccessoryByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "accessory not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load accessory")
	}

	accessory.Name = validation.SanitizeText(req.Name)
	accessory.Description = validation.SanitizeText(req.Description)
	accessory.Serial = validation.SanitizeText(req.Serial)
	accessory.Condition = condition
	if err := s.repo.UpdateAccessory(ctx, accessory); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update accessory")
	}
	return accessory, nil
}

// RemoveAccessory hard-deletes an accessory.
func (s *InstrumentService) RemoveAccessory(ctx context.Context, id string) error {
	if _, err := s.repo.FindAccessoryByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "accessory not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load accessory")
	}
	if err := s.repo.DeleteAccessory(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete accessory")
	}
	return nil
}

// Import reads an xlsx sheet of instruments and registers each valid
// row. Rows with missing descriptions, malformed serials or duplicate
// serials are skipped and reported.
func (s *InstrumentService) Import(ctx context.Context, claims *models.JWTClaims, r io.Reader) (*ImportReport, error) {
	rows, err := export.ReadSheet(r)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "could not read spreadsheet")
	}

	report := &ImportReport{}
	for i, row := range rows {
		req := CreateInstrumentRequest{
			Description:     row["description"],
			Brand:           row["brand"],
			Model:           row["model"],
			Color:           row["color"],
			FactorySerial:   row["factory_serial"],
			InventorySerial: row["inventory_serial"],
			Notes:           row["notes"],
		}
		if _, err := s.Create(ctx, req); err != nil {
			report.Skipped++
			report.Errors = append(report.Errors, fmt.Sprintf("row %d: %s", i+2, appErrors.FromError(err).Message))
			continue
		}
		report.Imported++
	}

	s.audit(ctx, claims, models.AuditInstrumentImport, "", fmt.Sprintf("imported %d instruments, skipped %d", report.Imported, report.Skipped))
	return report, nil
}

func (s *InstrumentService) audit(ctx context.Context, claims *models.JWTClaims, action, instrumentID, detail string) {
	if s.audits == nil {
		return
	}
	var userID *string
	if claims != nil {
		userID = &claims.UserID
	}
	var entityID *string
	if instrumentID != "" {
		entityID = &instrumentID
	}
	if err := s.audits.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     userID,
		Action:     action,
		EntityType: "instrument",
		EntityID:   entityID,
		Detail:     detail,
	}); err != nil {
		s.logger.Warn("audit write failed", zap.Error(err))
	}
}

func (s *InstrumentService) invalidateDashboard(ctx context.Context) {
	if s.cache == nil || !s.cache.Enabled() {
		return
	}
	if err := s.cache.Invalidate(ctx, "dashboard:*"); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", zap.Error(err))
	}
}

func validState(name models.StateName) bool {
	switch name {
	case models.StateAvailable, models.StateAssigned, models.StateNonOperational, models.StateMaintenance, models.StateRetired:
		return true
	default:
		return false
	}
}

func validCondition(c models.AccessoryCondition) bool {
	switch c {
	case models.AccessoryGood, models.AccessoryFair, models.AccessoryBad, models.AccessoryLost:
		return true
	default:
		return false
	}
}
