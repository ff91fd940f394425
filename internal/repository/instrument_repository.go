package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nucleo-eljunko/comodato-api/internal/models"
)

// InstrumentRepository manages persistence for the instrument inventory,
// its state catalog and history, and attached accessories.
type InstrumentRepository struct {
	db *sqlx.DB
}

// NewInstrumentRepository constructs an InstrumentRepository.
func NewInstrumentRepository(db *sqlx.DB) *InstrumentRepository {
	return &InstrumentRepository{db: db}
}

// List returns instruments matching the provided filters.
func (r *InstrumentRepository) List(ctx context.Context, filter models.InstrumentFilter) ([]models.InstrumentDetail, int, error) {
	base := `FROM instruments i
        JOIN instrument_states st ON st.id = i.state_id
        LEFT JOIN measures m ON m.id = i.measure_id`
	conditions := []string{"1=1"}
	var args []interface{}

	if filter.State != nil {
		conditions = append(conditions, fmt.Sprintf("st.name = $%d", len(args)+1))
		args = append(args, *filter.State)
	}
	if filter.MeasureID != "" {
		conditions = append(conditions, fmt.Sprintf("i.measure_id = $%d", len(args)+1))
		args = append(args, filter.MeasureID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(i.description) LIKE $%d OR LOWER(i.brand) LIKE $%d OR LOWER(i.model) LIKE $%d OR i.inventory_serial LIKE $%d)", len(args)+1, len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	allowedSorts := map[string]string{
		"description":      "i.description",
		"brand":            "i.brand",
		"inventory_serial": "i.inventory_serial",
		"created_at":       "i.created_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "i.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT i.id, i.description, i.brand, i.model, i.measure_id, i.color, i.factory_serial, i.inventory_serial, i.state_id, i.acquired_on, i.notes, i.created_at, i.updated_at,
        st.name AS state_name, m.name AS measure_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, column, order, size, offset)

	var instruments []models.InstrumentDetail
	if err := r.db.SelectContext(ctx, &instruments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list instruments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count instruments: %w", err)
	}
	return instruments, total, nil
}

// FindByID fetches an instrument detail by ID.
func (r *InstrumentRepository) FindByID(ctx context.Context, id string) (*models.InstrumentDetail, error) {
	const query = `SELECT i.id, i.description, i.brand, i.model, i.measure_id, i.color, i.factory_serial, i.inventory_serial, i.state_id, i.acquired_on, i.notes, i.created_at, i.updated_at,
        st.name AS state_name, m.name AS measure_name
        FROM instruments i
        JOIN instrument_states st ON st.id = i.state_id
        LEFT JOIN measures m ON m.id = i.measure_id
        WHERE i.id = $1 LIMIT 1`
	var detail models.InstrumentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// InventorySerialExists checks whether an inventory serial is taken.
func (r *InstrumentRepository) InventorySerialExists(ctx context.Context, serial string) (bool, error) {
	const query = `SELECT 1 FROM instruments WHERE inventory_serial = $1 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, serial); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check inventory serial: %w", err)
	}
	return true, nil
}

// Create inserts a new instrument together with its initial state
// history row, atomically.
func (r *InstrumentRepository) Create(ctx context.Context, instrument *models.Instrument, note string) error {
	if instrument.ID == "" {
		instrument.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if instrument.CreatedAt.IsZero() {
		instrument.CreatedAt = now
	}
	instrument.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const insertInstrument = `INSERT INTO instruments (id, description, brand, model, measure_id, color, factory_serial, inventory_serial, state_id, acquired_on, notes, created_at, updated_at)
        VALUES (:id, :description, :brand, :model, :measure_id, :color, :factory_serial, :inventory_serial, :state_id, :acquired_on, :notes, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertInstrument, instrument); err != nil {
		return fmt.Errorf("create instrument: %w", err)
	}

	history := models.StateHistory{
		ID:           uuid.NewString(),
		InstrumentID: instrument.ID,
		StateID:      instrument.StateID,
		RecordedAt:   now,
		Note:         note,
	}
	const insertHistory = `INSERT INTO instrument_state_history (id, instrument_id, state_id, recorded_at, note)
        VALUES (:id, :instrument_id, :state_id, :recorded_at, :note)`
	if _, err := tx.NamedExecContext(ctx, insertHistory, history); err != nil {
		return fmt.Errorf("create state history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Update modifies descriptive fields of an instrument. State changes go
// through UpdateState so every transition leaves a history row.
func (r *InstrumentRepository) Update(ctx context.Context, instrument *models.Instrument) error {
	instrument.UpdatedAt = time.Now().UTC()
	const query = `UPDATE instruments SET description = :description, brand = :brand, model = :model, measure_id = :measure_id, color = :color, factory_serial = :factory_serial, acquired_on = :acquired_on, notes = :notes, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, instrument); err != nil {
		return fmt.Errorf("update instrument: %w", err)
	}
	return nil
}

// UpdateState moves an instrument to a new state and appends the
// matching history row in one transaction.
func (r *InstrumentRepository) UpdateState(ctx context.Context, instrumentID, stateID, note string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	const updateInstrument = `UPDATE instruments SET state_id = $2, updated_at = $3 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, updateInstrument, instrumentID, stateID, now); err != nil {
		return fmt.Errorf("update instrument state: %w", err)
	}

	const insertHistory = `INSERT INTO instrument_state_history (id, instrument_id, state_id, recorded_at, note) VALUES ($1, $2, $3, $4, $5)`
	if _, err := tx.ExecContext(ctx, insertHistory, uuid.NewString(), instrumentID, stateID, now, note); err != nil {
		return fmt.Errorf("create state history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Delete removes an instrument. Accessories and history go with it via
// foreign key cascade.
func (r *InstrumentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM instruments WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete instrument: %w", err)
	}
	return nil
}

// HasLoans reports whether any loan references the instrument.
func (r *InstrumentRepository) HasLoans(ctx context.Context, id string) (bool, error) {
	const query = `SELECT 1 FROM loans WHERE instrument_id = $1 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, id); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check loans: %w", err)
	}
	return true, nil
}

// StateHistory returns the full state trail for an instrument, newest first.
func (r *InstrumentRepository) StateHistory(ctx context.Context, instrumentID string) ([]models.StateHistoryDetail, error) {
	const query = `SELECT h.id, h.instrument_id, h.state_id, h.recorded_at, h.note, st.name AS state_name
        FROM instrument_state_history h
        JOIN instrument_states st ON st.id = h.state_id
        WHERE h.instrument_id = $1
        ORDER BY h.recorded_at DESC`
	var history []models.StateHistoryDetail
	if err := r.db.SelectContext(ctx, &history, query, instrumentID); err != nil {
		return nil, fmt.Errorf("list state history: %w", err)
	}
	return history, nil
}

// ListStates returns the state catalog.
func (r *InstrumentRepository) ListStates(ctx context.Context) ([]models.InstrumentState, error) {
	const query = `SELECT id, name, description FROM instrument_states ORDER BY name`
	var states []models.InstrumentState
	if err := r.db.SelectContext(ctx, &states, query); err != nil {
		return nil, fmt.Errorf("list states: %w", err)
	}
	return states, nil
}

// FindStateByName returns a state catalog row by its name.
func (r *InstrumentRepository) FindStateByName(ctx context.Context, name models.StateName) (*models.InstrumentState, error) {
	const query = `SELECT id, name, description FROM instrument_states WHERE name = $1 LIMIT 1`
	var state models.InstrumentState
	if err := r.db.GetContext(ctx, &state, query, name); err != nil {
		return nil, err
	}
	return &state, nil
}

// ListMeasures returns the measure catalog.
func (r *InstrumentRepository) ListMeasures(ctx context.Context) ([]models.Measure, error) {
	const query = `SELECT id, name, description FROM measures ORDER BY name`
	var measures []models.Measure
	if err := r.db.SelectContext(ctx, &measures, query); err != nil {
		return nil, fmt.Errorf("list measures: %w", err)
	}
	return measures, nil
}

// FindMeasureByID returns a measure catalog row.
func (r *InstrumentRepository) FindMeasureByID(ctx context.Context, id string) (*models.Measure, error) {
	const query = `SELECT id, name, description FROM measures WHERE id = $1 LIMIT 1`
	var measure models.Measure
	if err := r.db.GetContext(ctx, &measure, query, id); err != nil {
		return nil, err
	}
	return &measure, nil
}

// CreateMeasure adds a measure to the catalog.
func (r *InstrumentRepository) CreateMeasure(ctx context.Context, measure *models.Measure) error {
	if measure.ID == "" {
		measure.ID = uuid.NewString()
	}
	const query = `INSERT INTO measures (id, name, description) VALUES (:id, :name, :description)`
	if _, err := r.db.NamedExecContext(ctx, query, measure); err != nil {
		return fmt.Errorf("create measure: %w", err)
	}
	return nil
}

// MeasureNameExists reports whether a measure name is already taken.
func (r *InstrumentRepository) MeasureNameExists(ctx context.Context, name string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM measures WHERE name = $1)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, name); err != nil {
		return false, fmt.Errorf("measure name exists: %w", err)
	}
	return exists, nil
}

// CreateState adds a state to the catalog.
func (r *InstrumentRepository) CreateState(ctx context.Context, state *models.InstrumentState) error {
	if state.ID == "" {
		state.ID = uuid.NewString()
	}
	const query = `INSERT INTO instrument_states (id, name, description) VALUES (:id, :name, :description)`
	if _, err := r.db.NamedExecContext(ctx, query, state); err != nil {
		return fmt.Errorf("create state: %w", err)
	}
	return nil
}

// ListAccessories returns the accessories attached to an instrument.
func (r *InstrumentRepository) ListAccessories(ctx context.Context, instrumentID string) ([]models.Accessory, error) {
	const query = `SELECT id, instrument_id, name, description, serial, condition FROM accessories WHERE instrument_id = $1 ORDER BY name`
	var accessories []models.Accessory
	if err := r.db.SelectContext(ctx, &accessories, query, instrumentID); err != nil {
		return nil, fmt.Errorf("list accessories: %w", err)
	}
	return accessories, nil
}

// FindAccessoryByID returns one accessory.
func (r *InstrumentRepository) FindAccessoryByID(ctx context.Context, id string) (*models.Accessory, error) {
	const query = `SELECT id, instrument_id, name, description, serial, condition FROM accessories WHERE id = $1 LIMIT 1`
	var accessory models.Accessory
	if err := r.db.GetContext(ctx, &accessory, query, id); err != nil {
		return nil, err
	}
	return &accessory, nil
}

// CreateAccessory attaches an accessory to an instrument.
func (r *InstrumentRepository) CreateAccessory(ctx context.Context, accessory *models.Accessory) error {
	if accessory.ID == "" {
		accessory.ID = uuid.NewString()
	}
	const query = `INSERT INTO accessories (id, instrument_id, name, description, serial, condition) VALUES (:id, :instrument_id, :name, :description, :serial, :condition)`
	if _, err := r.db.NamedExecContext(ctx, query, accessory); err != nil {
		return fmt.Errorf("create accessory: %w", err)
	}
	return nil
}

// UpdateAccessory modifies an accessory.
func (r *InstrumentRepository) UpdateAccessory(ctx context.Context, accessory *models.Accessory) error {
	const query = `UPDATE accessories SET name = :name, description = :description, serial = :serial, condition = :condition WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, accessory); err != nil {
		return fmt.Errorf("update accessory: %w", err)
	}
	return nil
}

// DeleteAccessory removes an accessory permanently.
func (r *InstrumentRepository) DeleteAccessory(ctx context.Context, id string) error {
	const query = `DELETE FROM accessories WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete accessory: %w", err)
	}
	return nil
}
