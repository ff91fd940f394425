package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nucleo-eljunko/comodato-api/internal/codes"
	"github.com/nucleo-eljunko/comodato-api/internal/models"
)

// Advisory lock namespace for per-year correlative assignment.
const correlativeLockKey = 0x434F4D4F

// LoanRepository manages persistence for the loan ledger. Creation and
// finalization run in one transaction with the instrument state change
// so the ledger and the inventory never disagree.
type LoanRepository struct {
	db *sqlx.DB
}

// NewLoanRepository constructs a LoanRepository.
func NewLoanRepository(db *sqlx.DB) *LoanRepository {
	return &LoanRepository{db: db}
}

const loanSelectColumns = `l.id, l.student_id, l.instrument_id, l.representative_id, l.start_date, l.end_date, l.reception_date, l.status, l.notes, l.correlative, l.code, l.created_at, l.updated_at,
        s.first_name || ' ' || s.last_name AS student_name, s.national_id AS student_national_id,
        rp.first_name || ' ' || rp.last_name AS representative_name,
        i.description AS instrument_description, i.brand AS instrument_brand, i.model AS instrument_model, i.inventory_serial`

const loanJoins = `FROM loans l
        JOIN students s ON s.id = l.student_id
        JOIN representatives rp ON rp.id = l.representative_id
        JOIN instruments i ON i.id = l.instrument_id`

// List returns loans matching the provided filters.
func (r *LoanRepository) List(ctx context.Context, filter models.LoanFilter, today time.Time) ([]models.LoanDetail, int, error) {
	conditions := []string{"1=1"}
	var args []interface{}

	if filter.RepresentativeID != "" {
		conditions = append(conditions, fmt.Sprintf("l.representative_id = $%d", len(args)+1))
		args = append(args, filter.RepresentativeID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("l.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.InstrumentID != "" {
		conditions = append(conditions, fmt.Sprintf("l.instrument_id = $%d", len(args)+1))
		args = append(args, filter.InstrumentID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("l.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.StartFrom != nil {
		conditions = append(conditions, fmt.Sprintf("l.start_date >= $%d", len(args)+1))
		args = append(args, *filter.StartFrom)
	}
	if filter.StartTo != nil {
		conditions = append(conditions, fmt.Sprintf("l.start_date <= $%d", len(args)+1))
		args = append(args, *filter.StartTo)
	}
	if filter.OverdueOnly {
		conditions = append(conditions, fmt.Sprintf("l.status = 'ACTIVE' AND l.end_date < $%d", len(args)+1))
		args = append(args, today)
	}

	base := fmt.Sprintf("%s WHERE %s", loanJoins, strings.Join(conditions, " AND "))

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY l.start_date DESC LIMIT %d OFFSET %d", loanSelectColumns, base, size, offset)

	var loans []models.LoanDetail
	if err := r.db.SelectContext(ctx, &loans, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list loans: %w", err)
	}
	for idx := range loans {
		loans[idx].Derive(today)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count loans: %w", err)
	}
	return loans, total, nil
}

// FindByID fetches a loan detail by ID.
func (r *LoanRepository) FindByID(ctx context.Context, id string, today time.Time) (*models.LoanDetail, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE l.id = $1 LIMIT 1", loanSelectColumns, loanJoins)
	var detail models.LoanDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	detail.Derive(today)
	return &detail, nil
}

// ActiveLoanExistsForInstrument reports whether the instrument is
// currently on an active loan.
func (r *LoanRepository) ActiveLoanExistsForInstrument(ctx context.Context, instrumentID string) (bool, error) {
	const query = `SELECT 1 FROM loans WHERE instrument_id = $1 AND status = 'ACTIVE' LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, instrumentID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check active loan: %w", err)
	}
	return true, nil
}

// CreateWithAssignment inserts a loan, assigns the next per-year
// correlative and moves the instrument to the assigned state, all in one
// transaction. A per-year advisory lock serializes correlative
// assignment so concurrent creations never collide.
func (r *LoanRepository) CreateWithAssignment(ctx context.Context, loan *models.Loan, unitCode, assignedStateID, historyNote string) error {
	if loan.ID == "" {
		loan.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if loan.CreatedAt.IsZero() {
		loan.CreatedAt = now
	}
	loan.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	year := loan.StartDate.Year()
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1, $2)`, correlativeLockKey, year); err != nil {
		return fmt.Errorf("lock correlative: %w", err)
	}

	var max int
	const maxQuery = `SELECT COALESCE(MAX(correlative), 0) FROM loans WHERE EXTRACT(YEAR FROM start_date) = $1`
	if err := tx.GetContext(ctx, &max, maxQuery, year); err != nil {
		return fmt.Errorf("max correlative: %w", err)
	}
	loan.Correlative = max + 1
	loan.Code = codes.LoanCode(unitCode, loan.Correlative, year)

	const insertLoan = `INSERT INTO loans (id, student_id, instrument_id, representative_id, start_date, end_date, reception_date, status, notes, correlative, code, created_at, updated_at)
        VALUES (:id, :student_id, :instrument_id, :representative_id, :start_date, :end_date, :reception_date, :status, :notes, :correlative, :code, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertLoan, loan); err != nil {
		return fmt.Errorf("create loan: %w", err)
	}

	const updateInstrument = `UPDATE instruments SET state_id = $2, updated_at = $3 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, updateInstrument, loan.InstrumentID, assignedStateID, now); err != nil {
		return fmt.Errorf("assign instrument: %w", err)
	}

	const insertHistory = `INSERT INTO instrument_state_history (id, instrument_id, state_id, recorded_at, note) VALUES ($1, $2, $3, $4, $5)`
	if _, err := tx.ExecContext(ctx, insertHistory, uuid.NewString(), loan.InstrumentID, assignedStateID, now, historyNote); err != nil {
		return fmt.Errorf("create state history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// CloseWithRelease terminates a loan and moves the instrument to its
// release state in a single transaction.
func (r *LoanRepository) CloseWithRelease(ctx context.Context, loan *models.Loan, releaseStateID, historyNote string) error {
	loan.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const updateLoan = `UPDATE loans SET status = :status, reception_date = :reception_date, notes = :notes, updated_at = :updated_at WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, updateLoan, loan); err != nil {
		return fmt.Errorf("close loan: %w", err)
	}

	const updateInstrument = `UPDATE instruments SET state_id = $2, updated_at = $3 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, updateInstrument, loan.InstrumentID, releaseStateID, loan.UpdatedAt); err != nil {
		return fmt.Errorf("release instrument: %w", err)
	}

	const insertHistory = `INSERT INTO instrument_state_history (id, instrument_id, state_id, recorded_at, note) VALUES ($1, $2, $3, $4, $5)`
	if _, err := tx.ExecContext(ctx, insertHistory, uuid.NewString(), loan.InstrumentID, releaseStateID, loan.UpdatedAt, historyNote); err != nil {
		return fmt.Errorf("create state history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Update modifies the mutable fields of a loan. Status transitions go
// through CreateWithAssignment and CloseWithRelease.
func (r *LoanRepository) Update(ctx context.Context, loan *models.Loan) error {
	loan.UpdatedAt = time.Now().UTC()
	const query = `UPDATE loans SET end_date = :end_date, notes = :notes, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, loan); err != nil {
		return fmt.Errorf("update loan: %w", err)
	}
	return nil
}

// Overdue returns all active loans past their end date.
func (r *LoanRepository) Overdue(ctx context.Context, today time.Time) ([]models.LoanDetail, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE l.status = 'ACTIVE' AND l.end_date < $1 ORDER BY l.end_date ASC", loanSelectColumns, loanJoins)
	var loans []models.LoanDetail
	if err := r.db.SelectContext(ctx, &loans, query, today); err != nil {
		return nil, fmt.Errorf("list overdue loans: %w", err)
	}
	for idx := range loans {
		loans[idx].Derive(today)
	}
	return loans, nil
}

// ExpiringWithin returns active loans whose end date falls inside the
// next given number of days, soonest first.
func (r *LoanRepository) ExpiringWithin(ctx context.Context, today time.Time, days int) ([]models.LoanDetail, error) {
	cutoff := today.AddDate(0, 0, days)
	query := fmt.Sprintf("SELECT %s %s WHERE l.status = 'ACTIVE' AND l.end_date >= $1 AND l.end_date <= $2 ORDER BY l.end_date ASC", loanSelectColumns, loanJoins)
	var loans []models.LoanDetail
	if err := r.db.SelectContext(ctx, &loans, query, today, cutoff); err != nil {
		return nil, fmt.Errorf("list expiring loans: %w", err)
	}
	for idx := range loans {
		loans[idx].Derive(today)
	}
	return loans, nil
}
