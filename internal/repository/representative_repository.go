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

// RepresentativeRepository manages persistence for representative profiles.
type RepresentativeRepository struct {
	db *sqlx.DB
}

// NewRepresentativeRepository constructs a RepresentativeRepository.
func NewRepresentativeRepository(db *sqlx.DB) *RepresentativeRepository {
	return &RepresentativeRepository{db: db}
}

// List returns representatives matching the provided filters.
func (r *RepresentativeRepository) List(ctx context.Context, filter models.RepresentativeFilter) ([]models.Representative, int, error) {
	baseQuery := `FROM representatives WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(first_name || ' ' || last_name) LIKE $%d OR LOWER(national_id) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]bool{
		"first_name":  true,
		"last_name":   true,
		"national_id": true,
		"created_at":  true,
	}
	sortBy := filter.SortBy
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}
	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf(`SELECT id, user_id, first_name, last_name, national_id, phone, address, created_at, updated_at %s ORDER BY %s %s LIMIT %d OFFSET %d`, baseQuery, sortBy, sortOrder, pageSize, offset)

	var reps []models.Representative
	if err := r.db.SelectContext(ctx, &reps, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list representatives: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count representatives: %w", err)
	}

	return reps, total, nil
}

// FindByID fetches a representative by ID.
func (r *RepresentativeRepository) FindByID(ctx context.Context, id string) (*models.Representative, error) {
	const query = `SELECT id, user_id, first_name, last_name, national_id, phone, address, created_at, updated_at FROM representatives WHERE id = $1 LIMIT 1`
	var rep models.Representative
	if err := r.db.GetContext(ctx, &rep, query, id); err != nil {
		return nil, err
	}
	return &rep, nil
}

// FindByUserID fetches the representative owned by a user account.
func (r *RepresentativeRepository) FindByUserID(ctx context.Context, userID string) (*models.Representative, error) {
	const query = `SELECT id, user_id, first_name, last_name, national_id, phone, address, created_at, updated_at FROM representatives WHERE user_id = $1 LIMIT 1`
	var rep models.Representative
	if err := r.db.GetContext(ctx, &rep, query, userID); err != nil {
		return nil, err
	}
	return &rep, nil
}

// ExistsByNationalID checks if a representative with the national ID
// exists, optionally excluding an ID.
func (r *RepresentativeRepository) ExistsByNationalID(ctx context.Context, nationalID string, excludeID string) (bool, error) {
	query := "SELECT 1 FROM representatives WHERE national_id = $1"
	args := []interface{}{nationalID}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check national id: %w", err)
	}
	return true, nil
}

// Create inserts a new representative record.
func (r *RepresentativeRepository) Create(ctx context.Context, rep *models.Representative) error {
	if rep.ID == "" {
		rep.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if rep.CreatedAt.IsZero() {
		rep.CreatedAt = now
	}
	rep.UpdatedAt = now
	const query = `INSERT INTO representatives (id, user_id, first_name, last_name, national_id, phone, address, created_at, updated_at)
        VALUES (:id, :user_id, :first_name, :last_name, :national_id, :phone, :address, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, rep); err != nil {
		return fmt.Errorf("create representative: %w", err)
	}
	return nil
}

// CreateTx inserts a representative inside an existing transaction. Used
// when the account and its profile must be created atomically.
func (r *RepresentativeRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, rep *models.Representative) error {
	if rep.ID == "" {
		rep.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if rep.CreatedAt.IsZero() {
		rep.CreatedAt = now
	}
	rep.UpdatedAt = now
	const query = `INSERT INTO representatives (id, user_id, first_name, last_name, national_id, phone, address, created_at, updated_at)
        VALUES (:id, :user_id, :first_name, :last_name, :national_id, :phone, :address, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, rep); err != nil {
		return fmt.Errorf("create representative: %w", err)
	}
	return nil
}

// Update modifies an existing representative.
func (r *RepresentativeRepository) Update(ctx context.Context, rep *models.Representative) error {
	rep.UpdatedAt = time.Now().UTC()
	const query = `UPDATE representatives SET first_name = :first_name, last_name = :last_name, national_id = :national_id, phone = :phone, address = :address, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, rep); err != nil {
		return fmt.Errorf("update representative: %w", err)
	}
	return nil
}

// Stats aggregates per-representative counters over students and loans.
func (r *RepresentativeRepository) Stats(ctx context.Context, id string, today time.Time) (*models.RepresentativeStats, error) {
	const query = `SELECT
        (SELECT COUNT(*) FROM students s WHERE s.representative_id = $1) AS students_total,
        (SELECT COUNT(*) FROM students s WHERE s.representative_id = $1 AND s.status = 'ACTIVE') AS students_active,
        (SELECT COUNT(*) FROM loans l WHERE l.representative_id = $1) AS loans_total,
        (SELECT COUNT(*) FROM loans l WHERE l.representative_id = $1 AND l.status = 'ACTIVE') AS loans_active,
        (SELECT COUNT(*) FROM loans l WHERE l.representative_id = $1 AND l.status = 'FINISHED') AS loans_finished,
        (SELECT COUNT(*) FROM loans l WHERE l.representative_id = $1 AND l.status = 'ACTIVE' AND l.end_date < $2) AS loans_overdue`
	var stats models.RepresentativeStats
	if err := r.db.GetContext(ctx, &stats, query, id, today); err != nil {
		return nil, fmt.Errorf("representative stats: %w", err)
	}
	stats.StudentsInactive = stats.StudentsTotal - stats.StudentsActive
	return &stats, nil
}

// HasActiveLoans reports whether any loan sponsored by the representative
// is still active.
func (r *RepresentativeRepository) HasActiveLoans(ctx context.Context, id string) (bool, error) {
	const query = `SELECT 1 FROM loans WHERE representative_id = $1 AND status = 'ACTIVE' LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, id); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check active loans: %w", err)
	}
	return true, nil
}
