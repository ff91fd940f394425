package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nucleo-eljunko/comodato-api/internal/models"
)

// DashboardRepository aggregates the counters, alerts and quick-search
// results the landing panel is built from.
type DashboardRepository struct {
	db *sqlx.DB
}

// NewDashboardRepository constructs a DashboardRepository.
func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// Stats returns the headline counters across all entities.
func (r *DashboardRepository) Stats(ctx context.Context, today time.Time) (*models.DashboardStats, error) {
	var stats models.DashboardStats

	const studentQuery = `SELECT COUNT(*) AS total,
        COUNT(*) FILTER (WHERE status = 'ACTIVE') AS active,
        COUNT(*) FILTER (WHERE status = 'INACTIVE') AS inactive
        FROM students`
	if err := r.db.GetContext(ctx, &stats.Students, studentQuery); err != nil {
		return nil, fmt.Errorf("student counters: %w", err)
	}

	const repQuery = `SELECT COUNT(*) FROM representatives`
	if err := r.db.GetContext(ctx, &stats.Representatives, repQuery); err != nil {
		return nil, fmt.Errorf("representative counter: %w", err)
	}

	const instrumentQuery = `SELECT COUNT(*) AS total,
        COUNT(*) FILTER (WHERE st.name = 'AVAILABLE') AS available,
        COUNT(*) FILTER (WHERE st.name = 'ASSIGNED') AS assigned,
        COUNT(*) FILTER (WHERE st.name = 'NON_OPERATIONAL') AS non_operational,
        COUNT(*) FILTER (WHERE st.name = 'MAINTENANCE') AS maintenance,
        COUNT(*) FILTER (WHERE st.name = 'RETIRED') AS retired
        FROM instruments i JOIN instrument_states st ON st.id = i.state_id`
	if err := r.db.GetContext(ctx, &stats.Instruments, instrumentQuery); err != nil {
		return nil, fmt.Errorf("instrument counters: %w", err)
	}

	const loanQuery = `SELECT COUNT(*) AS total,
        COUNT(*) FILTER (WHERE status = 'ACTIVE') AS active,
        COUNT(*) FILTER (WHERE status = 'FINISHED') AS finished,
        COUNT(*) FILTER (WHERE status = 'CANCELLED') AS cancelled,
        COUNT(*) FILTER (WHERE status = 'ACTIVE' AND end_date < $1) AS overdue
        FROM loans`
	if err := r.db.GetContext(ctx, &stats.Loans, loanQuery, today); err != nil {
		return nil, fmt.Errorf("loan counters: %w", err)
	}

	return &stats, nil
}

// Alerts returns active loans that are overdue or expiring within the
// given window, most urgent first.
func (r *DashboardRepository) Alerts(ctx context.Context, today time.Time, windowDays int) ([]models.DashboardAlert, error) {
	cutoff := today.AddDate(0, 0, windowDays)

	rows := []struct {
		models.DashboardAlert
		RawEnd time.Time `db:"raw_end"`
	}{}
	const query = `SELECT l.id AS loan_id, l.code,
        s.first_name || ' ' || s.last_name AS student_name,
        i.description || ' ' || i.brand AS instrument,
        to_char(l.end_date, 'YYYY-MM-DD') AS end_date,
        l.end_date AS raw_end
        FROM loans l
        JOIN students s ON s.id = l.student_id
        JOIN instruments i ON i.id = l.instrument_id
        WHERE l.status = 'ACTIVE' AND l.end_date <= $1
        ORDER BY l.end_date ASC`
	if err := r.db.SelectContext(ctx, &rows, query, cutoff); err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}

	alerts := make([]models.DashboardAlert, 0, len(rows))
	for _, row := range rows {
		alert := row.DashboardAlert
		ref := models.Loan{Status: models.LoanActive, EndDate: row.RawEnd}
		alert.DaysRemaining = ref.DaysRemaining(today)
		alert.Overdue = ref.IsOverdue(today)
		alerts = append(alerts, alert)
	}
	return alerts, nil
}

// Search runs the quick search across students, representatives,
// instruments and loan codes.
func (r *DashboardRepository) Search(ctx context.Context, term string, limit int) ([]models.SearchResult, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	pattern := "%" + term + "%"
	query := fmt.Sprintf(`
        (SELECT 'student' AS type, s.id, s.first_name || ' ' || s.last_name AS label, s.national_id AS extra
         FROM students s
         WHERE s.first_name || ' ' || s.last_name ILIKE $1 OR s.national_id ILIKE $1
         LIMIT %d)
        UNION ALL
        (SELECT 'representative' AS type, rp.id, rp.first_name || ' ' || rp.last_name AS label, rp.national_id AS extra
         FROM representatives rp
         WHERE rp.first_name || ' ' || rp.last_name ILIKE $1 OR rp.national_id ILIKE $1
         LIMIT %d)
        UNION ALL
        (SELECT 'instrument' AS type, i.id, i.description || ' ' || i.brand AS label, i.inventory_serial AS extra
         FROM instruments i
         WHERE i.description ILIKE $1 OR i.brand ILIKE $1 OR i.inventory_serial LIKE $1
         LIMIT %d)
        UNION ALL
        (SELECT 'loan' AS type, l.id, l.code AS label, l.status AS extra
         FROM loans l
         WHERE l.code ILIKE $1
         LIMIT %d)`, limit, limit, limit, limit)

	var results []models.SearchResult
	if err := r.db.SelectContext(ctx, &results, query, pattern); err != nil {
		return nil, fmt.Errorf("quick search: %w", err)
	}
	return results, nil
}
