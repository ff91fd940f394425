package models

import "time"

// LoanStatus enumerates the loan lifecycle states. ACTIVE is initial; the
// other three are terminal for the record (a renewal creates a new loan).
type LoanStatus string

const (
	LoanActive    LoanStatus = "ACTIVE"
	LoanFinished  LoanStatus = "FINISHED"
	LoanCancelled LoanStatus = "CANCELLED"
	LoanRenewed   LoanStatus = "RENEWED"
)

// Loan is a bounded-duration assignment of an instrument to a student,
// sponsored by a representative.
type Loan struct {
	ID               string     `db:"id" json:"id"`
	StudentID        string     `db:"student_id" json:"student_id"`
	InstrumentID     string     `db:"instrument_id" json:"instrument_id"`
	RepresentativeID string     `db:"representative_id" json:"representative_id"`
	StartDate        time.Time  `db:"start_date" json:"start_date"`
	EndDate          time.Time  `db:"end_date" json:"end_date"`
	ReceptionDate    *time.Time `db:"reception_date" json:"reception_date,omitempty"`
	Status           LoanStatus `db:"status" json:"status"`
	Notes            string     `db:"notes" json:"notes"`
	Correlative      int        `db:"correlative" json:"correlative"`
	Code             string     `db:"code" json:"code"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// DaysRemaining returns whole days until the end date, 0 for loans that are
// not active or already past due. Derived at read time, never stored.
func (l *Loan) DaysRemaining(today time.Time) int {
	if l.Status != LoanActive {
		return 0
	}
	end := dateOnly(l.EndDate)
	now := dateOnly(today)
	if now.After(end) {
		return 0
	}
	return int(end.Sub(now).Hours() / 24)
}

// IsOverdue reports whether an active loan ran past its end date.
func (l *Loan) IsOverdue(today time.Time) bool {
	return l.Status == LoanActive && dateOnly(today).After(dateOnly(l.EndDate))
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// LoanDetail joins a loan with display fields from its referenced entities.
type LoanDetail struct {
	Loan
	StudentName        string  `db:"student_name" json:"student_name"`
	StudentNationalID  string  `db:"student_national_id" json:"student_national_id"`
	RepresentativeName string  `db:"representative_name" json:"representative_name"`
	InstrumentDesc     string  `db:"instrument_description" json:"instrument_description"`
	InstrumentBrand    string  `db:"instrument_brand" json:"instrument_brand"`
	InstrumentModel    string  `db:"instrument_model" json:"instrument_model"`
	InventorySerial    string  `db:"inventory_serial" json:"inventory_serial"`
	DaysLeft           int     `json:"days_remaining"`
	Overdue            bool    `json:"overdue"`
}

// Derive fills the computed fields from the stored ones.
func (d *LoanDetail) Derive(today time.Time) {
	d.DaysLeft = d.DaysRemaining(today)
	d.Overdue = d.IsOverdue(today)
}

// LoanFilter captures listing criteria for loans.
type LoanFilter struct {
	RepresentativeID string
	StudentID        string
	InstrumentID     string
	Status           *LoanStatus
	StartFrom        *time.Time
	StartTo          *time.Time
	OverdueOnly      bool
	Page             int
	PageSize         int
}
