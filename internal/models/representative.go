package models

import "time"

// Representative is the legal guardian sponsoring one or more students.
// Every representative is owned by exactly one user account.
type Representative struct {
	ID         string    `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"user_id"`
	FirstName  string    `db:"first_name" json:"first_name"`
	LastName   string    `db:"last_name" json:"last_name"`
	NationalID string    `db:"national_id" json:"national_id"`
	Phone      string    `db:"phone" json:"phone"`
	Address    string    `db:"address" json:"address"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// FullName joins first and last name for display and export.
func (r *Representative) FullName() string {
	return r.FirstName + " " + r.LastName
}

// RepresentativeFilter captures listing criteria for representatives.
type RepresentativeFilter struct {
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// RepresentativeStats aggregates per-representative counters for the
// statistics endpoint.
type RepresentativeStats struct {
	StudentsTotal    int `db:"students_total" json:"students_total"`
	StudentsActive   int `db:"students_active" json:"students_active"`
	StudentsInactive int `json:"students_inactive"`
	LoansTotal       int `db:"loans_total" json:"loans_total"`
	LoansActive      int `db:"loans_active" json:"loans_active"`
	LoansFinished    int `db:"loans_finished" json:"loans_finished"`
	LoansOverdue     int `db:"loans_overdue" json:"loans_overdue"`
}
