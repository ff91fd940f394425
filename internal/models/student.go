package models

import "time"

// StudentProgram enumerates the teaching programs a student enrolls in.
type StudentProgram string

const (
	ProgramInitiation StudentProgram = "INITIATION"
	ProgramChoral     StudentProgram = "CHORAL"
	ProgramOrchestral StudentProgram = "ORCHESTRAL"
	ProgramFolk       StudentProgram = "FOLK"
	ProgramOther      StudentProgram = "OTHER"
)

// StudentStatus is the soft-delete state of a student.
type StudentStatus string

const (
	StudentActive   StudentStatus = "ACTIVE"
	StudentInactive StudentStatus = "INACTIVE"
)

// Student is a pupil sponsored by a representative. Students are never
// hard-deleted; deactivation flips the status so loan history stays intact.
type Student struct {
	ID               string         `db:"id" json:"id"`
	RepresentativeID string         `db:"representative_id" json:"representative_id"`
	FirstName        string         `db:"first_name" json:"first_name"`
	LastName         string         `db:"last_name" json:"last_name"`
	NationalID       string         `db:"national_id" json:"national_id"`
	BirthDate        *time.Time     `db:"birth_date" json:"birth_date,omitempty"`
	Program          StudentProgram `db:"program" json:"program"`
	Status           StudentStatus  `db:"status" json:"status"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

// FullName joins first and last name.
func (s *Student) FullName() string {
	return s.FirstName + " " + s.LastName
}

// Age computes completed years at the given date. Returns -1 when the
// birth date is unknown.
func (s *Student) Age(today time.Time) int {
	if s.BirthDate == nil {
		return -1
	}
	b := *s.BirthDate
	years := today.Year() - b.Year()
	if today.Month() < b.Month() || (today.Month() == b.Month() && today.Day() < b.Day()) {
		years--
	}
	return years
}

// StudentDetail joins a student with its representative's display name.
type StudentDetail struct {
	Student
	RepresentativeName *string `db:"representative_name" json:"representative_name,omitempty"`
}

// StudentFilter captures listing criteria for students.
type StudentFilter struct {
	RepresentativeID string
	Program          *StudentProgram
	Status           *StudentStatus
	Search           string
	Page             int
	PageSize         int
	SortBy           string
	SortOrder        string
}
