package models

// DashboardStats aggregates the headline counters for the landing panel.
type DashboardStats struct {
	Students        StudentCounters    `json:"students"`
	Representatives int                `json:"representatives"`
	Instruments     InstrumentCounters `json:"instruments"`
	Loans           LoanCounters       `json:"loans"`
}

// StudentCounters breaks students down by status.
type StudentCounters struct {
	Total    int `json:"total" db:"total"`
	Active   int `json:"active" db:"active"`
	Inactive int `json:"inactive" db:"inactive"`
}

// InstrumentCounters breaks instruments down by state.
type InstrumentCounters struct {
	Total          int `json:"total" db:"total"`
	Available      int `json:"available" db:"available"`
	Assigned       int `json:"assigned" db:"assigned"`
	NonOperational int `json:"non_operational" db:"non_operational"`
	Maintenance    int `json:"maintenance" db:"maintenance"`
	Retired        int `json:"retired" db:"retired"`
}

// LoanCounters breaks loans down by status plus the overdue count.
type LoanCounters struct {
	Total     int `json:"total" db:"total"`
	Active    int `json:"active" db:"active"`
	Finished  int `json:"finished" db:"finished"`
	Cancelled int `json:"cancelled" db:"cancelled"`
	Overdue   int `json:"overdue" db:"overdue"`
}

// DashboardAlert flags a loan nearing or past its return date.
type DashboardAlert struct {
	LoanID        string `json:"loan_id" db:"loan_id"`
	Code          string `json:"code" db:"code"`
	StudentName   string `json:"student_name" db:"student_name"`
	Instrument    string `json:"instrument" db:"instrument"`
	EndDate       string `json:"end_date" db:"end_date"`
	DaysRemaining int    `json:"days_remaining"`
	Overdue       bool   `json:"overdue"`
}

// SearchResult is one hit from the quick search box.
type SearchResult struct {
	Type  string `json:"type" db:"type"`
	ID    string `json:"id" db:"id"`
	Label string `json:"label" db:"label"`
	Extra string `json:"extra" db:"extra"`
}
