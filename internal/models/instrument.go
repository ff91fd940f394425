package models

import "time"

// Measure is a size fraction catalog entry (4/4, 3/4, ...).
type Measure struct {
	ID          string `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
}

// StateName enumerates instrument inventory states.
type StateName string

const (
	StateAvailable      StateName = "AVAILABLE"
	StateAssigned       StateName = "ASSIGNED"
	StateNonOperational StateName = "NON_OPERATIONAL"
	StateMaintenance    StateName = "MAINTENANCE"
	StateRetired        StateName = "RETIRED"
)

// InstrumentState is a catalog row for an inventory state. The instrument's
// current-state pointer references one of these; history rows do too.
type InstrumentState struct {
	ID          string    `db:"id" json:"id"`
	Name        StateName `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
}

// Instrument is a physical asset that can be loaned to students.
type Instrument struct {
	ID              string     `db:"id" json:"id"`
	Description     string     `db:"description" json:"description"`
	Brand           string     `db:"brand" json:"brand"`
	Model           string     `db:"model" json:"model"`
	MeasureID       *string    `db:"measure_id" json:"measure_id,omitempty"`
	Color           string     `db:"color" json:"color"`
	FactorySerial   string     `db:"factory_serial" json:"factory_serial"`
	InventorySerial string     `db:"inventory_serial" json:"inventory_serial"`
	StateID         string     `db:"state_id" json:"state_id"`
	AcquiredOn      *time.Time `db:"acquired_on" json:"acquired_on,omitempty"`
	Notes           string     `db:"notes" json:"notes"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// InstrumentDetail joins an instrument with its current state and measure.
type InstrumentDetail struct {
	Instrument
	StateName   StateName `db:"state_name" json:"state_name"`
	MeasureName *string   `db:"measure_name" json:"measure_name,omitempty"`
}

// AccessoryCondition enumerates the physical condition of an accessory.
type AccessoryCondition string

const (
	AccessoryGood AccessoryCondition = "GOOD"
	AccessoryFair AccessoryCondition = "FAIR"
	AccessoryBad  AccessoryCondition = "BAD"
	AccessoryLost AccessoryCondition = "LOST"
)

// Accessory belongs to one instrument and is removed with it.
type Accessory struct {
	ID           string             `db:"id" json:"id"`
	InstrumentID string             `db:"instrument_id" json:"instrument_id"`
	Name         string             `db:"name" json:"name"`
	Description  string             `db:"description" json:"description"`
	Serial       string             `db:"serial" json:"serial"`
	Condition    AccessoryCondition `db:"condition" json:"condition"`
}

// StateHistory is an append-only audit row for an instrument state change.
type StateHistory struct {
	ID           string    `db:"id" json:"id"`
	InstrumentID string    `db:"instrument_id" json:"instrument_id"`
	StateID      string    `db:"state_id" json:"state_id"`
	RecordedAt   time.Time `db:"recorded_at" json:"recorded_at"`
	Note         string    `db:"note" json:"note"`
}

// StateHistoryDetail joins a history row with its state name.
type StateHistoryDetail struct {
	StateHistory
	StateName StateName `db:"state_name" json:"state_name"`
}

// InstrumentFilter captures listing criteria for instruments.
type InstrumentFilter struct {
	State     *StateName
	MeasureID string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
