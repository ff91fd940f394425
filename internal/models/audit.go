package models

import "time"

// Audit action names recorded against entities.
const (
	AuditLogin            = "LOGIN"
	AuditLogout           = "LOGOUT"
	AuditRegister         = "REGISTER"
	AuditPasswordChange   = "PASSWORD_CHANGE"
	AuditPasswordReset    = "PASSWORD_RESET"
	AuditEmailVerified    = "EMAIL_VERIFIED"
	AuditCreate           = "CREATE"
	AuditUpdate           = "UPDATE"
	AuditDelete           = "DELETE"
	AuditLoanCreate       = "LOAN_CREATE"
	AuditLoanFinalize     = "LOAN_FINALIZE"
	AuditInstrumentState  = "INSTRUMENT_STATE_CHANGE"
	AuditInstrumentImport = "INSTRUMENT_IMPORT"
	AuditExport           = "EXPORT"
)

// AuditLog records who did what to which entity.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	EntityType string    `db:"entity_type" json:"entity_type"`
	EntityID   *string   `db:"entity_id" json:"entity_id,omitempty"`
	Detail     string    `db:"detail" json:"detail"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// AuditFilter narrows audit log listings.
type AuditFilter struct {
	UserID     string
	Action     string
	EntityType string
	From       *time.Time
	To         *time.Time
	Page       int
	PageSize   int
}
