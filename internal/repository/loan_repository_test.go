package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nucleo-eljunko/comodato-api/internal/models"
)

func newLoanMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func loanColumns() []string {
	return []string{"id", "student_id", "instrument_id", "representative_id", "start_date", "end_date", "reception_date", "status", "notes", "correlative", "code", "created_at", "updated_at",
		"student_name", "student_national_id", "representative_name", "instrument_description", "instrument_brand", "instrument_model", "inventory_serial"}
}

func TestLoanRepositoryCreateWithAssignment(t *testing.T) {
	db, mock, cleanup := newLoanMock(t)
	defer cleanup()
	repo := NewLoanRepository(db)

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	loan := &models.Loan{
		StudentID:        "st1",
		InstrumentID:     "in1",
		RepresentativeID: "rp1",
		StartDate:        start,
		EndDate:          start.AddDate(0, 6, 0),
		Status:           models.LoanActive,
	}

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs(int64(correlativeLockKey), int64(2026)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT COALESCE\(MAX\(correlative\), 0\) FROM loans`).
		WithArgs(2026).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(6))
	mock.ExpectExec("INSERT INTO loans").
		WithArgs(sqlmock.AnyArg(), "st1", "in1", "rp1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), 7, "DN-GC-11-054/0007/2026", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE instruments SET state_id").
		WithArgs("in1", "state-assigned", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO instrument_state_history").
		WithArgs(sqlmock.AnyArg(), "in1", "state-assigned", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.CreateWithAssignment(context.Background(), loan, "DN-GC-11-054", "state-assigned", "Assigned on loan DN-GC-11-054/0007/2026")
	require.NoError(t, err)
	assert.Equal(t, 7, loan.Correlative)
	assert.Equal(t, "DN-GC-11-054/0007/2026", loan.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoanRepositoryCreateRollsBackOnInsertFailure(t *testing.T) {
	db, mock, cleanup := newLoanMock(t)
	defer cleanup()
	repo := NewLoanRepository(db)

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	loan := &models.Loan{StudentID: "st1", InstrumentID: "in1", RepresentativeID: "rp1", StartDate: start, EndDate: start.AddDate(0, 6, 0), Status: models.LoanActive}

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT COALESCE\(MAX\(correlative\), 0\) FROM loans`).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(0))
	mock.ExpectExec("INSERT INTO loans").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := repo.CreateWithAssignment(context.Background(), loan, "", "state-assigned", "")
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoanRepositoryCloseWithRelease(t *testing.T) {
	db, mock, cleanup := newLoanMock(t)
	defer cleanup()
	repo := NewLoanRepository(db)

	reception := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	loan := &models.Loan{
		ID:            "lo1",
		InstrumentID:  "in1",
		Status:        models.LoanFinished,
		ReceptionDate: &reception,
		Notes:         "Entregado en buen estado. Finalizado: devuelto por el representante.",
	}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE loans SET status").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "lo1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE instruments SET state_id").
		WithArgs("in1", "state-available", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO instrument_state_history").
		WithArgs(sqlmock.AnyArg(), "in1", "state-available", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.CloseWithRelease(context.Background(), loan, "state-available", "Released after loan finished")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoanRepositoryListDerivesOverdue(t *testing.T) {
	db, mock, cleanup := newLoanMock(t)
	defer cleanup()
	repo := NewLoanRepository(db)

	today := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	start := today.AddDate(0, -7, 0)
	end := today.AddDate(0, 0, -3)

	rows := sqlmock.NewRows(loanColumns()).
		AddRow("lo1", "st1", "in1", "rp1", start, end, nil, models.LoanActive, "", 1, "DN-GC-11-054/0001/2026", start, start,
			"Ana Perez", "V12345678", "Maria Gonzalez", "Violin", "Cremona", "SV-75", "1234567890123456")
	mock.ExpectQuery(`(?s)SELECT l.id, l.student_id, l.instrument_id.+ORDER BY l\.start_date DESC`).
		WillReturnRows(rows)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM loans`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	loans, total, err := repo.List(context.Background(), models.LoanFilter{}, today)
	require.NoError(t, err)
	require.Len(t, loans, 1)
	assert.Equal(t, 1, total)
	assert.True(t, loans[0].Overdue)
	assert.Equal(t, 0, loans[0].DaysLeft)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoanRepositoryOverdue(t *testing.T) {
	db, mock, cleanup := newLoanMock(t)
	defer cleanup()
	repo := NewLoanRepository(db)

	today := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(loanColumns()).
		AddRow("lo1", "st1", "in1", "rp1", today.AddDate(-1, 0, 0), today.AddDate(0, 0, -10), nil, models.LoanActive, "", 3, "DN-GC-11-054/0003/2025", today, today,
			"Ana Perez", "V12345678", "Maria Gonzalez", "Cuatro", "Antonio Navarro", "C-1", "6543210987654321")
	mock.ExpectQuery("SELECT l.id, l.student_id, l.instrument_id").
		WithArgs(today).
		WillReturnRows(rows)

	loans, err := repo.Overdue(context.Background(), today)
	require.NoError(t, err)
	require.Len(t, loans, 1)
	assert.True(t, loans[0].Overdue)
	assert.NoError(t, mock.ExpectationsWereMet())
}
