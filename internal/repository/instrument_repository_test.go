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

func newInstrumentMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestInstrumentRepositoryCreateWritesInitialHistory(t *testing.T) {
	db, mock, cleanup := newInstrumentMock(t)
	defer cleanup()
	repo := NewInstrumentRepository(db)

	instrument := &models.Instrument{
		Description:     "Violin",
		Brand:           "Cremona",
		Model:           "SV-75",
		InventorySerial: "1234567890123456",
		StateID:         "state-available",
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO instruments").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO instrument_state_history").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.Create(context.Background(), instrument, "Registered in inventory")
	require.NoError(t, err)
	assert.NotEmpty(t, instrument.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInstrumentRepositoryCreateRollsBackOnHistoryFailure(t *testing.T) {
	db, mock, cleanup := newInstrumentMock(t)
	defer cleanup()
	repo := NewInstrumentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO instruments").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO instrument_state_history").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.Instrument{StateID: "state-available"}, "")
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInstrumentRepositoryUpdateState(t *testing.T) {
	db, mock, cleanup := newInstrumentMock(t)
	defer cleanup()
	repo := NewInstrumentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE instruments SET state_id").
		WithArgs("in1", "state-maintenance", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO instrument_state_history").
		WithArgs(sqlmock.AnyArg(), "in1", "state-maintenance", sqlmock.AnyArg(), "Sent for bridge repair").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.UpdateState(context.Background(), "in1", "state-maintenance", "Sent for bridge repair")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInstrumentRepositoryInventorySerialExists(t *testing.T) {
	db, mock, cleanup := newInstrumentMock(t)
	defer cleanup()
	repo := NewInstrumentRepository(db)

	mock.ExpectQuery("SELECT 1 FROM instruments WHERE inventory_serial").
		WithArgs("1234567890123456").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(1))

	exists, err := repo.InventorySerialExists(context.Background(), "1234567890123456")
	require.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectQuery("SELECT 1 FROM instruments WHERE inventory_serial").
		WithArgs("0000000000000000").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}))

	exists, err = repo.InventorySerialExists(context.Background(), "0000000000000000")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInstrumentRepositoryStateHistory(t *testing.T) {
	db, mock, cleanup := newInstrumentMock(t)
	defer cleanup()
	repo := NewInstrumentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "instrument_id", "state_id", "recorded_at", "note", "state_name"}).
		AddRow("h2", "in1", "state-assigned", now, "Assigned on loan", models.StateAssigned).
		AddRow("h1", "in1", "state-available", now.Add(-time.Hour), "Registered", models.StateAvailable)
	mock.ExpectQuery("SELECT h.id, h.instrument_id, h.state_id, h.recorded_at, h.note").
		WithArgs("in1").
		WillReturnRows(rows)

	history, err := repo.StateHistory(context.Background(), "in1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.StateAssigned, history[0].StateName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInstrumentRepositoryAccessories(t *testing.T) {
	db, mock, cleanup := newInstrumentMock(t)
	defer cleanup()
	repo := NewInstrumentRepository(db)

	mock.ExpectExec("INSERT INTO accessories").
		WillReturnResult(sqlmock.NewResult(1, 1))
	accessory := &models.Accessory{InstrumentID: "in1", Name: "Bow", Condition: models.AccessoryGood}
	require.NoError(t, repo.CreateAccessory(context.Background(), accessory))
	assert.NotEmpty(t, accessory.ID)

	mock.ExpectExec("DELETE FROM accessories").
		WithArgs(accessory.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.DeleteAccessory(context.Background(), accessory.ID))

	assert.NoError(t, mock.ExpectationsWereMet())
}
