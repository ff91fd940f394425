package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nucleo-eljunko/comodato-api/internal/models"
	appErrors "github.com/nucleo-eljunko/comodato-api/pkg/errors"
)

type mockLoanRepo struct {
	loans       map[string]*models.LoanDetail
	activeByIns map[string]bool
	created     []*models.Loan
	closed      []*models.Loan
	releaseIDs  []string
	createErr   error
	closeErr    error
}

func newMockLoanRepo() *mockLoanRepo {
	return &mockLoanRepo{loans: map[string]*models.LoanDetail{}, activeByIns: map[string]bool{}}
}

func (m *mockLoanRepo) List(ctx context.Context, filter models.LoanFilter, today time.Time) ([]models.LoanDetail, int, error) {
	out := make([]models.LoanDetail, 0, len(m.loans))
	for _, l := range m.loans {
		if filter.RepresentativeID != "" && l.RepresentativeID != filter.RepresentativeID {
			continue
		}
		out = append(out, *l)
	}
	return out, len(out), nil
}

func (m *mockLoanRepo) FindByID(ctx context.Context, id string, today time.Time) (*models.LoanDetail, error) {
	loan, ok := m.loans[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	detail := *loan
	detail.Derive(today)
	return &detail, nil
}

func (m *mockLoanRepo) ActiveLoanExistsForInstrument(ctx context.Context, instrumentID string) (bool, error) {
	return m.activeByIns[instrumentID], nil
}

func (m *mockLoanRepo) CreateWithAssignment(ctx context.Context, loan *models.Loan, unitCode, assignedStateID, historyNote string) error {
	if m.createErr != nil {
		return m.createErr
	}
	loan.ID = fmt.Sprintf("loan-%d", len(m.created)+1)
	loan.Correlative = len(m.created) + 1
	loan.Code = fmt.Sprintf("%s/%04d/%d", unitCode, loan.Correlative, loan.StartDate.Year())
	m.created = append(m.created, loan)
	m.loans[loan.ID] = &models.LoanDetail{Loan: *loan}
	m.activeByIns[loan.InstrumentID] = true
	return nil
}

func (m *mockLoanRepo) CloseWithRelease(ctx context.Context, loan *models.Loan, releaseStateID, historyNote string) error {
	if m.closeErr != nil {
		return m.closeErr
	}
	m.closed = append(m.closed, loan)
	m.releaseIDs = append(m.releaseIDs, releaseStateID)
	m.loans[loan.ID] = &models.LoanDetail{Loan: *loan}
	m.activeByIns[loan.InstrumentID] = false
	return nil
}

func (m *mockLoanRepo) Update(ctx context.Context, loan *models.Loan) error {
	detail, ok := m.loans[loan.ID]
	if !ok {
		return sql.ErrNoRows
	}
	detail.EndDate = loan.EndDate
	detail.Notes = loan.Notes
	return nil
}

func (m *mockLoanRepo) Overdue(ctx context.Context, today time.Time) ([]models.LoanDetail, error) {
	return nil, nil
}

func (m *mockLoanRepo) ExpiringWithin(ctx context.Context, today time.Time, days int) ([]models.LoanDetail, error) {
	return nil, nil
}

type mockInstrumentReader struct {
	instruments map[string]*models.InstrumentDetail
	states      map[models.StateName]*models.InstrumentState
}

func newMockInstrumentReader() *mockInstrumentReader {
	return &mockInstrumentReader{
		instruments: map[string]*models.InstrumentDetail{},
		states: map[models.StateName]*models.InstrumentState{
			models.StateAvailable: {ID: "state-available", Name: models.StateAvailable},
			models.StateAssigned:  {ID: "state-assigned", Name: models.StateAssigned},
		},
	}
}

func (m *mockInstrumentReader) FindByID(ctx context.Context, id string) (*models.InstrumentDetail, error) {
	instrument, ok := m.instruments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return instrument, nil
}

func (m *mockInstrumentReader) FindStateByName(ctx context.Context, name models.StateName) (*models.InstrumentState, error) {
	state, ok := m.states[name]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return state, nil
}

type mockStudentReader struct {
	students map[string]*models.StudentDetail
}

func (m *mockStudentReader) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	student, ok := m.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return student, nil
}

type mockAuditWriter struct {
	entries []*models.AuditLog
	err     error
}

func (m *mockAuditWriter) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, log)
	return nil
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
}

func representativeClaims(repID string) *models.JWTClaims {
	return &models.JWTClaims{UserID: "user-1", Role: models.RoleRepresentative, RepresentativeID: repID}
}

func newLoanFixture() (*LoanService, *mockLoanRepo, *mockInstrumentReader, *mockStudentReader, *mockAuditWriter) {
	repo := newMockLoanRepo()
	instruments := newMockInstrumentReader()
	students := &mockStudentReader{students: map[string]*models.StudentDetail{}}
	audits := &mockAuditWriter{}
	svc := NewLoanService(repo, instruments, students, audits, nil, nil, zap.NewNop(), "DN-GC-11-054")
	base := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }
	return svc, repo, instruments, students, audits
}

func TestLoanServiceCreate(t *testing.T) {
	svc, repo, instruments, students, audits := newLoanFixture()
	today := svc.now()

	students.students["student-1"] = &models.StudentDetail{Student: models.Student{
		ID: "student-1", RepresentativeID: "rep-1", Status: models.StudentActive,
	}}
	instruments.instruments["ins-1"] = &models.InstrumentDetail{
		Instrument: models.Instrument{ID: "ins-1"},
		StateName:  models.StateAvailable,
	}

	loan, err := svc.Create(context.Background(), adminClaims(), CreateLoanRequest{
		StudentID:    "student-1",
		InstrumentID: "ins-1",
		StartDate:    today,
		EndDate:      today.AddDate(0, 6, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, models.LoanActive, loan.Status)
	assert.Equal(t, "rep-1", loan.RepresentativeID)
	assert.Equal(t, "DN-GC-11-054/0001/2026", loan.Code)
	require.Len(t, repo.created, 1)
	require.Len(t, audits.entries, 1)
	assert.Equal(t, models.AuditLoanCreate, audits.entries[0].Action)
}

func TestLoanServiceCreateRejectsUnavailableInstrument(t *testing.T) {
	svc, _, instruments, students, _ := newLoanFixture()
	today := svc.now()

	students.students["student-1"] = &models.StudentDetail{Student: models.Student{
		ID: "student-1", RepresentativeID: "rep-1", Status: models.StudentActive,
	}}
	instruments.instruments["ins-1"] = &models.InstrumentDetail{
		Instrument: models.Instrument{ID: "ins-1"},
		StateName:  models.StateMaintenance,
	}

	_, err := svc.Create(context.Background(), adminClaims(), CreateLoanRequest{
		StudentID:    "student-1",
		InstrumentID: "ins-1",
		StartDate:    today,
		EndDate:      today.AddDate(0, 6, 0),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestLoanServiceCreateRejectsInactiveStudent(t *testing.T) {
	svc, _, instruments, students, _ := newLoanFixture()
	today := svc.now()

	students.students["student-1"] = &models.StudentDetail{Student: models.Student{
		ID: "student-1", RepresentativeID: "rep-1", Status: models.StudentInactive,
	}}
	instruments.instruments["ins-1"] = &models.InstrumentDetail{
		Instrument: models.Instrument{ID: "ins-1"},
		StateName:  models.StateAvailable,
	}

	_, err := svc.Create(context.Background(), adminClaims(), CreateLoanRequest{
		StudentID:    "student-1",
		InstrumentID: "ins-1",
		StartDate:    today,
		EndDate:      today.AddDate(0, 6, 0),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestLoanServiceCreateRejectsForeignStudent(t *testing.T) {
	svc, _, instruments, students, _ := newLoanFixture()
	today := svc.now()

	students.students["student-1"] = &models.StudentDetail{Student: models.Student{
		ID: "student-1", RepresentativeID: "rep-1", Status: models.StudentActive,
	}}
	instruments.instruments["ins-1"] = &models.InstrumentDetail{
		Instrument: models.Instrument{ID: "ins-1"},
		StateName:  models.StateAvailable,
	}

	_, err := svc.Create(context.Background(), representativeClaims("rep-other"), CreateLoanRequest{
		StudentID:    "student-1",
		InstrumentID: "ins-1",
		StartDate:    today,
		EndDate:      today.AddDate(0, 6, 0),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestLoanServiceCreateRejectsBadDateRange(t *testing.T) {
	svc, _, _, _, _ := newLoanFixture()
	today := svc.now()

	_, err := svc.Create(context.Background(), adminClaims(), CreateLoanRequest{
		StudentID:    "student-1",
		InstrumentID: "ins-1",
		StartDate:    today,
		EndDate:      today.AddDate(0, 0, 731),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestLoanServiceCreateRejectsZeroDuration(t *testing.T) {
	svc, _, _, _, _ := newLoanFixture()
	today := svc.now()

	_, err := svc.Create(context.Background(), adminClaims(), CreateLoanRequest{
		StudentID:    "student-1",
		InstrumentID: "ins-1",
		StartDate:    today,
		EndDate:      today,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestLoanServiceFinalize(t *testing.T) {
	svc, repo, _, _, audits := newLoanFixture()
	today := svc.now()

	repo.loans["loan-1"] = &models.LoanDetail{Loan: models.Loan{
		ID:               "loan-1",
		InstrumentID:     "ins-1",
		RepresentativeID: "rep-1",
		StartDate:        today.AddDate(0, -1, 0),
		EndDate:          today.AddDate(0, 5, 0),
		Status:           models.LoanActive,
		Code:             "DN-GC-11-054/0001/2026",
	}}

	loan, err := svc.Finalize(context.Background(), adminClaims(), "loan-1", FinalizeLoanRequest{Notes: "returned intact"})
	require.NoError(t, err)
	assert.Equal(t, models.LoanFinished, loan.Status)
	require.NotNil(t, loan.ReceptionDate)
	assert.Contains(t, loan.Notes, "Finished: returned intact")
	require.Len(t, repo.releaseIDs, 1)
	assert.Equal(t, "state-available", repo.releaseIDs[0])
	require.Len(t, audits.entries, 1)
	assert.Equal(t, models.AuditLoanFinalize, audits.entries[0].Action)
}

func TestLoanServiceFinalizeNonOperationalReturn(t *testing.T) {
	svc, repo, instruments, _, _ := newLoanFixture()
	today := svc.now()
	instruments.states[models.StateNonOperational] = &models.InstrumentState{ID: "state-broken", Name: models.StateNonOperational}

	repo.loans["loan-1"] = &models.LoanDetail{Loan: models.Loan{
		ID:               "loan-1",
		InstrumentID:     "ins-1",
		RepresentativeID: "rep-1",
		StartDate:        today.AddDate(0, -1, 0),
		EndDate:          today.AddDate(0, 5, 0),
		Status:           models.LoanActive,
	}}

	_, err := svc.Finalize(context.Background(), adminClaims(), "loan-1", FinalizeLoanRequest{ReturnState: "NON_OPERATIONAL"})
	require.NoError(t, err)
	require.Len(t, repo.releaseIDs, 1)
	assert.Equal(t, "state-broken", repo.releaseIDs[0])
}

func TestLoanServiceFinalizeRequiresActive(t *testing.T) {
	svc, repo, _, _, _ := newLoanFixture()

	repo.loans["loan-1"] = &models.LoanDetail{Loan: models.Loan{
		ID: "loan-1", RepresentativeID: "rep-1", Status: models.LoanFinished,
	}}

	_, err := svc.Finalize(context.Background(), adminClaims(), "loan-1", FinalizeLoanRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestLoanServiceCancel(t *testing.T) {
	svc, repo, _, _, _ := newLoanFixture()
	today := svc.now()

	repo.loans["loan-1"] = &models.LoanDetail{Loan: models.Loan{
		ID:               "loan-1",
		InstrumentID:     "ins-1",
		RepresentativeID: "rep-1",
		StartDate:        today,
		EndDate:          today.AddDate(0, 6, 0),
		Status:           models.LoanActive,
	}}

	loan, err := svc.Cancel(context.Background(), adminClaims(), "loan-1", CancelLoanRequest{Reason: "duplicate entry"})
	require.NoError(t, err)
	assert.Equal(t, models.LoanCancelled, loan.Status)
	assert.Contains(t, loan.Notes, "Cancelled: duplicate entry")
}

func TestLoanServiceRenew(t *testing.T) {
	svc, repo, _, _, _ := newLoanFixture()
	today := svc.now()

	repo.loans["loan-1"] = &models.LoanDetail{Loan: models.Loan{
		ID:               "loan-1",
		StudentID:        "student-1",
		InstrumentID:     "ins-1",
		RepresentativeID: "rep-1",
		StartDate:        today.AddDate(0, -11, 0),
		EndDate:          today.AddDate(0, 1, 0),
		Status:           models.LoanActive,
		Code:             "DN-GC-11-054/0003/2025",
	}}

	successor, err := svc.Renew(context.Background(), adminClaims(), "loan-1", RenewLoanRequest{
		EndDate: today.AddDate(1, 0, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, models.LoanActive, successor.Status)
	assert.Equal(t, "student-1", successor.StudentID)
	assert.Equal(t, "ins-1", successor.InstrumentID)

	require.Len(t, repo.closed, 1)
	assert.Equal(t, models.LoanRenewed, repo.closed[0].Status)
	assert.Equal(t, "state-assigned", repo.releaseIDs[0])
}

func TestLoanServiceGetScopesToOwner(t *testing.T) {
	svc, repo, _, _, _ := newLoanFixture()

	repo.loans["loan-1"] = &models.LoanDetail{Loan: models.Loan{
		ID: "loan-1", RepresentativeID: "rep-1", Status: models.LoanActive,
	}}

	_, err := svc.Get(context.Background(), representativeClaims("rep-1"), "loan-1")
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), representativeClaims("rep-2"), "loan-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestLoanServiceListForcesOwnFilter(t *testing.T) {
	svc, repo, _, _, _ := newLoanFixture()

	repo.loans["loan-1"] = &models.LoanDetail{Loan: models.Loan{ID: "loan-1", RepresentativeID: "rep-1", Status: models.LoanActive}}
	repo.loans["loan-2"] = &models.LoanDetail{Loan: models.Loan{ID: "loan-2", RepresentativeID: "rep-2", Status: models.LoanActive}}

	loans, _, err := svc.List(context.Background(), representativeClaims("rep-1"), models.LoanFilter{RepresentativeID: "rep-2"})
	require.NoError(t, err)
	require.Len(t, loans, 1)
	assert.Equal(t, "loan-1", loans[0].ID)
}
