package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nucleo-eljunko/comodato-api/internal/models"
	appErrors "github.com/nucleo-eljunko/comodato-api/pkg/errors"
)

type stubLoanLister struct {
	loans   []models.LoanDetail
	filters []models.LoanFilter
}

func (s *stubLoanLister) List(ctx context.Context, filter models.LoanFilter, today time.Time) ([]models.LoanDetail, int, error) {
	s.filters = append(s.filters, filter)
	return s.loans, len(s.loans), nil
}

type stubInstrumentLister struct {
	instruments []models.InstrumentDetail
}

func (s *stubInstrumentLister) List(ctx context.Context, filter models.InstrumentFilter) ([]models.InstrumentDetail, int, error) {
	return s.instruments, len(s.instruments), nil
}

type stubStudentLister struct {
	students []models.StudentDetail
}

func (s *stubStudentLister) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	return s.students, len(s.students), nil
}

type stubRepresentativeLister struct {
	reps []models.Representative
}

func (s *stubRepresentativeLister) List(ctx context.Context, filter models.RepresentativeFilter) ([]models.Representative, int, error) {
	return s.reps, len(s.reps), nil
}

func newExportFixture() (*ExportService, *stubLoanLister, *mockAuditWriter) {
	loans := &stubLoanLister{loans: []models.LoanDetail{{
		Loan: models.Loan{
			Code:      "DN-GC-11-054/0001/2026",
			StartDate: time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2026, 7, 10, 0, 0, 0, 0, time.UTC),
			Status:    models.LoanActive,
		},
		StudentName:     "Ana Gomez",
		InventorySerial: "1234567890123456",
	}}}
	instruments := &stubInstrumentLister{instruments: []models.InstrumentDetail{{
		Instrument: models.Instrument{Description: "Violin", InventorySerial: "1234567890123456"},
		StateName:  models.StateAvailable,
	}}}
	students := &stubStudentLister{students: []models.StudentDetail{{
		Student: models.Student{FirstName: "Ana", LastName: "Gomez", NationalID: "V30111222", Program: models.ProgramChoral, Status: models.StudentActive},
	}}}
	reps := &stubRepresentativeLister{reps: []models.Representative{{
		FirstName: "Maria", LastName: "Gomez", NationalID: "V12345678",
	}}}
	audits := &mockAuditWriter{}
	svc := NewExportService(loans, instruments, students, reps, audits, nil, zap.NewNop())
	return svc, loans, audits
}

func TestExportServiceLoansCSV(t *testing.T) {
	svc, _, audits := newExportFixture()

	file, err := svc.Loans(context.Background(), adminClaims(), models.LoanFilter{}, FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.True(t, strings.HasSuffix(file.Name, ".csv"))

	body := string(file.Bytes)
	assert.Contains(t, body, "DN-GC-11-054/0001/2026")
	assert.Contains(t, body, "Ana Gomez")

	require.Len(t, audits.entries, 1)
	assert.Equal(t, models.AuditExport, audits.entries[0].Action)
	assert.Equal(t, "loans", audits.entries[0].EntityType)
}

func TestExportServiceLoansScopedForRepresentative(t *testing.T) {
	svc, loans, _ := newExportFixture()

	_, err := svc.Loans(context.Background(), representativeClaims("rep-1"), models.LoanFilter{RepresentativeID: "rep-2"}, FormatCSV)
	require.NoError(t, err)
	require.Len(t, loans.filters, 1)
	assert.Equal(t, "rep-1", loans.filters[0].RepresentativeID)
}

func TestExportServiceRejectsUnknownFormat(t *testing.T) {
	svc, _, _ := newExportFixture()

	_, err := svc.Instruments(context.Background(), adminClaims(), models.InstrumentFilter{}, "docx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportServiceStudentsPDF(t *testing.T) {
	svc, _, _ := newExportFixture()

	file, err := svc.Students(context.Background(), adminClaims(), models.StudentFilter{}, FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.NotEmpty(t, file.Bytes)
}

func TestExportServiceRepresentativesXLSX(t *testing.T) {
	svc, _, _ := newExportFixture()

	file, err := svc.Representatives(context.Background(), adminClaims(), models.RepresentativeFilter{}, FormatXLSX)
	require.NoError(t, err)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", file.ContentType)
	assert.NotEmpty(t, file.Bytes)
}
