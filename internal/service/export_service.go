package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nucleo-eljunko/comodato-api/internal/models"
	appErrors "github.com/nucleo-eljunko/comodato-api/pkg/errors"
	"github.com/nucleo-eljunko/comodato-api/pkg/export"
)

// Export formats and entities accepted by the report endpoints.
const (
	FormatCSV  = "csv"
	FormatPDF  = "pdf"
	FormatXLSX = "xlsx"
)

const exportPageSize = 10000

// ExportFile is a rendered report ready to stream to the client.
type ExportFile struct {
	Name        string
	ContentType string
	Bytes       []byte
}

type exportLoanLister interface {
	List(ctx context.Context, filter models.LoanFilter, today time.Time) ([]models.LoanDetail, int, error)
}

type exportInstrumentLister interface {
	List(ctx context.Context, filter models.InstrumentFilter) ([]models.InstrumentDetail, int, error)
}

type exportStudentLister interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error)
}

type exportRepresentativeLister interface {
	List(ctx context.Context, filter models.RepresentativeFilter) ([]models.Representative, int, error)
}

// ExportService renders entity listings as CSV, PDF or XLSX reports.
type ExportService struct {
	loans           exportLoanLister
	instruments     exportInstrumentLister
	students        exportStudentLister
	representatives exportRepresentativeLister
	audits          auditWriter
	metrics         *MetricsService
	csv             *export.CSVExporter
	pdf             *export.PDFExporter
	xlsx            *export.XLSXExporter
	logger          *zap.Logger
	now             func() time.Time
}

// NewExportService constructs the export service.
func NewExportService(loans exportLoanLister, instruments exportInstrumentLister, students exportStudentLister, representatives exportRepresentativeLister, audits auditWriter, metrics *MetricsService, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		loans:           loans,
		instruments:     instruments,
		students:        students,
		representatives: representatives,
		audits:          audits,
		metrics:         metrics,
		csv:             export.NewCSVExporter(),
		pdf:             export.NewPDFExporter(),
		xlsx:            export.NewXLSXExporter(),
		logger:          logger,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// Loans renders the loan report, optionally narrowed by the filter.
func (s *ExportService) Loans(ctx context.Context, claims *models.JWTClaims, filter models.LoanFilter, format string) (*ExportFile, error) {
	scoped, ok := scopeToRepresentative(claims, filter.RepresentativeID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you cannot export loans")
	}
	filter.RepresentativeID = scoped
	filter.Page = 1
	filter.PageSize = exportPageSize

	loans, _, err := s.loans.List(ctx, filter, s.now())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to collect loans")
	}

	data := export.Dataset{
		Headers: []string{"Code", "Student", "National ID", "Representative", "Instrument", "Serial", "Start", "End", "Status", "Days Left", "Overdue"},
	}
	for _, l := range loans {
		data.Rows = append(data.Rows, map[string]string{
			"Code":           l.Code,
			"Student":        l.StudentName,
			"National ID":    l.StudentNationalID,
			"Representative": l.RepresentativeName,
			"Instrument":     l.InstrumentDesc,
			"Serial":         l.InventorySerial,
			"Start":          l.StartDate.Format("2006-01-02"),
			"End":            l.EndDate.Format("2006-01-02"),
			"Status":         string(l.Status),
			"Days Left":      fmt.Sprintf("%d", l.DaysLeft),
			"Overdue":        boolLabel(l.Overdue),
		})
	}
	return s.render(ctx, claims, "loans", "Loan Report", data, format)
}

// Instruments renders the inventory report.
func (s *ExportService) Instruments(ctx context.Context, claims *models.JWTClaims, filter models.InstrumentFilter, format string) (*ExportFile, error) {
	filter.Page = 1
	filter.PageSize = exportPageSize
	instruments, _, err := s.instruments.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to collect instruments")
	}

	data := export.Dataset{
		Headers: []string{"Inventory Serial", "Description", "Brand", "Model", "Measure", "Color", "State", "Acquired"},
	}
	for _, i := range instruments {
		measure := ""
		if i.MeasureName != nil {
			measure = *i.MeasureName
		}
		acquired := ""
		if i.AcquiredOn != nil {
			acquired = i.AcquiredOn.Format("2006-01-02")
		}
		data.Rows = append(data.Rows, map[string]string{
			"Inventory Serial": i.InventorySerial,
			"Description":      i.Description,
			"Brand":            i.Brand,
			"Model":            i.Model,
			"Measure":          measure,
			"Color":            i.Color,
			"State":            string(i.StateName),
			"Acquired":         acquired,
		})
	}
	return s.render(ctx, claims, "instruments", "Inventory Report", data, format)
}

// Students renders the student roster, scoped to the caller.
func (s *ExportService) Students(ctx context.Context, claims *models.JWTClaims, filter models.StudentFilter, format string) (*ExportFile, error) {
	scoped, ok := scopeToRepresentative(claims, filter.RepresentativeID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you cannot export students")
	}
	filter.RepresentativeID = scoped
	filter.Page = 1
	filter.PageSize = exportPageSize

	students, _, err := s.students.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to collect students")
	}

	today := s.now()
	data := export.Dataset{
		Headers: []string{"Name", "National ID", "Age", "Program", "Status", "Representative"},
	}
	for _, st := range students {
		age := ""
		if years := st.Age(today); years >= 0 {
			age = fmt.Sprintf("%d", years)
		}
		rep := ""
		if st.RepresentativeName != nil {
			rep = *st.RepresentativeName
		}
		data.Rows = append(data.Rows, map[string]string{
			"Name":           st.FullName(),
			"National ID":    st.NationalID,
			"Age":            age,
			"Program":        string(st.Program),
			"Status":         string(st.Status),
			"Representative": rep,
		})
	}
	return s.render(ctx, claims, "students", "Student Roster", data, format)
}

// Representatives renders the representative directory.
func (s *ExportService) Representatives(ctx context.Context, claims *models.JWTClaims, filter models.RepresentativeFilter, format string) (*ExportFile, error) {
	filter.Page = 1
	filter.PageSize = exportPageSize
	reps, _, err := s.representatives.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to collect representatives")
	}

	data := export.Dataset{
		Headers: []string{"Name", "National ID", "Phone", "Address"},
	}
	for _, r := range reps {
		data.Rows = append(data.Rows, map[string]string{
			"Name":        r.FullName(),
			"National ID": r.NationalID,
			"Phone":       r.Phone,
			"Address":     r.Address,
		})
	}
	return s.render(ctx, claims, "representatives", "Representative Directory", data, format)
}

func (s *ExportService) render(ctx context.Context, claims *models.JWTClaims, entity, title string, data export.Dataset, format string) (*ExportFile, error) {
	stamp := s.now().Format("20060102-150405")
	file := &ExportFile{Name: fmt.Sprintf("%s-%s.%s", entity, stamp, format)}

	var (
		body []byte
		err  error
	)
	switch format {
	case FormatCSV:
		file.ContentType = "text/csv"
		body, err = s.csv.Render(data)
	case FormatPDF:
		file.ContentType = "application/pdf"
		body, err = s.pdf.Render(data, title)
	case FormatXLSX:
		file.ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		body, err = s.xlsx.Render(data, title)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv, pdf or xlsx")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	file.Bytes = body

	if s.metrics != nil {
		s.metrics.RecordExport(entity, format)
	}
	if s.audits != nil {
		var userID *string
		if claims != nil {
			userID = &claims.UserID
		}
		if auditErr := s.audits.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     userID,
			Action:     models.AuditExport,
			EntityType: entity,
			Detail:     fmt.Sprintf("%s export rendered as %s", entity, format),
		}); auditErr != nil {
			s.logger.Warn("audit write failed", zap.Error(auditErr))
		}
	}
	return file, nil
}

func boolLabel(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
