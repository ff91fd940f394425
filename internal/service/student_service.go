package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/nucleo-eljunko/comodato-api/internal/models"
	"github.com/nucleo-eljunko/comodato-api/internal/validation"
	appErrors "github.com/nucleo-eljunko/comodato-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	ExistsByNationalID(ctx context.Context, nationalID string, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Deactivate(ctx context.Context, id string) error
	HasActiveLoans(ctx context.Context, id string) (bool, error)
}

type studentRepresentativeReader interface {
	FindByID(ctx context.Context, id string) (*models.Representative, error)
}

// CreateStudentRequest holds payload for registering students.
type CreateStudentRequest struct {
	RepresentativeID string     `json:"representative_id" validate:"required"`
	FirstName        string     `json:"first_name" validate:"required"`
	LastName         string     `json:"last_name" validate:"required"`
	NationalID       string     `json:"national_id" validate:"required,national_id"`
	BirthDate        *time.Time `json:"birth_date"`
	Program          string     `json:"program" validate:"required"`
}

// UpdateStudentRequest holds payload for updating students.
type UpdateStudentRequest struct {
	FirstName  string     `json:"first_name" validate:"required"`
	LastName   string     `json:"last_name" validate:"required"`
	NationalID string     `json:"national_id" validate:"required,national_id"`
	BirthDate  *time.Time `json:"birth_date"`
	Program    string     `json:"program" validate:"required"`
	Status     string     `json:"status"`
}

// StudentService handles student use-cases. Representatives operate only
// on their own students; admins on all of them.
type StudentService struct {
	repo      studentRepository
	reps      studentRepresentativeReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, reps studentRepresentativeReader, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validation.NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, reps: reps, validator: validate, logger: logger}
}

// List returns students visible to the actor with pagination metadata.
func (s *StudentService) List(ctx context.Context, claims *models.JWTClaims, filter models.StudentFilter) ([]models.StudentDetail, *models.Pagination, error) {
	scoped, ok := scopeToRepresentative(claims, filter.RepresentativeID)
	if !ok {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "no student scope for this account")
	}
	filter.RepresentativeID = scoped

	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return students, pagination, nil
}

// Get returns detailed student information when the actor may see it.
func (s *StudentService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.StudentDetail, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !ownsRepresentative(claims, student.RepresentativeID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "student belongs to another representative")
	}
	return student, nil
}

// Create registers a new student under a representative.
func (s *StudentService) Create(ctx context.Context, claims *models.JWTClaims, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	if !ownsRepresentative(claims, req.RepresentativeID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot register students for another representative")
	}

	nationalID := validation.NormalizeNationalID(req.NationalID)
	if !validation.ValidNationalID(nationalID) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "national id must match letter V, E, J, P or G followed by 5 to 9 digits")
	}
	program := models.StudentProgram(req.Program)
	if !validProgram(program) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown program")
	}

	if _, err := s.reps.FindByID(ctx, req.RepresentativeID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "representative not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load representative")
	}

	exists, err := s.repo.ExistsByNationalID(ctx, nationalID, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate national id")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "national id already registered")
	}

	student := &models.Student{
		RepresentativeID: req.RepresentativeID,
		FirstName:        validation.SanitizeText(req.FirstName),
		LastName:         validation.SanitizeText(req.LastName),
		NationalID:       nationalID,
		BirthDate:        req.BirthDate,
		Program:          program,
		Status:           models.StudentActive,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	return student, nil
}

// Update modifies a student the actor owns.
func (s *StudentService) Update(ctx context.Context, claims *models.JWTClaims, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !ownsRepresentative(claims, existing.RepresentativeID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "student belongs to another representative")
	}

	nationalID := validation.NormalizeNationalID(req.NationalID)
	if !validation.ValidNationalID(nationalID) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "national id must match letter V, E, J, P or G followed by 5 to 9 digits")
	}
	program := models.StudentProgram(req.Program)
	if !validProgram(program) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown program")
	}

	taken, err := s.repo.ExistsByNationalID(ctx, nationalID, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate national id")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "national id already registered")
	}

	student := existing.Student
	student.FirstName = validation.SanitizeText(req.FirstName)
	student.LastName = validation.SanitizeText(req.LastName)
	student.NationalID = nationalID
	student.BirthDate = req.BirthDate
	student.Program = program
	if req.Status != "" {
		status := models.StudentStatus(req.Status)
		if status != models.StudentActive && status != models.StudentInactive {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown status")
		}
		// Only admins flip status directly; representatives use Deactivate.
		if status != student.Status && !isAdmin(claims) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "status changes require an administrator")
		}
		student.Status = status
	}

	if err := s.repo.Update(ctx, &student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return &student, nil
}

// Deactivate soft-deletes a student. A student holding an active loan
// cannot be deactivated.
func (s *StudentService) Deactivate(ctx context.Context, claims *models.JWTClaims, id string) error {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !ownsRepresentative(claims, existing.RepresentativeID) {
		return appErrors.Clone(appErrors.ErrForbidden, "student belongs to another representative")
	}

	active, err := s.repo.HasActiveLoans(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check loans")
	}
	if active {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "student has an active loan")
	}

	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate student")
	}
	return nil
}

func validProgram(p models.StudentProgram) bool {
	switch p {
	case models.ProgramInitiation, models.ProgramChoral, models.ProgramOrchestral, models.ProgramFolk, models.ProgramOther:
		return true
	default:
		return false
	}
}
