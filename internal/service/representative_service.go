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

type representativeRepository interface {
	List(ctx context.Context, filter models.RepresentativeFilter) ([]models.Representative, int, error)
	FindByID(ctx context.Context, id string) (*models.Representative, error)
	ExistsByNationalID(ctx context.Context, nationalID string, excludeID string) (bool, error)
	Update(ctx context.Context, rep *models.Representative) error
	Stats(ctx context.Context, id string, today time.Time) (*models.RepresentativeStats, error)
}

// UpdateRepresentativeRequest holds payload for updating a profile.
type UpdateRepresentativeRequest struct {
	FirstName  string `json:"first_name" validate:"required"`
	LastName   string `json:"last_name" validate:"required"`
	NationalID string `json:"national_id" validate:"required,national_id"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
}

// RepresentativeService handles representative profile use-cases.
type RepresentativeService struct {
	repo      representativeRepository
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewRepresentativeService constructs the representative service.
func NewRepresentativeService(repo representativeRepository, validate *validator.Validate, logger *zap.Logger) *RepresentativeService {
	if validate == nil {
		validate = validation.NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RepresentativeService{repo: repo, validator: validate, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// List returns representatives with pagination metadata. Admin only,
// enforced at the route.
func (s *RepresentativeService) List(ctx context.Context, filter models.RepresentativeFilter) ([]models.Representative, *models.Pagination, error) {
	reps, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list representatives")
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
	return reps, pagination, nil
}

// Get returns one representative when the actor may see it.
func (s *RepresentativeService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.Representative, error) {
	if !ownsRepresentative(claims, id) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot access another representative")
	}
	rep, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "representative not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load representative")
	}
	return rep, nil
}

// Update modifies a representative profile.
func (s *RepresentativeService) Update(ctx context.Context, claims *models.JWTClaims, id string, req UpdateRepresentativeRequest) (*models.Representative, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid representative payload")
	}
	if !ownsRepresentative(claims, id) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot modify another representative")
	}

	rep, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "representative not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load representative")
	}

	nationalID := validation.NormalizeNationalID(req.NationalID)
	if !validation.ValidNationalID(nationalID) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "national id must match letter V, E, J, P or G followed by 5 to 9 digits")
	}

	taken, err := s.repo.ExistsByNationalID(ctx, nationalID, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate national id")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "national id already registered")
	}

	rep.FirstName = validation.SanitizeText(req.FirstName)
	rep.LastName = validation.SanitizeText(req.LastName)
	rep.NationalID = nationalID
	rep.Phone = validation.SanitizeText(req.Phone)
	rep.Address = validation.SanitizeText(req.Address)

	if err := s.repo.Update(ctx, rep); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update representative")
	}
	return rep, nil
}

// Stats aggregates the representative's student and loan counters.
func (s *RepresentativeService) Stats(ctx context.Context, claims *models.JWTClaims, id string) (*models.RepresentativeStats, error) {
	if !ownsRepresentative(claims, id) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot access another representative")
	}
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "representative not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load representative")
	}

	stats, err := s.repo.Stats(ctx, id, s.now())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate stats")
	}
	return stats, nil
}
