package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nucleo-eljunko/comodato-api/internal/models"
	appErrors "github.com/nucleo-eljunko/comodato-api/pkg/errors"
)

type mockStudentRepo struct {
	students    map[string]*models.StudentDetail
	nationalIDs map[string]bool
	activeLoans map[string]bool
	deactivated []string
}

func newMockStudentRepo() *mockStudentRepo {
	return &mockStudentRepo{
		students:    map[string]*models.StudentDetail{},
		nationalIDs: map[string]bool{},
		activeLoans: map[string]bool{},
	}
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	out := []models.StudentDetail{}
	for _, s := range m.students {
		if filter.RepresentativeID != "" && s.RepresentativeID != filter.RepresentativeID {
			continue
		}
		out = append(out, *s)
	}
	return out, len(out), nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	student, ok := m.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return student, nil
}

func (m *mockStudentRepo) ExistsByNationalID(ctx context.Context, nationalID string, excludeID string) (bool, error) {
	return m.nationalIDs[nationalID], nil
}

func (m *mockStudentRepo) Create(ctx context.Context, student *models.Student) error {
	student.ID = fmt.Sprintf("student-%d", len(m.students)+1)
	m.students[student.ID] = &models.StudentDetail{Student: *student}
	m.nationalIDs[student.NationalID] = true
	return nil
}

func (m *mockStudentRepo) Update(ctx context.Context, student *models.Student) error {
	detail, ok := m.students[student.ID]
	if !ok {
		return sql.ErrNoRows
	}
	detail.Student = *student
	return nil
}

func (m *mockStudentRepo) Deactivate(ctx context.Context, id string) error {
	if detail, ok := m.students[id]; ok {
		detail.Status = models.StudentInactive
	}
	m.deactivated = append(m.deactivated, id)
	return nil
}

func (m *mockStudentRepo) HasActiveLoans(ctx context.Context, id string) (bool, error) {
	return m.activeLoans[id], nil
}

type mockRepByID struct {
	reps map[string]*models.Representative
}

func (m *mockRepByID) FindByID(ctx context.Context, id string) (*models.Representative, error) {
	rep, ok := m.reps[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rep, nil
}

func newStudentFixture() (*StudentService, *mockStudentRepo, *mockRepByID) {
	repo := newMockStudentRepo()
	reps := &mockRepByID{reps: map[string]*models.Representative{
		"rep-1": {ID: "rep-1", FirstName: "Maria", LastName: "Gomez"},
	}}
	svc := NewStudentService(repo, reps, nil, zap.NewNop())
	return svc, repo, reps
}

func TestStudentServiceCreate(t *testing.T) {
	svc, repo, _ := newStudentFixture()

	student, err := svc.Create(context.Background(), adminClaims(), CreateStudentRequest{
		RepresentativeID: "rep-1",
		FirstName:        "Ana",
		LastName:         "Gomez",
		NationalID:       "v30111222",
		Program:          "ORCHESTRAL",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StudentActive, student.Status)
	assert.Equal(t, "V30111222", student.NationalID)
	assert.True(t, repo.nationalIDs["V30111222"])
}

func TestStudentServiceCreateRejectsUnknownProgram(t *testing.T) {
	svc, _, _ := newStudentFixture()

	_, err := svc.Create(context.Background(), adminClaims(), CreateStudentRequest{
		RepresentativeID: "rep-1",
		FirstName:        "Ana",
		LastName:         "Gomez",
		NationalID:       "V30111222",
		Program:          "JAZZ",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceCreateRejectsDuplicateNationalID(t *testing.T) {
	svc, repo, _ := newStudentFixture()
	repo.nationalIDs["V30111222"] = true

	_, err := svc.Create(context.Background(), adminClaims(), CreateStudentRequest{
		RepresentativeID: "rep-1",
		FirstName:        "Ana",
		LastName:         "Gomez",
		NationalID:       "V30111222",
		Program:          "CHORAL",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceCreateScopedToOwnRepresentative(t *testing.T) {
	svc, _, reps := newStudentFixture()
	reps.reps["rep-2"] = &models.Representative{ID: "rep-2"}

	_, err := svc.Create(context.Background(), representativeClaims("rep-1"), CreateStudentRequest{
		RepresentativeID: "rep-2",
		FirstName:        "Ana",
		LastName:         "Gomez",
		NationalID:       "V30111222",
		Program:          "CHORAL",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceListScopesRepresentative(t *testing.T) {
	svc, repo, _ := newStudentFixture()
	repo.students["student-1"] = &models.StudentDetail{Student: models.Student{ID: "student-1", RepresentativeID: "rep-1"}}
	repo.students["student-2"] = &models.StudentDetail{Student: models.Student{ID: "student-2", RepresentativeID: "rep-2"}}

	students, _, err := svc.List(context.Background(), representativeClaims("rep-1"), models.StudentFilter{})
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "student-1", students[0].ID)
}

func TestStudentServiceGetBlocksForeignStudent(t *testing.T) {
	svc, repo, _ := newStudentFixture()
	repo.students["student-1"] = &models.StudentDetail{Student: models.Student{ID: "student-1", RepresentativeID: "rep-1"}}

	_, err := svc.Get(context.Background(), representativeClaims("rep-2"), "student-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceUpdateBlocksStatusFlipForRepresentative(t *testing.T) {
	svc, repo, _ := newStudentFixture()
	repo.students["student-1"] = &models.StudentDetail{Student: models.Student{
		ID:               "student-1",
		RepresentativeID: "rep-1",
		NationalID:       "V30111222",
		Status:           models.StudentActive,
	}}

	_, err := svc.Update(context.Background(), representativeClaims("rep-1"), "student-1", UpdateStudentRequest{
		FirstName:  "Ana",
		LastName:   "Gomez",
		NationalID: "V30111222",
		Program:    "CHORAL",
		Status:     "INACTIVE",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceDeactivate(t *testing.T) {
	svc, repo, _ := newStudentFixture()
	repo.students["student-1"] = &models.StudentDetail{Student: models.Student{
		ID: "student-1", RepresentativeID: "rep-1", Status: models.StudentActive,
	}}

	require.NoError(t, svc.Deactivate(context.Background(), representativeClaims("rep-1"), "student-1"))
	assert.Equal(t, []string{"student-1"}, repo.deactivated)
}

func TestStudentServiceDeactivateBlockedByActiveLoan(t *testing.T) {
	svc, repo, _ := newStudentFixture()
	repo.students["student-1"] = &models.StudentDetail{Student: models.Student{
		ID: "student-1", RepresentativeID: "rep-1", Status: models.StudentActive,
	}}
	repo.activeLoans["student-1"] = true

	err := svc.Deactivate(context.Background(), adminClaims(), "student-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.deactivated)
}
