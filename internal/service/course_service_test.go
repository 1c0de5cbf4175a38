package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Abdulhakimkamal/otpas-hu-api/internal/models"
	appErrors "github.com/Abdulhakimkamal/otpas-hu-api/pkg/errors"
)

type mockCourseRepo struct {
	courses map[string]*models.Course
}

func (m *mockCourseRepo) List(_ context.Context, _ models.CourseFilter) ([]models.Course, int, error) {
	out := []models.Course{}
	for _, c := range m.courses {
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (m *mockCourseRepo) FindByID(_ context.Context, id string) (*models.Course, error) {
	if c, ok := m.courses[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseRepo) ExistsByCode(_ context.Context, code, excludeID string) (bool, error) {
	for id, c := range m.courses {
		if c.Code == code && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockCourseRepo) Create(_ context.Context, c *models.Course) error {
	c.ID = "course-" + c.Code
	m.courses[c.ID] = c
	return nil
}

func (m *mockCourseRepo) Update(_ context.Context, c *models.Course) error {
	m.courses[c.ID] = c
	return nil
}

func (m *mockCourseRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.courses[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.courses, id)
	return nil
}

const instructorID = "9a0e6a1c-2b3d-4e5f-8a9b-0c1d2e3f4a5b"

func newCourseFixture() (*CourseService, *mockCourseRepo) {
	repo := &mockCourseRepo{courses: map[string]*models.Course{}}
	depts := &mockDepartments{items: map[string]*models.Department{deptID: {ID: deptID}}}
	users := newMockAuthUsers(
		&models.User{ID: instructorID, Role: models.RoleInstructor, Active: true},
	)
	return NewCourseService(repo, depts, users, validator.New(), zap.NewNop()), repo
}

func TestCourseCreateNormalisesCode(t *testing.T) {
	svc, repo := newCourseFixture()
	inst := instructorID

	c, err := svc.Create(context.Background(), models.CourseRequest{
		Code: " cs101 ", Title: "Intro", CreditHours: 3, DepartmentID: deptID, InstructorID: &inst,
	})
	require.NoError(t, err)
	assert.Equal(t, "CS101", c.Code)
	assert.Contains(t, repo.courses, "course-CS101")

	_, err = svc.Create(context.Background(), models.CourseRequest{Code: "CS101", Title: "Again", CreditHours: 3, DepartmentID: deptID})
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestCourseUpdateKeepsOwnCode(t *testing.T) {
	svc, repo := newCourseFixture()
	repo.courses["c1"] = &models.Course{ID: "c1", Code: "CS101", DepartmentID: deptID}

	c, err := svc.Update(context.Background(), "c1", models.CourseRequest{Code: "CS101", Title: "Renamed", CreditHours: 4, DepartmentID: deptID})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", c.Title)
	assert.Equal(t, 4, repo.courses["c1"].CreditHours)
}

func TestCourseRejectsUnknownReferences(t *testing.T) {
	svc, _ := newCourseFixture()
	ghost := "11111111-2222-4333-8444-555555555555"

	_, err := svc.Create(context.Background(), models.CourseRequest{Code: "X1", Title: "X", CreditHours: 3, DepartmentID: ghost})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), models.CourseRequest{Code: "X2", Title: "X", CreditHours: 3, DepartmentID: deptID, InstructorID: &ghost})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCourseDeleteMissing(t *testing.T) {
	svc, _ := newCourseFixture()
	err := svc.Delete(context.Background(), "nope")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
