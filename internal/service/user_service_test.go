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

type mockUserRepo struct {
	users   map[string]*models.User
	deleted []string
}

func (m *mockUserRepo) List(_ context.Context, _ models.UserFilter) ([]models.User, int, error) {
	out := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, len(out), nil
}

func (m *mockUserRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Create(_ context.Context, user *models.User) error {
	user.ID = "new-id"
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) Update(_ context.Context, user *models.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) Delete(_ context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

type mockDepartments struct {
	items map[string]*models.Department
}

func (m *mockDepartments) FindByID(_ context.Context, id string) (*models.Department, error) {
	if d, ok := m.items[id]; ok {
		return d, nil
	}
	return nil, sql.ErrNoRows
}

const deptID = "6f1c1a8e-7c61-4a55-9d2f-0d7a3f2b9a10"

func newUserFixture() (*UserService, *mockUserRepo, *mockSessions) {
	repo := &mockUserRepo{users: map[string]*models.User{
		"admin": {ID: "admin", Email: "admin@hu.edu.et", Role: models.RoleAdmin, Active: true},
	}}
	audit := newMockSessions()
	depts := &mockDepartments{items: map[string]*models.Department{deptID: {ID: deptID, Code: "CS"}}}
	return NewUserService(repo, audit, depts, validator.New(), zap.NewNop()), repo, audit
}

func TestUserCreate(t *testing.T) {
	svc, repo, audit := newUserFixture()
	dept := deptID

	user, err := svc.Create(context.Background(), models.CreateUserRequest{
		Email: "inst@hu.edu.et", Password: "password1", FullName: "Instructor", Role: models.RoleInstructor, DepartmentID: &dept,
	}, RequestMeta{ActorID: "admin"})
	require.NoError(t, err)
	assert.Equal(t, "new-id", user.ID)
	assert.True(t, user.Active)
	assert.NotEqual(t, "password1", repo.users["new-id"].PasswordHash)
	require.Len(t, audit.audits, 1)
	assert.Equal(t, models.AuditActionUserCreate, audit.audits[0].Action)
}

func TestUserCreateRejections(t *testing.T) {
	svc, _, _ := newUserFixture()
	missing := "0b7e3c9a-1111-4a55-9d2f-0d7a3f2b9a10"

	_, err := svc.Create(context.Background(), models.CreateUserRequest{Email: "admin@hu.edu.et", Password: "password1", FullName: "Dup", Role: models.RoleStudent}, RequestMeta{})
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), models.CreateUserRequest{Email: "x@hu.edu.et", Password: "password1", FullName: "X", Role: "TEACHER"}, RequestMeta{})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), models.CreateUserRequest{Email: "y@hu.edu.et", Password: "password1", FullName: "Y", Role: models.RoleStudent, DepartmentID: &missing}, RequestMeta{})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserUpdatePartial(t *testing.T) {
	svc, repo, _ := newUserFixture()
	name := "Head"
	role := models.RoleDepartmentHead

	user, err := svc.Update(context.Background(), "admin", models.UpdateUserRequest{FullName: &name, Role: &role}, RequestMeta{ActorID: "admin"})
	require.NoError(t, err)
	assert.Equal(t, "Head", repo.users["admin"].FullName)
	assert.Equal(t, models.RoleDepartmentHead, user.Role)
	assert.Equal(t, "admin@hu.edu.et", user.Email)
}

func TestUserDelete(t *testing.T) {
	svc, repo, _ := newUserFixture()

	err := svc.Delete(context.Background(), "admin", RequestMeta{ActorID: "admin"})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	err = svc.Delete(context.Background(), "ghost", RequestMeta{ActorID: "admin"})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	repo.users["s1"] = &models.User{ID: "s1", Role: models.RoleStudent, Active: true}
	require.NoError(t, svc.Delete(context.Background(), "s1", RequestMeta{ActorID: "admin"}))
	assert.Equal(t, []string{"s1"}, repo.deleted)
}

func TestUserListPagination(t *testing.T) {
	svc, _, _ := newUserFixture()
	users, page, err := svc.List(context.Background(), models.UserFilter{Page: 0, PageSize: 500})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PageSize)
	assert.Equal(t, 1, page.TotalCount)
}
