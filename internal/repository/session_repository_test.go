package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abdulhakimkamal/otpas-hu-api/internal/models"
)

func TestSessionCreateAndRevoke(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO user_sessions (id,user_id,token_hash,expires_at,created_at,revoked_at,ip_address,user_agent)")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE user_sessions SET revoked_at = $1 WHERE id = $2 AND revoked_at IS NULL")).
		WithArgs(sqlmock.AnyArg(), "s1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	session := &models.Session{ID: "s1", UserID: "u1", TokenHash: "abc", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, repo.CreateSession(context.Background(), session))
	assert.False(t, session.CreatedAt.IsZero())
	require.NoError(t, repo.RevokeSession(context.Background(), "s1", time.Now()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionFindByHash(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM user_sessions WHERE token_hash = $1 LIMIT 1")).
		WithArgs("abc").
		WillReturnRows(sqlmock.NewRows(sessionColumns).AddRow("s1", "u1", "abc", now.Add(time.Hour), now, nil, "10.0.0.1", "curl"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM user_sessions WHERE token_hash = $1 LIMIT 1")).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	s, err := repo.FindSession(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "u1", s.UserID)
	assert.True(t, s.Usable(now))

	_, err = repo.FindSession(context.Background(), "nope")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRevokeAll(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE user_sessions SET revoked_at = $1 WHERE revoked_at IS NULL AND user_id = $2")).
		WithArgs(sqlmock.AnyArg(), "u1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.RevokeAllSessions(context.Background(), "u1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
