package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Abdulhakimkamal/otpas-hu-api/internal/models"
)

var sessionColumns = []string{"id", "user_id", "token_hash", "expires_at", "created_at", "revoked_at", "ip_address", "user_agent"}

// SessionRepository stores refresh sessions and the audit trail.
type SessionRepository struct {
	db *sqlx.DB
}

func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) CreateSession(ctx context.Context, s *models.Session) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	query, args, err := psql.Insert("user_sessions").
		Columns(sessionColumns...).
		Values(s.ID, s.UserID, s.TokenHash, s.ExpiresAt, s.CreatedAt, s.RevokedAt, s.IPAddress, s.UserAgent).
		ToSql()
	if err != nil {
		return fmt.Errorf("build create session: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// FindSession looks a session up by token hash, revoked or not.
func (r *SessionRepository) FindSession(ctx context.Context, tokenHash string) (*models.Session, error) {
	query, args, err := psql.Select(sessionColumns...).From("user_sessions").
		Where(sq.Eq{"token_hash": tokenHash}).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find session: %w", err)
	}
	var s models.Session
	if err := r.db.GetContext(ctx, &s, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	return &s, nil
}

// RevokeSession is idempotent; an already revoked session keeps its first timestamp.
func (r *SessionRepository) RevokeSession(ctx context.Context, id string, at time.Time) error {
	query, args, err := psql.Update("user_sessions").Set("revoked_at", at).
		Where(sq.Eq{"id": id, "revoked_at": nil}).ToSql()
	if err != nil {
		return fmt.Errorf("build revoke session: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// RevokeAllSessions ends every open session of a user and returns how many were closed.
func (r *SessionRepository) RevokeAllSessions(ctx context.Context, userID string, at time.Time) (int64, error) {
	query, args, err := psql.Update("user_sessions").Set("revoked_at", at).
		Where(sq.Eq{"user_id": userID, "revoked_at": nil}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build revoke sessions: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r *SessionRepository) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	query, args, err := psql.Insert("audit_logs").
		Columns("id", "user_id", "action", "resource", "resource_id", "new_values", "ip_address", "user_agent", "created_at").
		Values(entry.ID, entry.UserID, entry.Action, entry.Resource, entry.ResourceID, entry.NewValues, entry.IPAddress, entry.UserAgent, entry.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build audit log: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}
