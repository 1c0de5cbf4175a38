package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Abdulhakimkamal/otpas-hu-api/internal/models"
	appErrors "github.com/Abdulhakimkamal/otpas-hu-api/pkg/errors"
)

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
	UpdatePassword(ctx context.Context, id, hash string, ts time.Time) error
}

type sessionRepository interface {
	CreateSession(ctx context.Context, s *models.Session) error
	FindSession(ctx context.Context, tokenHash string) (*models.Session, error)
	RevokeSession(ctx context.Context, id string, at time.Time) error
	RevokeAllSessions(ctx context.Context, userID string, at time.Time) (int64, error)
	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
}

// AuthConfig defines token lifetimes and signing parameters.
type AuthConfig struct {
	AccessTokenSecret  string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	Issuer             string
	// SingleSession closes a user's other sessions on every login.
	SingleSession bool
}

// AuthService issues and validates credentials.
type AuthService struct {
	users     authUserRepository
	sessions  sessionRepository
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
	now       func() time.Time
}

func NewAuthService(users authUserRepository, sessions sessionRepository, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.AccessTokenExpiry <= 0 {
		config.AccessTokenExpiry = 15 * time.Minute
	}
	if config.RefreshTokenExpiry <= 0 {
		config.RefreshTokenExpiry = 7 * 24 * time.Hour
	}
	return &AuthService{
		users:     users,
		sessions:  sessions,
		validator: validate,
		logger:    logger,
		config:    config,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Login checks the password and opens a new session.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.TokenPair, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid login payload")
	}
	meta := RequestMeta{IP: req.IP, UserAgent: req.UserAgent}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// compare against a throwaway hash so unknown emails cost the same as wrong passwords
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(req.Password))
			return nil, appErrors.ErrInvalidCredentials
		}
		return nil, appErrors.Internal(err, "failed to fetch user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		meta.ActorID = user.ID
		writeAudit(ctx, s.sessions, s.logger, meta, "auth", models.AuditActionLoginFailed, user.ID, nil)
		return nil, appErrors.ErrInvalidCredentials
	}
	if !user.Active {
		return nil, appErrors.ErrInactiveAccount
	}
	meta.ActorID = user.ID

	now := s.now()
	if s.config.SingleSession {
		closed, err := s.sessions.RevokeAllSessions(ctx, user.ID, now)
		if err != nil {
			s.logger.Warn("revoke previous sessions failed", zap.String("user_id", user.ID), zap.Error(err))
		} else if closed > 0 {
			s.logger.Info("previous sessions closed", zap.String("user_id", user.ID), zap.Int64("count", closed))
		}
	}

	pair, err := s.open(ctx, user, meta, now)
	if err != nil {
		return nil, err
	}
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("update last login failed", zap.String("user_id", user.ID), zap.Error(err))
	}
	info := userInfo(user)
	pair.User = &info
	writeAudit(ctx, s.sessions, s.logger, meta, "auth", models.AuditActionLogin, user.ID, nil)
	return pair, nil
}

// RefreshToken rotates a session: the presented token is revoked and a new pair issued.
func (s *AuthService) RefreshToken(ctx context.Context, req models.RefreshTokenRequest) (*models.TokenPair, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid refresh payload")
	}
	now := s.now()
	session, err := s.lookup(ctx, req.RefreshToken)
	if err != nil {
		return nil, err
	}
	if !session.Usable(now) {
		if session.RevokedAt != nil {
			s.logger.Warn("revoked refresh token presented", zap.String("user_id", session.UserID), zap.String("session_id", session.ID))
		}
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "refresh token is expired or revoked")
	}
	user, err := s.users.FindByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "user no longer exists")
		}
		return nil, appErrors.Internal(err, "failed to load user")
	}
	if !user.Active {
		return nil, appErrors.ErrInactiveAccount
	}
	if err := s.sessions.RevokeSession(ctx, session.ID, now); err != nil {
		return nil, appErrors.Internal(err, "failed to revoke session")
	}
	return s.open(ctx, user, RequestMeta{ActorID: user.ID, IP: req.IP, UserAgent: req.UserAgent}, now)
}

// Logout revokes one of the caller's sessions.
func (s *AuthService) Logout(ctx context.Context, actor Actor, req models.LogoutRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Validation(err, "invalid logout payload")
	}
	session, err := s.lookup(ctx, req.RefreshToken)
	if err != nil {
		return err
	}
	if session.UserID != actor.ID {
		return appErrors.Clone(appErrors.ErrForbidden, "session belongs to another user")
	}
	if err := s.sessions.RevokeSession(ctx, session.ID, s.now()); err != nil {
		return appErrors.Internal(err, "failed to revoke session")
	}
	writeAudit(ctx, s.sessions, s.logger, actor.Meta(), "auth", models.AuditActionLogout, actor.ID, map[string]string{"session_id": session.ID})
	return nil
}

// ChangePassword replaces the password and ends every open session.
func (s *AuthService) ChangePassword(ctx context.Context, actor Actor, req models.ChangePasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Validation(err, "invalid change password payload")
	}
	user, err := s.users.FindByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Internal(err, "failed to load user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)); err != nil {
		return appErrors.Clone(appErrors.ErrForbidden, "old password does not match")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Internal(err, "failed to hash password")
	}
	now := s.now()
	if err := s.users.UpdatePassword(ctx, user.ID, string(hash), now); err != nil {
		return appErrors.Internal(err, "failed to update password")
	}
	if _, err := s.sessions.RevokeAllSessions(ctx, user.ID, now); err != nil {
		s.logger.Warn("revoke sessions after password change failed", zap.String("user_id", user.ID), zap.Error(err))
	}
	writeAudit(ctx, s.sessions, s.logger, actor.Meta(), "auth", models.AuditActionPasswordChange, user.ID, nil)
	return nil
}

// ValidateToken parses an HS256 access token and returns its claims.
func (s *AuthService) ValidateToken(raw string) (*models.JWTClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}
	token, err := jwt.ParseWithClaims(raw, &models.JWTClaims{}, func(*jwt.Token) (interface{}, error) {
		return []byte(s.config.AccessTokenSecret), nil
	}, opts...)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}
	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}

func (s *AuthService) lookup(ctx context.Context, raw string) (*models.Session, error) {
	session, err := s.sessions.FindSession(ctx, hashToken(raw))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "refresh token not recognised")
		}
		return nil, appErrors.Internal(err, "failed to load session")
	}
	return session, nil
}

func (s *AuthService) open(ctx context.Context, user *models.User, meta RequestMeta, now time.Time) (*models.TokenPair, error) {
	access, err := s.signAccessToken(user, now)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to create access token")
	}
	raw, err := randomToken()
	if err != nil {
		return nil, appErrors.Internal(err, "failed to create refresh token")
	}
	session := &models.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: hashToken(raw),
		ExpiresAt: now.Add(s.config.RefreshTokenExpiry),
		CreatedAt: now,
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, appErrors.Internal(err, "failed to persist session")
	}
	return &models.TokenPair{
		AccessToken:  access,
		RefreshToken: raw,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.config.AccessTokenExpiry.Seconds()),
		IssuedAt:     now,
	}, nil
}

func (s *AuthService) signAccessToken(user *models.User, now time.Time) (string, error) {
	claims := &models.JWTClaims{
		UserID:       user.ID,
		Role:         user.Role,
		Email:        user.Email,
		FullName:     user.FullName,
		DepartmentID: user.DepartmentID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.AccessTokenExpiry)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.AccessTokenSecret))
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("otpas-hu"), bcrypt.DefaultCost)

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func userInfo(u *models.User) models.UserInfo {
	return models.UserInfo{ID: u.ID, Email: u.Email, FullName: u.FullName, Role: u.Role, DepartmentID: u.DepartmentID}
}
