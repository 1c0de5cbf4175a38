package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/Abdulhakimkamal/otpas-hu-api/internal/models"
	"github.com/Abdulhakimkamal/otpas-hu-api/internal/service"
	"github.com/Abdulhakimkamal/otpas-hu-api/pkg/response"
)

type authService interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.TokenPair, error)
	RefreshToken(ctx context.Context, req models.RefreshTokenRequest) (*models.TokenPair, error)
	Logout(ctx context.Context, actor service.Actor, req models.LogoutRequest) error
	ChangePassword(ctx context.Context, actor service.Actor, req models.ChangePasswordRequest) error
}

// AuthHandler serves the /auth endpoints.
type AuthHandler struct {
	auth authService
}

func NewAuthHandler(auth authService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Login godoc
// @Summary Sign in
// @Description Exchanges email and password for an access token and a refresh token.
// @Tags Auth
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Credentials"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var body models.LoginRequest
	if !bindJSON(c, &body) {
		return
	}
	body.IP, body.UserAgent = c.ClientIP(), c.Request.UserAgent()

	pair, err := h.auth.Login(c.Request.Context(), body)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, pair)
}

// Refresh godoc
// @Summary Rotate tokens
// @Description The presented refresh token is revoked and a fresh pair returned.
// @Tags Auth
// @Accept json
// @Produce json
// @Param payload body models.RefreshTokenRequest true "Refresh token"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var body models.RefreshTokenRequest
	if !bindJSON(c, &body) {
		return
	}
	body.IP, body.UserAgent = c.ClientIP(), c.Request.UserAgent()

	pair, err := h.auth.RefreshToken(c.Request.Context(), body)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, pair)
}

// Logout godoc
// @Summary Sign out
// @Tags Auth
// @Accept json
// @Security BearerAuth
// @Param payload body models.LogoutRequest true "Refresh token of the session to close"
// @Success 204
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var body models.LogoutRequest
	if !bindJSON(c, &body) {
		return
	}
	if err := h.auth.Logout(c.Request.Context(), actor, body); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ChangePassword godoc
// @Summary Change own password
// @Description Every open session of the caller is closed afterwards.
// @Tags Auth
// @Accept json
// @Security BearerAuth
// @Param payload body models.ChangePasswordRequest true "Old and new password"
// @Success 204
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /auth/change-password [post]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var body models.ChangePasswordRequest
	if !bindJSON(c, &body) {
		return
	}
	if err := h.auth.ChangePassword(c.Request.Context(), actor, body); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Me godoc
// @Summary Current caller
// @Description Echoes the identity carried by the access token.
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	if _, ok := actorFromContext(c); !ok {
		return
	}
	claims := claimsFromContext(c)
	response.OK(c, models.UserInfo{
		ID:           claims.UserID,
		Email:        claims.Email,
		FullName:     claims.FullName,
		Role:         claims.Role,
		DepartmentID: claims.DepartmentID,
	})
}
