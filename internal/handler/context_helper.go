package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Abdulhakimkamal/otpas-hu-api/internal/middleware"
	"github.com/Abdulhakimkamal/otpas-hu-api/internal/models"
	"github.com/Abdulhakimkamal/otpas-hu-api/internal/service"
	appErrors "github.com/Abdulhakimkamal/otpas-hu-api/pkg/errors"
	"github.com/Abdulhakimkamal/otpas-hu-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.Claims(c)
}

// actorFromContext writes a 401 and returns false when the request is unauthenticated.
func actorFromContext(c *gin.Context) (service.Actor, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return service.Actor{}, false
	}
	return service.Actor{
		ID:   claims.UserID,
		Role: claims.Role,
		IP:   c.ClientIP(),
		UA:   c.GetHeader("User-Agent"),
	}, true
}

func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return false
	}
	return true
}

func pageParams(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		page = 1
	}
	size, err := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if err != nil {
		size = 20
	}
	return page, size
}
