package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/Abdulhakimkamal/otpas-hu-api/internal/models"
	appErrors "github.com/Abdulhakimkamal/otpas-hu-api/pkg/errors"
	"github.com/Abdulhakimkamal/otpas-hu-api/pkg/response"
)

// Self admits a caller whose id equals the :id route parameter.
const Self = "SELF"

// RBAC admits callers holding one of rules' roles, or the owner of :id when
// Self is among them. It answers 401 without claims and 403 otherwise.
func RBAC(rules ...string) gin.HandlerFunc {
	roles := make(map[models.UserRole]bool, len(rules))
	owner := false
	for _, rule := range rules {
		if rule == Self {
			owner = true
			continue
		}
		roles[models.UserRole(rule)] = true
	}

	return func(c *gin.Context) {
		claims := Claims(c)
		switch {
		case claims == nil:
			deny(c, appErrors.ErrUnauthorized)
		case roles[claims.Role]:
			c.Next()
		case owner && c.Param("id") != "" && c.Param("id") == claims.UserID:
			c.Next()
		default:
			deny(c, appErrors.Clonef(appErrors.ErrForbidden, "role %s cannot access this resource", claims.Role))
		}
	}
}

// RequireRoles is RBAC without the Self rule.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	rules := make([]string, 0, len(roles))
	for _, role := range roles {
		rules = append(rules, string(role))
	}
	return RBAC(rules...)
}

func deny(c *gin.Context, err error) {
	response.Error(c, err)
	c.Abort()
}
