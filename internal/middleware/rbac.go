package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kingsley805-tech/edumanageschools-sub001/internal/model"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/response"
)

// RequirePermission checks that the admin JWT carries the permission.
func RequirePermission(perm model.Permission) gin.HandlerFunc {
	return RequireAnyPermission(perm)
}

// RequireAnyPermission checks that the admin JWT carries at least one of
// the permissions.
func RequireAnyPermission(perms ...model.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		for _, p := range perms {
			if claims.HasPermission(p) {
				c.Next()
				return
			}
		}

		response.AbortFail(c, http.StatusForbidden, response.ErrPermissionDenied)
	}
}
