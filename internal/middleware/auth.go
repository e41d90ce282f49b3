package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fitlog-go/internal/auth"
	"fitlog-go/pkg/types"
)

// RequireKey rejects requests that do not present one of keys. Empty keys
// leave the group open.
func RequireKey(keys ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !auth.Allowed(auth.CallerKey(c.Request), keys...) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, types.ErrorBody{Error: "unauthorized"})
			return
		}
		c.Next()
	}
}
