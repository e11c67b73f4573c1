package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aulafit/checkin-api/internal/service"
	appErrors "github.com/aulafit/checkin-api/pkg/errors"
	"github.com/aulafit/checkin-api/pkg/response"
)

// ContextUserKey is the gin context key storing JWT claims.
const ContextUserKey = "currentUser"

// JWT protects routes by requiring a valid access token, taken from the
// Authorization header or, for browser clients, the auth cookie.
func JWT(authService *service.AuthService, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" && cookieName != "" {
			if cookieValue, err := c.Cookie(cookieName); err == nil {
				token = cookieValue
			}
		}
		if token == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		claims, err := authService.ValidateToken(token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, claims)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
