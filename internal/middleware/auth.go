package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"propertybook/internal/pkg/jwt"
	"propertybook/internal/pkg/response"
)

// JWTAuth validates the bearer token and stores actor_id and role in the
// context. The websocket feed cannot set headers, so ?token= is accepted too.
func JWTAuth(jwtService *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			header := c.GetHeader("Authorization")
			if header == "" {
				response.CustomError(c, http.StatusUnauthorized, "AUTH_HEADER_MISSING", "Authorization header is required")
				return
			}
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				response.CustomError(c, http.StatusUnauthorized, "INVALID_AUTH_FORMAT", "Authorization header must be 'Bearer <token>'")
				return
			}
			token = strings.TrimSpace(parts[1])
		}

		claims, err := jwtService.ValidateToken(token)
		if err != nil {
			response.CustomError(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token")
			return
		}

		c.Set("actor_id", claims.ActorID)
		c.Set("role", claims.Role)
		c.Next()
	}
}
