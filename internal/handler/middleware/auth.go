package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"expertbooking/internal/pkg/jwt"
	"expertbooking/internal/usecase/shared"

	"github.com/gin-gonic/gin"
)

const ctxHolderKey = "holder"

// TokenValidator abstracts the JWT service for the auth middleware.
type TokenValidator interface {
	ValidateToken(tokenString string) (*jwt.Claims, error)
}

type AuthMiddleware struct {
	tokenValidator TokenValidator
}

func NewAuthMiddleware(tokenValidator TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{
		tokenValidator: tokenValidator,
	}
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		var token string
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" && strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimSpace(authHeader[len("Bearer "):])
		}

		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Access token required",
			})
			c.Abort()
			return
		}

		claims, err := m.tokenValidator.ValidateToken(token)
		if err != nil {
			slog.Warn("Token validation failed in auth middleware", "error", err.Error())
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			c.Abort()
			return
		}

		c.Set(ctxHolderKey, shared.Holder{ID: claims.HolderID, Email: claims.Email})
		c.Set("jwt_claims", map[string]any{
			"holder_id": claims.HolderID.String(),
		})
		c.Next()
	}
}

func GetHolder(c *gin.Context) (shared.Holder, bool) {
	v, exists := c.Get(ctxHolderKey)
	if !exists {
		return shared.Holder{}, false
	}

	holder, ok := v.(shared.Holder)
	return holder, ok
}
