package middleware

import (
	"net/http"
	"strings"

	"github.com/fini-ai/paramount/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type apiError struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
}

// BearerAuth validates an HS256 bearer token against the shared secret.
// The evaluation API runs unprotected when no secret is configured (local
// single-tenant deployments).
func BearerAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		auth := c.GetHeader("Authorization")
		raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		if !strings.HasPrefix(auth, "Bearer ") || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": apiError{
				Code:    utils.CodeUnauthorized,
				Message: "missing bearer token",
			}})
			return
		}

		tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, jwt.ErrTokenSignatureInvalid
			}
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

		if err != nil || tok == nil || !tok.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": apiError{
				Code:    utils.CodeUnauthorized,
				Message: "invalid token",
			}})
			return
		}

		c.Next()
	}
}
