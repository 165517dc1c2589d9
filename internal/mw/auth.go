package mw

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"libreserve-backend/internal/token"
)

const (
	claimsKey = "auth.claims"
	tokenKey  = "auth.token"
)

// TokenVerifier validates a bearer token, including its revocation state.
type TokenVerifier interface {
	Verify(ctx context.Context, tokenString string) (*token.Claims, error)
}

// RequireRole rejects requests without a valid, unrevoked bearer token carrying role.
func RequireRole(verifier TokenVerifier, role string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid Authorization header"})
			return
		}

		claims, err := verifier.Verify(c.Request.Context(), raw)
		if err != nil {
			logger.Warn("unauthorized access", zap.String("path", c.FullPath()), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		if claims.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
			return
		}

		c.Set(claimsKey, claims)
		c.Set(tokenKey, raw)
		c.Next()
	}
}

// Claims returns the claims RequireRole stored on the context.
func Claims(c *gin.Context) *token.Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*token.Claims)
	return claims
}

// BearerToken returns the raw token RequireRole accepted.
func BearerToken(c *gin.Context) string {
	return c.GetString(tokenKey)
}
