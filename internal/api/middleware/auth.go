// internal/api/middleware/auth.go
package middleware

import (
	"net/http"
	"strings"

	"das-service/internal/api/responses"
	"das-service/internal/core/auth"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// AdminCookie carries the admin token set by the login endpoint.
	AdminCookie = "das_admin"
	claimsKey   = "claims"
)

// RequireAdmin accepts a token from the admin cookie or an
// "Authorization: Bearer" header and rejects callers without the admin role.
func RequireAdmin(svc auth.Service, logger *zap.Logger) gin.HandlerFunc {
	respond := responses.New(logger)
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token, _ = c.Cookie(AdminCookie)
		}
		if token == "" {
			respond.Error(c, http.StatusUnauthorized, "Autenticação necessária")
			return
		}

		claims, err := svc.Verify(token)
		if err != nil {
			respond.Error(c, http.StatusUnauthorized, "Token inválido ou expirado")
			return
		}
		if !claims.HasRole(auth.RoleAdmin) {
			respond.Error(c, http.StatusForbidden, "Acesso restrito a administradores")
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// ClaimsFrom returns the claims stored by RequireAdmin, if any.
func ClaimsFrom(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
