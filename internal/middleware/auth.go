package middleware

import (
	"net/http"
	"strings"

	"pharmapos/internal/apierror"
	"pharmapos/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	ClaimsKey = "claims"
	UserIDKey = "user_id"
)

// JWTAuth validates the Bearer access token on every protected route and
// stores its claims and the numeric user id in the context.
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.WithKind(string(service.KindUnauthorized), "Authentication required"))
			return
		}

		claims, err := service.ParseToken(secret, strings.TrimPrefix(header, "Bearer "))
		if err != nil || claims.Type != service.TokenAccess {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.WithKind(string(service.KindUnauthorized), "Invalid or expired token"))
			return
		}
		uid, err := claims.UserID()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.WithKind(string(service.KindUnauthorized), "Invalid or expired token"))
			return
		}

		c.Set(ClaimsKey, claims)
		c.Set(UserIDKey, uid)
		c.Next()
	}
}

// RequireRole rejects requests whose JWT role is not in the allowed list.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil || !allowed[claims.Role] {
			c.AbortWithStatusJSON(http.StatusForbidden, apierror.New("Insufficient permissions"))
			return
		}
		c.Next()
	}
}

// GetClaims returns the typed claims set by JWTAuth, or nil on public routes.
func GetClaims(c *gin.Context) *service.Claims {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*service.Claims)
	return claims
}

// ActorID returns the authenticated user id, or nil when there is none.
func ActorID(c *gin.Context) *uint {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return nil
	}
	id, ok := v.(uint)
	if !ok {
		return nil
	}
	return &id
}
