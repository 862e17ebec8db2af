package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS allows every origin outside production. In production only the listed
// origins are allowed, and an empty list denies all cross-origin requests.
func CORS(production bool, allowedOrigins []string) gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	if production {
		cfg.AllowOrigins = allowedOrigins
		if len(allowedOrigins) == 0 {
			cfg.AllowOriginFunc = func(string) bool { return false }
		}
	} else {
		cfg.AllowAllOrigins = true
	}
	cfg.AddAllowHeaders("Authorization", RequestIDHeader)
	cfg.AddExposeHeaders(RequestIDHeader, "Retry-After", "Content-Disposition")
	cfg.MaxAge = 12 * time.Hour
	return cors.New(cfg)
}
