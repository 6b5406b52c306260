package api

import (
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/educatorstribe/tribenews/internal/auth"
)

const roleKey = "role"

// requestLogger writes one access log line per request.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
		}
		if errs := c.Errors.ByType(gin.ErrorTypePrivate).String(); errs != "" {
			attrs = append(attrs, "error", errs)
		}
		logger.Log(c.Request.Context(), level, "request", attrs...)
	}
}

// cors allows the configured origins, or any origin when none are set.
func cors(origins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case len(origins) == 0:
			c.Header("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.Contains(origins, origin):
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-API-Key")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// authenticate resolves the caller's API key to a role. Requests without a
// key continue as anonymous; a key that matches nothing is rejected.
func authenticate(keyring *auth.Keyring, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("X-API-Key")
		if key == "" {
			if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
				key = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
			}
		}

		role, err := keyring.Resolve(key)
		if err != nil {
			logger.Warn("invalid API key", "path", c.Request.URL.Path, "client_ip", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid API key",
				"message": "Provide a valid key in X-API-Key or Authorization: Bearer <key>",
			})
			return
		}

		c.Set(roleKey, role)
		c.Request = c.Request.WithContext(auth.WithRole(c.Request.Context(), role))
		c.Next()
	}
}

// requireRole rejects callers below the required role.
func requireRole(required auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := roleOf(c)
		if role.Allows(required) {
			c.Next()
			return
		}
		if role == auth.RoleAnonymous {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "API key required",
				"message": "Provide API key in X-API-Key header or Authorization: Bearer <key>",
			})
			return
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error": "forbidden",
			"role":  role.String(),
			"need":  required.String(),
		})
	}
}

func roleOf(c *gin.Context) auth.Role {
	if v, ok := c.Get(roleKey); ok {
		if r, ok := v.(auth.Role); ok {
			return r
		}
	}
	return auth.FromContext(c.Request.Context())
}
