package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"gatekeeper/internal/domain"
)

const (
	identityKey = "gatekeeper.identity"
	bearer      = "bearer "
)

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "WWW-Authenticate")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// authenticate resolves the bearer token to an identity or aborts with 401.
func (h *Handler) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := extractBearerToken(c.GetHeader("Authorization"))
		if err != nil {
			h.writeError(c, err)
			return
		}
		identity, err := h.accounts.Authenticate(c.Request.Context(), raw)
		if err != nil {
			h.writeError(c, err)
			return
		}
		c.Set(identityKey, identity)
		c.Next()
	}
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" || strings.EqualFold(header, strings.TrimSpace(bearer)) {
		return "", domain.ErrTokenMissing
	}
	if len(header) < len(bearer) || !strings.EqualFold(header[:len(bearer)], bearer) {
		return "", domain.ErrTokenInvalid
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", domain.ErrTokenMissing
	}
	return token, nil
}

func identityFrom(c *gin.Context) *domain.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	identity, ok := v.(domain.Identity)
	if !ok {
		return nil
	}
	return &identity
}

// rateLimit throttles per principal when the request is authenticated and per
// client IP otherwise.
func (h *Handler) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.limiter == nil {
			c.Next()
			return
		}
		key := "ip:" + c.ClientIP()
		if identity := identityFrom(c); identity != nil {
			key = "principal:" + identity.PrincipalID
		}
		if !h.limiter.Allow(key) {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

func (h *Handler) instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		done := h.metrics.TrackInFlight()
		start := time.Now()
		c.Next()
		done()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		h.metrics.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := logrus.Fields{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    c.Writer.Status(),
			"latency":   time.Since(start).String(),
			"client_ip": c.ClientIP(),
		}
		if identity := identityFrom(c); identity != nil {
			fields["principal_id"] = identity.PrincipalID
		}
		entry := h.log.WithFields(fields)
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("request")
			return
		}
		entry.Debug("request")
	}
}
