package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"gatekeeper/internal/domain"
	"gatekeeper/internal/password"
)

// statusFor is the single place where error classes become HTTP statuses.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "validation failed"
	case errors.Is(err, domain.ErrDuplicateIdentity):
		return http.StatusBadRequest, "login already registered"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, domain.ErrAuthentication):
		return http.StatusUnauthorized, "authentication required"
	case errors.Is(err, domain.ErrAuthorization):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrResourceAbsent):
		return http.StatusNotFound, "not found"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// writeError renders err with a fixed message for its class. Unclassified
// errors are logged and never echoed to the caller.
func (h *Handler) writeError(c *gin.Context, err error) {
	status, msg := statusFor(err)
	body := gin.H{"error": msg}

	var perr *password.PolicyError
	if errors.As(err, &perr) {
		body["violations"] = perr.Violations
	}

	switch status {
	case http.StatusUnauthorized:
		c.Header("WWW-Authenticate", `Bearer realm="gatekeeper"`)
	case http.StatusInternalServerError:
		h.log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}
