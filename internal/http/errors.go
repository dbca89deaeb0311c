package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"medtrack/internal/auth"
	"medtrack/internal/domain"
	"medtrack/internal/repository"
	"medtrack/internal/service"
	"medtrack/internal/storage"
)

func isAuthFailure(err error) bool {
	return errors.Is(err, auth.ErrInvalidCredentials) ||
		errors.Is(err, auth.ErrUnauthenticated) ||
		errors.Is(err, auth.ErrForbidden)
}

// respondAuthError renders errors raised while establishing identity. A
// failure that is not a credential problem means the user store could not
// answer, which is reported as 503 rather than a denial.
func (h *Handler) respondAuthError(c *gin.Context, err error) {
	if isAuthFailure(err) {
		h.respondError(c, err)
		return
	}
	h.logger.WithError(err).WithField("request_id", c.GetString(ctxRequestID)).Error("identity lookup failed")
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": "authentication service unavailable"})
}

func (h *Handler) respondError(c *gin.Context, err error) {
	var verr *service.ValidationError

	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.Header("WWW-Authenticate", "Bearer")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Incorrect email or password"})
	case errors.Is(err, auth.ErrUnauthenticated):
		c.Header("WWW-Authenticate", "Bearer")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
	case errors.Is(err, auth.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient privileges"})
	case errors.Is(err, service.ErrUserAlreadyExists):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email already registered"})
	case errors.Is(err, service.ErrSelfModification):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Msg})
	case errors.Is(err, auth.ErrPasswordLength):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidHealthRecord):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, storage.ErrNotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		h.logger.WithError(err).WithField("request_id", c.GetString(ctxRequestID)).Error("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
