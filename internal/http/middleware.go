package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"medtrack/internal/auth"
	"medtrack/internal/domain"
)

const (
	requestIDHeader = "X-Request-ID"

	ctxRequestID = "request_id"
	ctxUser      = "user"
)

func (h *Handler) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

func (h *Handler) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := h.logger.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency":    time.Since(start).String(),
			"client_ip":  c.ClientIP(),
			"request_id": c.GetString(ctxRequestID),
		})
		if user, ok := currentUser(c); ok {
			entry = entry.WithField("user_id", user.ID())
		}
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Error("request failed")
		case status >= http.StatusBadRequest:
			entry.Warn("request rejected")
		default:
			entry.Info("request served")
		}
	}
}

func (h *Handler) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		h.metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		h.metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// rateLimit throttles a route per client IP.
func (h *Handler) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, err := h.limiter.Allow(c.Request.Context(), c.ClientIP()+"|"+c.FullPath())
		if err != nil {
			h.logger.WithError(err).Warn("rate limiter unavailable")
		}
		if !allowed {
			h.metrics.RateLimitedTotal.WithLabelValues(c.FullPath()).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}

// requireAuth resolves the bearer token and applies req. The resolved user is
// stored on the context for the handlers that follow.
func (h *Handler) requireAuth(req auth.Requirement) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := h.gate.Authorize(c.Request.Context(), c.GetHeader("Authorization"), req)
		if err != nil {
			if !isAuthFailure(err) {
				h.metrics.AuthEvent("token", "error")
			} else {
				h.metrics.AuthEvent("token", "rejected")
			}
			h.respondAuthError(c, err)
			c.Abort()
			return
		}
		c.Set(ctxUser, user)
		c.Next()
	}
}

// requireRole checks the role of a user already resolved by requireAuth.
func (h *Handler) requireRole(role domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			h.respondAuthError(c, auth.ErrUnauthenticated)
			c.Abort()
			return
		}
		if err := auth.RequireRole(user, role); err != nil {
			h.respondError(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) (domain.User, bool) {
	v, ok := c.Get(ctxUser)
	if !ok {
		return domain.User{}, false
	}
	user, ok := v.(domain.User)
	return user, ok
}

func mustUser(c *gin.Context) domain.User {
	user, _ := currentUser(c)
	return user
}
