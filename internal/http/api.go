package http

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"medtrack/internal/auth"
	"medtrack/internal/domain"
	"medtrack/internal/metrics"
	"medtrack/internal/ratelimit"
	"medtrack/internal/repository"
	"medtrack/internal/service"
	"medtrack/internal/storage"
)

// Options carries the dependencies of Handler. Limiter, Metrics and Exports
// are optional.
type Options struct {
	Users     service.UserService
	Records   service.HealthRecordService
	Analytics service.AnalyticsService
	Exports   service.ExportService
	Resolver  *auth.Resolver
	Gate      *auth.Gate
	Limiter   ratelimit.Limiter
	Metrics   *metrics.Metrics
	Logger    logrus.FieldLogger

	CORSOrigins []string
	// TrustedProxies lists the proxy addresses or CIDRs whose forwarding
	// headers are believed when resolving the client IP. Empty trusts none.
	TrustedProxies []string
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	users     service.UserService
	records   service.HealthRecordService
	analytics service.AnalyticsService
	exports   service.ExportService
	resolver  *auth.Resolver
	gate      *auth.Gate
	limiter   ratelimit.Limiter
	metrics   *metrics.Metrics
	logger    logrus.FieldLogger
	origins   []string
	proxies   []string
}

func NewHandler(opts Options) *Handler {
	h := &Handler{
		users:     opts.Users,
		records:   opts.Records,
		analytics: opts.Analytics,
		exports:   opts.Exports,
		resolver:  opts.Resolver,
		gate:      opts.Gate,
		limiter:   opts.Limiter,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		origins:   opts.CORSOrigins,
		proxies:   opts.TrustedProxies,
	}
	if h.limiter == nil {
		h.limiter = ratelimit.Noop{}
	}
	if h.metrics == nil {
		h.metrics = metrics.NewMetrics(prometheus.NewRegistry())
	}
	if h.logger == nil {
		h.logger = logrus.StandardLogger()
	}
	if h.exports == nil {
		h.exports = service.NewExportService(nil, service.ArchiveOptions{}, h.logger)
	}
	h.logger = h.logger.WithField("component", "http")
	return h
}

// RegisterRoutes installs middleware and routes on router. It also restricts
// the proxies router trusts, since rate limiting is keyed on the client IP.
func (h *Handler) RegisterRoutes(router *gin.Engine) error {
	if err := router.SetTrustedProxies(h.proxies); err != nil {
		return fmt.Errorf("trusted proxies: %w", err)
	}
	router.Use(h.requestID(), h.accessLog(), h.observe(), corsMiddleware(h.origins))

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "medtrack API"})
	})
	router.GET("/metrics", gin.WrapH(h.metrics.Handler()))

	api := router.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authn := h.requireAuth(auth.Authenticated())
	admin := h.requireAuth(auth.Role(domain.RoleAdmin))

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", h.rateLimit(), h.register)
		authGroup.POST("/login", h.rateLimit(), h.loginForm)
		authGroup.POST("/login-json", h.rateLimit(), h.loginJSON)
		authGroup.GET("/me", authn, h.me)
		authGroup.POST("/refresh-token", authn, h.refreshToken)
	}

	users := api.Group("/users", authn)
	{
		users.GET("/me", h.me)
		users.PUT("/me", h.updateMe)
		users.GET("", h.requireRole(domain.RoleAdmin), h.listUsers)
		users.GET("/:id", h.getUser)
		users.GET("/:id/health-records", h.listUserRecords)
	}

	records := api.Group("/health-records", authn)
	{
		records.POST("", h.createRecord)
		records.GET("", h.listRecords)
		records.GET("/export", h.exportRecords)
		records.POST("/export/archive", h.archiveRecords)
		records.GET("/export/archives", h.listArchives)
		records.POST("/import", h.importRecords)
		records.GET("/:id", h.getRecord)
		records.PUT("/:id", h.updateRecord)
		records.DELETE("/:id", h.deleteRecord)
	}

	adminGroup := api.Group("/admin", admin)
	{
		adminGroup.GET("/dashboard", h.dashboard)
		adminGroup.GET("/users", h.listUsers)
		adminGroup.POST("/users", h.createUser)
		adminGroup.PUT("/users/:id/activate", h.setActive(true))
		adminGroup.PUT("/users/:id/deactivate", h.setActive(false))
		adminGroup.DELETE("/users/:id", h.deleteUser)
	}

	api.GET("/analytics/summary", admin, h.summary)
	return nil
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	allowAll := len(origins) == 0
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if allowAll {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else if _, ok := allowed[origin]; ok && origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Add("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// parsePage reads the skip and limit query parameters.
func parsePage(c *gin.Context) (repository.Page, bool) {
	var page repository.Page
	for _, q := range []struct {
		name string
		dst  *int
	}{{"skip", &page.Offset}, {"limit", &page.Limit}} {
		raw := c.Query(q.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + q.name})
			return repository.Page{}, false
		}
		*q.dst = n
	}
	return page, true
}

type StorageObjectResponse struct {
	Key          string  `json:"key"`
	Size         int64   `json:"size"`
	LastModified *string `json:"last_modified,omitempty"`
}

func objectToResponse(obj storage.ObjectInfo) StorageObjectResponse {
	resp := StorageObjectResponse{
		Key:  obj.Key,
		Size: obj.Size,
	}
	if obj.LastModified != nil && !obj.LastModified.IsZero() {
		v := obj.LastModified.Format(time.RFC3339)
		resp.LastModified = &v
	}
	return resp
}
