package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"gatekeeper/internal/metrics"
	"gatekeeper/internal/service"
)

// Handler wires HTTP routes to the account and resource services.
type Handler struct {
	accounts  service.AccountService
	resources service.ResourceService
	metrics   *metrics.Metrics
	limiter   *RateLimiter
	log       logrus.FieldLogger
}

// Deps collects what a Handler needs. Metrics and Limiter may be nil.
type Deps struct {
	Accounts  service.AccountService
	Resources service.ResourceService
	Metrics   *metrics.Metrics
	Limiter   *RateLimiter
	Logger    logrus.FieldLogger
}

func NewHandler(deps Deps) *Handler {
	log := deps.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{
		accounts:  deps.Accounts,
		resources: deps.Resources,
		metrics:   deps.Metrics,
		limiter:   deps.Limiter,
		log:       log.WithField("component", "http"),
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware(), h.instrument(), h.requestLogger())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}

	api := router.Group("/api")
	{
		accounts := api.Group("/accounts")
		accounts.POST("", h.rateLimit(), h.register)
		accounts.POST("/tokens", h.rateLimit(), h.issueTokens)
		accounts.POST("/refreshtokens", h.rateLimit(), h.refreshTokens)
		accounts.POST("/logout", h.authenticate(), h.rateLimit(), h.logout)
		accounts.GET("/me", h.authenticate(), h.rateLimit(), h.me)

		resources := api.Group("/resources", h.authenticate(), h.rateLimit())
		resources.GET("/:kind", h.listResources)
		resources.POST("/:kind", h.createResource)
		resources.GET("/:kind/:id", h.getResource)
		resources.PUT("/:kind/:id", h.updateResource)
		resources.DELETE("/:kind/:id", h.deleteResource)
	}

	// todo service aliases
	users := router.Group("/users", h.rateLimit())
	{
		users.POST("", h.register)
		users.POST("/token", h.legacyToken)
	}
}
