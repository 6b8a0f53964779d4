package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"csreply-backend/internal/inquiries"
	"csreply-backend/internal/services/health"
	"csreply-backend/internal/shared/config"
	"csreply-backend/internal/shared/metrics"
	"csreply-backend/internal/shared/server/middleware"
	"csreply-backend/internal/shared/server/respond"
	"csreply-backend/internal/workflow"
)

// Rate limit groups.
const (
	rateGroupDefault = "DEFAULT"
	rateGroupBatch   = "BATCH"
	rateGroupIntake  = "INTAKE"
)

// RouterDeps are the handlers and settings the router is built from.
type RouterDeps struct {
	Config          config.Config
	JWTSecret       []byte
	InquiryHandler  *inquiries.Handler
	WorkflowHandler *workflow.Handler
	// Health is optional; nil reports healthy without checking dependencies.
	Health *health.Service
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		if deps.Health == nil {
			respond.JSON(c, http.StatusOK, gin.H{"ok": true})
			return
		}
		status, ok := deps.Health.Status(c.Request.Context())
		code := http.StatusOK
		if !ok {
			code = http.StatusServiceUnavailable
		}
		respond.JSON(c, code, gin.H{"ok": ok, "dependencies": status})
	})

	protected := api.Group("")
	protected.Use(
		middleware.Auth(deps.Config.Env, deps.JWTSecret),
		middleware.RateLimit(middleware.RateLimitConfig{
			DefaultGroup: rateGroupDefault,
			GroupFor:     rateGroupFor,
			Rules: map[string]middleware.RateLimitRule{
				rateGroupDefault: {Rate: 10, Burst: 40},
				rateGroupIntake:  {Rate: 20, Burst: 100},
				rateGroupBatch:   {Rate: 1.0 / 30, Burst: 2},
			},
		}),
	)
	registerMeRoutes(protected)
	if deps.InquiryHandler != nil {
		deps.InquiryHandler.RegisterRoutes(protected)
	}
	if deps.WorkflowHandler != nil {
		deps.WorkflowHandler.RegisterRoutes(protected)
	}

	return r
}

func rateGroupFor(c *gin.Context) string {
	path := c.FullPath()
	switch {
	case path == "/api/v1/batch/run":
		return rateGroupBatch
	case c.Request.Method == http.MethodPost && path == "/api/v1/inquiries":
		return rateGroupIntake
	default:
		return rateGroupDefault
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
