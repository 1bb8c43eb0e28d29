// Package httpserver exposes the care engine over a JSON HTTP API built on gin.
package httpserver

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/and161185/plant-keeper/internal/identity"
	"github.com/and161185/plant-keeper/internal/limiter"
)

// RouterConfig wires the router dependencies.
type RouterConfig struct {
	Handler  *Handler
	Verifier *identity.Verifier
	Limiter  limiter.Limiter // nil disables auth throttling
	Origins  []string        // CORS allow-list
	RPS      float64         // per-user request rate, 0 disables
	Burst    int
	Log      *zap.Logger
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(cfg.Log))
	if len(cfg.Origins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:  cfg.Origins,
			AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:  []string{"Authorization", "Content-Type"},
			ExposeHeaders: []string{"Retry-After"},
			MaxAge:        12 * time.Hour,
		}))
	}

	h := cfg.Handler
	router.GET("/healthcheck", h.HealthCheck)

	api := router.Group("/api")
	api.Use(Auth(cfg.Verifier, cfg.Limiter, cfg.Log), Throttle(cfg.RPS, cfg.Burst))
	// plants
	api.GET("/plants", h.ListPlants)
	api.POST("/plants", h.AddPlant)
	api.GET("/plants/:id", h.GetPlant)
	api.PATCH("/plants/:id", h.UpdatePlant)
	api.DELETE("/plants/:id", h.RemovePlant)
	api.POST("/plants/:id/dead", h.MarkDead)
	api.GET("/plants/:id/status", h.PlantStatus)
	api.GET("/plants/:id/suggestions", h.Suggestions)
	api.GET("/plants/:id/tasks", h.PlantTasks)
	api.POST("/plants/:id/care", h.LogCare)
	// tasks
	api.GET("/tasks", h.ListTasks)
	api.POST("/tasks/:id/complete", h.CompleteTask)
	api.POST("/tasks/:id/snooze", h.SnoozeTask)
	// profile
	api.GET("/profile", h.GetProfile)
	api.PATCH("/profile", h.UpdateProfile)
	api.GET("/achievements", h.Achievements)
	api.GET("/insights", h.ListInsights)
	api.POST("/insights", h.AddInsight)
	api.POST("/insights/:id/dismiss", h.DismissInsight)
	api.GET("/assistant/context", h.AssistantContext)
	api.POST("/session/close", h.CloseSession)

	return router
}

// NewServer wraps handler in an http.Server with conservative timeouts.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
