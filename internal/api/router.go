package api

import (
	apperrors "chat-companion/backend/pkg/errors"
	"chat-companion/backend/pkg/health"
	"chat-companion/backend/pkg/logger"
	"chat-companion/backend/pkg/metrics"
	"chat-companion/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// Router assembles the gin engine with the standard middleware chain
type Router struct {
	Engine  *gin.Engine
	handler *Handler
	checker *health.Checker
	log     *logger.Logger
}

// NewRouter creates the router around the message handler
func NewRouter(handler *Handler, checker *health.Checker, log *logger.Logger) *Router {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(middleware.RequestIDMiddleware())
	engine.Use(logger.Middleware(log))
	engine.Use(apperrors.RecoveryWithLogger())
	engine.Use(apperrors.ErrorHandler())

	return &Router{
		Engine:  engine,
		handler: handler,
		checker: checker,
		log:     log,
	}
}

// SetupRoutes registers all endpoints
func (r *Router) SetupRoutes() {
	v1 := r.Engine.Group("/api/v1")
	{
		v1.POST("/messages", r.handler.SendMessage)
		v1.POST("/premium", r.handler.TogglePremium)
	}

	r.Engine.GET("/healthz", gin.WrapF(r.checker.Handler()))
	r.Engine.GET("/metrics", gin.WrapH(metrics.Handler()))
}
