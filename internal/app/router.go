package app

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/learnloop-backend/internal/server"
)

func wireRouter(cfg Config, handlers Handlers, middleware Middleware) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		AllowedOrigins:     server.SplitOrigins(cfg.AllowedOrigins),
		AuthMiddleware:     middleware.Auth,
		HealthcheckHandler: handlers.Healthcheck,
		CourseHandler:      handlers.Course,
		CourseGenHandler:   handlers.CourseGen,
		AssessmentHandler:  handlers.Assessment,
		ActivityHandler:    handlers.Activity,
		CatalogHandler:     handlers.Catalog,
		ProfileHandler:     handlers.Profile,
	})
}
