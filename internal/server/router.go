package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yungbote/learnloop-backend/internal/handlers"
	"github.com/yungbote/learnloop-backend/internal/middleware"
)

type RouterConfig struct {
	AllowedOrigins []string

	AuthMiddleware *middleware.AuthMiddleware

	HealthcheckHandler *handlers.HealthcheckHandler
	CourseHandler      *handlers.CourseHandler
	CourseGenHandler   *handlers.CourseGenHandler
	AssessmentHandler  *handlers.AssessmentHandler
	ActivityHandler    *handlers.ActivityHandler
	CatalogHandler     *handlers.CatalogHandler
	ProfileHandler     *handlers.ProfileHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", cfg.HealthcheckHandler.Healthcheck)

	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireAuth())
	{
		// Courses
		api.POST("/courses", cfg.CourseHandler.Create)
		api.GET("/courses", cfg.CourseHandler.List)
		api.GET("/courses/:id", cfg.CourseHandler.Get)
		api.DELETE("/courses/:id", cfg.CourseHandler.Delete)
		api.PATCH("/courses/:id/state", cfg.CourseHandler.PatchState)

		// Generation
		api.POST("/courses/:id/generate", cfg.CourseGenHandler.Generate)
		api.GET("/courses/:id/generate/stream", cfg.CourseGenHandler.Stream)

		// Assessments. :id is the course id for generate/stream and the
		// assessment id for submit; gin cannot mix param names per segment.
		api.POST("/assessments/:id/generate", cfg.AssessmentHandler.Generate)
		api.GET("/assessments/:id/stream", cfg.AssessmentHandler.Stream)
		api.POST("/assessments/:id/submit", cfg.AssessmentHandler.Submit)

		// Activities
		api.POST("/activities/:id/submit", cfg.ActivityHandler.Submit)

		// Catalog
		api.GET("/catalog", cfg.CatalogHandler.List)
		api.GET("/catalog/:id", cfg.CatalogHandler.Get)

		// Profile
		api.GET("/profile", cfg.ProfileHandler.Get)
		api.PUT("/profile", cfg.ProfileHandler.Put)
	}

	return router
}

// SplitOrigins parses a comma-separated origins env value.
func SplitOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
