package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/learnloop-backend/internal/handlers"
	"github.com/yungbote/learnloop-backend/internal/jobs"
	"github.com/yungbote/learnloop-backend/internal/logger"
	"github.com/yungbote/learnloop-backend/internal/sse"
)

type Handlers struct {
	Healthcheck *handlers.HealthcheckHandler
	Course      *handlers.CourseHandler
	CourseGen   *handlers.CourseGenHandler
	Assessment  *handlers.AssessmentHandler
	Activity    *handlers.ActivityHandler
	Catalog     *handlers.CatalogHandler
	Profile     *handlers.ProfileHandler
}

func wireHandlers(db *gorm.DB, log *logger.Logger, svcs Services, registry *jobs.Registry, bus *sse.Bus) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Healthcheck: handlers.NewHealthcheckHandler(db),
		Course:      handlers.NewCourseHandler(svcs.Course),
		CourseGen:   handlers.NewCourseGenHandler(log, svcs.Course, svcs.CourseGeneration, registry, bus),
		Assessment:  handlers.NewAssessmentHandler(log, svcs.Course, svcs.AssessmentGeneration, svcs.Assessment, registry, bus),
		Activity:    handlers.NewActivityHandler(svcs.Activity),
		Catalog:     handlers.NewCatalogHandler(svcs.Catalog),
		Profile:     handlers.NewProfileHandler(svcs.LearnerProfile),
	}
}
