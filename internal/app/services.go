package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/learnloop-backend/internal/catalog"
	"github.com/yungbote/learnloop-backend/internal/jobs"
	"github.com/yungbote/learnloop-backend/internal/logger"
	"github.com/yungbote/learnloop-backend/internal/services"
	"github.com/yungbote/learnloop-backend/internal/sse"
)

type Services struct {
	Progression          services.ProgressionService
	Agents               services.AgentService
	Course               services.CourseService
	CourseGeneration     services.CourseGenerationService
	AssessmentGeneration services.AssessmentGenerationService
	Assessment           services.AssessmentService
	Activity             services.ActivityService
	LearnerProfile       services.LearnerProfileService
	Catalog              catalog.Service
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, r Repos, bus *sse.Bus, registry *jobs.Registry) (Services, error) {
	log.Info("Wiring services...")

	ai, err := services.NewOpenAIClient(log)
	if err != nil {
		return Services{}, fmt.Errorf("init openai client: %w", err)
	}
	agents := services.NewAgentService(log, ai, r.AgentLog, cfg.OpenAIModel)

	cat, err := catalog.NewService(cfg.CatalogDir, log)
	if err != nil {
		return Services{}, fmt.Errorf("init catalog: %w", err)
	}

	progression := services.NewProgressionService(db, log, r.Course, r.Lesson)

	return Services{
		Progression: progression,
		Agents:      agents,
		Catalog:     cat,
		Course:      services.NewCourseService(db, log, r.Course, cat, progression),
		CourseGeneration: services.NewCourseGenerationService(
			db, log, bus, registry,
			r.Course, r.Lesson, r.Activity, r.LearnerProfile,
			progression, agents,
		),
		AssessmentGeneration: services.NewAssessmentGenerationService(
			db, log, bus, registry,
			r.Course, r.Assessment, r.LearnerProfile,
			progression, agents,
		),
		Assessment:     services.NewAssessmentService(db, log, r.Assessment, r.Course, progression, agents),
		Activity:       services.NewActivityService(db, log, r.Activity, r.Lesson, r.Course, progression, agents),
		LearnerProfile: services.NewLearnerProfileService(db, log, r.LearnerProfile),
	}, nil
}
