package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/learnloop-backend/internal/logger"
	"github.com/yungbote/learnloop-backend/internal/repos"
)

type Repos struct {
	User           repos.UserRepo
	LearnerProfile repos.LearnerProfileRepo
	Course         repos.CourseRepo
	Lesson         repos.LessonRepo
	Activity       repos.ActivityRepo
	Assessment     repos.AssessmentRepo
	AgentLog       repos.AgentLogRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:           repos.NewUserRepo(db, log),
		LearnerProfile: repos.NewLearnerProfileRepo(db, log),
		Course:         repos.NewCourseRepo(db, log),
		Lesson:         repos.NewLessonRepo(db, log),
		Activity:       repos.NewActivityRepo(db, log),
		Assessment:     repos.NewAssessmentRepo(db, log),
		AgentLog:       repos.NewAgentLogRepo(db, log),
	}
}
