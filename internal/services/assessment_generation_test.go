package services

import (
	"context"
	"errors"
	"testing"

	"github.com/yungbote/learnloop-backend/internal/jobs"
	"github.com/yungbote/learnloop-backend/internal/sse"
	"github.com/yungbote/learnloop-backend/internal/types"
)

func seedFinishedCourse(env *testEnv, status string) *types.CourseInstance {
	course := env.seedCourse(status, []string{"a", "b"})
	for i := 0; i < 2; i++ {
		lesson := env.seedLesson(course.ID, i, "body", types.LessonStatusCompleted)
		activity := env.seedActivity(lesson.ID, &ActivitySpec{ActivityType: "exercise", Prompt: "p", ScoringRubric: []string{"r"}})
		score := 85.0
		if err := env.activityRepo.UpdateFields(context.Background(), nil, activity.ID, map[string]interface{}{
			"latest_score":     score,
			"mastery_decision": "meets",
		}); err != nil {
			env.t.Fatalf("set activity score: %v", err)
		}
	}
	return course
}

func TestAssessmentGenerationSuccess(t *testing.T) {
	env := newTestEnv(t)
	course := seedFinishedCourse(env, types.CourseStatusAwaitingAssessment)
	key := jobs.AssessmentKey(course.ID.String())

	// Subscribe on the keys the two stream handlers use: assessment events
	// must arrive on the assessment key only, never on the content key.
	sub := env.bus.Subscribe(key)
	defer env.bus.Unsubscribe(key, sub)
	contentSub := env.bus.Subscribe(course.ID.String())
	defer env.bus.Unsubscribe(course.ID.String(), contentSub)

	svc := env.assessmentGen()
	if err := svc.Start(env.ctx(), course.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	env.waitForJob(key)

	events := drainEvents(sub)
	if len(events) != 2 {
		t.Fatalf("event count: want=2 got=%v", eventNames(events))
	}
	if leaked := drainEvents(contentSub); len(leaked) != 0 {
		t.Fatalf("assessment events leaked onto the content key: %v", eventNames(leaked))
	}
	if events[0].Name != sse.EventGeneratingAssessment {
		t.Fatalf("first event: want=%s got=%s", sse.EventGeneratingAssessment, events[0].Name)
	}
	if events[1].Name != sse.EventAssessmentComplete {
		t.Fatalf("terminal event: want=%s got=%s", sse.EventAssessmentComplete, events[1].Name)
	}
	if events[1].Data["assessment_id"] == "" {
		t.Fatalf("assessment_complete missing assessment_id")
	}

	reloaded := env.reloadCourse(course.ID)
	if reloaded.Status != types.CourseStatusAssessmentReady {
		t.Fatalf("final status: want=%s got=%s", types.CourseStatusAssessmentReady, reloaded.Status)
	}
	if len(reloaded.Assessments) != 1 {
		t.Fatalf("assessment rows: want=1 got=%d", len(reloaded.Assessments))
	}
	if reloaded.Assessments[0].Status != types.AssessmentStatusPending {
		t.Fatalf("assessment status: want=pending got=%s", reloaded.Assessments[0].Status)
	}
}

func TestAssessmentGenerationFailureRollsBack(t *testing.T) {
	env := newTestEnv(t)
	course := seedFinishedCourse(env, types.CourseStatusAwaitingAssessment)
	env.agents.assessmentErr = errors.New("model down")
	key := jobs.AssessmentKey(course.ID.String())

	sub := env.bus.Subscribe(key)
	defer env.bus.Unsubscribe(key, sub)

	svc := env.assessmentGen()
	if err := svc.Start(env.ctx(), course.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	env.waitForJob(key)

	events := drainEvents(sub)
	last := events[len(events)-1]
	if last.Name != sse.EventAssessmentError {
		t.Fatalf("terminal event: want=%s got=%s", sse.EventAssessmentError, last.Name)
	}

	reloaded := env.reloadCourse(course.ID)
	if reloaded.Status != types.CourseStatusAwaitingAssessment {
		t.Fatalf("rollback status: want=%s got=%s", types.CourseStatusAwaitingAssessment, reloaded.Status)
	}
	if len(reloaded.Assessments) != 0 {
		t.Fatalf("failed generation must not persist an assessment")
	}

	// The learner can retry after the rollback.
	env.agents.assessmentErr = nil
	if err := svc.Start(env.ctx(), course.ID); err != nil {
		t.Fatalf("retry after rollback: %v", err)
	}
	env.waitForJob(key)
	if env.reloadCourse(course.ID).Status != types.CourseStatusAssessmentReady {
		t.Fatalf("retry must reach assessment_ready")
	}
}

func TestAssessmentGenerationRegenerateFromReady(t *testing.T) {
	env := newTestEnv(t)
	course := seedFinishedCourse(env, types.CourseStatusAssessmentReady)
	key := jobs.AssessmentKey(course.ID.String())

	svc := env.assessmentGen()
	if err := svc.Start(env.ctx(), course.ID); err != nil {
		t.Fatalf("regenerate from assessment_ready: %v", err)
	}
	env.waitForJob(key)

	if env.reloadCourse(course.ID).Status != types.CourseStatusAssessmentReady {
		t.Fatalf("regenerate must land back on assessment_ready")
	}
}

func TestAssessmentGenerationRejectsWrongStatus(t *testing.T) {
	env := newTestEnv(t)
	course := env.seedCourse(types.CourseStatusInProgress, []string{"a"})

	svc := env.assessmentGen()
	err := svc.Start(env.ctx(), course.ID)
	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("start from in_progress: want=InvalidTransitionError got=%v", err)
	}
}
