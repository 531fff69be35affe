package services

import (
	"encoding/json"
	"testing"

	"github.com/yungbote/learnloop-backend/internal/types"
)

func (e *testEnv) activitySvc() ActivityService {
	return NewActivityService(e.db, e.log, e.activityRepo, e.lessonRepo, e.courseRepo, e.progression, e.agents)
}

func TestActivitySubmitMasteryUnlocksNextLesson(t *testing.T) {
	env := newTestEnv(t)
	course := env.seedCourse(types.CourseStatusInProgress, []string{"a", "b"})
	first := env.seedLesson(course.ID, 0, "body", types.LessonStatusUnlocked)
	env.seedLesson(course.ID, 1, "body", types.LessonStatusLocked)
	activity := env.seedActivity(first.ID, &ActivitySpec{ActivityType: "exercise", Prompt: "p", ScoringRubric: []string{"r"}})

	result, err := env.activitySvc().Submit(env.ctx(), activity.ID, "my answer")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !result.LessonCompleted {
		t.Fatalf("meets decision must complete the lesson")
	}
	if result.UnlockedLesson == nil || result.UnlockedLesson.ObjectiveIndex != 1 {
		t.Fatalf("unlocked lesson: want index 1 got %+v", result.UnlockedLesson)
	}

	reloaded := env.reloadCourse(course.ID)
	if reloaded.Status != types.CourseStatusInProgress {
		t.Fatalf("course status: want=%s got=%s", types.CourseStatusInProgress, reloaded.Status)
	}
	if reloaded.Lessons[0].Status != types.LessonStatusCompleted {
		t.Fatalf("first lesson: want=completed got=%s", reloaded.Lessons[0].Status)
	}
	if reloaded.Lessons[1].Status != types.LessonStatusUnlocked {
		t.Fatalf("second lesson: want=unlocked got=%s", reloaded.Lessons[1].Status)
	}

	stored := reloaded.Lessons[0].Activity
	if stored.AttemptCount != 1 {
		t.Fatalf("attempt count: want=1 got=%d", stored.AttemptCount)
	}
	if stored.LatestScore == nil || *stored.LatestScore != 90 {
		t.Fatalf("latest score: want=90 got=%v", stored.LatestScore)
	}
	var history []activitySubmissionRecord
	if err := json.Unmarshal(stored.Submissions, &history); err != nil || len(history) != 1 {
		t.Fatalf("submission history: want 1 entry, got %v err=%v", len(history), err)
	}
	if history[0].Submission != "my answer" {
		t.Fatalf("stored submission text: want=%q got=%q", "my answer", history[0].Submission)
	}
}

func TestActivitySubmitNotYetLeavesLessonOpen(t *testing.T) {
	env := newTestEnv(t)
	course := env.seedCourse(types.CourseStatusInProgress, []string{"a"})
	lesson := env.seedLesson(course.ID, 0, "body", types.LessonStatusUnlocked)
	activity := env.seedActivity(lesson.ID, &ActivitySpec{ActivityType: "exercise", Prompt: "p", ScoringRubric: []string{"r"}})
	env.agents.activityReview = &ActivityReview{Score: 40, MasteryDecision: "not_yet"}

	result, err := env.activitySvc().Submit(env.ctx(), activity.ID, "weak answer")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.LessonCompleted {
		t.Fatalf("not_yet must not complete the lesson")
	}

	reloaded := env.reloadCourse(course.ID)
	if reloaded.Lessons[0].Status != types.LessonStatusUnlocked {
		t.Fatalf("lesson status: want=unlocked got=%s", reloaded.Lessons[0].Status)
	}
	// The failed attempt is still recorded.
	if reloaded.Lessons[0].Activity.AttemptCount != 1 {
		t.Fatalf("attempt count: want=1 got=%d", reloaded.Lessons[0].Activity.AttemptCount)
	}
}

func TestActivitySubmitLastLessonMovesToAwaitingAssessment(t *testing.T) {
	env := newTestEnv(t)
	course := env.seedCourse(types.CourseStatusInProgress, []string{"a", "b"})
	env.seedLesson(course.ID, 0, "body", types.LessonStatusCompleted)
	last := env.seedLesson(course.ID, 1, "body", types.LessonStatusUnlocked)
	activity := env.seedActivity(last.ID, &ActivitySpec{ActivityType: "exercise", Prompt: "p", ScoringRubric: []string{"r"}})

	result, err := env.activitySvc().Submit(env.ctx(), activity.ID, "answer")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.CourseStatus != types.CourseStatusAwaitingAssessment {
		t.Fatalf("result status: want=%s got=%s", types.CourseStatusAwaitingAssessment, result.CourseStatus)
	}
	if env.reloadCourse(course.ID).Status != types.CourseStatusAwaitingAssessment {
		t.Fatalf("course must await assessment after the last lesson")
	}
}
