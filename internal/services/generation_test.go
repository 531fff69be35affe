package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/learnloop-backend/internal/jobs"
	"github.com/yungbote/learnloop-backend/internal/requestdata"
	"github.com/yungbote/learnloop-backend/internal/sse"
	"github.com/yungbote/learnloop-backend/internal/types"
)

func TestCourseGenerationHappyPath(t *testing.T) {
	env := newTestEnv(t)
	course := env.seedCourse(types.CourseStatusDraft, []string{"understand consensus", "apply raft"})

	sub := env.bus.Subscribe(course.ID.String())
	defer env.bus.Unsubscribe(course.ID.String(), sub)

	svc := env.courseGen()
	if err := svc.Start(env.ctx(), course.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	env.waitForJob(course.ID.String())

	got := eventNames(drainEvents(sub))
	want := []string{
		sse.EventLessonPlanned, sse.EventLessonWritten, sse.EventActivityCreated,
		sse.EventLessonPlanned, sse.EventLessonWritten, sse.EventActivityCreated,
		sse.EventGenerationComplete,
	}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("event order:\nwant=%v\ngot=%v", want, got)
	}

	reloaded := env.reloadCourse(course.ID)
	if reloaded.Status != types.CourseStatusInProgress {
		t.Fatalf("final status: want=%s got=%s", types.CourseStatusInProgress, reloaded.Status)
	}
	if len(reloaded.Lessons) != 2 {
		t.Fatalf("lesson count: want=2 got=%d", len(reloaded.Lessons))
	}
	if reloaded.Lessons[0].Status != types.LessonStatusUnlocked {
		t.Fatalf("first lesson status: want=%s got=%s", types.LessonStatusUnlocked, reloaded.Lessons[0].Status)
	}
	if reloaded.Lessons[1].Status != types.LessonStatusLocked {
		t.Fatalf("second lesson status: want=%s got=%s", types.LessonStatusLocked, reloaded.Lessons[1].Status)
	}
	for i, lesson := range reloaded.Lessons {
		if !lesson.HasContent() {
			t.Fatalf("lesson %d missing content", i)
		}
		if !lesson.Activity.HasSpec() {
			t.Fatalf("lesson %d missing activity spec", i)
		}
	}
	if reloaded.GeneratedDescription == "" {
		t.Fatalf("generated description not stored")
	}
}

func TestCourseGenerationResumeSkipsFinishedUnits(t *testing.T) {
	env := newTestEnv(t)
	course := env.seedCourse(types.CourseStatusGenerationFailed, []string{"objective a", "objective b"})
	done := env.seedLesson(course.ID, 0, "existing body", types.LessonStatusUnlocked)
	env.seedActivity(done.ID, &ActivitySpec{ActivityType: "exercise", Prompt: "p", ScoringRubric: []string{"r"}})

	sub := env.bus.Subscribe(course.ID.String())
	defer env.bus.Unsubscribe(course.ID.String(), sub)

	svc := env.courseGen()
	if err := svc.Start(env.ctx(), course.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	env.waitForJob(course.ID.String())

	plan, write, activity := env.agents.calls()
	if plan != 1 || write != 1 || activity != 1 {
		t.Fatalf("agent calls after resume: want=1/1/1 got=%d/%d/%d", plan, write, activity)
	}

	events := drainEvents(sub)
	// The finished unit replays its trio flagged as skipped.
	for i := 0; i < 3; i++ {
		if skipped, _ := events[i].Data["skipped"].(bool); !skipped {
			t.Fatalf("event %d (%s): want skipped=true, data=%v", i, events[i].Name, events[i].Data)
		}
	}
	last := events[len(events)-1]
	if last.Name != sse.EventGenerationComplete {
		t.Fatalf("last event: want=%s got=%s", sse.EventGenerationComplete, last.Name)
	}
	if count, _ := last.Data["lesson_count"].(int); count != 2 {
		t.Fatalf("lesson_count: want=2 got=%v", last.Data["lesson_count"])
	}

	if env.reloadCourse(course.ID).Status != types.CourseStatusInProgress {
		t.Fatalf("resumed course must reach in_progress")
	}
}

func TestCourseGenerationPartialFailureStillActivates(t *testing.T) {
	env := newTestEnv(t)
	course := env.seedCourse(types.CourseStatusDraft, []string{"a", "b", "c"})
	env.agents.writeErr["b"] = errors.New("model unavailable")

	sub := env.bus.Subscribe(course.ID.String())
	defer env.bus.Unsubscribe(course.ID.String(), sub)

	svc := env.courseGen()
	if err := svc.Start(env.ctx(), course.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	env.waitForJob(course.ID.String())

	events := drainEvents(sub)
	sawError := false
	for _, ev := range events {
		if ev.Name == sse.EventGenerationError {
			sawError = true
			if idx, _ := ev.Data["objective_index"].(int); idx != 1 {
				t.Fatalf("generation_error index: want=1 got=%v", ev.Data["objective_index"])
			}
		}
	}
	if !sawError {
		t.Fatalf("want a generation_error event for the failed objective")
	}
	if events[len(events)-1].Name != sse.EventGenerationComplete {
		t.Fatalf("generation_complete must be the final event")
	}

	reloaded := env.reloadCourse(course.ID)
	if reloaded.Status != types.CourseStatusInProgress {
		t.Fatalf("partial failure status: want=%s got=%s", types.CourseStatusInProgress, reloaded.Status)
	}
	if len(reloaded.Lessons) != 2 {
		t.Fatalf("lessons persisted: want=2 got=%d", len(reloaded.Lessons))
	}
}

func TestCourseGenerationTotalFailure(t *testing.T) {
	env := newTestEnv(t)
	course := env.seedCourse(types.CourseStatusDraft, []string{"a", "b"})
	env.agents.planErr["a"] = errors.New("down")
	env.agents.planErr["b"] = errors.New("down")

	sub := env.bus.Subscribe(course.ID.String())
	defer env.bus.Unsubscribe(course.ID.String(), sub)

	svc := env.courseGen()
	if err := svc.Start(env.ctx(), course.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	env.waitForJob(course.ID.String())

	events := drainEvents(sub)
	last := events[len(events)-1]
	if last.Name != sse.EventGenerationComplete {
		t.Fatalf("last event: want=%s got=%s", sse.EventGenerationComplete, last.Name)
	}
	if count, _ := last.Data["lesson_count"].(int); count != 0 {
		t.Fatalf("lesson_count: want=0 got=%v", last.Data["lesson_count"])
	}
	if env.reloadCourse(course.ID).Status != types.CourseStatusGenerationFailed {
		t.Fatalf("total failure must land on generation_failed")
	}
}

func TestCourseGenerationStartGuards(t *testing.T) {
	env := newTestEnv(t)
	svc := env.courseGen()

	active := env.seedCourse(types.CourseStatusActive, []string{"a"})
	err := svc.Start(env.ctx(), active.ID)
	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("start from active: want=InvalidTransitionError got=%v", err)
	}

	other := env.seedCourse(types.CourseStatusDraft, []string{"a"})
	if err := svc.Start(context.Background(), other.ID); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("start without request data: want=ErrNotAuthenticated got=%v", err)
	}

	stranger := requestdata.WithRequestData(context.Background(), &requestdata.RequestData{UserID: uuid.New()})
	if err := svc.Start(stranger, other.ID); !errors.Is(err, ErrCourseNotFound) {
		t.Fatalf("start as non-owner: want=ErrCourseNotFound got=%v", err)
	}
}

func TestCourseGenerationRejectsConcurrentStart(t *testing.T) {
	env := newTestEnv(t)
	course := env.seedCourse(types.CourseStatusDraft, []string{"a"})

	release := make(chan struct{})
	if err := env.registry.Start(course.ID.String(), func(ctx context.Context) { <-release }); err != nil {
		t.Fatalf("occupy registry key: %v", err)
	}
	defer close(release)

	svc := env.courseGen()
	if err := svc.Start(env.ctx(), course.ID); !errors.Is(err, jobs.ErrAlreadyRunning) {
		t.Fatalf("concurrent start: want=ErrAlreadyRunning got=%v", err)
	}
	// The rejected start must not have touched the status.
	if env.reloadCourse(course.ID).Status != types.CourseStatusDraft {
		t.Fatalf("rejected start changed course status")
	}
}
