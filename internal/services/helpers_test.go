package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/learnloop-backend/internal/db/dbtest"
	"github.com/yungbote/learnloop-backend/internal/jobs"
	"github.com/yungbote/learnloop-backend/internal/logger"
	"github.com/yungbote/learnloop-backend/internal/repos"
	"github.com/yungbote/learnloop-backend/internal/requestdata"
	"github.com/yungbote/learnloop-backend/internal/sse"
	"github.com/yungbote/learnloop-backend/internal/types"
)

func mustTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)
	return log
}

// testEnv wires the full service stack against an in-memory database with a
// scripted agent layer.
type testEnv struct {
	t   *testing.T
	db  *gorm.DB
	log *logger.Logger

	bus      *sse.Bus
	registry *jobs.Registry

	userRepo       repos.UserRepo
	profileRepo    repos.LearnerProfileRepo
	courseRepo     repos.CourseRepo
	lessonRepo     repos.LessonRepo
	activityRepo   repos.ActivityRepo
	assessmentRepo repos.AssessmentRepo

	progression ProgressionService
	agents      *fakeAgents

	userID uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := mustTestLogger(t)
	gdb := dbtest.Open(t)

	env := &testEnv{
		t:              t,
		db:             gdb,
		log:            log,
		bus:            sse.NewBus(log),
		registry:       jobs.NewRegistry(context.Background(), log),
		userRepo:       repos.NewUserRepo(gdb, log),
		profileRepo:    repos.NewLearnerProfileRepo(gdb, log),
		courseRepo:     repos.NewCourseRepo(gdb, log),
		lessonRepo:     repos.NewLessonRepo(gdb, log),
		activityRepo:   repos.NewActivityRepo(gdb, log),
		assessmentRepo: repos.NewAssessmentRepo(gdb, log),
		agents:         newFakeAgents(),
		userID:         uuid.New(),
	}
	env.progression = NewProgressionService(gdb, log, env.courseRepo, env.lessonRepo)

	if err := gdb.Create(&types.User{ID: env.userID, Email: fmt.Sprintf("%s@test.local", env.userID), CreatedAt: time.Now()}).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return env
}

func (e *testEnv) ctx() context.Context {
	return requestdata.WithRequestData(context.Background(), &requestdata.RequestData{UserID: e.userID})
}

func (e *testEnv) courseGen() CourseGenerationService {
	return NewCourseGenerationService(
		e.db, e.log, e.bus, e.registry,
		e.courseRepo, e.lessonRepo, e.activityRepo, e.profileRepo,
		e.progression, e.agents,
	)
}

func (e *testEnv) assessmentGen() AssessmentGenerationService {
	return NewAssessmentGenerationService(
		e.db, e.log, e.bus, e.registry,
		e.courseRepo, e.assessmentRepo, e.profileRepo,
		e.progression, e.agents,
	)
}

func (e *testEnv) seedCourse(status string, objectives []string) *types.CourseInstance {
	e.t.Helper()
	now := time.Now()
	course := &types.CourseInstance{
		ID:               uuid.New(),
		UserID:           e.userID,
		SourceType:       CourseSourceCustom,
		InputDescription: "intro to distributed systems",
		InputObjectives:  types.MustJSON(objectives),
		Status:           status,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if _, err := e.courseRepo.Create(context.Background(), nil, []*types.CourseInstance{course}); err != nil {
		e.t.Fatalf("seed course: %v", err)
	}
	return course
}

func (e *testEnv) seedLesson(courseID uuid.UUID, index int, content string, status string) *types.Lesson {
	e.t.Helper()
	now := time.Now()
	lesson := &types.Lesson{
		ID:               uuid.New(),
		CourseInstanceID: courseID,
		ObjectiveIndex:   index,
		Status:           status,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if content != "" {
		lesson.LessonContent = &content
	}
	if _, err := e.lessonRepo.Create(context.Background(), nil, []*types.Lesson{lesson}); err != nil {
		e.t.Fatalf("seed lesson: %v", err)
	}
	return lesson
}

func (e *testEnv) seedActivity(lessonID uuid.UUID, spec *ActivitySpec) *types.Activity {
	e.t.Helper()
	now := time.Now()
	activity := &types.Activity{
		ID:           uuid.New(),
		LessonID:     lessonID,
		ActivitySpec: types.MustJSON(spec),
		Submissions:  types.MustJSON([]any{}),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := e.activityRepo.Create(context.Background(), nil, []*types.Activity{activity}); err != nil {
		e.t.Fatalf("seed activity: %v", err)
	}
	return activity
}

func (e *testEnv) waitForJob(key string) {
	e.t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if !e.registry.IsRunning(key) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	e.t.Fatalf("job %q did not finish", key)
}

func (e *testEnv) reloadCourse(id uuid.UUID) *types.CourseInstance {
	e.t.Helper()
	course, err := e.courseRepo.GetWithChildren(context.Background(), nil, id)
	if err != nil || course == nil {
		e.t.Fatalf("reload course: %v", err)
	}
	return course
}

// drainEvents collects everything buffered on the subscriber without
// blocking.
func drainEvents(sub *sse.Subscriber) []sse.Event {
	var out []sse.Event
	for {
		select {
		case ev := <-sub.C:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func eventNames(events []sse.Event) []string {
	names := make([]string, 0, len(events))
	for _, ev := range events {
		names = append(names, ev.Name)
	}
	return names
}

// fakeAgents scripts the agent layer. Per-objective failures are keyed by
// the objective text; counters record how many real calls happened.
type fakeAgents struct {
	mu sync.Mutex

	planErr     map[string]error
	writeErr    map[string]error
	activityErr map[string]error

	assessmentErr error
	reviewErr     error

	planCalls     int
	writeCalls    int
	activityCalls int

	activityReview   *ActivityReview
	assessmentReview *AssessmentReview
}

func newFakeAgents() *fakeAgents {
	return &fakeAgents{
		planErr:     map[string]error{},
		writeErr:    map[string]error{},
		activityErr: map[string]error{},
	}
}

func (f *fakeAgents) PlanLesson(ctx context.Context, meta AgentMeta, objective, description string, allObjectives []string, profile map[string]any) (*LessonPlan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.planCalls++
	if err := f.planErr[objective]; err != nil {
		return nil, err
	}
	return &LessonPlan{
		LessonTitle:       "Lesson: " + objective,
		LearningObjective: objective,
		KeyConcepts:       []string{"concept"},
		LessonOutline:     []string{"outline"},
		SuggestedActivity: ActivitySeed{ActivityType: "exercise", Prompt: "do " + objective},
		MasteryCriteria:   []string{"can " + objective},
	}, nil
}

func (f *fakeAgents) WriteLesson(ctx context.Context, meta AgentMeta, plan *LessonPlan, description string, profile map[string]any) (*LessonContent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeCalls++
	if err := f.writeErr[plan.LearningObjective]; err != nil {
		return nil, err
	}
	return &LessonContent{
		LessonTitle:  plan.LessonTitle,
		LessonBody:   "body for " + plan.LearningObjective,
		KeyTakeaways: []string{"takeaway"},
	}, nil
}

func (f *fakeAgents) CreateActivity(ctx context.Context, meta AgentMeta, seed ActivitySeed, objective string, masteryCriteria []string, profile map[string]any) (*ActivitySpec, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activityCalls++
	if err := f.activityErr[objective]; err != nil {
		return nil, err
	}
	return &ActivitySpec{
		ActivityType:  seed.ActivityType,
		Instructions:  "instructions",
		Prompt:        seed.Prompt,
		ScoringRubric: []string{"rubric"},
	}, nil
}

func (f *fakeAgents) ReviewActivity(ctx context.Context, meta AgentMeta, submission, objective, activityPrompt string, rubric []string) (*ActivityReview, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reviewErr != nil {
		return nil, f.reviewErr
	}
	if f.activityReview != nil {
		return f.activityReview, nil
	}
	return &ActivityReview{Score: 90, Rationale: "solid", MasteryDecision: "meets"}, nil
}

func (f *fakeAgents) CreateAssessment(ctx context.Context, meta AgentMeta, objectives []string, description string, scores []ActivityScorePoint, profile map[string]any) (*AssessmentSpec, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.assessmentErr != nil {
		return nil, f.assessmentErr
	}
	items := make([]AssessmentItem, 0, len(objectives))
	for _, obj := range objectives {
		items = append(items, AssessmentItem{Objective: obj, Prompt: "show " + obj, Rubric: []string{"rubric"}})
	}
	return &AssessmentSpec{AssessmentTitle: "Final assessment", Items: items}, nil
}

func (f *fakeAgents) ReviewAssessment(ctx context.Context, meta AgentMeta, spec *AssessmentSpec, submissions []AssessmentSubmission) (*AssessmentReview, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reviewErr != nil {
		return nil, f.reviewErr
	}
	if f.assessmentReview != nil {
		return f.assessmentReview, nil
	}
	return &AssessmentReview{OverallScore: 88, PassDecision: "pass"}, nil
}

func (f *fakeAgents) calls() (plan, write, activity int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.planCalls, f.writeCalls, f.activityCalls
}
