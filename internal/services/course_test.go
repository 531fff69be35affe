package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/learnloop-backend/internal/catalog"
	"github.com/yungbote/learnloop-backend/internal/requestdata"
	"github.com/yungbote/learnloop-backend/internal/types"
)

func (e *testEnv) courseSvc(cat catalog.Service) CourseService {
	if cat == nil {
		empty, err := catalog.NewService("", e.log)
		if err != nil {
			e.t.Fatalf("empty catalog: %v", err)
		}
		cat = empty
	}
	return NewCourseService(e.db, e.log, e.courseRepo, cat, e.progression)
}

func TestCourseCreateCustomDraft(t *testing.T) {
	env := newTestEnv(t)
	svc := env.courseSvc(nil)

	course, err := svc.Create(env.ctx(), CreateCourseInput{
		Description: "learn distributed consensus",
		Objectives:  []string{"understand quorums", "apply raft"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if course.Status != types.CourseStatusDraft {
		t.Fatalf("new course status: want=draft got=%s", course.Status)
	}
	if course.SourceType != CourseSourceCustom {
		t.Fatalf("source type: want=custom got=%s", course.SourceType)
	}
	if got := course.Objectives(); len(got) != 2 || got[0] != "understand quorums" {
		t.Fatalf("objectives snapshot: got %v", got)
	}
}

func TestCourseCreateRequiresObjectives(t *testing.T) {
	env := newTestEnv(t)
	svc := env.courseSvc(nil)

	if _, err := svc.Create(env.ctx(), CreateCourseInput{Description: "no objectives"}); !errors.Is(err, ErrObjectivesMissing) {
		t.Fatalf("want=ErrObjectivesMissing got=%v", err)
	}
}

func TestCourseCreateFromCatalog(t *testing.T) {
	env := newTestEnv(t)

	dir := t.TempDir()
	entry := `{"id":"raft-101","title":"Raft 101","description":"consensus from scratch","objectives":["leader election","log replication"]}`
	if err := os.WriteFile(filepath.Join(dir, "raft-101.json"), []byte(entry), 0o644); err != nil {
		t.Fatalf("write catalog file: %v", err)
	}
	cat, err := catalog.NewService(dir, env.log)
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	svc := env.courseSvc(cat)

	course, err := svc.Create(env.ctx(), CreateCourseInput{
		SourceType:     CourseSourceCatalog,
		SourceCourseID: "raft-101",
	})
	if err != nil {
		t.Fatalf("Create from catalog: %v", err)
	}
	if course.SourceCourseID != "raft-101" {
		t.Fatalf("source course id: want=raft-101 got=%s", course.SourceCourseID)
	}
	if course.InputDescription != "consensus from scratch" {
		t.Fatalf("description copied from catalog: got %q", course.InputDescription)
	}
	if got := course.Objectives(); len(got) != 2 {
		t.Fatalf("objectives copied from catalog: got %v", got)
	}

	if _, err := svc.Create(env.ctx(), CreateCourseInput{
		SourceType:     CourseSourceCatalog,
		SourceCourseID: "missing",
	}); !errors.Is(err, ErrCatalogNotFound) {
		t.Fatalf("unknown catalog id: want=ErrCatalogNotFound got=%v", err)
	}
}

func TestCourseListFiltersByStatus(t *testing.T) {
	env := newTestEnv(t)
	svc := env.courseSvc(nil)
	env.seedCourse(types.CourseStatusDraft, []string{"a"})
	env.seedCourse(types.CourseStatusInProgress, []string{"a"})

	all, err := svc.List(env.ctx(), "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("unfiltered list: want=2 got=%d", len(all))
	}

	drafts, err := svc.List(env.ctx(), types.CourseStatusDraft)
	if err != nil {
		t.Fatalf("List drafts: %v", err)
	}
	if len(drafts) != 1 || drafts[0].Status != types.CourseStatusDraft {
		t.Fatalf("filtered list: got %d rows", len(drafts))
	}
}

func TestCourseOwnershipHidesOtherUsers(t *testing.T) {
	env := newTestEnv(t)
	svc := env.courseSvc(nil)
	course := env.seedCourse(types.CourseStatusDraft, []string{"a"})

	stranger := requestdata.WithRequestData(context.Background(), &requestdata.RequestData{UserID: uuid.New()})
	if _, err := svc.Get(stranger, course.ID); !errors.Is(err, ErrCourseNotFound) {
		t.Fatalf("stranger Get: want=ErrCourseNotFound got=%v", err)
	}
	if err := svc.Delete(stranger, course.ID); !errors.Is(err, ErrCourseNotFound) {
		t.Fatalf("stranger Delete: want=ErrCourseNotFound got=%v", err)
	}
	if _, err := svc.Get(env.ctx(), course.ID); err != nil {
		t.Fatalf("owner Get: %v", err)
	}
}

func TestCourseDeleteSoftDeletes(t *testing.T) {
	env := newTestEnv(t)
	svc := env.courseSvc(nil)
	course := env.seedCourse(types.CourseStatusDraft, []string{"a"})

	if err := svc.Delete(env.ctx(), course.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(env.ctx(), course.ID); !errors.Is(err, ErrCourseNotFound) {
		t.Fatalf("deleted course must read as not found, got %v", err)
	}
}

func TestCoursePatchStateUsesTransitionTable(t *testing.T) {
	env := newTestEnv(t)
	svc := env.courseSvc(nil)
	course := env.seedCourse(types.CourseStatusActive, []string{"a"})

	updated, err := svc.TransitionState(env.ctx(), course.ID, types.CourseStatusInProgress)
	if err != nil {
		t.Fatalf("active->in_progress: %v", err)
	}
	if updated.Status != types.CourseStatusInProgress {
		t.Fatalf("status: want=in_progress got=%s", updated.Status)
	}

	var invalid *InvalidTransitionError
	if _, err := svc.TransitionState(env.ctx(), course.ID, types.CourseStatusCompleted); !errors.As(err, &invalid) {
		t.Fatalf("in_progress->completed: want=InvalidTransitionError got=%v", err)
	}
}
