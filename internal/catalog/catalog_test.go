package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/yungbote/learnloop-backend/internal/logger"
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

func writeEntry(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestCatalogLoadsAndSortsEntries(t *testing.T) {
	dir := t.TempDir()
	writeEntry(t, dir, "zz.json", `{"id":"zz","title":"Z","description":"d","objectives":["o"]}`)
	writeEntry(t, dir, "aa.json", `{"id":"aa","title":"A","description":"d","objectives":["o"]}`)
	writeEntry(t, dir, "notes.txt", "ignored")

	svc, err := NewService(dir, mustTestLogger(t))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	list := svc.List()
	if len(list) != 2 {
		t.Fatalf("list size: want=2 got=%d", len(list))
	}
	if list[0].ID != "aa" || list[1].ID != "zz" {
		t.Fatalf("list order: got %s,%s", list[0].ID, list[1].ID)
	}
}

func TestCatalogFallsBackToFilenameID(t *testing.T) {
	dir := t.TempDir()
	writeEntry(t, dir, "raft-101.json", `{"title":"Raft","description":"d","objectives":["o"]}`)

	svc, err := NewService(dir, mustTestLogger(t))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if got := svc.Get("raft-101"); got == nil || got.Title != "Raft" {
		t.Fatalf("Get by filename id: got %+v", got)
	}
}

func TestCatalogSkipsEntriesWithoutObjectives(t *testing.T) {
	dir := t.TempDir()
	writeEntry(t, dir, "empty.json", `{"id":"empty","title":"E","description":"d","objectives":[]}`)

	svc, err := NewService(dir, mustTestLogger(t))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if len(svc.List()) != 0 {
		t.Fatalf("entry without objectives must be skipped")
	}
}

func TestCatalogMissingDirIsEmpty(t *testing.T) {
	svc, err := NewService("/definitely/not/here", mustTestLogger(t))
	if err != nil {
		t.Fatalf("missing dir must not error: %v", err)
	}
	if len(svc.List()) != 0 {
		t.Fatalf("missing dir must yield empty catalog")
	}
	if svc.Get("anything") != nil {
		t.Fatalf("Get on empty catalog must return nil")
	}
}
