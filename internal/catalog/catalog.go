package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/yungbote/learnloop-backend/internal/logger"
)

// Course is one prebuilt catalog entry, loaded from a course.json file at
// startup. Creating a course from the catalog copies these fields into a
// draft course_instance.
type Course struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Objectives  []string `json:"objectives"`
	Tags        []string `json:"tags,omitempty"`
}

type Service interface {
	List() []Course
	Get(id string) *Course
}

type service struct {
	mu      sync.RWMutex
	courses map[string]Course
	order   []string
}

// NewService loads every *.json file under dir. A missing directory is not
// an error: the catalog is optional and the service starts empty.
func NewService(dir string, log *logger.Logger) (Service, error) {
	s := &service{courses: map[string]Course{}}
	if dir == "" {
		return s, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("catalog directory not found, starting with empty catalog", "dir", dir)
			return s, nil
		}
		return nil, fmt.Errorf("read catalog dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog file %s: %w", path, err)
		}
		var course Course
		if err := json.Unmarshal(raw, &course); err != nil {
			return nil, fmt.Errorf("parse catalog file %s: %w", path, err)
		}
		if course.ID == "" {
			course.ID = strings.TrimSuffix(entry.Name(), ".json")
		}
		if len(course.Objectives) == 0 {
			log.Warn("skipping catalog entry with no objectives", "file", entry.Name())
			continue
		}
		s.courses[course.ID] = course
		s.order = append(s.order, course.ID)
	}
	sort.Strings(s.order)
	log.Info("catalog loaded", "courses", len(s.courses), "dir", dir)
	return s, nil
}

func (s *service) List() []Course {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Course, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.courses[id])
	}
	return out
}

func (s *service) Get(id string) *Course {
	s.mu.RLock()
	defer s.mu.RUnlock()
	course, ok := s.courses[id]
	if !ok {
		return nil
	}
	return &course
}
