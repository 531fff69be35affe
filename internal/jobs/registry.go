package jobs

import (
	"context"
	"errors"
	"sync"

	"github.com/yungbote/learnloop-backend/internal/logger"
)

// ErrAlreadyRunning is returned by Start when the key already has a live
// job. Callers surface it as a 409.
var ErrAlreadyRunning = errors.New("job already running for this resource")

// AssessmentKey namespaces assessment-generation jobs so a course can run
// content generation and assessment generation under distinct keys.
func AssessmentKey(courseID string) string { return "assessment:" + courseID }

type job struct {
	done bool
}

// Registry tracks at most one in-flight background job per resource key.
// Jobs run detached from the request that started them: the goroutine gets
// a context derived from the registry's base context, never the request's,
// so a client disconnect cannot cancel generation mid-flight.
type Registry struct {
	mu      sync.Mutex
	log     *logger.Logger
	baseCtx context.Context
	jobs    map[string]*job
}

func NewRegistry(baseCtx context.Context, log *logger.Logger) *Registry {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &Registry{
		log:     log.With("component", "JobRegistry"),
		baseCtx: baseCtx,
		jobs:    make(map[string]*job),
	}
}

// Start spawns fn as a detached goroutine registered under key. The entry
// is removed when fn returns for any reason, including panic; cleanup never
// touches the event bus, since subscribers may still be draining buffered
// events after the job finishes.
func (r *Registry) Start(key string, fn func(ctx context.Context)) error {
	r.mu.Lock()
	if j, ok := r.jobs[key]; ok && !j.done {
		r.mu.Unlock()
		return ErrAlreadyRunning
	}
	j := &job{}
	r.jobs[key] = j
	r.mu.Unlock()

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error("job panicked", "key", key, "panic", rec)
			}
			r.complete(key, j)
		}()
		fn(r.baseCtx)
	}()

	return nil
}

func (r *Registry) IsRunning(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[key]
	return ok && !j.done
}

func (r *Registry) complete(key string, j *job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j.done = true
	if cur, ok := r.jobs[key]; ok && cur == j {
		delete(r.jobs, key)
	}
	r.log.Debug("job finished", "key", key)
}
