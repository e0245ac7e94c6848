// Package registry is the concurrent-safe store of task state. It is the
// only shared mutable structure in the core: one worker writes each task,
// progress pollers read it, and a background sweep reclaims entries whose
// owners never came back for them.
package registry

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"
)

type Status string

const (
	StatusStarting    Status = "starting"
	StatusDownloading Status = "downloading"
	StatusProcessing  Status = "processing"
	StatusDone        Status = "done"
	StatusError       Status = "error"
)

// Terminal reports whether no further transitions can occur.
func (s Status) Terminal() bool { return s == StatusDone || s == StatusError }

// Task tracks a single trim request from acceptance to completion. Fields
// are written only by the task's own worker; readers get copies.
type Task struct {
	ID         string    `json:"id"`
	Status     Status    `json:"status"`
	Progress   float64   `json:"progress"`
	Speed      string    `json:"speed"`
	ETA        string    `json:"eta"`
	Size       string    `json:"size"`
	Downloaded string    `json:"downloaded"`
	Phase      string    `json:"phase"`
	Error      string    `json:"error,omitempty"`
	FilePath   string    `json:"-"`
	FileName   string    `json:"file_name,omitempty"`
	FileSize   int64     `json:"file_size,omitempty"`
	MimeType   string    `json:"-"`
	WorkDir    string    `json:"-"`
	CreatedAt  time.Time `json:"-"`
}

const (
	defaultSweepInterval = 5 * time.Minute
	defaultStaleness     = 30 * time.Minute
)

type Registry struct {
	mu    sync.RWMutex
	tasks map[string]*Task
	now   func() time.Time
}

func New() *Registry {
	return &Registry{
		tasks: make(map[string]*Task),
		now:   time.Now,
	}
}

// Create registers a new task snapshot under its id.
func (r *Registry) Create(t Task) {
	t.CreatedAt = r.now()

	r.mu.Lock()
	r.tasks[t.ID] = &t
	r.mu.Unlock()
}

// Get returns a copy of the task, if present.
func (r *Registry) Get(id string) (Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// Mutate applies fn to the task under the exclusive lock. A write against
// a removed id is a tolerated no-op: a worker may outlive its abandoned
// task. The return value reports whether the task still existed.
func (r *Registry) Mutate(id string, fn func(*Task)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return false
	}
	fn(t)
	return true
}

// Remove drops the entry and returns its last state. Removing an unknown
// id is a no-op, which makes collaborator cleanup idempotent.
func (r *Registry) Remove(id string) (Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return Task{}, false
	}
	delete(r.tasks, id)
	return *t, true
}

// Len returns the number of tracked tasks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}

// Sweep removes every task older than the staleness window and deletes
// its working directory. Nobody is notified; later polls for a swept id
// simply report not-found.
func (r *Registry) Sweep(staleness time.Duration) int {
	cutoff := r.now().Add(-staleness)

	r.mu.Lock()
	var stale []*Task
	for id, t := range r.tasks {
		if t.CreatedAt.Before(cutoff) {
			stale = append(stale, t)
			delete(r.tasks, id)
		}
	}
	r.mu.Unlock()

	for _, t := range stale {
		if t.WorkDir != "" {
			if err := os.RemoveAll(t.WorkDir); err != nil {
				slog.Error("failed to remove stale work dir",
					slog.String("id", t.ID),
					slog.String("dir", t.WorkDir),
					slog.Any("err", err),
				)
			}
		}
		slog.Info("swept stale task",
			slog.String("id", t.ID),
			slog.String("status", string(t.Status)),
		)
	}

	return len(stale)
}

// StartSweeper runs Sweep on a fixed interval until ctx is cancelled.
// Zero values pick the defaults.
func (r *Registry) StartSweeper(ctx context.Context, interval, staleness time.Duration) {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if staleness <= 0 {
		staleness = defaultStaleness
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(staleness)
		}
	}
}
