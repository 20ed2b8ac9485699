package task

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"fetchd/internal/logctx"
)

// Store keeps every known task in memory, keyed by id. All reads return
// snapshots taken under the lock, so status, progress and filename are
// always observed consistently. Nothing is persisted; a restart starts
// empty.
type Store struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

func NewStore() *Store {
	return &Store{tasks: make(map[string]*Task)}
}

// Create registers a new queued task and returns its snapshot.
func (s *Store) Create(sourceURL, requestedFormat, cookieFile string, cookieUploaded bool) Task {
	t := &Task{
		ID:              uuid.New().String(),
		Status:          StatusQueued,
		Progress:        "0%",
		SourceURL:       sourceURL,
		RequestedFormat: requestedFormat,
		CookieFile:      cookieFile,
		CookieUploaded:  cookieUploaded,
		CreatedAt:       time.Now(),
	}

	s.mu.Lock()
	s.tasks[t.ID] = t
	snapshot := *t
	s.mu.Unlock()

	return snapshot
}

// Get returns a snapshot of the task with the given id.
func (s *Store) Get(id string) (Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return Task{}, false
	}

	return *t, true
}

// Update applies mutate to the stored task while holding the write lock;
// a poller can never observe the task mid-mutation. Updating an unknown
// id is a logged no-op. mutate must not block.
func (s *Store) Update(ctx context.Context, id string, mutate func(*Task)) {
	s.mu.Lock()
	t, ok := s.tasks[id]
	if ok {
		mutate(t)
	}
	s.mu.Unlock()

	if !ok {
		logctx.From(ctx).WarnContext(ctx, "update for unknown task", "task_id", id)
	}
}

// Sweep removes terminal tasks that finished more than ttl ago and
// returns their snapshots so callers can release whatever the tasks left
// behind.
func (s *Store) Sweep(ttl time.Duration) []Task {
	cutoff := time.Now().Add(-ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted []Task

	for id, t := range s.tasks {
		if t.Status.Terminal() && !t.FinishedAt.IsZero() && t.FinishedAt.Before(cutoff) {
			evicted = append(evicted, *t)
			delete(s.tasks, id)
		}
	}

	return evicted
}

// Len reports the number of tracked tasks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.tasks)
}
