package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/atinyakov/OfficeSync/internal/feed"
	"github.com/atinyakov/OfficeSync/internal/models"
)

// MemoryDocumentRepository keeps the document collections in process
// memory. It backs the server when no database is configured and serves
// as a fake in tests. It follows the same keyset ordering as the Postgres
// repository.
type MemoryDocumentRepository struct {
	mu    sync.RWMutex
	users map[string]models.User
	tasks map[string]models.Task
	// now stamps updated_at; replaceable in tests.
	now  func() time.Time
	last time.Time
}

// NewMemoryDocumentRepository creates an empty repository.
func NewMemoryDocumentRepository() *MemoryDocumentRepository {
	return &MemoryDocumentRepository{
		users: make(map[string]models.User),
		tasks: make(map[string]models.Task),
		now:   time.Now,
	}
}

// WithClock replaces the time source used to stamp updated_at.
func (r *MemoryDocumentRepository) WithClock(now func() time.Time) *MemoryDocumentRepository {
	r.now = now
	return r
}

// stamp returns a strictly increasing modification time.
func (r *MemoryDocumentRepository) stamp() time.Time {
	t := r.now().UTC()
	if !t.After(r.last) {
		t = r.last.Add(time.Microsecond)
	}
	r.last = t
	return t
}

// UsersChangedSince implements service.DocumentRepository.
func (r *MemoryDocumentRepository) UsersChangedSince(_ context.Context, since time.Time, cursor feed.Cursor, limit int) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	afterTime, afterKey := after(since, cursor)
	var out []models.User
	for _, u := range r.users {
		if u.UpdatedAt.After(since) && keysetAfter(u.UpdatedAt, u.UID, afterTime, afterKey) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return keysetLess(out[i].UpdatedAt, out[i].UID, out[j].UpdatedAt, out[j].UID)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// TasksChangedSince implements service.DocumentRepository.
func (r *MemoryDocumentRepository) TasksChangedSince(_ context.Context, owner string, since time.Time, cursor feed.Cursor, limit int) ([]models.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	afterTime, afterKey := after(since, cursor)
	var out []models.Task
	for _, t := range r.tasks {
		if t.UserID == owner && t.UpdatedAt.After(since) && keysetAfter(t.UpdatedAt, t.TaskID, afterTime, afterKey) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return keysetLess(out[i].UpdatedAt, out[i].TaskID, out[j].UpdatedAt, out[j].TaskID)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UpsertUsers implements service.DocumentRepository.
func (r *MemoryDocumentRepository) UpsertUsers(_ context.Context, users []models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range users {
		now := r.stamp()
		if prev, ok := r.users[u.UID]; ok {
			u.CreatedAt = prev.CreatedAt
		} else if u.CreatedAt.IsZero() {
			u.CreatedAt = now
		}
		u.UpdatedAt = now
		r.users[u.UID] = u
	}
	return nil
}

// UpsertTasks implements service.DocumentRepository.
func (r *MemoryDocumentRepository) UpsertTasks(_ context.Context, tasks []models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range tasks {
		now := r.stamp()
		if prev, ok := r.tasks[t.TaskID]; ok {
			t.CreatedAt = prev.CreatedAt
		} else if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		t.UpdatedAt = now
		r.tasks[t.TaskID] = t
	}
	return nil
}

// CountTasksByOwners implements service.DocumentRepository.
func (r *MemoryDocumentRepository) CountTasksByOwners(_ context.Context, owners []string) (map[string]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wanted := make(map[string]bool, len(owners))
	for _, o := range owners {
		wanted[o] = true
	}
	counts := make(map[string]int)
	for _, t := range r.tasks {
		if wanted[t.UserID] {
			counts[t.UserID]++
		}
	}
	return counts, nil
}

func keysetLess(t1 time.Time, k1 string, t2 time.Time, k2 string) bool {
	if !t1.Equal(t2) {
		return t1.Before(t2)
	}
	return k1 < k2
}

func keysetAfter(t time.Time, k string, afterTime time.Time, afterKey string) bool {
	return keysetLess(afterTime, afterKey, t, k)
}
