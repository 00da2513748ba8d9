package state

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/atinyakov/OfficeSync/internal/entitysync"
	"github.com/atinyakov/OfficeSync/internal/feed"
	"github.com/atinyakov/OfficeSync/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Refresher is implemented by every *Slice.
type Refresher interface {
	Entity() string
	Fetch(ctx context.Context, args FetchArgs) error
}

// Store holds the slices by entity name.
type Store struct {
	mu     sync.RWMutex
	slices map[string]Refresher
	log    *zap.Logger
}

// NewStore returns an empty Store.
func NewStore(log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{slices: make(map[string]Refresher), log: log}
}

// Register adds a slice. Each entity may be registered once.
func (s *Store) Register(r Refresher) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.slices[r.Entity()]; ok {
		return fmt.Errorf("state: entity %q already registered", r.Entity())
	}
	s.slices[r.Entity()] = r
	return nil
}

// Lookup returns the slice registered for entity.
func Lookup[T entitysync.Record](s *Store, entity string) (*Slice[T], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sl, ok := s.slices[entity].(*Slice[T])
	return sl, ok
}

// Users returns the users slice, or nil if none is registered.
func (s *Store) Users() *Slice[models.User] {
	sl, _ := Lookup[models.User](s, models.EntityUsers)
	return sl
}

// Tasks returns the tasks slice, or nil if none is registered.
func (s *Store) Tasks() *Slice[models.Task] {
	sl, _ := Lookup[models.Task](s, models.EntityTasks)
	return sl
}

// Entities returns the registered entity names in sorted order.
func (s *Store) Entities() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.slices))
	for name := range s.slices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FetchAll fetches the first page of every registered slice concurrently.
// Owner-scoped slices are skipped when owner is empty. Every slice runs to
// completion; the first error is returned.
func (s *Store) FetchAll(ctx context.Context, owner string) error {
	s.mu.RLock()
	slices := make([]Refresher, 0, len(s.slices))
	for _, r := range s.slices {
		slices = append(slices, r)
	}
	s.mu.RUnlock()

	var g errgroup.Group
	for _, r := range slices {
		if owner == "" && feed.RequiresOwner(r.Entity()) {
			s.log.Debug("skipping owner-scoped slice", zap.String("entity", r.Entity()))
			continue
		}
		g.Go(func() error {
			return r.Fetch(ctx, FetchArgs{Owner: owner})
		})
	}
	return g.Wait()
}
