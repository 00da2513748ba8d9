// Package state exposes the synced collections to consumers as observable
// per-entity slices, each with its data, pagination cursor and
// loading/error status.
package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/atinyakov/OfficeSync/internal/entitysync"
	"go.uber.org/zap"
)

// ErrStale is returned by Fetch when a newer fetch or a reset superseded it.
// The response was discarded and the state left untouched.
var ErrStale = errors.New("stale response discarded")

// Status is the lifecycle of a slice.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusPending   Status = "pending"
	StatusFulfilled Status = "fulfilled"
	StatusRejected  Status = "rejected"
)

// SliceState is a snapshot of one entity slice.
type SliceState[T any] struct {
	Status  Status
	Data    []T
	LastDoc string
	HasMore bool
	Loading bool
	// Error is the message of the last failed fetch, or empty.
	Error string
}

// FetchArgs selects the page a slice fetches.
type FetchArgs struct {
	Owner    string
	Since    time.Time
	Token    string
	PageSize int
}

// Syncer is the part of an entitysync.Engine used by a Slice.
type Syncer[T entitysync.Record] interface {
	Entity() string
	Sync(ctx context.Context, req entitysync.Request) (entitysync.Result[T], error)
	Persist(ctx context.Context, records []T) error
}

// Slice holds the state of one entity and drives its fetches.
type Slice[T entitysync.Record] struct {
	engine Syncer[T]
	log    *zap.Logger

	mu     sync.Mutex
	state  SliceState[T]
	seq    uint64
	nextID int
	subs   map[int]chan SliceState[T]
}

// NewSlice returns an idle slice over engine.
func NewSlice[T entitysync.Record](engine Syncer[T], log *zap.Logger) *Slice[T] {
	if log == nil {
		log = zap.NewNop()
	}
	return &Slice[T]{
		engine: engine,
		log:    log.With(zap.String("entity", engine.Entity())),
		state:  initial[T](),
		subs:   make(map[int]chan SliceState[T]),
	}
}

func initial[T any]() SliceState[T] {
	return SliceState[T]{Status: StatusIdle, Data: []T{}}
}

// Entity returns the collection name of the slice.
func (s *Slice[T]) Entity() string { return s.engine.Entity() }

// Fetch syncs one page and applies it. The slice is pending until the page
// is persisted locally, then fulfilled; any failure leaves it rejected with
// the error message. A page fetched with a token is merged by key into the
// current data; otherwise it replaces the data. An offline round leaves
// the data and cursor as they were.
//
// Only the most recently started fetch may update the state. Older
// responses return ErrStale.
func (s *Slice[T]) Fetch(ctx context.Context, args FetchArgs) error {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.state.Status = StatusPending
	s.state.Loading = true
	s.state.Error = ""
	s.publishLocked()
	s.mu.Unlock()

	res, err := s.run(ctx, args)

	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.seq {
		s.log.Debug("discarding stale response", zap.Uint64("seq", seq), zap.Uint64("latest", s.seq))
		return ErrStale
	}

	s.state.Loading = false
	if err != nil {
		s.state.Status = StatusRejected
		s.state.Error = err.Error()
		s.log.Warn("fetch failed", zap.Error(err))
		s.publishLocked()
		return err
	}

	if res.Offline {
		s.state.Status = StatusFulfilled
		s.state.HasMore = false
		s.publishLocked()
		return nil
	}

	if args.Token != "" {
		s.state.Data = mergeByKey(s.state.Data, res.Data)
	} else {
		s.state.Data = res.Data
	}
	s.state.Status = StatusFulfilled
	s.state.LastDoc = res.LastDoc
	s.state.HasMore = res.HasMore
	s.publishLocked()
	return nil
}

// run syncs and persists one page. Panics are turned into errors.
func (s *Slice[T]) run(ctx context.Context, args FetchArgs) (res entitysync.Result[T], err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s sync panicked: %v", s.engine.Entity(), r)
		}
	}()

	res, err = s.engine.Sync(ctx, entitysync.Request{
		Owner:    args.Owner,
		Since:    args.Since,
		Token:    args.Token,
		PageSize: args.PageSize,
	})
	if err != nil || res.Offline {
		return res, err
	}
	if err := s.engine.Persist(ctx, res.Data); err != nil {
		return res, err
	}
	return res, nil
}

// ClearError drops the error message, keeping everything else.
func (s *Slice[T]) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Error = ""
	s.publishLocked()
}

// Reset returns the slice to its initial idle state. A fetch in flight is
// discarded when it completes.
func (s *Slice[T]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.state = initial[T]()
	s.publishLocked()
}

// State returns a snapshot of the slice.
func (s *Slice[T]) State() SliceState[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe returns a channel receiving a snapshot after every change and a
// func that unsubscribes and closes it. Slow subscribers only see the
// latest snapshot.
func (s *Slice[T]) Subscribe() (<-chan SliceState[T], func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan SliceState[T], 1)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}

func (s *Slice[T]) snapshotLocked() SliceState[T] {
	snap := s.state
	snap.Data = append([]T(nil), s.state.Data...)
	if snap.Data == nil {
		snap.Data = []T{}
	}
	return snap
}

func (s *Slice[T]) publishLocked() {
	if len(s.subs) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

// mergeByKey replaces records of current sharing a key with next and
// appends the others, then restores newest-first order.
func mergeByKey[T entitysync.Record](current, next []T) []T {
	merged := append([]T(nil), current...)
	index := make(map[string]int, len(merged))
	for i, r := range merged {
		index[r.SyncKey()] = i
	}
	for _, r := range next {
		if i, ok := index[r.SyncKey()]; ok {
			merged[i] = r
			continue
		}
		index[r.SyncKey()] = len(merged)
		merged = append(merged, r)
	}
	entitysync.SortNewestFirst(merged)
	return merged
}
