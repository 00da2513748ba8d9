// Package entitysync orchestrates "fetch delta, order, persist, expose" for
// any synced record type. An Engine is built per entity from a remote fetch
// function, a local upsert function and a local read function.
package entitysync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/atinyakov/OfficeSync/internal/feed"
	"github.com/atinyakov/OfficeSync/internal/localstore"
	"go.uber.org/zap"
)

// Record is implemented by every synced type.
type Record interface {
	// SyncKey returns the primary key used to merge pages.
	SyncKey() string
	// SyncTimes returns the creation and modification times.
	SyncTimes() (created, updated time.Time)
}

// FetchFunc loads one page of remote changes.
type FetchFunc[T any] func(ctx context.Context, q feed.Query) (feed.Page[T], error)

// UpsertFunc writes records to the local store.
type UpsertFunc[T any] func(ctx context.Context, records []T) error

// ReadFunc reads an ordered page of the local store.
type ReadFunc[T any] func(ctx context.Context, q localstore.PageQuery) ([]T, error)

// Config parameterizes an Engine.
type Config[T Record] struct {
	Entity       string
	Fetch        FetchFunc[T]
	Upsert       UpsertFunc[T]
	Read         ReadFunc[T]
	Connectivity Connectivity
	Logger       *zap.Logger
}

// Request selects one sync round.
type Request struct {
	// Owner scopes owner-scoped entities; ignored otherwise.
	Owner string
	// Since is the watermark of the previous successful sync.
	Since time.Time
	// Token continues a paginated fetch.
	Token string
	// PageSize limits the batch; zero means feed.DefaultPageSize.
	PageSize int
}

// Result is the ordered outcome of one sync round.
type Result[T any] struct {
	Data    []T
	LastDoc string
	HasMore bool
	// Offline is set when the round was skipped because the runtime was
	// offline. Data is then empty and carries no information.
	Offline bool
}

// Engine runs sync rounds for one entity.
type Engine[T Record] struct {
	entity string
	fetch  FetchFunc[T]
	upsert UpsertFunc[T]
	read   ReadFunc[T]
	conn   Connectivity
	log    *zap.Logger
}

// New validates cfg and returns an Engine. A nil Connectivity means
// AlwaysOnline.
func New[T Record](cfg Config[T]) (*Engine[T], error) {
	if !feed.Supported(cfg.Entity) {
		return nil, &feed.UnsupportedEntityError{Entity: cfg.Entity}
	}
	if cfg.Fetch == nil || cfg.Upsert == nil || cfg.Read == nil {
		return nil, errors.New("entitysync: fetch, upsert and read functions are required")
	}
	conn := cfg.Connectivity
	if conn == nil {
		conn = AlwaysOnline
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine[T]{
		entity: cfg.Entity,
		fetch:  cfg.Fetch,
		upsert: cfg.Upsert,
		read:   cfg.Read,
		conn:   conn,
		log:    log.With(zap.String("entity", cfg.Entity)),
	}, nil
}

// Entity returns the collection the engine syncs.
func (e *Engine[T]) Entity() string { return e.entity }

// Sync fetches one page of remote changes and returns it newest first.
// When the runtime is offline it returns an empty Result marked Offline
// and no error.
// Sync does not write to the local store; see Persist.
func (e *Engine[T]) Sync(ctx context.Context, req Request) (Result[T], error) {
	if !e.conn.Online(ctx) {
		e.log.Info("offline, skipping sync")
		return Result[T]{Data: []T{}, Offline: true}, nil
	}

	page, err := e.fetch(ctx, feed.Query{
		Entity:   e.entity,
		Owner:    req.Owner,
		Since:    req.Since,
		PageSize: req.PageSize,
		Token:    req.Token,
	})
	if err != nil {
		return Result[T]{}, fmt.Errorf("sync %s: %w", e.entity, err)
	}

	data := page.Data
	if data == nil {
		data = []T{}
	}
	SortNewestFirst(data)

	e.log.Debug("synced page",
		zap.String("owner", req.Owner),
		zap.Int("count", len(data)),
		zap.Bool("has_more", page.HasMore),
	)
	return Result[T]{Data: data, LastDoc: page.Token, HasMore: page.HasMore}, nil
}

// Persist upserts records into the local store.
func (e *Engine[T]) Persist(ctx context.Context, records []T) error {
	if len(records) == 0 {
		return nil
	}
	if err := e.upsert(ctx, records); err != nil {
		return fmt.Errorf("persist %s: %w", e.entity, err)
	}
	return nil
}

// Local reads a page of the local store.
func (e *Engine[T]) Local(ctx context.Context, q localstore.PageQuery) ([]T, error) {
	return e.read(ctx, q)
}

// SortNewestFirst orders records descending by creation time. Records
// without a creation time use their modification time, and ties are broken
// by modification time.
func SortNewestFirst[T Record](records []T) {
	sort.SliceStable(records, func(i, j int) bool {
		ci, ui := records[i].SyncTimes()
		cj, uj := records[j].SyncTimes()
		if ci.IsZero() {
			ci = ui
		}
		if cj.IsZero() {
			cj = uj
		}
		if !ci.Equal(cj) {
			return ci.After(cj)
		}
		return ui.After(uj)
	})
}
