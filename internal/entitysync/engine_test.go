package entitysync_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/atinyakov/OfficeSync/internal/entitysync"
	"github.com/atinyakov/OfficeSync/internal/feed"
	"github.com/atinyakov/OfficeSync/internal/localstore"
	"github.com/atinyakov/OfficeSync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func day(d int) time.Time {
	return time.Date(2024, time.March, d, 12, 0, 0, 0, time.UTC)
}

// fakeFetcher serves fixed pages and records the queries it saw.
type fakeFetcher struct {
	users   feed.Page[models.User]
	tasks   feed.Page[models.Task]
	err     error
	queries []feed.Query
}

func (f *fakeFetcher) FetchUsers(_ context.Context, q feed.Query) (feed.Page[models.User], error) {
	f.queries = append(f.queries, q)
	return f.users, f.err
}

func (f *fakeFetcher) FetchTasks(_ context.Context, q feed.Query) (feed.Page[models.Task], error) {
	f.queries = append(f.queries, q)
	return f.tasks, f.err
}

func openStore(t *testing.T) *localstore.Store {
	t.Helper()
	s, err := localstore.Open(context.Background(), filepath.Join(t.TempDir(), "cache.db"), localstore.DefaultSchema, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNew_Validation(t *testing.T) {
	_, err := entitysync.New(entitysync.Config[models.User]{Entity: "notes"})
	var unsupported *feed.UnsupportedEntityError
	assert.ErrorAs(t, err, &unsupported)

	_, err = entitysync.New(entitysync.Config[models.User]{Entity: models.EntityUsers})
	assert.Error(t, err)
}

func TestSync_SortsNewestFirst(t *testing.T) {
	f := &fakeFetcher{tasks: feed.Page[models.Task]{
		Data: []models.Task{
			{TaskID: "1", UserID: "U1", CreatedAt: day(1)},
			{TaskID: "2", UserID: "U1", CreatedAt: day(3)},
			{TaskID: "3", UserID: "U1", CreatedAt: day(2)},
		},
		Token:   "tok",
		HasMore: true,
	}}
	e, err := entitysync.NewTasks(f, openStore(t), nil, nil)
	require.NoError(t, err)

	res, err := e.Sync(context.Background(), entitysync.Request{Owner: "U1", PageSize: 3, Since: day(1)})
	require.NoError(t, err)

	var ids []string
	for _, task := range res.Data {
		ids = append(ids, task.TaskID)
	}
	assert.Equal(t, []string{"2", "3", "1"}, ids)
	assert.Equal(t, "tok", res.LastDoc)
	assert.True(t, res.HasMore)

	require.Len(t, f.queries, 1)
	assert.Equal(t, feed.Query{Entity: models.EntityTasks, Owner: "U1", Since: day(1), PageSize: 3}, f.queries[0])
}

func TestSortNewestFirst_FallsBackToUpdated(t *testing.T) {
	users := []models.User{
		{UID: "old", CreatedAt: day(1), UpdatedAt: day(1)},
		{UID: "nocreate", UpdatedAt: day(5)},
		{UID: "tie-early", CreatedAt: day(3), UpdatedAt: day(3)},
		{UID: "tie-late", CreatedAt: day(3), UpdatedAt: day(4)},
	}
	entitysync.SortNewestFirst(users)

	var got []string
	for _, u := range users {
		got = append(got, u.UID)
	}
	assert.Equal(t, []string{"nocreate", "tie-late", "tie-early", "old"}, got)
}

func TestSync_OfflineShortCircuits(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	f := &fakeFetcher{err: errors.New("must not be called")}
	e, err := entitysync.NewUsers(f, openStore(t), entitysync.StaticConnectivity(false), zap.New(core))
	require.NoError(t, err)

	res, err := e.Sync(context.Background(), entitysync.Request{})
	require.NoError(t, err)
	assert.Empty(t, res.Data)
	assert.False(t, res.HasMore)
	assert.True(t, res.Offline)
	assert.Empty(t, f.queries)
	assert.Equal(t, 1, logs.FilterMessage("offline, skipping sync").Len())
}

func TestSync_FetchErrorIsWrapped(t *testing.T) {
	boom := errors.New("network down")
	e, err := entitysync.NewUsers(&fakeFetcher{err: boom}, openStore(t), nil, nil)
	require.NoError(t, err)

	_, err = e.Sync(context.Background(), entitysync.Request{})
	assert.ErrorIs(t, err, boom)
}

func TestSync_MissingOwnerPropagates(t *testing.T) {
	calls := atomic.Int32{}
	e, err := entitysync.New(entitysync.Config[models.Task]{
		Entity: models.EntityTasks,
		Fetch: func(_ context.Context, q feed.Query) (feed.Page[models.Task], error) {
			calls.Add(1)
			_, err := q.Validate()
			return feed.Page[models.Task]{}, err
		},
		Upsert: func(context.Context, []models.Task) error { return nil },
		Read:   func(context.Context, localstore.PageQuery) ([]models.Task, error) { return nil, nil },
	})
	require.NoError(t, err)

	_, err = e.Sync(context.Background(), entitysync.Request{})
	assert.ErrorIs(t, err, feed.ErrMissingFilter)
	assert.Equal(t, int32(1), calls.Load())
}

func TestPersistThenLocal(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	f := &fakeFetcher{tasks: feed.Page[models.Task]{Data: []models.Task{
		{TaskID: "a", UserID: "U1", Title: "A", CreatedAt: day(1), UpdatedAt: day(1)},
		{TaskID: "b", UserID: "U1", Title: "B", CreatedAt: day(2), UpdatedAt: day(2)},
	}}}
	e, err := entitysync.NewTasks(f, store, entitysync.AlwaysOnline, nil)
	require.NoError(t, err)

	res, err := e.Sync(ctx, entitysync.Request{Owner: "U1"})
	require.NoError(t, err)
	require.NoError(t, e.Persist(ctx, res.Data))
	require.NoError(t, e.Persist(ctx, res.Data))
	require.NoError(t, e.Persist(ctx, nil))

	local, err := e.Local(ctx, localstore.PageQuery{Index: "userId", Equals: "U1", OrderBy: "createdAt", Descending: true})
	require.NoError(t, err)
	require.Len(t, local, 2)
	assert.Equal(t, "b", local[0].TaskID)
	assert.Equal(t, "a", local[1].TaskID)
}

func TestConnectivityFunc(t *testing.T) {
	var probed bool
	c := entitysync.ConnectivityFunc(func(context.Context) bool { probed = true; return true })
	assert.True(t, c.Online(context.Background()))
	assert.True(t, probed)
	assert.True(t, entitysync.AlwaysOnline.Online(context.Background()))
}
