package state_test

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/atinyakov/OfficeSync/internal/entitysync"
	"github.com/atinyakov/OfficeSync/internal/localstore"
	"github.com/atinyakov/OfficeSync/internal/models"
	"github.com/atinyakov/OfficeSync/internal/remote"
	"github.com/atinyakov/OfficeSync/internal/repository"
	handler "github.com/atinyakov/OfficeSync/internal/server/handler/http"
	"github.com/atinyakov/OfficeSync/internal/service"
	"github.com/atinyakov/OfficeSync/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	srv    *httptest.Server
	client *remote.Client
	local  *localstore.Store
	store  *state.Store
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()

	repo := repository.NewMemoryDocumentRepository()
	h := &handler.FeedHandler{Service: service.NewChangeFeedService(repo), Logger: zap.NewNop()}
	srv := httptest.NewServer(handler.NewRouter(h, zap.NewNop()))
	t.Cleanup(srv.Close)
	client := remote.NewClient(srv.URL, srv.Client(), nil)

	local, err := localstore.Open(ctx, filepath.Join(t.TempDir(), "cache.db"), localstore.DefaultSchema, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = local.Close() })

	users, err := entitysync.NewUsers(client, local, nil, nil)
	require.NoError(t, err)
	tasks, err := entitysync.NewTasks(client, local, nil, nil)
	require.NoError(t, err)

	store := state.NewStore(nil)
	require.NoError(t, store.Register(state.NewSlice[models.User](users, nil)))
	require.NoError(t, store.Register(state.NewSlice[models.Task](tasks, nil)))

	return fixture{srv: srv, client: client, local: local, store: store}
}

func TestStore_RegisterTwiceFails(t *testing.T) {
	f := newFixture(t)
	assert.Error(t, f.store.Register(f.store.Users()))
	assert.Equal(t, []string{models.EntityTasks, models.EntityUsers}, f.store.Entities())
}

func TestStore_UnreachableServerRejects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.client.PutTasks(ctx, []models.Task{
		{TaskID: "t1", UserID: "U1", Title: "one", CreatedAt: day(1)},
	}))
	tasks := f.store.Tasks()
	require.NoError(t, tasks.Fetch(ctx, state.FetchArgs{Owner: "U1"}))
	require.Len(t, tasks.State().Data, 1)

	f.srv.Close()

	err := tasks.Fetch(ctx, state.FetchArgs{Owner: "U1"})
	require.Error(t, err)
	st := tasks.State()
	assert.Equal(t, state.StatusRejected, st.Status)
	assert.NotEmpty(t, st.Error)
	assert.False(t, st.Loading)
}

func TestStore_EndToEndPaging(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.client.PutTasks(ctx, []models.Task{
		{TaskID: "t1", UserID: "U1", Title: "one", CreatedAt: day(1)},
		{TaskID: "t2", UserID: "U1", Title: "two", CreatedAt: day(2)},
		{TaskID: "t3", UserID: "U1", Title: "three", CreatedAt: day(3)},
	}))

	tasks := f.store.Tasks()
	require.NotNil(t, tasks)

	require.NoError(t, tasks.Fetch(ctx, state.FetchArgs{Owner: "U1", PageSize: 2}))
	st := tasks.State()
	require.Len(t, st.Data, 2)
	assert.True(t, st.HasMore)
	assert.Equal(t, "t2", st.Data[0].TaskID)
	assert.Equal(t, "t1", st.Data[1].TaskID)

	require.NoError(t, tasks.Fetch(ctx, state.FetchArgs{Owner: "U1", PageSize: 2, Token: st.LastDoc}))
	st = tasks.State()
	require.Len(t, st.Data, 3)
	assert.False(t, st.HasMore)
	assert.Equal(t, []string{"t3", "t2", "t1"}, []string{st.Data[0].TaskID, st.Data[1].TaskID, st.Data[2].TaskID})

	// Local reads reflect the synced data as soon as the fetch resolved.
	n, err := f.local.CountTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	local, err := f.local.PageTasks(ctx, localstore.PageQuery{Index: "userId", Equals: "U1", OrderBy: "createdAt", Descending: true})
	require.NoError(t, err)
	require.Len(t, local, 3)
	assert.Equal(t, "t3", local[0].TaskID)
}

func TestStore_FetchAll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.client.PutUsers(ctx, []models.User{{UID: "U1", Name: "Ann"}}))
	require.NoError(t, f.client.PutTasks(ctx, []models.Task{{TaskID: "t1", UserID: "U1"}}))

	// Without an owner the tasks slice is left alone.
	require.NoError(t, f.store.FetchAll(ctx, ""))
	assert.Len(t, f.store.Users().State().Data, 1)
	assert.Equal(t, state.StatusIdle, f.store.Tasks().State().Status)

	require.NoError(t, f.store.FetchAll(ctx, "U1"))
	assert.Len(t, f.store.Tasks().State().Data, 1)
	assert.Equal(t, state.StatusFulfilled, f.store.Tasks().State().Status)
}
