package entitysync

import (
	"context"

	"github.com/atinyakov/OfficeSync/internal/feed"
	"github.com/atinyakov/OfficeSync/internal/localstore"
	"github.com/atinyakov/OfficeSync/internal/models"
	"go.uber.org/zap"
)

// Fetcher is a remote backend serving both collections. It is implemented
// by remote.Client and remote.DatastoreFetcher.
type Fetcher interface {
	FetchUsers(ctx context.Context, q feed.Query) (feed.Page[models.User], error)
	FetchTasks(ctx context.Context, q feed.Query) (feed.Page[models.Task], error)
}

// NewUsers builds the users engine over a remote backend and the local store.
func NewUsers(f Fetcher, store *localstore.Store, conn Connectivity, log *zap.Logger) (*Engine[models.User], error) {
	return New(Config[models.User]{
		Entity:       models.EntityUsers,
		Fetch:        f.FetchUsers,
		Upsert:       store.UpsertUsers,
		Read:         store.PageUsers,
		Connectivity: conn,
		Logger:       log,
	})
}

// NewTasks builds the tasks engine over a remote backend and the local store.
func NewTasks(f Fetcher, store *localstore.Store, conn Connectivity, log *zap.Logger) (*Engine[models.Task], error) {
	return New(Config[models.Task]{
		Entity:       models.EntityTasks,
		Fetch:        f.FetchTasks,
		Upsert:       store.UpsertTasks,
		Read:         store.PageTasks,
		Connectivity: conn,
		Logger:       log,
	})
}
