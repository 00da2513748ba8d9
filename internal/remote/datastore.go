package remote

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"cloud.google.com/go/datastore"
	"github.com/atinyakov/OfficeSync/internal/feed"
	"github.com/atinyakov/OfficeSync/internal/models"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
)

// Datastore kinds holding the collections.
const (
	KindUser = "User"
	KindTask = "Task"
)

// DatastoreFetcher is the Google Cloud Datastore backend. Continuation
// tokens are Datastore cursor strings.
type DatastoreFetcher struct {
	ds  *datastore.Client
	log *zap.Logger
}

// NewDatastoreFetcher connects to the Datastore of projectID. The client
// honors DATASTORE_EMULATOR_HOST.
func NewDatastoreFetcher(ctx context.Context, projectID string, log *zap.Logger) (*DatastoreFetcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	ds, err := datastore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create datastore client: %w", err)
	}
	return &DatastoreFetcher{ds: ds, log: log}, nil
}

// Close closes the underlying datastore client.
func (f *DatastoreFetcher) Close() error {
	if f.ds == nil {
		return nil
	}
	return f.ds.Close()
}

// FetchUsers returns one page of users changed after q.Since.
func (f *DatastoreFetcher) FetchUsers(ctx context.Context, q feed.Query) (feed.Page[models.User], error) {
	q.Entity = models.EntityUsers
	return FetchDatastore(ctx, f, KindUser, q, fillUser)
}

// FetchTasks returns one page of q.Owner's tasks changed after q.Since.
func (f *DatastoreFetcher) FetchTasks(ctx context.Context, q feed.Query) (feed.Page[models.Task], error) {
	q.Entity = models.EntityTasks
	return FetchDatastore(ctx, f, KindTask, q, fillTask)
}

func fillUser(k *datastore.Key, u *models.User) {
	if u.UID == "" {
		u.UID = keyName(k)
	}
	*u = u.Normalize()
}

func fillTask(k *datastore.Key, t *models.Task) {
	if t.TaskID == "" {
		t.TaskID = keyName(k)
	}
	*t = t.Normalize()
}

// keyName is the string form of an entity key: its name, or its numeric
// id for auto-allocated keys.
func keyName(k *datastore.Key) string {
	switch {
	case k == nil:
		return ""
	case k.Name != "":
		return k.Name
	case k.ID != 0:
		return strconv.FormatInt(k.ID, 10)
	}
	return ""
}

// FetchDatastore runs one page of the change query over kind. fill is
// called for every loaded entity with its key.
func FetchDatastore[T any](
	ctx context.Context,
	f *DatastoreFetcher,
	kind string,
	q feed.Query,
	fill func(*datastore.Key, *T),
) (feed.Page[T], error) {
	q, query, err := changeQuery(kind, q)
	if err != nil {
		return feed.Page[T]{}, err
	}

	it := f.ds.Run(ctx, query)
	data := make([]T, 0, q.PageSize)
	for {
		var rec T
		key, err := it.Next(&rec)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return feed.Page[T]{}, fmt.Errorf("fetch %s: %w", q.Entity, err)
		}
		if fill != nil {
			fill(key, &rec)
		}
		data = append(data, rec)
	}

	page := feed.Page[T]{
		Data:    data,
		HasMore: feed.HasMore(len(data), q.PageSize),
	}
	if len(data) > 0 {
		cursor, err := it.Cursor()
		if err != nil {
			return feed.Page[T]{}, fmt.Errorf("fetch %s cursor: %w", q.Entity, err)
		}
		page.Token = cursor.String()
	}

	f.log.Debug("fetched datastore page",
		zap.String("kind", kind),
		zap.String("owner", q.Owner),
		zap.Int("count", len(data)),
		zap.Bool("has_more", page.HasMore),
	)
	return page, nil
}

// changeQuery validates q and builds the Datastore query for it.
func changeQuery(kind string, q feed.Query) (feed.Query, *datastore.Query, error) {
	q, err := q.Validate()
	if err != nil {
		return q, nil, err
	}

	query := datastore.NewQuery(kind)
	if q.Owner != "" {
		query = query.Filter("userId =", q.Owner)
	}
	query = query.
		Filter("updatedAt >", q.Since).
		Order("updatedAt").
		Limit(q.PageSize)

	if q.Token != "" {
		cursor, err := datastore.DecodeCursor(q.Token)
		if err != nil {
			return q, nil, fmt.Errorf("%w: %v", feed.ErrInvalidToken, err)
		}
		query = query.Start(cursor)
	}
	return q, query, nil
}
