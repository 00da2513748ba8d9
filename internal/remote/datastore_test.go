package remote

import (
	"context"
	"testing"

	"cloud.google.com/go/datastore"
	"github.com/atinyakov/OfficeSync/internal/feed"
	"github.com/atinyakov/OfficeSync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangeQuery_Validation(t *testing.T) {
	_, _, err := changeQuery(KindTask, feed.Query{Entity: models.EntityTasks})
	assert.ErrorIs(t, err, feed.ErrMissingFilter)

	_, _, err = changeQuery(KindUser, feed.Query{Entity: "notes"})
	var unsupported *feed.UnsupportedEntityError
	assert.ErrorAs(t, err, &unsupported)
}

func TestChangeQuery_InvalidCursor(t *testing.T) {
	_, _, err := changeQuery(KindUser, feed.Query{Entity: models.EntityUsers, Token: "not a cursor!"})
	assert.ErrorIs(t, err, feed.ErrInvalidToken)
}

func TestChangeQuery_NormalizesPageSize(t *testing.T) {
	q, query, err := changeQuery(KindTask, feed.Query{Entity: models.EntityTasks, Owner: "U1", PageSize: 10000})
	require.NoError(t, err)
	require.NotNil(t, query)
	assert.Equal(t, feed.MaxPageSize, q.PageSize)
	assert.Equal(t, "U1", q.Owner)
}

func TestFetchDatastore_ValidatesBeforeQuerying(t *testing.T) {
	// A fetcher without a client must fail validation before it is used.
	f := &DatastoreFetcher{}
	_, err := f.FetchTasks(context.Background(), feed.Query{})
	assert.ErrorIs(t, err, feed.ErrMissingFilter)
	assert.NoError(t, f.Close())
}

func TestKeyName(t *testing.T) {
	assert.Equal(t, "t1", keyName(datastore.NameKey(KindTask, "t1", nil)))
	assert.Equal(t, "42", keyName(datastore.IDKey(KindTask, 42, nil)))
	assert.Empty(t, keyName(datastore.IncompleteKey(KindTask, nil)))
	assert.Empty(t, keyName(nil))
}

func TestFill_UsesNumericKeyID(t *testing.T) {
	var task models.Task
	fillTask(datastore.IDKey(KindTask, 42, nil), &task)
	assert.Equal(t, "42", task.TaskID)

	var user models.User
	fillUser(datastore.IDKey(KindUser, 7, nil), &user)
	assert.Equal(t, "7", user.UID)

	keyed := models.Task{TaskID: "t9"}
	fillTask(datastore.IDKey(KindTask, 42, nil), &keyed)
	assert.Equal(t, "t9", keyed.TaskID)
}
