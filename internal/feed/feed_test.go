package feed

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryValidate(t *testing.T) {
	tests := []struct {
		name     string
		query    Query
		wantErr  error
		wantSize int
	}{
		{name: "tasks without owner", query: Query{Entity: "tasks"}, wantErr: ErrMissingFilter},
		{name: "tasks with owner", query: Query{Entity: "tasks", Owner: "U1", PageSize: 10}, wantSize: 10},
		{name: "users without owner", query: Query{Entity: "users"}, wantSize: DefaultPageSize},
		{name: "page size capped", query: Query{Entity: "users", PageSize: 10_000}, wantSize: MaxPageSize},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q, err := tc.query.Validate()
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantSize, q.PageSize)
		})
	}
}

func TestQueryValidate_UsersDropsOwner(t *testing.T) {
	q, err := Query{Entity: "users", Owner: "U1"}.Validate()
	require.NoError(t, err)
	assert.Empty(t, q.Owner)
}

func TestQueryValidate_UnsupportedEntity(t *testing.T) {
	_, err := Query{Entity: "reporters"}.Validate()
	var unsupported *UnsupportedEntityError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, "reporters", unsupported.Entity)
}

func TestHasMore(t *testing.T) {
	for n := 1; n <= 5; n++ {
		for returned := 0; returned <= n; returned++ {
			assert.Equal(t, returned == n, HasMore(returned, n), "returned=%d pageSize=%d", returned, n)
		}
	}
}

func TestCursorRoundTrip(t *testing.T) {
	c := Cursor{UpdatedAt: time.Date(2024, 1, 2, 3, 4, 5, 6, time.UTC), Key: "t-42"}
	got, err := DecodeCursor(EncodeCursor(c))
	require.NoError(t, err)
	assert.True(t, c.UpdatedAt.Equal(got.UpdatedAt))
	assert.Equal(t, c.Key, got.Key)
}

func TestDecodeCursor_Invalid(t *testing.T) {
	for _, token := range []string{"%%%", "bm90LWpzb24", "e30"} {
		_, err := DecodeCursor(token)
		assert.ErrorIs(t, err, ErrInvalidToken, token)
	}

	c, err := DecodeCursor("")
	require.NoError(t, err)
	assert.True(t, c.IsZero())
}
