// Package feed defines the incremental change-feed contract shared by the
// remote document service and the clients that pull from it: the query,
// the page it returns, the continuation token and the error taxonomy.
package feed

import (
	"errors"
	"fmt"
	"time"

	"github.com/atinyakov/OfficeSync/internal/models"
)

const (
	// DefaultPageSize applies when a query has no positive PageSize.
	DefaultPageSize = 50
	// MaxPageSize caps PageSize.
	MaxPageSize = 500
)

// ErrMissingFilter is matched by every *MissingFilterError.
var ErrMissingFilter = errors.New("owner filter is required")

// ErrInvalidToken is returned for continuation tokens that cannot be decoded.
var ErrInvalidToken = errors.New("invalid continuation token")

// MissingFilterError is returned when an owner-scoped entity is queried
// without an owner.
type MissingFilterError struct {
	Entity string
}

func (e *MissingFilterError) Error() string {
	return fmt.Sprintf("entity %q: %v", e.Entity, ErrMissingFilter)
}

// Is lets errors.Is(err, ErrMissingFilter) match.
func (e *MissingFilterError) Is(target error) bool { return target == ErrMissingFilter }

// UnsupportedEntityError is returned for entity names the feed does not
// serve. It indicates a configuration bug, not a transient condition.
type UnsupportedEntityError struct {
	Entity string
}

func (e *UnsupportedEntityError) Error() string {
	return fmt.Sprintf("unsupported entity %q", e.Entity)
}

// Query selects records of one entity changed after Since.
type Query struct {
	// Entity is the collection name, see models.EntityUsers and models.EntityTasks.
	Entity string
	// Owner scopes owner-scoped entities; required for tasks, ignored for users.
	Owner string
	// Since is the watermark: only records with updatedAt > Since match.
	Since time.Time
	// PageSize limits the number of records returned.
	PageSize int
	// Token continues a previous page when non-empty.
	Token string
}

// Supported reports whether entity is served by the feed.
func Supported(entity string) bool {
	return entity == models.EntityUsers || entity == models.EntityTasks
}

// RequiresOwner reports whether entity is scoped to an owner server-side.
func RequiresOwner(entity string) bool {
	return entity == models.EntityTasks
}

// Validate checks q and returns it with PageSize normalized. Owner is
// cleared for entities that are synced globally.
func (q Query) Validate() (Query, error) {
	if !Supported(q.Entity) {
		return q, &UnsupportedEntityError{Entity: q.Entity}
	}
	if RequiresOwner(q.Entity) {
		if q.Owner == "" {
			return q, &MissingFilterError{Entity: q.Entity}
		}
	} else {
		q.Owner = ""
	}
	switch {
	case q.PageSize <= 0:
		q.PageSize = DefaultPageSize
	case q.PageSize > MaxPageSize:
		q.PageSize = MaxPageSize
	}
	return q, nil
}

// Page is one batch of a change feed, ordered ascending by updatedAt.
type Page[T any] struct {
	Data []T `json:"data"`
	// Token continues the feed after the last record of Data. Empty when
	// Data is empty.
	Token string `json:"token,omitempty"`
	// HasMore is true iff Data filled the requested page size. A feed whose
	// final page is exactly full reports true once more and then returns an
	// empty page.
	HasMore bool `json:"hasMore"`
}

// HasMore applies the page-fill rule.
func HasMore(returned, pageSize int) bool {
	return pageSize > 0 && returned == pageSize
}
