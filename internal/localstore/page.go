package localstore

import (
	"fmt"
	"strings"

	"github.com/atinyakov/OfficeSync/internal/models"
)

// DefaultPageLimit is used when a PageQuery has no positive Limit.
const DefaultPageLimit = 50

// PageQuery selects an ordered page of a collection.
//
// Index and OrderBy are record field names such as "userId" or "createdAt".
// When Cursor is set, rows whose OrderBy value is at or past it are
// excluded: with Descending that yields rows strictly older than the last
// one seen. A cursor over a timestamp field may be any RFC 3339 time; it
// is compared in the stored fixed-width form.
type PageQuery struct {
	Index      string
	Equals     string
	OrderBy    string
	Descending bool
	Limit      int
	Cursor     string
}

var timeColumns = map[string]bool{"created_at": true, "updated_at": true}

// build renders the WHERE/ORDER/LIMIT tail of a SELECT over a collection
// whose queryable fields are given. tieBreak orders rows sharing a value.
func (q PageQuery) build(collection string, fields map[string]string, tieBreak string) (string, []any, error) {
	var (
		where []string
		args  []any
	)

	if q.Index != "" {
		col, ok := fields[q.Index]
		if !ok {
			return "", nil, fmt.Errorf("%w %q on %s", ErrUnknownField, q.Index, collection)
		}
		where = append(where, col+" = ?")
		args = append(args, q.Equals)
	}

	orderCol := tieBreak
	if q.OrderBy != "" {
		col, ok := fields[q.OrderBy]
		if !ok {
			return "", nil, fmt.Errorf("%w %q on %s", ErrUnknownField, q.OrderBy, collection)
		}
		orderCol = col
	}

	dir := "ASC"
	if q.Descending {
		dir = "DESC"
	}

	if q.Cursor != "" {
		cursor := q.Cursor
		if timeColumns[orderCol] {
			t, err := models.ParseTime(cursor)
			if err != nil {
				return "", nil, fmt.Errorf("invalid cursor %q on %s: %w", q.Cursor, collection, err)
			}
			cursor = models.FormatTime(t)
		}
		if q.Descending {
			where = append(where, orderCol+" < ?")
		} else {
			where = append(where, orderCol+" > ?")
		}
		args = append(args, cursor)
	}

	var b strings.Builder
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	fmt.Fprintf(&b, " ORDER BY %s %s", orderCol, dir)
	if orderCol != tieBreak {
		fmt.Fprintf(&b, ", %s %s", tieBreak, dir)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	b.WriteString(" LIMIT ?")
	args = append(args, limit)

	return b.String(), args, nil
}
