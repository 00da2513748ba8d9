package localstore

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingKey is returned when a record has no primary key.
	ErrMissingKey = errors.New("record has no primary key")
	// ErrUnknownField is returned when a paged query names a field that is
	// not declared on the collection.
	ErrUnknownField = errors.New("unknown field")
	// ErrNotFound is returned by point lookups that match no row.
	ErrNotFound = errors.New("record not found")
)

// StorageError wraps any failure of the underlying database. Callers treat
// it as fatal for the current operation; the store never retries.
type StorageError struct {
	// Op is the store operation that failed, e.g. "upsert" or "open".
	Op string
	// Collection is the collection involved, if any.
	Collection string
	// Err is the underlying error.
	Err error
}

func (e *StorageError) Error() string {
	if e.Collection == "" {
		return fmt.Sprintf("local store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("local store %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsStorageError reports whether err is, or wraps, a *StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// SchemaUpgradeError reports a database whose schema version is newer than
// the newest migration known to this build.
type SchemaUpgradeError struct {
	Name    string
	Current int
	Target  int
}

func (e *SchemaUpgradeError) Error() string {
	return fmt.Sprintf("schema %q is at version %d, cannot downgrade to %d", e.Name, e.Current, e.Target)
}

func storageErr(op, collection string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Collection: collection, Err: err}
}
