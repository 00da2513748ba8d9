// Package models defines the records mirrored between the remote document
// store and the local cache, and the entries of the offline mutation queue.
package models

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Entity names shared by the local store, the remote API and the state store.
const (
	// EntityUsers is the globally synced users collection.
	EntityUsers = "users"
	// EntityTasks is the owner-scoped tasks collection.
	EntityTasks = "tasks"
)

// DefaultRole is assigned to users whose remote record carries no role.
const DefaultRole = "guest"

// DefaultTaskStatus is assigned to tasks whose remote record carries no status.
const DefaultTaskStatus = "pending"

// User is a user record as stored locally and served by the remote store.
type User struct {
	// UID is the stable remote identifier and the local primary key.
	UID string `json:"uid" datastore:"uid"`
	// Role is always lower-case; empty roles become DefaultRole.
	Role string `json:"role" datastore:"role"`
	// Email is the contact address of the user.
	Email string `json:"email" datastore:"email"`
	// Name is the display name.
	Name string `json:"name" datastore:"name"`
	// UserID is the legacy numeric or department identifier, indexed locally.
	UserID string `json:"userID,omitempty" datastore:"userID"`
	// CreatedAt is when the remote record was created, if known.
	CreatedAt time.Time `json:"createdAt,omitempty" datastore:"createdAt"`
	// UpdatedAt is the server-set modification time used as the sync watermark.
	UpdatedAt time.Time `json:"updatedAt" datastore:"updatedAt"`
}

// Normalize returns a copy of u with the role lower-cased (or defaulted)
// and timestamps converted to UTC.
func (u User) Normalize() User {
	u.Role = strings.ToLower(strings.TrimSpace(u.Role))
	if u.Role == "" {
		u.Role = DefaultRole
	}
	u.CreatedAt = NormalizeTime(u.CreatedAt)
	u.UpdatedAt = NormalizeTime(u.UpdatedAt)
	return u
}

// SyncKey returns the primary key of the user.
func (u User) SyncKey() string { return u.UID }

// SyncTimes returns the creation and modification times of the user.
func (u User) SyncTimes() (time.Time, time.Time) { return u.CreatedAt, u.UpdatedAt }

// Task is a task record. ID is a local-only surrogate key; TaskID is the
// remote identifier.
type Task struct {
	// ID is the auto-incremented local row id. Zero for records that were
	// never stored locally.
	ID int64 `json:"id,omitempty" datastore:"-"`
	// TaskID is the remote identifier; empty falls back to the local id.
	TaskID string `json:"taskId" datastore:"taskId"`
	// UserID weakly references the owning User.UID.
	UserID string `json:"userId" datastore:"userId"`
	// Title is the task summary.
	Title string `json:"title" datastore:"title"`
	// Status is "pending" by default, any string otherwise.
	Status string `json:"status" datastore:"status"`
	// CreatedAt is the creation time.
	CreatedAt time.Time `json:"createdAt" datastore:"createdAt"`
	// UpdatedAt is the server-set modification time used as the sync watermark.
	UpdatedAt time.Time `json:"updatedAt" datastore:"updatedAt"`
}

// Normalize returns a copy of t with the default status applied and
// timestamps converted to UTC.
func (t Task) Normalize() Task {
	t.Status = strings.TrimSpace(t.Status)
	if t.Status == "" {
		t.Status = DefaultTaskStatus
	}
	t.CreatedAt = NormalizeTime(t.CreatedAt)
	t.UpdatedAt = NormalizeTime(t.UpdatedAt)
	return t
}

// SyncKey returns the remote id, or the local id when the remote one is unknown.
func (t Task) SyncKey() string {
	if t.TaskID != "" {
		return t.TaskID
	}
	if t.ID != 0 {
		return strconv.FormatInt(t.ID, 10)
	}
	return ""
}

// SyncTimes returns the creation and modification times of the task.
func (t Task) SyncTimes() (time.Time, time.Time) { return t.CreatedAt, t.UpdatedAt }

// Operation is the kind of mutation recorded in the offline queue.
type Operation string

const (
	// OperationAdd creates a record.
	OperationAdd Operation = "add"
	// OperationUpdate replaces fields of an existing record.
	OperationUpdate Operation = "update"
	// OperationDelete removes a record.
	OperationDelete Operation = "delete"
)

// Valid reports whether op is one of the known operations.
func (op Operation) Valid() bool {
	switch op {
	case OperationAdd, OperationUpdate, OperationDelete:
		return true
	}
	return false
}

// QueueEntry is one mutation captured while the remote store was unreachable.
type QueueEntry struct {
	// ID is the auto-incremented local id.
	ID int64 `json:"id"`
	// MutationID is a UUID a replay process can use as an idempotency key.
	MutationID string `json:"mutationId"`
	// Operation is add, update or delete.
	Operation Operation `json:"operation"`
	// Entity is the collection name the mutation targets.
	Entity string `json:"entity"`
	// EntityID is the id of the target record in that collection.
	EntityID string `json:"entityId"`
	// Data is the opaque payload for add and update; nil for delete.
	Data json.RawMessage `json:"data,omitempty"`
	// Timestamp orders replay.
	Timestamp time.Time `json:"timestamp"`
}
