// Package queue records mutations made while the remote store is
// unreachable as an append-only log in the local store. Replaying the log
// is left to a separate process.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/atinyakov/OfficeSync/internal/feed"
	"github.com/atinyakov/OfficeSync/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrInvalidOperation is returned for operations other than add, update
// and delete.
var ErrInvalidOperation = errors.New("invalid queue operation")

// Backend persists queue entries. localstore.Store implements it.
type Backend interface {
	Enqueue(ctx context.Context, e models.QueueEntry) (int64, error)
	ListQueue(ctx context.Context) ([]models.QueueEntry, error)
	ClearQueue(ctx context.Context) error
}

// Queue is the offline mutation log.
type Queue struct {
	backend Backend
	log     *zap.Logger

	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

// Option configures a Queue.
type Option func(*Queue)

// WithClock replaces the time source used to stamp entries.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(q *Queue) { q.log = log }
}

// New returns a Queue over backend.
func New(backend Backend, opts ...Option) *Queue {
	q := &Queue{backend: backend, now: time.Now, log: zap.NewNop()}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue appends one mutation. data is encoded as JSON and dropped for
// delete operations. Timestamps never go backwards within the process, so
// entries drain in the order they were enqueued.
func (q *Queue) Enqueue(ctx context.Context, op models.Operation, entity, entityID string, data any) (models.QueueEntry, error) {
	if !op.Valid() {
		return models.QueueEntry{}, fmt.Errorf("%w: %q", ErrInvalidOperation, op)
	}
	if !feed.Supported(entity) {
		return models.QueueEntry{}, &feed.UnsupportedEntityError{Entity: entity}
	}
	if entityID == "" {
		return models.QueueEntry{}, errors.New("queue: entity id is required")
	}

	var payload json.RawMessage
	if op != models.OperationDelete && data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return models.QueueEntry{}, fmt.Errorf("encode %s %s payload: %w", op, entity, err)
		}
		payload = b
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	entry := models.QueueEntry{
		MutationID: uuid.NewString(),
		Operation:  op,
		Entity:     entity,
		EntityID:   entityID,
		Data:       payload,
		Timestamp:  q.stamp(),
	}
	id, err := q.backend.Enqueue(ctx, entry)
	if err != nil {
		return models.QueueEntry{}, err
	}
	entry.ID = id

	q.log.Info("mutation queued",
		zap.String("operation", string(op)),
		zap.String("entity", entity),
		zap.String("entity_id", entityID),
		zap.String("mutation_id", entry.MutationID),
	)
	return entry, nil
}

// DrainAll returns every entry ordered by timestamp. Entries are not removed.
func (q *Queue) DrainAll(ctx context.Context) ([]models.QueueEntry, error) {
	entries, err := q.backend.ListQueue(ctx)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []models.QueueEntry{}
	}
	return entries, nil
}

// Clear removes every entry.
func (q *Queue) Clear(ctx context.Context) error {
	if err := q.backend.ClearQueue(ctx); err != nil {
		return err
	}
	q.log.Info("mutation queue cleared")
	return nil
}

// stamp returns a UTC time not before the previous stamp. Callers hold mu.
func (q *Queue) stamp() time.Time {
	t := q.now().UTC()
	if t.Before(q.last) {
		t = q.last
	}
	q.last = t
	return t
}
