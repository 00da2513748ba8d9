package localstore

import (
	"context"
	"fmt"

	"github.com/atinyakov/OfficeSync/internal/models"
)

// Enqueue appends e to the offline queue and returns its assigned id.
func (s *Store) Enqueue(ctx context.Context, e models.QueueEntry) (int64, error) {
	var data any
	if len(e.Data) > 0 {
		data = string(e.Data)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO offline_queue (mutation_id, operation, entity, entity_id, data, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.MutationID, string(e.Operation), e.Entity, e.EntityID, data, models.FormatTime(e.Timestamp))
	if err != nil {
		return 0, storageErr("enqueue", CollectionQueue, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, storageErr("enqueue", CollectionQueue, fmt.Errorf("last insert id: %w", err))
	}
	return id, nil
}

// ListQueue returns every queued entry ordered by timestamp, then id.
func (s *Store) ListQueue(ctx context.Context) ([]models.QueueEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, mutation_id, operation, entity, entity_id, COALESCE(data, ''), timestamp
		FROM offline_queue
		ORDER BY timestamp ASC, id ASC
	`)
	if err != nil {
		return nil, storageErr("list", CollectionQueue, err)
	}
	defer rows.Close()

	var entries []models.QueueEntry
	for rows.Next() {
		var (
			e        models.QueueEntry
			op, data string
			ts       string
		)
		if err := rows.Scan(&e.ID, &e.MutationID, &op, &e.Entity, &e.EntityID, &data, &ts); err != nil {
			return nil, storageErr("scan", CollectionQueue, err)
		}
		e.Operation = models.Operation(op)
		if data != "" {
			e.Data = []byte(data)
		}
		if e.Timestamp, err = models.ParseTime(ts); err != nil {
			return nil, storageErr("scan", CollectionQueue, fmt.Errorf("timestamp: %w", err))
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list", CollectionQueue, err)
	}
	return entries, nil
}

// ClearQueue deletes every queued entry.
func (s *Store) ClearQueue(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM offline_queue`); err != nil {
		return storageErr("clear", CollectionQueue, err)
	}
	return nil
}

// QueueLen returns the number of queued entries.
func (s *Store) QueueLen(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM offline_queue`).Scan(&n); err != nil {
		return 0, storageErr("count", CollectionQueue, err)
	}
	return n, nil
}
