package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/atinyakov/OfficeSync/internal/models"
	"go.uber.org/zap"
)

const taskColumns = `id, task_id, user_id, title, status, created_at, updated_at`

// UpsertTasks inserts or fully replaces every task in one transaction,
// keyed by TaskID. The local id of an existing row is preserved. A task
// without TaskID is keyed by its local id; a task with neither fails the
// whole batch with ErrMissingKey.
func (s *Store) UpsertTasks(ctx context.Context, tasks []models.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("upsert", CollectionTasks, fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback()

	upsert, err := tx.PrepareContext(ctx, `
		INSERT INTO tasks (task_id, user_id, title, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (task_id) DO UPDATE SET
			user_id = excluded.user_id,
			title = excluded.title,
			status = excluded.status,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return storageErr("upsert", CollectionTasks, fmt.Errorf("prepare: %w", err))
	}
	defer upsert.Close()

	for _, t := range tasks {
		t = t.Normalize()
		if t.TaskID == "" && t.ID != 0 {
			t.TaskID = strconv.FormatInt(t.ID, 10)
		}
		if t.TaskID == "" {
			return fmt.Errorf("upsert %s: %w", CollectionTasks, ErrMissingKey)
		}
		created, updated := models.FormatTime(t.CreatedAt), models.FormatTime(t.UpdatedAt)
		if _, err := upsert.ExecContext(ctx, t.TaskID, t.UserID, t.Title, t.Status, created, updated); err != nil {
			return storageErr("upsert", CollectionTasks, fmt.Errorf("task %s: %w", t.TaskID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return storageErr("upsert", CollectionTasks, fmt.Errorf("commit: %w", err))
	}
	s.log.Debug("upserted tasks", zap.Int("count", len(tasks)))
	return nil
}

// GetTask returns the task with the given remote id, or ErrNotFound.
func (s *Store) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE task_id = ?`, taskID)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr("get", CollectionTasks, err)
	}
	return t, nil
}

// PageTasks returns one page of tasks selected by q. Paging one owner's
// tasks newest first uses the (user_id, created_at) index:
//
//	PageQuery{Index: "userId", Equals: uid, OrderBy: "createdAt", Descending: true}
func (s *Store) PageTasks(ctx context.Context, q PageQuery) ([]models.Task, error) {
	tail, args, err := q.build(CollectionTasks, taskFields, "id")
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks`+tail, args...)
	if err != nil {
		return nil, storageErr("query", CollectionTasks, err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, storageErr("scan", CollectionTasks, err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("query", CollectionTasks, err)
	}
	return tasks, nil
}

// CountTasks returns the number of cached tasks.
func (s *Store) CountTasks(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&n); err != nil {
		return 0, storageErr("count", CollectionTasks, err)
	}
	return n, nil
}

func scanTask(row scanner) (*models.Task, error) {
	var (
		t                models.Task
		taskID           sql.NullString
		created, updated string
	)
	if err := row.Scan(&t.ID, &taskID, &t.UserID, &t.Title, &t.Status, &created, &updated); err != nil {
		return nil, err
	}
	t.TaskID = taskID.String
	var err error
	if t.CreatedAt, err = models.ParseTime(created); err != nil {
		return nil, fmt.Errorf("created_at: %w", err)
	}
	if t.UpdatedAt, err = models.ParseTime(updated); err != nil {
		return nil, fmt.Errorf("updated_at: %w", err)
	}
	return &t, nil
}
