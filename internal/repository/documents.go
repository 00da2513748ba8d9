// Package repository provides the Postgres persistence of the remote
// document collections and their change feeds.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/atinyakov/OfficeSync/internal/feed"
	"github.com/atinyakov/OfficeSync/internal/models"
	"github.com/lib/pq"
)

// PostgresDocumentRepository serves the users and tasks collections from
// a PostgreSQL database.
type PostgresDocumentRepository struct {
	// DB is the database handle for executing queries and transactions.
	DB *sql.DB
}

// NewPostgresDocumentRepository creates a repository using the provided *sql.DB.
func NewPostgresDocumentRepository(db *sql.DB) *PostgresDocumentRepository {
	return &PostgresDocumentRepository{DB: db}
}

// after returns the keyset position to continue from: the cursor when set,
// otherwise the watermark itself with the lowest possible key.
func after(since time.Time, c feed.Cursor) (time.Time, string) {
	if c.IsZero() {
		return since.UTC(), ""
	}
	return c.UpdatedAt.UTC(), c.Key
}

// UsersChangedSince returns up to limit users with updated_at > since,
// ordered by (updated_at, uid) and strictly after cursor.
func (r *PostgresDocumentRepository) UsersChangedSince(ctx context.Context, since time.Time, cursor feed.Cursor, limit int) ([]models.User, error) {
	afterTime, afterKey := after(since, cursor)
	rows, err := r.DB.QueryContext(ctx, `
		SELECT uid, role, email, name, user_id, created_at, updated_at FROM users
		WHERE updated_at > $1 AND (updated_at, uid) > ($2, $3)
		ORDER BY updated_at, uid
		LIMIT $4
	`, since.UTC(), afterTime, afterKey, limit)
	if err != nil {
		return nil, fmt.Errorf("UsersChangedSince: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.UID, &u.Role, &u.Email, &u.Name, &u.UserID, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		users = append(users, u.Normalize())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("UsersChangedSince: %w", err)
	}
	return users, nil
}

// TasksChangedSince returns up to limit tasks of owner with
// updated_at > since, ordered by (updated_at, task_id) and strictly after
// cursor.
func (r *PostgresDocumentRepository) TasksChangedSince(ctx context.Context, owner string, since time.Time, cursor feed.Cursor, limit int) ([]models.Task, error) {
	afterTime, afterKey := after(since, cursor)
	rows, err := r.DB.QueryContext(ctx, `
		SELECT task_id, user_id, title, status, created_at, updated_at FROM tasks
		WHERE user_id = $1 AND updated_at > $2 AND (updated_at, task_id) > ($3, $4)
		ORDER BY updated_at, task_id
		LIMIT $5
	`, owner, since.UTC(), afterTime, afterKey, limit)
	if err != nil {
		return nil, fmt.Errorf("TasksChangedSince: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		var t models.Task
		if err := rows.Scan(&t.TaskID, &t.UserID, &t.Title, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		tasks = append(tasks, t.Normalize())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("TasksChangedSince: %w", err)
	}
	return tasks, nil
}

// UpsertUsers inserts or replaces users within a transaction. updated_at
// is always set by the server.
func (r *PostgresDocumentRepository) UpsertUsers(ctx context.Context, users []models.User) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, u := range users {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO users (uid, role, email, name, user_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, COALESCE($6, clock_timestamp()), clock_timestamp())
			ON CONFLICT (uid) DO UPDATE SET
				role = EXCLUDED.role,
				email = EXCLUDED.email,
				name = EXCLUDED.name,
				user_id = EXCLUDED.user_id,
				updated_at = EXCLUDED.updated_at
		`, u.UID, u.Role, u.Email, u.Name, u.UserID, nullTime(u.CreatedAt))
		if err != nil {
			return fmt.Errorf("upsert user: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// UpsertTasks inserts or replaces tasks within a transaction. updated_at
// is always set by the server.
func (r *PostgresDocumentRepository) UpsertTasks(ctx context.Context, tasks []models.Task) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, t := range tasks {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO tasks (task_id, user_id, title, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, COALESCE($5, clock_timestamp()), clock_timestamp())
			ON CONFLICT (task_id) DO UPDATE SET
				user_id = EXCLUDED.user_id,
				title = EXCLUDED.title,
				status = EXCLUDED.status,
				updated_at = EXCLUDED.updated_at
		`, t.TaskID, t.UserID, t.Title, t.Status, nullTime(t.CreatedAt))
		if err != nil {
			return fmt.Errorf("upsert task: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// CountTasksByOwners returns the number of tasks held by each of owners.
func (r *PostgresDocumentRepository) CountTasksByOwners(ctx context.Context, owners []string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT user_id, COUNT(*) FROM tasks WHERE user_id = ANY($1) GROUP BY user_id
	`, pq.Array(owners))
	if err != nil {
		return nil, fmt.Errorf("CountTasksByOwners: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int, len(owners))
	for rows.Next() {
		var (
			owner string
			n     int
		)
		if err := rows.Scan(&owner, &n); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		counts[owner] = n
	}
	return counts, rows.Err()
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
