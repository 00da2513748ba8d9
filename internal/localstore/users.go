package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/atinyakov/OfficeSync/internal/models"
	"go.uber.org/zap"
)

const userColumns = `uid, role, email, name, user_id, created_at, updated_at`

// UpsertUsers inserts or fully replaces every user in one transaction.
// Either all users are written or none. Roles are normalized on write.
func (s *Store) UpsertUsers(ctx context.Context, users []models.User) error {
	if len(users) == 0 {
		return nil
	}
	for _, u := range users {
		if u.UID == "" {
			return fmt.Errorf("upsert %s: %w", CollectionUsers, ErrMissingKey)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("upsert", CollectionUsers, fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (uid) DO UPDATE SET
			role = excluded.role,
			email = excluded.email,
			name = excluded.name,
			user_id = excluded.user_id,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return storageErr("upsert", CollectionUsers, fmt.Errorf("prepare: %w", err))
	}
	defer stmt.Close()

	for _, u := range users {
		u = u.Normalize()
		if _, err := stmt.ExecContext(ctx, u.UID, u.Role, u.Email, u.Name, u.UserID,
			models.FormatTime(u.CreatedAt), models.FormatTime(u.UpdatedAt)); err != nil {
			return storageErr("upsert", CollectionUsers, fmt.Errorf("uid %s: %w", u.UID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return storageErr("upsert", CollectionUsers, fmt.Errorf("commit: %w", err))
	}
	s.log.Debug("upserted users", zap.Int("count", len(users)))
	return nil
}

// GetUser returns the user with the given uid, or ErrNotFound.
func (s *Store) GetUser(ctx context.Context, uid string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE uid = ?`, uid)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr("get", CollectionUsers, err)
	}
	return u, nil
}

// PageUsers returns one page of users selected by q. Rows sharing an
// ordering value are ordered by uid.
func (s *Store) PageUsers(ctx context.Context, q PageQuery) ([]models.User, error) {
	tail, args, err := q.build(CollectionUsers, userFields, "uid")
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users`+tail, args...)
	if err != nil {
		return nil, storageErr("query", CollectionUsers, err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, storageErr("scan", CollectionUsers, err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("query", CollectionUsers, err)
	}
	return users, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*models.User, error) {
	var (
		u                  models.User
		created, updated string
	)
	if err := row.Scan(&u.UID, &u.Role, &u.Email, &u.Name, &u.UserID, &created, &updated); err != nil {
		return nil, err
	}
	var err error
	if u.CreatedAt, err = models.ParseTime(created); err != nil {
		return nil, fmt.Errorf("created_at: %w", err)
	}
	if u.UpdatedAt, err = models.ParseTime(updated); err != nil {
		return nil, fmt.Errorf("updated_at: %w", err)
	}
	return &u, nil
}
