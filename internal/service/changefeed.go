// Package service provides the change-feed business logic of the remote
// document service, delegating persistence to a repository interface.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atinyakov/OfficeSync/internal/feed"
	"github.com/atinyakov/OfficeSync/internal/models"
)

// ErrInvalidDocument is returned for writes carrying records without the
// fields their collection requires.
var ErrInvalidDocument = errors.New("invalid document")

// DocumentRepository defines the persistence operations needed by the
// ChangeFeedService.
type DocumentRepository interface {
	// UsersChangedSince returns up to limit users with updated_at > since,
	// ordered by (updated_at, uid) and strictly after cursor.
	UsersChangedSince(ctx context.Context, since time.Time, cursor feed.Cursor, limit int) ([]models.User, error)
	// TasksChangedSince is the owner-scoped equivalent for tasks.
	TasksChangedSince(ctx context.Context, owner string, since time.Time, cursor feed.Cursor, limit int) ([]models.Task, error)
	// UpsertUsers inserts or replaces users, stamping updated_at.
	UpsertUsers(ctx context.Context, users []models.User) error
	// UpsertTasks inserts or replaces tasks, stamping updated_at.
	UpsertTasks(ctx context.Context, tasks []models.Task) error
	// CountTasksByOwners returns the task count of each owner.
	CountTasksByOwners(ctx context.Context, owners []string) (map[string]int, error)
}

// ChangeFeedService serves incremental pages of the document collections.
type ChangeFeedService struct {
	// repo is the underlying persistence repository.
	repo DocumentRepository
}

// NewChangeFeedService constructs a ChangeFeedService with the provided repository.
func NewChangeFeedService(repo DocumentRepository) *ChangeFeedService {
	return &ChangeFeedService{repo: repo}
}

// Users returns the page of users selected by q.
func (s *ChangeFeedService) Users(ctx context.Context, q feed.Query) (feed.Page[models.User], error) {
	q.Entity = models.EntityUsers
	return changes(q, func(c feed.Cursor, limit int) ([]models.User, error) {
		return s.repo.UsersChangedSince(ctx, q.Since, c, limit)
	}, func(u models.User) feed.Cursor {
		return feed.Cursor{UpdatedAt: u.UpdatedAt, Key: u.UID}
	})
}

// Tasks returns the page of tasks selected by q. q.Owner is required.
func (s *ChangeFeedService) Tasks(ctx context.Context, q feed.Query) (feed.Page[models.Task], error) {
	q.Entity = models.EntityTasks
	return changes(q, func(c feed.Cursor, limit int) ([]models.Task, error) {
		return s.repo.TasksChangedSince(ctx, q.Owner, q.Since, c, limit)
	}, func(t models.Task) feed.Cursor {
		return feed.Cursor{UpdatedAt: t.UpdatedAt, Key: t.TaskID}
	})
}

// changes validates q, decodes its token, loads one page and encodes the
// continuation token of the last record.
func changes[T any](
	q feed.Query,
	load func(c feed.Cursor, limit int) ([]T, error),
	cursorOf func(T) feed.Cursor,
) (feed.Page[T], error) {
	q, err := q.Validate()
	if err != nil {
		return feed.Page[T]{}, err
	}
	cursor, err := feed.DecodeCursor(q.Token)
	if err != nil {
		return feed.Page[T]{}, err
	}

	data, err := load(cursor, q.PageSize)
	if err != nil {
		return feed.Page[T]{}, err
	}

	page := feed.Page[T]{Data: data, HasMore: feed.HasMore(len(data), q.PageSize)}
	if page.Data == nil {
		page.Data = []T{}
	}
	if n := len(data); n > 0 {
		page.Token = feed.EncodeCursor(cursorOf(data[n-1]))
	}
	return page, nil
}

// PutUsers writes users after normalizing them. Every user needs a uid.
func (s *ChangeFeedService) PutUsers(ctx context.Context, users []models.User) error {
	normalized := make([]models.User, 0, len(users))
	for i, u := range users {
		if u.UID == "" {
			return fmt.Errorf("%w: user %d has no uid", ErrInvalidDocument, i)
		}
		normalized = append(normalized, u.Normalize())
	}
	if len(normalized) == 0 {
		return nil
	}
	return s.repo.UpsertUsers(ctx, normalized)
}

// PutTasks writes tasks after normalizing them. Every task needs a task id
// and an owner.
func (s *ChangeFeedService) PutTasks(ctx context.Context, tasks []models.Task) error {
	normalized := make([]models.Task, 0, len(tasks))
	for i, t := range tasks {
		if t.TaskID == "" || t.UserID == "" {
			return fmt.Errorf("%w: task %d needs taskId and userId", ErrInvalidDocument, i)
		}
		normalized = append(normalized, t.Normalize())
	}
	if len(normalized) == 0 {
		return nil
	}
	return s.repo.UpsertTasks(ctx, normalized)
}

// TaskCounts returns how many tasks each owner holds. Owners without tasks
// map to zero.
func (s *ChangeFeedService) TaskCounts(ctx context.Context, owners []string) (map[string]int, error) {
	if len(owners) == 0 {
		return map[string]int{}, nil
	}
	counts, err := s.repo.CountTasksByOwners(ctx, owners)
	if err != nil {
		return nil, err
	}
	for _, o := range owners {
		if _, ok := counts[o]; !ok {
			counts[o] = 0
		}
	}
	return counts, nil
}
