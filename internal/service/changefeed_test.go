package service_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/atinyakov/OfficeSync/internal/feed"
	"github.com/atinyakov/OfficeSync/internal/models"
	"github.com/atinyakov/OfficeSync/internal/repository"
	"github.com/atinyakov/OfficeSync/internal/service"
)

type mockRepo struct {
	UsersChangedSinceFunc  func(ctx context.Context, since time.Time, cursor feed.Cursor, limit int) ([]models.User, error)
	TasksChangedSinceFunc  func(ctx context.Context, owner string, since time.Time, cursor feed.Cursor, limit int) ([]models.Task, error)
	UpsertUsersFunc        func(ctx context.Context, users []models.User) error
	UpsertTasksFunc        func(ctx context.Context, tasks []models.Task) error
	CountTasksByOwnersFunc func(ctx context.Context, owners []string) (map[string]int, error)
}

func (m *mockRepo) UsersChangedSince(ctx context.Context, since time.Time, cursor feed.Cursor, limit int) ([]models.User, error) {
	return m.UsersChangedSinceFunc(ctx, since, cursor, limit)
}
func (m *mockRepo) TasksChangedSince(ctx context.Context, owner string, since time.Time, cursor feed.Cursor, limit int) ([]models.Task, error) {
	return m.TasksChangedSinceFunc(ctx, owner, since, cursor, limit)
}
func (m *mockRepo) UpsertUsers(ctx context.Context, users []models.User) error {
	return m.UpsertUsersFunc(ctx, users)
}
func (m *mockRepo) UpsertTasks(ctx context.Context, tasks []models.Task) error {
	return m.UpsertTasksFunc(ctx, tasks)
}
func (m *mockRepo) CountTasksByOwners(ctx context.Context, owners []string) (map[string]int, error) {
	return m.CountTasksByOwnersFunc(ctx, owners)
}

func TestTasks_MissingOwner(t *testing.T) {
	svc := service.NewChangeFeedService(&mockRepo{})
	_, err := svc.Tasks(context.Background(), feed.Query{})
	if !errors.Is(err, feed.ErrMissingFilter) {
		t.Fatalf("Tasks error = %v; want ErrMissingFilter", err)
	}
}

func TestUsers_NoOwnerNeeded(t *testing.T) {
	repo := &mockRepo{
		UsersChangedSinceFunc: func(_ context.Context, _ time.Time, _ feed.Cursor, limit int) ([]models.User, error) {
			if limit != feed.DefaultPageSize {
				t.Errorf("limit = %d; want %d", limit, feed.DefaultPageSize)
			}
			return nil, nil
		},
	}
	svc := service.NewChangeFeedService(repo)
	page, err := svc.Users(context.Background(), feed.Query{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.HasMore || page.Token != "" || page.Data == nil {
		t.Errorf("unexpected empty page: %+v", page)
	}
}

func TestTasks_InvalidToken(t *testing.T) {
	svc := service.NewChangeFeedService(&mockRepo{})
	_, err := svc.Tasks(context.Background(), feed.Query{Owner: "U1", Token: "%%%"})
	if !errors.Is(err, feed.ErrInvalidToken) {
		t.Fatalf("Tasks error = %v; want ErrInvalidToken", err)
	}
}

func TestTasks_RepositoryError(t *testing.T) {
	wantErr := errors.New("db down")
	repo := &mockRepo{
		TasksChangedSinceFunc: func(context.Context, string, time.Time, feed.Cursor, int) ([]models.Task, error) {
			return nil, wantErr
		},
	}
	svc := service.NewChangeFeedService(repo)
	_, err := svc.Tasks(context.Background(), feed.Query{Owner: "U1"})
	if err != wantErr {
		t.Fatalf("Tasks error = %v; want %v", err, wantErr)
	}
}

func TestTasks_HasMoreFollowsPageFill(t *testing.T) {
	for _, returned := range []int{0, 1, 2, 3} {
		repo := &mockRepo{
			TasksChangedSinceFunc: func(context.Context, string, time.Time, feed.Cursor, int) ([]models.Task, error) {
				tasks := make([]models.Task, returned)
				for i := range tasks {
					tasks[i] = models.Task{TaskID: string(rune('a' + i)), UserID: "U1"}
				}
				return tasks, nil
			},
		}
		svc := service.NewChangeFeedService(repo)
		page, err := svc.Tasks(context.Background(), feed.Query{Owner: "U1", PageSize: 3})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := returned == 3; page.HasMore != want {
			t.Errorf("returned %d: HasMore = %v; want %v", returned, page.HasMore, want)
		}
		if (returned > 0) != (page.Token != "") {
			t.Errorf("returned %d: token = %q", returned, page.Token)
		}
	}
}

func TestTasks_PagesThroughWatermark(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := base
	repo := repository.NewMemoryDocumentRepository().WithClock(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	})
	svc := service.NewChangeFeedService(repo)

	for _, id := range []string{"t1", "t2", "t3", "t4"} {
		if err := svc.PutTasks(ctx, []models.Task{{TaskID: id, UserID: "U1"}}); err != nil {
			t.Fatalf("PutTasks: %v", err)
		}
	}
	watermark := base.Add(time.Minute) // updatedAt of t1

	first, err := svc.Tasks(ctx, feed.Query{Owner: "U1", Since: watermark, PageSize: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := ids(first.Data); !reflect.DeepEqual(got, []string{"t2", "t3"}) {
		t.Fatalf("first page = %v", got)
	}
	if !first.HasMore || first.Token == "" {
		t.Fatalf("first page should continue: %+v", first)
	}

	second, err := svc.Tasks(ctx, feed.Query{Owner: "U1", Since: watermark, PageSize: 2, Token: first.Token})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := ids(second.Data); !reflect.DeepEqual(got, []string{"t4"}) {
		t.Fatalf("second page = %v", got)
	}
	if second.HasMore {
		t.Error("second page should be the last")
	}
}

func TestPutTasks_Validation(t *testing.T) {
	called := false
	repo := &mockRepo{
		UpsertTasksFunc: func(context.Context, []models.Task) error {
			called = true
			return nil
		},
	}
	svc := service.NewChangeFeedService(repo)
	err := svc.PutTasks(context.Background(), []models.Task{{TaskID: "t1"}})
	if !errors.Is(err, service.ErrInvalidDocument) {
		t.Fatalf("PutTasks error = %v; want ErrInvalidDocument", err)
	}
	if called {
		t.Fatal("UpsertTasks should not be called for invalid documents")
	}
}

func TestPutUsers_Normalizes(t *testing.T) {
	var got []models.User
	repo := &mockRepo{
		UpsertUsersFunc: func(_ context.Context, users []models.User) error {
			got = users
			return nil
		},
	}
	svc := service.NewChangeFeedService(repo)
	if err := svc.PutUsers(context.Background(), []models.User{{UID: "u1", Role: " Designer "}}); err != nil {
		t.Fatalf("PutUsers error: %v", err)
	}
	if len(got) != 1 || got[0].Role != "designer" {
		t.Fatalf("UpsertUsers received %+v", got)
	}
}

func TestTaskCounts_FillsMissingOwners(t *testing.T) {
	repo := &mockRepo{
		CountTasksByOwnersFunc: func(context.Context, []string) (map[string]int, error) {
			return map[string]int{"U1": 2}, nil
		},
	}
	svc := service.NewChangeFeedService(repo)
	counts, err := svc.TaskCounts(context.Background(), []string{"U1", "U2"})
	if err != nil {
		t.Fatalf("TaskCounts error: %v", err)
	}
	if want := map[string]int{"U1": 2, "U2": 0}; !reflect.DeepEqual(counts, want) {
		t.Errorf("counts = %v; want %v", counts, want)
	}
}

func ids(tasks []models.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.TaskID)
	}
	return out
}
