package storage

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"taskboard-api/domain"
)

type stubBackend struct {
	createTaskFn    func(ctx context.Context, t domain.Task) error
	updateTaskFn    func(ctx context.Context, projectID, taskID string, upd TaskUpdate) (*domain.Task, error)
	appendCommentFn func(ctx context.Context, projectID, taskID, authorID, text string) (*domain.Task, error)
	deleteTaskFn    func(ctx context.Context, projectID, taskID string) error
	batchUpdateFn   func(ctx context.Context, projectID string, updates []domain.OrderUpdate) error
	listTasksFn     func(ctx context.Context, projectID string) ([]domain.Task, error)
	deleteProjectFn func(ctx context.Context, projectID string) error
}

func (s *stubBackend) CreateTask(ctx context.Context, t domain.Task) error {
	if s.createTaskFn == nil {
		return errors.New("unexpected CreateTask call")
	}
	return s.createTaskFn(ctx, t)
}

func (s *stubBackend) UpdateTask(ctx context.Context, projectID, taskID string, upd TaskUpdate) (*domain.Task, error) {
	if s.updateTaskFn == nil {
		return nil, errors.New("unexpected UpdateTask call")
	}
	return s.updateTaskFn(ctx, projectID, taskID, upd)
}

func (s *stubBackend) AppendComment(ctx context.Context, projectID, taskID, authorID, text string) (*domain.Task, error) {
	if s.appendCommentFn == nil {
		return nil, errors.New("unexpected AppendComment call")
	}
	return s.appendCommentFn(ctx, projectID, taskID, authorID, text)
}

func (s *stubBackend) DeleteTask(ctx context.Context, projectID, taskID string) error {
	if s.deleteTaskFn == nil {
		return errors.New("unexpected DeleteTask call")
	}
	return s.deleteTaskFn(ctx, projectID, taskID)
}

func (s *stubBackend) BatchUpdateOrder(ctx context.Context, projectID string, updates []domain.OrderUpdate) error {
	if s.batchUpdateFn == nil {
		return errors.New("unexpected BatchUpdateOrder call")
	}
	return s.batchUpdateFn(ctx, projectID, updates)
}

func (s *stubBackend) ListTasksByProject(ctx context.Context, projectID string) ([]domain.Task, error) {
	if s.listTasksFn == nil {
		return nil, errors.New("unexpected ListTasksByProject call")
	}
	return s.listTasksFn(ctx, projectID)
}

func (s *stubBackend) DeleteProject(ctx context.Context, projectID string) error {
	if s.deleteProjectFn == nil {
		return errors.New("unexpected DeleteProject call")
	}
	return s.deleteProjectFn(ctx, projectID)
}

func newCacheFixture(t *testing.T, base backend) *Cache {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewCache(base, client, time.Minute)
}

func TestCacheListTasksMissThenHit(t *testing.T) {
	ctx := context.Background()
	expected := []domain.Task{{ID: "t1", ProjectID: "p1", Title: "Write code", Status: domain.StatusToDo}}

	var calls int
	cache := newCacheFixture(t, &stubBackend{
		listTasksFn: func(ctx context.Context, projectID string) ([]domain.Task, error) {
			calls++
			if projectID != "p1" {
				t.Fatalf("unexpected project id: %s", projectID)
			}
			return append([]domain.Task(nil), expected...), nil
		},
	})

	tasks, err := cache.ListTasksByProject(ctx, "p1")
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if !reflect.DeepEqual(tasks, expected) {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}

	tasks, err = cache.ListTasksByProject(ctx, "p1")
	if err != nil {
		t.Fatalf("list tasks (cached): %v", err)
	}
	if !reflect.DeepEqual(tasks, expected) {
		t.Fatalf("unexpected cached tasks: %+v", tasks)
	}
	if calls != 1 {
		t.Fatalf("expected a single backend call, got %d", calls)
	}
}

func TestCacheMutationsEvict(t *testing.T) {
	ctx := context.Background()

	var listCalls int
	base := &stubBackend{
		listTasksFn: func(ctx context.Context, projectID string) ([]domain.Task, error) {
			listCalls++
			return []domain.Task{{ID: "t1", ProjectID: projectID}}, nil
		},
		batchUpdateFn: func(ctx context.Context, projectID string, updates []domain.OrderUpdate) error {
			return nil
		},
		deleteTaskFn: func(ctx context.Context, projectID, taskID string) error {
			return nil
		},
	}
	cache := newCacheFixture(t, base)

	if _, err := cache.ListTasksByProject(ctx, "p1"); err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	if err := cache.BatchUpdateOrder(ctx, "p1", []domain.OrderUpdate{{ID: "t1", Status: domain.StatusDone, Order: 0}}); err != nil {
		t.Fatalf("batch update: %v", err)
	}
	if _, err := cache.ListTasksByProject(ctx, "p1"); err != nil {
		t.Fatalf("list after reorder: %v", err)
	}
	if listCalls != 2 {
		t.Fatalf("expected eviction to force a backend read, got %d calls", listCalls)
	}

	if err := cache.DeleteTask(ctx, "p1", "t1"); err != nil {
		t.Fatalf("delete task: %v", err)
	}
	if _, err := cache.ListTasksByProject(ctx, "p1"); err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if listCalls != 3 {
		t.Fatalf("expected delete to evict, got %d calls", listCalls)
	}
}

func TestCachePartialFailureStillEvicts(t *testing.T) {
	ctx := context.Background()

	partial := &domain.PartialFailureError{Applied: 1, Failed: []string{"t2"}, Err: errors.New("boom")}
	var listCalls int
	cache := newCacheFixture(t, &stubBackend{
		listTasksFn: func(ctx context.Context, projectID string) ([]domain.Task, error) {
			listCalls++
			return nil, nil
		},
		batchUpdateFn: func(ctx context.Context, projectID string, updates []domain.OrderUpdate) error {
			return partial
		},
	})

	if _, err := cache.ListTasksByProject(ctx, "p1"); err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	err := cache.BatchUpdateOrder(ctx, "p1", []domain.OrderUpdate{{ID: "t1"}, {ID: "t2"}})
	var pf *domain.PartialFailureError
	if !errors.As(err, &pf) {
		t.Fatalf("expected partial failure to propagate, got %v", err)
	}
	if _, err := cache.ListTasksByProject(ctx, "p1"); err != nil {
		t.Fatalf("resync read: %v", err)
	}
	if listCalls != 2 {
		t.Fatalf("partial failure must evict so the resync sees storage, got %d calls", listCalls)
	}
}

func TestCacheCorruptEntryFallsBack(t *testing.T) {
	ctx := context.Background()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	if err := mr.Set(boardCacheKey("p1"), "{not json"); err != nil {
		t.Fatalf("seed corrupt entry: %v", err)
	}

	cache := NewCache(&stubBackend{
		listTasksFn: func(ctx context.Context, projectID string) ([]domain.Task, error) {
			return []domain.Task{{ID: "t1", ProjectID: projectID}}, nil
		},
	}, client, time.Minute)

	tasks, err := cache.ListTasksByProject(ctx, "p1")
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != "t1" {
		t.Fatalf("unexpected tasks after corrupt cache: %+v", tasks)
	}
}
