package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"taskboard-api/domain"
)

type backend interface {
	CreateTask(ctx context.Context, t domain.Task) error
	UpdateTask(ctx context.Context, projectID, taskID string, upd TaskUpdate) (*domain.Task, error)
	AppendComment(ctx context.Context, projectID, taskID, authorID, text string) (*domain.Task, error)
	DeleteTask(ctx context.Context, projectID, taskID string) error
	BatchUpdateOrder(ctx context.Context, projectID string, updates []domain.OrderUpdate) error
	ListTasksByProject(ctx context.Context, projectID string) ([]domain.Task, error)
	DeleteProject(ctx context.Context, projectID string) error
}

// Cache wraps a Storage instance with Redis-backed caching of per-project task
// lists. Every task mutation evicts its project's entry so resync reads never
// serve a board older than the last committed write.
type Cache struct {
	*Storage
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching Storage wrapper using the provided Redis client and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}

	c := &Cache{
		base:  base,
		redis: client,
		ttl:   ttl,
	}
	if s, ok := base.(*Storage); ok {
		c.Storage = s
	}
	return c
}

func (c *Cache) ListTasksByProject(ctx context.Context, projectID string) ([]domain.Task, error) {
	if tasks, ok := c.loadFromCache(ctx, projectID); ok {
		return tasks, nil
	}

	tasks, err := c.base.ListTasksByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	c.store(ctx, projectID, tasks)
	return tasks, nil
}

func (c *Cache) CreateTask(ctx context.Context, t domain.Task) error {
	if err := c.base.CreateTask(ctx, t); err != nil {
		return err
	}
	c.evict(ctx, t.ProjectID)
	return nil
}

func (c *Cache) UpdateTask(ctx context.Context, projectID, taskID string, upd TaskUpdate) (*domain.Task, error) {
	t, err := c.base.UpdateTask(ctx, projectID, taskID, upd)
	if err != nil {
		return nil, err
	}
	c.evict(ctx, projectID)
	return t, nil
}

func (c *Cache) AppendComment(ctx context.Context, projectID, taskID, authorID, text string) (*domain.Task, error) {
	t, err := c.base.AppendComment(ctx, projectID, taskID, authorID, text)
	if err != nil {
		return nil, err
	}
	c.evict(ctx, projectID)
	return t, nil
}

func (c *Cache) DeleteTask(ctx context.Context, projectID, taskID string) error {
	if err := c.base.DeleteTask(ctx, projectID, taskID); err != nil {
		return err
	}
	c.evict(ctx, projectID)
	return nil
}

func (c *Cache) BatchUpdateOrder(ctx context.Context, projectID string, updates []domain.OrderUpdate) error {
	err := c.base.BatchUpdateOrder(ctx, projectID, updates)
	if err == nil {
		c.evict(ctx, projectID)
		return nil
	}
	// A partial failure still changed the board; stale cache would hide it
	// from the resync the client is about to issue.
	c.evict(ctx, projectID)
	return err
}

func (c *Cache) DeleteProject(ctx context.Context, projectID string) error {
	if err := c.base.DeleteProject(ctx, projectID); err != nil {
		return err
	}
	c.evict(ctx, projectID)
	return nil
}

func (c *Cache) loadFromCache(ctx context.Context, projectID string) ([]domain.Task, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, boardCacheKey(projectID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, boardCacheKey(projectID)).Err()
		}
		return nil, false
	}
	var tasks []domain.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		_ = c.redis.Del(ctx, boardCacheKey(projectID)).Err()
		return nil, false
	}
	return tasks, true
}

func (c *Cache) store(ctx context.Context, projectID string, tasks []domain.Task) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, boardCacheKey(projectID), data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, projectID string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, boardCacheKey(projectID)).Result()
}

func boardCacheKey(projectID string) string {
	return "board-tasks:" + projectID
}
