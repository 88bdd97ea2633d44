package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"

	"taskboard-api/domain"
)

// Azure table batches accept at most 100 operations per transaction.
const transactionLimit = 100

// Storage provides access to underlying persistence mechanisms. Tasks are
// partitioned by project, so every column of one board lives in a single
// partition and a reorder batch is a single-partition transaction.
type Storage struct {
	taskTable         *aztables.Client
	projectTable      *aztables.Client
	membershipTable   *aztables.Client
	userTable         *aztables.Client
	notificationTable *aztables.Client
	emailQueue        *azqueue.QueueClient
}

// Tables carries the table and queue names Storage binds to.
type Tables struct {
	Tasks         string
	Projects      string
	Memberships   string
	Users         string
	Notifications string
	EmailQueue    string
}

// New creates a Storage instance from the given connection string.
func New(connStr string, tables Tables) (*Storage, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	queueClientOptions := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	eq, err := azqueue.NewQueueClientFromConnectionString(connStr, tables.EmailQueue, &queueClientOptions)
	if err != nil {
		return nil, err
	}
	return &Storage{
		taskTable:         svc.NewClient(tables.Tasks),
		projectTable:      svc.NewClient(tables.Projects),
		membershipTable:   svc.NewClient(tables.Memberships),
		userTable:         svc.NewClient(tables.Users),
		notificationTable: svc.NewClient(tables.Notifications),
		emailQueue:        eq,
	}, nil
}

type taskEntity struct {
	aztables.Entity
	ETag        azcore.ETag `json:"odata.etag,omitempty"`
	Title       string      `json:"Title"`
	Status      string      `json:"Status"`
	Order       int         `json:"Order"`
	AssignedTo  string      `json:"AssignedTo"`
	CreatedBy   string      `json:"CreatedBy"`
	Description string      `json:"Description"`
	Priority    string      `json:"Priority"`
	DueDate     string      `json:"DueDate"`
	Comments    string      `json:"Comments"`
	CreatedAt   string      `json:"CreatedAt"`
}

func taskToEntity(t domain.Task) (taskEntity, error) {
	ent := taskEntity{
		Entity:      aztables.Entity{PartitionKey: t.ProjectID, RowKey: t.ID},
		Title:       t.Title,
		Status:      string(t.Status),
		Order:       t.Order,
		AssignedTo:  t.AssignedTo,
		CreatedBy:   t.CreatedBy,
		Description: t.Description,
		Priority:    string(t.Priority),
		CreatedAt:   t.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if t.DueDate != nil {
		ent.DueDate = t.DueDate.UTC().Format(time.RFC3339Nano)
	}
	if len(t.Comments) > 0 {
		data, err := json.Marshal(t.Comments)
		if err != nil {
			return taskEntity{}, err
		}
		ent.Comments = string(data)
	}
	return ent, nil
}

func entityToTask(data []byte) (domain.Task, azcore.ETag, error) {
	var ent taskEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.Task{}, "", err
	}
	t := domain.Task{
		ID:          ent.RowKey,
		ProjectID:   ent.PartitionKey,
		Title:       ent.Title,
		Status:      domain.Status(ent.Status),
		Order:       ent.Order,
		AssignedTo:  ent.AssignedTo,
		CreatedBy:   ent.CreatedBy,
		Description: ent.Description,
		Priority:    domain.Priority(ent.Priority),
	}
	if ent.DueDate != "" {
		due, err := time.Parse(time.RFC3339Nano, ent.DueDate)
		if err != nil {
			return domain.Task{}, "", fmt.Errorf("task %s due date: %w", ent.RowKey, err)
		}
		t.DueDate = &due
	}
	if ent.CreatedAt != "" {
		created, err := time.Parse(time.RFC3339Nano, ent.CreatedAt)
		if err != nil {
			return domain.Task{}, "", fmt.Errorf("task %s created at: %w", ent.RowKey, err)
		}
		t.CreatedAt = created
	}
	if ent.Comments != "" {
		if err := json.Unmarshal([]byte(ent.Comments), &t.Comments); err != nil {
			return domain.Task{}, "", fmt.Errorf("task %s comments: %w", ent.RowKey, err)
		}
	}
	return t, ent.ETag, nil
}

func isStatus(err error, code int) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == code
}

// CreateTask persists a new task.
func (s *Storage) CreateTask(ctx context.Context, t domain.Task) error {
	ent, err := taskToEntity(t)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = s.taskTable.AddEntity(ctx, payload, nil)
	return err
}

// GetTask fetches one task. Returns domain.ErrNotFound when absent.
func (s *Storage) GetTask(ctx context.Context, projectID, taskID string) (*domain.Task, error) {
	resp, err := s.taskTable.GetEntity(ctx, projectID, taskID, nil)
	if err != nil {
		if isStatus(err, 404) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	t, _, err := entityToTask(resp.Value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// TaskUpdate carries the fields of a partial task update. Nil fields are left
// untouched. ClearDueDate removes the due date regardless of DueDate.
type TaskUpdate struct {
	Title        *string
	Description  *string
	Status       *domain.Status
	Order        *int
	Priority     *domain.Priority
	AssignedTo   *string
	DueDate      *time.Time
	ClearDueDate bool
}

func (u TaskUpdate) apply(t *domain.Task) {
	if u.Title != nil {
		t.Title = *u.Title
	}
	if u.Description != nil {
		t.Description = *u.Description
	}
	if u.Status != nil {
		t.Status = *u.Status
	}
	if u.Order != nil {
		t.Order = *u.Order
	}
	if u.Priority != nil {
		t.Priority = *u.Priority
	}
	if u.AssignedTo != nil {
		t.AssignedTo = *u.AssignedTo
	}
	if u.ClearDueDate {
		t.DueDate = nil
	} else if u.DueDate != nil {
		due := *u.DueDate
		t.DueDate = &due
	}
}

// UpdateTask merges the partial update into the stored task and returns the
// result. Conditional on the entity etag; retried on concurrent writes so the
// merge always applies to the latest revision (last write wins).
func (s *Storage) UpdateTask(ctx context.Context, projectID, taskID string, upd TaskUpdate) (*domain.Task, error) {
	for {
		resp, err := s.taskTable.GetEntity(ctx, projectID, taskID, nil)
		if err != nil {
			if isStatus(err, 404) {
				return nil, domain.ErrNotFound
			}
			return nil, err
		}
		t, etag, err := entityToTask(resp.Value)
		if err != nil {
			return nil, err
		}
		upd.apply(&t)
		if err := s.replaceTask(ctx, t, etag); err != nil {
			if errors.Is(err, domain.ErrConcurrencyConflict) {
				continue
			}
			return nil, err
		}
		return &t, nil
	}
}

// AppendComment appends one comment to the task's comment sequence and returns
// the updated task.
func (s *Storage) AppendComment(ctx context.Context, projectID, taskID, authorID, text string) (*domain.Task, error) {
	now := time.Now().UTC()
	for {
		resp, err := s.taskTable.GetEntity(ctx, projectID, taskID, nil)
		if err != nil {
			if isStatus(err, 404) {
				return nil, domain.ErrNotFound
			}
			return nil, err
		}
		t, etag, err := entityToTask(resp.Value)
		if err != nil {
			return nil, err
		}
		t.Comments = append(t.Comments, domain.Comment{Text: text, AuthorID: authorID, CreatedAt: now})
		if err := s.replaceTask(ctx, t, etag); err != nil {
			if errors.Is(err, domain.ErrConcurrencyConflict) {
				continue
			}
			return nil, err
		}
		return &t, nil
	}
}

func (s *Storage) replaceTask(ctx context.Context, t domain.Task, etag azcore.ETag) error {
	ent, err := taskToEntity(t)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = s.taskTable.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{
		IfMatch:    &etag,
		UpdateMode: aztables.UpdateModeReplace,
	})
	if err != nil && isStatus(err, 412) {
		return domain.ErrConcurrencyConflict
	}
	return err
}

// DeleteTask removes a task. Returns domain.ErrNotFound when absent.
func (s *Storage) DeleteTask(ctx context.Context, projectID, taskID string) error {
	_, err := s.taskTable.DeleteEntity(ctx, projectID, taskID, nil)
	if err != nil && isStatus(err, 404) {
		return domain.ErrNotFound
	}
	return err
}

// BatchUpdateOrder applies a reorder tuple set. All tuples of one board share
// a partition so each chunk of up to 100 applies transactionally; batches
// beyond the transaction limit are chunked, and a later chunk failing after an
// earlier one committed surfaces as PartialFailureError so callers re-fetch.
// Unconditional merges: concurrent reorders resolve as last write wins.
func (s *Storage) BatchUpdateOrder(ctx context.Context, projectID string, updates []domain.OrderUpdate) error {
	applied := 0
	for start := 0; start < len(updates); start += transactionLimit {
		end := start + transactionLimit
		if end > len(updates) {
			end = len(updates)
		}
		chunk := updates[start:end]
		actions := make([]aztables.TransactionAction, 0, len(chunk))
		for _, u := range chunk {
			ent := struct {
				aztables.Entity
				Status string `json:"Status"`
				Order  int    `json:"Order"`
			}{
				Entity: aztables.Entity{PartitionKey: projectID, RowKey: u.ID},
				Status: string(u.Status),
				Order:  u.Order,
			}
			payload, err := json.Marshal(ent)
			if err != nil {
				return err
			}
			actions = append(actions, aztables.TransactionAction{
				ActionType: aztables.TransactionTypeUpdateMerge,
				Entity:     payload,
			})
		}
		if _, err := s.taskTable.SubmitTransaction(ctx, actions, nil); err != nil {
			if isStatus(err, 404) {
				err = fmt.Errorf("%w: %v", domain.ErrNotFound, err)
			}
			if applied > 0 {
				failed := make([]string, 0, len(updates)-applied)
				for _, u := range updates[applied:] {
					failed = append(failed, u.ID)
				}
				return &domain.PartialFailureError{Applied: applied, Failed: failed, Err: err}
			}
			return err
		}
		applied = end
	}
	return nil
}

// ListTasksByProject returns every task of the project ordered by
// (status, order). This is the full-resync read clients use after reconnect.
func (s *Storage) ListTasksByProject(ctx context.Context, projectID string) ([]domain.Task, error) {
	filter := "PartitionKey eq '" + escapeFilter(projectID) + "'"
	pager := s.taskTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			t, _, err := entityToTask(e)
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, t)
		}
	}
	domain.SortTasks(tasks)
	return tasks, nil
}

// EnqueueEmail puts one email job on the outbound queue. Delivery is someone
// else's problem.
func (s *Storage) EnqueueEmail(ctx context.Context, msg domain.EmailMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = s.emailQueue.EnqueueMessage(ctx, string(data), nil)
	return err
}

// escapeFilter doubles single quotes for OData filter literals.
func escapeFilter(v string) string {
	out := make([]byte, 0, len(v))
	for i := 0; i < len(v); i++ {
		if v[i] == '\'' {
			out = append(out, '\'')
		}
		out = append(out, v[i])
	}
	return string(out)
}
