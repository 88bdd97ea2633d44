// Package board holds a client-side mirror of one project's tasks and keeps
// it eventually consistent with the server. Local mutations apply
// optimistically and can be reverted when their request fails; inbound
// broadcasts merge by task id. All entry points serialize on one mutex, so
// local intents and broadcasts form a single ordered stream regardless of
// which goroutine delivers them.
package board

import (
	"sync"

	"github.com/google/uuid"

	"taskboard-api/domain"
)

// Board is the local mirror of one project's task list.
type Board struct {
	mu        sync.Mutex
	projectID string
	tasks     map[string]domain.Task
	pending   map[string]map[string]domain.Task
	resyncing bool
	queued    []domain.BoardEvent
}

// New creates an empty board for the project.
func New(projectID string) *Board {
	return &Board{
		projectID: projectID,
		tasks:     make(map[string]domain.Task),
		pending:   make(map[string]map[string]domain.Task),
	}
}

// Load replaces the board with the result of an initial full fetch.
func (b *Board) Load(tasks []domain.Task) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.replace(tasks)
}

// requires b.mu held.
func (b *Board) replace(tasks []domain.Task) {
	b.tasks = make(map[string]domain.Task, len(tasks))
	for _, t := range tasks {
		b.tasks[t.ID] = t
	}
}

// requires b.mu held.
func (b *Board) snapshot() map[string]domain.Task {
	snap := make(map[string]domain.Task, len(b.tasks))
	for id, t := range b.tasks {
		snap[id] = t
	}
	return snap
}

// requires b.mu held.
func (b *Board) newIntent() string {
	id := uuid.NewString()
	b.pending[id] = b.snapshot()
	return id
}

// Tasks returns the mirrored tasks in board order.
func (b *Board) Tasks() []domain.Task {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.Task, 0, len(b.tasks))
	for _, t := range b.tasks {
		out = append(out, t)
	}
	domain.SortTasks(out)
	return out
}

// Column returns the tasks of one status column sorted by order.
func (b *Board) Column(status domain.Status) []domain.Task {
	all := b.Tasks()
	col := make([]domain.Task, 0, len(all))
	for _, t := range all {
		if t.Status == status {
			col = append(col, t)
		}
	}
	return col
}

// Get returns the local mirror of one task.
func (b *Board) Get(id string) (domain.Task, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.tasks[id]
	return t, ok
}

// CreateLocal applies an optimistic create and returns the intent id to
// Confirm or Revert once the request settles.
func (b *Board) CreateLocal(t domain.Task) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	intent := b.newIntent()
	b.tasks[t.ID] = t
	return intent
}

// UpdateLocal applies an optimistic wholesale replacement of one task.
// Returns false when the task is not mirrored locally.
func (b *Board) UpdateLocal(t domain.Task) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.tasks[t.ID]; !ok {
		return "", false
	}
	intent := b.newIntent()
	b.tasks[t.ID] = t
	return intent, true
}

// DeleteLocal applies an optimistic delete. Returns false when the task is
// not mirrored locally.
func (b *Board) DeleteLocal(id string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.tasks[id]; !ok {
		return "", false
	}
	intent := b.newIntent()
	delete(b.tasks, id)
	return intent, true
}

// MoveLocal translates a drag result into a reorder batch, applies it
// optimistically and returns the tuples to send. A nil tuple set means the
// drag changed nothing and no intent was recorded.
func (b *Board) MoveLocal(src domain.Status, srcIdx int, dst domain.Status, dstIdx int, taskID string) (string, []domain.OrderUpdate) {
	b.mu.Lock()
	defer b.mu.Unlock()
	all := make([]domain.Task, 0, len(b.tasks))
	for _, t := range b.tasks {
		all = append(all, t)
	}
	updates := domain.ComputeReorder(all, src, srcIdx, dst, dstIdx, taskID)
	if len(updates) == 0 {
		return "", nil
	}
	intent := b.newIntent()
	b.applyOrderUpdates(updates)
	return intent, updates
}

// Confirm drops the revert snapshot of a settled intent. The optimistic state
// already matches what the broadcast echo will carry, so nothing else to do.
func (b *Board) Confirm(intentID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pending, intentID)
}

// Revert restores the board to its state before the intent was applied. Used
// when the request behind an optimistic mutation fails; the whole move is
// undone, never a partial subset.
func (b *Board) Revert(intentID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	snap, ok := b.pending[intentID]
	if !ok {
		return
	}
	delete(b.pending, intentID)
	b.tasks = snap
}

// ApplyBroadcast merges one inbound event into the mirror. All merges are
// idempotent by task id: the originating session's own echo and stale events
// for already-deleted tasks are no-ops, never errors. During a resync events
// are queued and replayed once the authoritative fetch lands.
func (b *Board) ApplyBroadcast(ev domain.BoardEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ev.ProjectID != b.projectID {
		return
	}
	if b.resyncing {
		b.queued = append(b.queued, ev)
		return
	}
	b.merge(ev)
}

// requires b.mu held.
func (b *Board) merge(ev domain.BoardEvent) {
	switch ev.Kind {
	case domain.EventTaskCreated:
		if ev.Task == nil {
			return
		}
		if _, exists := b.tasks[ev.Task.ID]; exists {
			return
		}
		b.tasks[ev.Task.ID] = *ev.Task
	case domain.EventTaskUpdated:
		if ev.Task == nil {
			return
		}
		// Insert when absent: self-heals from a missed create.
		b.tasks[ev.Task.ID] = *ev.Task
	case domain.EventTaskDeleted:
		delete(b.tasks, ev.TaskID)
	case domain.EventTasksReordered:
		b.applyOrderUpdates(ev.Updates)
	}
}

// requires b.mu held. Tuples referencing unknown tasks are skipped; tasks not
// mentioned stay untouched.
func (b *Board) applyOrderUpdates(updates []domain.OrderUpdate) {
	for _, u := range updates {
		t, ok := b.tasks[u.ID]
		if !ok {
			continue
		}
		t.Status = u.Status
		t.Order = u.Order
		b.tasks[u.ID] = t
	}
}

// BeginResync marks the board as re-fetching after a reconnect. Broadcasts
// arriving before the fetch completes are queued; the fetch is authoritative
// and replaying them afterwards is overwrite-safe.
func (b *Board) BeginResync() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resyncing = true
	b.queued = nil
}

// CompleteResync installs the authoritative task list and replays any events
// queued while it was in flight. Pending intents are dropped: their requests
// raced the disconnect and the fetched state already reflects whichever
// writes won.
func (b *Board) CompleteResync(tasks []domain.Task) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.replace(tasks)
	b.pending = make(map[string]map[string]domain.Task)
	b.resyncing = false
	for _, ev := range b.queued {
		b.merge(ev)
	}
	b.queued = nil
}
