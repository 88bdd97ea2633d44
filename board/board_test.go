package board

import (
	"reflect"
	"testing"

	"taskboard-api/domain"
)

func seededBoard() *Board {
	b := New("p1")
	b.Load([]domain.Task{
		{ID: "a", ProjectID: "p1", Status: domain.StatusToDo, Order: 0, Title: "A"},
		{ID: "b", ProjectID: "p1", Status: domain.StatusToDo, Order: 1, Title: "B"},
		{ID: "c", ProjectID: "p1", Status: domain.StatusInProgress, Order: 0, Title: "C"},
	})
	return b
}

func columnIDs(b *Board, status domain.Status) []string {
	col := b.Column(status)
	ids := make([]string, len(col))
	for i, t := range col {
		ids[i] = t.ID
	}
	return ids
}

func TestMoveLocalBatchIncludesShiftedDestinationTasks(t *testing.T) {
	b := seededBoard()

	intent, updates := b.MoveLocal(domain.StatusToDo, 0, domain.StatusInProgress, 0, "a")
	if intent == "" {
		t.Fatalf("expected an intent for a real move")
	}
	want := []domain.OrderUpdate{
		{ID: "a", Status: domain.StatusInProgress, Order: 0},
		{ID: "c", Status: domain.StatusInProgress, Order: 1},
	}
	if !reflect.DeepEqual(updates, want) {
		t.Fatalf("unexpected batch: %+v", updates)
	}

	if got := columnIDs(b, domain.StatusInProgress); !reflect.DeepEqual(got, []string{"a", "c"}) {
		t.Fatalf("unexpected In Progress column: %v", got)
	}
	if got := columnIDs(b, domain.StatusToDo); !reflect.DeepEqual(got, []string{"b"}) {
		t.Fatalf("unexpected To Do column: %v", got)
	}
	// Source survivor keeps its old order value; gaps are fine.
	if task, _ := b.Get("b"); task.Order != 1 {
		t.Fatalf("source column must keep existing orders, got %d", task.Order)
	}
}

func TestMoveLocalNoOp(t *testing.T) {
	b := seededBoard()
	intent, updates := b.MoveLocal(domain.StatusToDo, 1, domain.StatusToDo, 1, "b")
	if intent != "" || updates != nil {
		t.Fatalf("same-spot drop must be a no-op, got %v", updates)
	}
}

func TestRevertRestoresPreMoveState(t *testing.T) {
	b := seededBoard()
	before := b.Tasks()

	intent, updates := b.MoveLocal(domain.StatusToDo, 0, domain.StatusInProgress, 1, "a")
	if len(updates) == 0 {
		t.Fatalf("expected a batch")
	}
	b.Revert(intent)

	if !reflect.DeepEqual(b.Tasks(), before) {
		t.Fatalf("revert must restore the exact pre-move state\nbefore: %+v\nafter:  %+v", before, b.Tasks())
	}
	// A second revert of the same intent is a no-op.
	b.Revert(intent)
	if !reflect.DeepEqual(b.Tasks(), before) {
		t.Fatalf("double revert changed state")
	}
}

func TestConfirmDropsSnapshot(t *testing.T) {
	b := seededBoard()
	intent, _ := b.MoveLocal(domain.StatusToDo, 0, domain.StatusDone, 0, "a")
	after := b.Tasks()
	b.Confirm(intent)
	b.Revert(intent)
	if !reflect.DeepEqual(b.Tasks(), after) {
		t.Fatalf("revert after confirm must be a no-op")
	}
}

func TestCreatedBroadcastIdempotentWithOptimisticInsert(t *testing.T) {
	b := seededBoard()
	task := domain.Task{ID: "d", ProjectID: "p1", Status: domain.StatusToDo, Order: 2, Title: "D"}
	b.CreateLocal(task)

	// The originating session receives its own echo; it must not double-apply.
	b.ApplyBroadcast(domain.TaskCreated(task))
	b.ApplyBroadcast(domain.TaskCreated(task))

	if got := columnIDs(b, domain.StatusToDo); !reflect.DeepEqual(got, []string{"a", "b", "d"}) {
		t.Fatalf("unexpected column after create echo: %v", got)
	}
}

func TestUpdatedBroadcastInsertsWhenAbsent(t *testing.T) {
	b := seededBoard()
	task := domain.Task{ID: "x", ProjectID: "p1", Status: domain.StatusDone, Order: 0, Title: "X"}
	b.ApplyBroadcast(domain.TaskUpdated(task))
	got, ok := b.Get("x")
	if !ok || got.Title != "X" {
		t.Fatalf("update for unknown task must insert (self-heal), got %+v ok=%v", got, ok)
	}
}

func TestDeletedBroadcastEchoIsNoOp(t *testing.T) {
	b := seededBoard()
	if _, ok := b.DeleteLocal("a"); !ok {
		t.Fatalf("expected local delete to apply")
	}
	// Own echo arrives after the optimistic remove.
	b.ApplyBroadcast(domain.TaskDeleted("p1", "a"))
	b.ApplyBroadcast(domain.TaskDeleted("p1", "a"))
	if _, ok := b.Get("a"); ok {
		t.Fatalf("task must stay deleted")
	}
}

func TestReorderedBroadcastIdempotent(t *testing.T) {
	b := seededBoard()
	ev := domain.TasksReordered("p1", []domain.OrderUpdate{
		{ID: "b", Status: domain.StatusToDo, Order: 0},
		{ID: "a", Status: domain.StatusToDo, Order: 1},
	})

	b.ApplyBroadcast(ev)
	once := b.Tasks()
	b.ApplyBroadcast(ev)
	twice := b.Tasks()

	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("applying the same reorder payload twice diverged\nonce:  %+v\ntwice: %+v", once, twice)
	}
	if got := columnIDs(b, domain.StatusToDo); !reflect.DeepEqual(got, []string{"b", "a"}) {
		t.Fatalf("unexpected column: %v", got)
	}
}

func TestConflictingReordersLastWriteWins(t *testing.T) {
	b := seededBoard()
	// Two sessions reorder the same column concurrently; their broadcasts
	// arrive back to back. There is no merge: whichever payload lands last
	// overwrites the column wholesale, as if the first never happened.
	first := domain.TasksReordered("p1", []domain.OrderUpdate{
		{ID: "b", Status: domain.StatusToDo, Order: 0},
		{ID: "a", Status: domain.StatusToDo, Order: 1},
	})
	second := domain.TasksReordered("p1", []domain.OrderUpdate{
		{ID: "a", Status: domain.StatusToDo, Order: 0},
		{ID: "b", Status: domain.StatusToDo, Order: 1},
	})

	b.ApplyBroadcast(first)
	b.ApplyBroadcast(second)
	if got := columnIDs(b, domain.StatusToDo); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("second reorder must win outright, got %v", got)
	}

	// Order of arrival is the only thing that matters: flipped arrival
	// leaves the first payload's arrangement as the loser instead.
	b2 := seededBoard()
	b2.ApplyBroadcast(second)
	b2.ApplyBroadcast(first)
	if got := columnIDs(b2, domain.StatusToDo); !reflect.DeepEqual(got, []string{"b", "a"}) {
		t.Fatalf("later payload must overwrite earlier one, got %v", got)
	}
}

func TestReorderedBroadcastSkipsUnknownAndLeavesOthers(t *testing.T) {
	b := seededBoard()
	b.ApplyBroadcast(domain.TasksReordered("p1", []domain.OrderUpdate{
		{ID: "ghost", Status: domain.StatusDone, Order: 0},
		{ID: "c", Status: domain.StatusDone, Order: 1},
	}))
	if _, ok := b.Get("ghost"); ok {
		t.Fatalf("reorder must not resurrect unknown tasks")
	}
	if task, _ := b.Get("c"); task.Status != domain.StatusDone || task.Order != 1 {
		t.Fatalf("mentioned task not overwritten: %+v", task)
	}
	if task, _ := b.Get("a"); task.Status != domain.StatusToDo || task.Order != 0 {
		t.Fatalf("unmentioned task must stay untouched: %+v", task)
	}
}

func TestBroadcastForOtherProjectIgnored(t *testing.T) {
	b := seededBoard()
	b.ApplyBroadcast(domain.TaskDeleted("p2", "a"))
	if _, ok := b.Get("a"); !ok {
		t.Fatalf("event for another project must be ignored")
	}
}

func TestResyncRecoversMissedCreate(t *testing.T) {
	b := seededBoard()

	// Disconnected: a create happens elsewhere and its broadcast is missed
	// entirely. On reconnect the client re-fetches instead.
	missed := domain.Task{ID: "d", ProjectID: "p1", Status: domain.StatusDone, Order: 0, Title: "D"}

	b.BeginResync()
	authoritative := append(seededBoard().Tasks(), missed)
	b.CompleteResync(authoritative)

	if got, ok := b.Get("d"); !ok || got.Title != "D" {
		t.Fatalf("missed create must appear after resync, got %+v ok=%v", got, ok)
	}
}

func TestResyncQueuesBroadcastsUntilFetchResolves(t *testing.T) {
	b := seededBoard()
	b.BeginResync()

	// Arrives mid-fetch; must not mutate state yet.
	b.ApplyBroadcast(domain.TaskDeleted("p1", "a"))
	if _, ok := b.Get("a"); !ok {
		t.Fatalf("queued event applied before fetch resolved")
	}

	b.CompleteResync(seededBoard().Tasks())
	if _, ok := b.Get("a"); ok {
		t.Fatalf("queued delete must replay after the fetch")
	}
}

func TestResyncDropsPendingIntents(t *testing.T) {
	b := seededBoard()
	intent, _ := b.MoveLocal(domain.StatusToDo, 0, domain.StatusDone, 0, "a")

	b.BeginResync()
	b.CompleteResync(seededBoard().Tasks())

	// The fetch is authoritative; reverting a pre-resync intent must not
	// reinstate stale state.
	b.Revert(intent)
	if task, _ := b.Get("a"); task.Status != domain.StatusToDo {
		t.Fatalf("stale revert applied after resync: %+v", task)
	}
}

func TestTaskLifecycleStates(t *testing.T) {
	b := New("p1")

	// absent -> present (optimistic create, unconfirmed)
	task := domain.Task{ID: "t", ProjectID: "p1", Status: domain.StatusToDo, Order: 0}
	intent := b.CreateLocal(task)
	if _, ok := b.Get("t"); !ok {
		t.Fatalf("expected present after optimistic create")
	}

	// confirmed
	b.Confirm(intent)

	// mutated
	task.Status = domain.StatusDone
	if _, ok := b.UpdateLocal(task); !ok {
		t.Fatalf("expected update to apply")
	}

	// present -> absent
	if _, ok := b.DeleteLocal("t"); !ok {
		t.Fatalf("expected delete to apply")
	}
	if _, ok := b.Get("t"); ok {
		t.Fatalf("expected absent after delete")
	}

	// absent is re-enterable
	b.ApplyBroadcast(domain.TaskCreated(task))
	if _, ok := b.Get("t"); !ok {
		t.Fatalf("absent must be re-enterable")
	}
}
