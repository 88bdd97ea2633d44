package domain

import (
	"sort"
	"testing"
)

func boardTasks() []Task {
	return []Task{
		{ID: "a", ProjectID: "p1", Status: StatusToDo, Order: 0},
		{ID: "b", ProjectID: "p1", Status: StatusToDo, Order: 1},
		{ID: "c", ProjectID: "p1", Status: StatusToDo, Order: 2},
		{ID: "d", ProjectID: "p1", Status: StatusInProgress, Order: 0},
		{ID: "e", ProjectID: "p1", Status: StatusDone, Order: 0},
		{ID: "f", ProjectID: "p1", Status: StatusDone, Order: 1},
	}
}

func ordersByID(upd []OrderUpdate) map[string]int {
	m := make(map[string]int, len(upd))
	for _, u := range upd {
		m[u.ID] = u.Order
	}
	return m
}

func assertContiguous(t *testing.T, upd []OrderUpdate) {
	t.Helper()
	seen := make(map[int]string, len(upd))
	for _, u := range upd {
		if prev, dup := seen[u.Order]; dup {
			t.Fatalf("duplicate order %d for %s and %s", u.Order, prev, u.ID)
		}
		seen[u.Order] = u.ID
	}
	for i := 0; i < len(upd); i++ {
		if _, ok := seen[i]; !ok {
			t.Fatalf("order sequence not contiguous, missing %d: %+v", i, upd)
		}
	}
}

func TestComputeReorderNoOp(t *testing.T) {
	upd := ComputeReorder(boardTasks(), StatusToDo, 1, StatusToDo, 1, "b")
	if len(upd) != 0 {
		t.Fatalf("expected empty update set for same-spot drop, got %+v", upd)
	}
}

func TestComputeReorderSameColumn(t *testing.T) {
	upd := ComputeReorder(boardTasks(), StatusToDo, 0, StatusToDo, 2, "a")
	if len(upd) != 3 {
		t.Fatalf("expected whole column back, got %d updates", len(upd))
	}
	assertContiguous(t, upd)
	orders := ordersByID(upd)
	if orders["b"] != 0 || orders["c"] != 1 || orders["a"] != 2 {
		t.Fatalf("unexpected arrangement: %+v", orders)
	}
	for _, u := range upd {
		if u.Status != StatusToDo {
			t.Fatalf("same-column move must not change status: %+v", u)
		}
	}
}

func TestComputeReorderCrossColumn(t *testing.T) {
	// Move "a" from To Do index 0 to Done index 2 (Done already has 2 tasks).
	upd := ComputeReorder(boardTasks(), StatusToDo, 0, StatusDone, 2, "a")
	if len(upd) != 3 {
		t.Fatalf("expected 3 destination tuples, got %d", len(upd))
	}
	assertContiguous(t, upd)
	orders := ordersByID(upd)
	if orders["e"] != 0 || orders["f"] != 1 || orders["a"] != 2 {
		t.Fatalf("unexpected destination arrangement: %+v", orders)
	}
	for _, u := range upd {
		if u.Status != StatusDone {
			t.Fatalf("destination tuples must carry destination status: %+v", u)
		}
	}
	// Source column tuples are not part of the batch; its survivors keep
	// their old order values (gaps allowed).
	for _, u := range upd {
		if u.ID == "b" || u.ID == "c" {
			t.Fatalf("source column leaked into the batch: %+v", u)
		}
	}
}

func TestComputeReorderCrossColumnToOccupiedIndexZero(t *testing.T) {
	tasks := []Task{
		{ID: "A", ProjectID: "p", Status: StatusToDo, Order: 0},
		{ID: "B", ProjectID: "p", Status: StatusToDo, Order: 1},
		{ID: "C", ProjectID: "p", Status: StatusInProgress, Order: 0},
	}
	upd := ComputeReorder(tasks, StatusToDo, 0, StatusInProgress, 0, "A")
	if len(upd) != 2 {
		t.Fatalf("expected batch of 2, got %+v", upd)
	}
	orders := ordersByID(upd)
	if orders["A"] != 0 || orders["C"] != 1 {
		t.Fatalf("unexpected batch: %+v", upd)
	}
	for _, u := range upd {
		if u.Status != StatusInProgress {
			t.Fatalf("expected In Progress status on %s", u.ID)
		}
	}
}

func TestComputeReorderRoundTrip(t *testing.T) {
	// Re-sorting the returned tuples by order must reproduce the sequence
	// implied by the drop index.
	upd := ComputeReorder(boardTasks(), StatusToDo, 2, StatusToDo, 0, "c")
	sort.Slice(upd, func(i, j int) bool { return upd[i].Order < upd[j].Order })
	got := make([]string, len(upd))
	for i, u := range upd {
		got[i] = u.ID
	}
	want := []string{"c", "a", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("round trip mismatch: got %v want %v", got, want)
		}
	}
}

func TestComputeReorderStaleIndexFallsBackToID(t *testing.T) {
	// A concurrent edit shifted the column so the drag coordinates are stale;
	// the dragged task is still found by id.
	upd := ComputeReorder(boardTasks(), StatusToDo, 5, StatusInProgress, 0, "b")
	orders := ordersByID(upd)
	if orders["b"] != 0 || orders["d"] != 1 {
		t.Fatalf("unexpected arrangement after stale index: %+v", orders)
	}
}

func TestComputeReorderUnknownTask(t *testing.T) {
	if upd := ComputeReorder(boardTasks(), StatusToDo, 0, StatusDone, 0, "nope"); upd != nil {
		t.Fatalf("expected nil for a task missing from the column, got %+v", upd)
	}
}

func TestComputeReorderClampsDestinationIndex(t *testing.T) {
	upd := ComputeReorder(boardTasks(), StatusToDo, 0, StatusDone, 99, "a")
	assertContiguous(t, upd)
	orders := ordersByID(upd)
	if orders["a"] != 2 {
		t.Fatalf("expected append at end of destination, got %+v", orders)
	}
}
