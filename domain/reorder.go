package domain

import "sort"

// OrderUpdate is one (id, status, order) tuple of a batch reorder. The server
// applies these idempotently; sending unchanged tuples is harmless.
type OrderUpdate struct {
	ID     string `json:"id"`
	Status Status `json:"status"`
	Order  int    `json:"order"`
}

// ComputeReorder translates a drag-and-drop result into the batch of order
// updates that reflects the new arrangement.
//
// tasks is the full task list of one project, in any order. A same-column move
// returns every task of that column with orders reassigned 0..n-1. A
// cross-column move returns the full destination column, the moved task
// carrying its new status; the source column keeps its existing order values
// (gaps are fine, order is only a relative rank). A drop onto the exact spot
// the drag started from returns nil.
func ComputeReorder(tasks []Task, src Status, srcIdx int, dst Status, dstIdx int, taskID string) []OrderUpdate {
	if src == dst && srcIdx == dstIdx {
		return nil
	}

	if src == dst {
		col := sortedColumn(tasks, src)
		col, moved := removeTask(col, srcIdx, taskID)
		if moved == nil {
			return nil
		}
		col = insertTask(col, dstIdx, *moved)
		return columnUpdates(col, src)
	}

	srcCol := sortedColumn(tasks, src)
	_, moved := removeTask(srcCol, srcIdx, taskID)
	if moved == nil {
		return nil
	}
	moved.Status = dst
	dstCol := insertTask(sortedColumn(tasks, dst), dstIdx, *moved)
	return columnUpdates(dstCol, dst)
}

// sortedColumn returns the tasks of one column sorted by their current order,
// ties broken by id so repeated calls see the same sequence.
func sortedColumn(tasks []Task, status Status) []Task {
	col := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Status == status {
			col = append(col, t)
		}
	}
	sort.SliceStable(col, func(i, j int) bool {
		if col[i].Order != col[j].Order {
			return col[i].Order < col[j].Order
		}
		return col[i].ID < col[j].ID
	})
	return col
}

// removeTask takes the dragged task out of the column. The drag coordinates
// are trusted first; if the index is stale (a concurrent edit shifted the
// column) the task is located by id instead. A nil task means it is no longer
// in the column at all and the drag is ignored.
func removeTask(col []Task, idx int, taskID string) ([]Task, *Task) {
	if idx < 0 || idx >= len(col) || col[idx].ID != taskID {
		idx = -1
		for i := range col {
			if col[i].ID == taskID {
				idx = i
				break
			}
		}
		if idx == -1 {
			return col, nil
		}
	}
	moved := col[idx]
	return append(col[:idx:idx], col[idx+1:]...), &moved
}

func insertTask(col []Task, idx int, t Task) []Task {
	if idx < 0 {
		idx = 0
	}
	if idx > len(col) {
		idx = len(col)
	}
	col = append(col, Task{})
	copy(col[idx+1:], col[idx:])
	col[idx] = t
	return col
}

func columnUpdates(col []Task, status Status) []OrderUpdate {
	upd := make([]OrderUpdate, len(col))
	for i, t := range col {
		upd[i] = OrderUpdate{ID: t.ID, Status: status, Order: i}
	}
	return upd
}
