package domain

// Board event kinds delivered to project rooms. One event is published per
// successful mutating operation, after the write has committed.
const (
	EventTaskCreated    = "task_created"
	EventTaskUpdated    = "task_updated"
	EventTaskDeleted    = "task_deleted"
	EventTasksReordered = "tasks_reordered"
)

// BoardEvent is the broadcast envelope. Exactly one of Task, TaskID or
// Updates is set depending on Kind: the full task for create/update, the bare
// id for delete, the tuple set for reorder. Payloads carry enough to let
// clients merge without a follow-up fetch.
type BoardEvent struct {
	ProjectID string        `json:"projectId"`
	Kind      string        `json:"kind"`
	Task      *Task         `json:"task,omitempty"`
	TaskID    string        `json:"taskId,omitempty"`
	Updates   []OrderUpdate `json:"updates,omitempty"`
}

// TaskCreated builds the broadcast for a newly persisted task.
func TaskCreated(t Task) BoardEvent {
	return BoardEvent{ProjectID: t.ProjectID, Kind: EventTaskCreated, Task: &t}
}

// TaskUpdated builds the broadcast for a persisted field update or comment
// append. The payload is the whole task; clients replace wholesale.
func TaskUpdated(t Task) BoardEvent {
	return BoardEvent{ProjectID: t.ProjectID, Kind: EventTaskUpdated, Task: &t}
}

// TaskDeleted builds the broadcast for a deletion.
func TaskDeleted(projectID, taskID string) BoardEvent {
	return BoardEvent{ProjectID: projectID, Kind: EventTaskDeleted, TaskID: taskID}
}

// TasksReordered builds the broadcast for a committed batch reorder.
func TasksReordered(projectID string, updates []OrderUpdate) BoardEvent {
	return BoardEvent{ProjectID: projectID, Kind: EventTasksReordered, Updates: updates}
}
