package domain

import (
	"sort"
	"time"
)

// Status identifies the board column a task lives in.
type Status string

const (
	StatusToDo       Status = "To Do"
	StatusInProgress Status = "In Progress"
	StatusDone       Status = "Done"
)

// ValidStatus reports whether s is one of the known board columns.
func ValidStatus(s Status) bool {
	switch s {
	case StatusToDo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Priority is the task urgency label.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// ValidPriority reports whether p is one of the known priorities.
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

var statusRank = map[Status]int{StatusToDo: 0, StatusInProgress: 1, StatusDone: 2}

// SortTasks orders tasks the way a board renders them: column, then rank
// within the column, ties broken by id.
func SortTasks(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].Status != tasks[j].Status {
			return statusRank[tasks[i].Status] < statusRank[tasks[j].Status]
		}
		if tasks[i].Order != tasks[j].Order {
			return tasks[i].Order < tasks[j].Order
		}
		return tasks[i].ID < tasks[j].ID
	})
}

// Comment is a single append-only task comment.
type Comment struct {
	Text      string    `json:"text"`
	AuthorID  string    `json:"authorId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Task represents a single card on a project board. Order is a per-column
// rank: it is only meaningful relative to other tasks sharing the same
// ProjectID and Status.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Status      Status     `json:"status"`
	Order       int        `json:"order"`
	ProjectID   string     `json:"projectId"`
	AssignedTo  string     `json:"assignedTo,omitempty"`
	CreatedBy   string     `json:"createdBy"`
	Description string     `json:"description,omitempty"`
	Priority    Priority   `json:"priority"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Comments    []Comment  `json:"comments,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Project groups tasks and the users allowed to see them. The owner is set at
// creation, never changes and is always present in Members.
type Project struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Category  string     `json:"category"`
	DueDate   *time.Time `json:"dueDate,omitempty"`
	OwnerID   string     `json:"ownerId"`
	Members   []string   `json:"members"`
	CreatedAt time.Time  `json:"createdAt"`
}

// HasMember reports whether the given user belongs to the project.
func (p *Project) HasMember(userID string) bool {
	for _, m := range p.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// User is a minimal read-only view of the user directory. Account management
// lives outside this service.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar,omitempty"`
}
