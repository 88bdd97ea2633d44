package api

import (
	"context"

	"taskboard-api/domain"
	"taskboard-api/storage"
)

// Storage abstracts persistence for handlers.
type Storage interface {
	CreateTask(ctx context.Context, t domain.Task) error
	GetTask(ctx context.Context, projectID, taskID string) (*domain.Task, error)
	UpdateTask(ctx context.Context, projectID, taskID string, upd storage.TaskUpdate) (*domain.Task, error)
	AppendComment(ctx context.Context, projectID, taskID, authorID, text string) (*domain.Task, error)
	DeleteTask(ctx context.Context, projectID, taskID string) error
	BatchUpdateOrder(ctx context.Context, projectID string, updates []domain.OrderUpdate) error
	ListTasksByProject(ctx context.Context, projectID string) ([]domain.Task, error)

	CreateProject(ctx context.Context, p domain.Project) error
	GetProject(ctx context.Context, projectID string) (*domain.Project, error)
	AddMember(ctx context.Context, projectID, userID string) (*domain.Project, error)
	DeleteProject(ctx context.Context, projectID string) error
	ListProjectsForUser(ctx context.Context, userID string) ([]domain.Project, error)

	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)

	ListNotifications(ctx context.Context, recipient string, limit int) ([]domain.Notification, error)
	UnreadCount(ctx context.Context, recipient string) (int, error)
	MarkRead(ctx context.Context, recipient, id string) (*domain.Notification, error)
	MarkAllRead(ctx context.Context, recipient string) error
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// Publisher emits committed board events toward connected clients.
type Publisher interface {
	Publish(ctx context.Context, ev domain.BoardEvent) error
}

// Rooms is the live-session registry the stream endpoints drive.
type Rooms interface {
	Join(sessionID, projectID string) bool
	Leave(sessionID, projectID string)
}

// Notifier accepts fire-and-forget notification jobs.
type Notifier interface {
	Emit(n domain.Notification)
}
