package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
	"taskboard-api/realtime"
	"taskboard-api/storage"
)

const (
	taskBodyMaxSize    = 64 << 10
	reorderBodyMaxSize = 4 << 20

	defaultNotificationLimit = 20
)

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, store Storage, auth Authenticator, hub *realtime.Hub, pub Publisher, notifier Notifier, logger *log.Logger) {
	e.GET("/healthz", healthz())

	e.GET("/api/projects/:projectId/tasks", getBoardTasks(store, auth, logger))
	e.GET("/api/tasks", getAllTasks(store, auth))
	e.POST("/api/tasks", postTask(store, auth, pub, notifier, logger))
	e.PUT("/api/tasks/reorder", putReorder(store, auth, pub, logger))
	e.PUT("/api/tasks/:id", putTask(store, auth, pub, notifier, logger))
	e.DELETE("/api/tasks/:id", deleteTask(store, auth, pub, logger))
	e.POST("/api/tasks/:id/comments", postComment(store, auth, pub, notifier, logger))

	e.GET("/api/projects", getProjects(store, auth))
	e.POST("/api/projects", postProject(store, auth))
	e.GET("/api/projects/:projectId", getProject(store, auth))
	e.DELETE("/api/projects/:projectId", deleteProject(store, auth))
	e.PUT("/api/projects/:projectId/members", putMember(store, auth, notifier))

	e.GET("/api/notifications", getNotifications(store, auth))
	e.GET("/api/notifications/unread-count", getUnreadCount(store, auth))
	e.PUT("/api/notifications/read-all", putReadAll(store, auth))
	e.PUT("/api/notifications/:id/read", putRead(store, auth))

	e.GET("/api/stream", streamEvents(hub, auth, logger))
	e.POST("/api/rooms/:projectId/join", joinRoom(store, auth, hub))
	e.POST("/api/rooms/:projectId/leave", leaveRoom(auth, hub))
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func decodeJSON(c echo.Context, limit int64, v any) error {
	lr := io.LimitReader(c.Request().Body, limit)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

var errNotMember = errors.New("not a project member")

// requireMember loads the project and checks that userID belongs to it. Every
// board read and mutation goes through this gate.
func requireMember(c echo.Context, store Storage, projectID, userID string) (*domain.Project, error) {
	p, err := store.GetProject(c.Request().Context(), projectID)
	if err != nil {
		return nil, err
	}
	if !p.HasMember(userID) {
		return nil, errNotMember
	}
	return p, nil
}

func membershipError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return c.String(http.StatusNotFound, "project not found")
	case errors.Is(err, errNotMember):
		return c.String(http.StatusForbidden, "not a project member")
	default:
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, err.Error())
	}
}

func publishEvent(c echo.Context, pub Publisher, logger *log.Logger, ev domain.BoardEvent) {
	if err := pub.Publish(c.Request().Context(), ev); err != nil {
		// The write is already committed; clients recover via resync.
		logger.WithError(err).WithFields(log.Fields{
			"projectId": ev.ProjectID,
			"kind":      ev.Kind,
		}).Warn("failed to publish board event")
	}
}

func getBoardTasks(store Storage, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newBoardRequestMetrics(ctx, logger, "/api/projects/:projectId/tasks")
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		userID, authErr := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.String(http.StatusUnauthorized, authErr.Error())
			return err
		}

		projectID := c.Param("projectId")
		if _, memberErr := requireMember(c, store, projectID, userID); memberErr != nil {
			metrics.SetErrorStage("membership")
			err = membershipError(c, memberErr)
			return err
		}

		fetchStart := time.Now()
		tasks, fetchErr := store.ListTasksByProject(ctx, projectID)
		metrics.ObserveFetch(time.Since(fetchStart))
		if fetchErr != nil {
			metrics.SetErrorStage("storage")
			c.Logger().Error(fetchErr)
			err = c.String(http.StatusInternalServerError, fetchErr.Error())
			return err
		}
		metrics.SetTasksReturned(len(tasks))

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, tasks)
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

// getAllTasks is the dashboard feed: every task across every project the
// caller belongs to, grouped by project (newest project first), each group
// ordered by (status, order).
func getAllTasks(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		projects, err := store.ListProjectsForUser(ctx, userID)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}

		all := make([]domain.Task, 0)
		for _, p := range projects {
			tasks, err := store.ListTasksByProject(ctx, p.ID)
			if err != nil {
				c.Logger().Error(err)
				return c.String(http.StatusInternalServerError, err.Error())
			}
			all = append(all, tasks...)
		}
		return c.JSON(http.StatusOK, all)
	}
}

type createTaskRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	ProjectID   string     `json:"projectId"`
	AssignedTo  string     `json:"assignedTo"`
	DueDate     *time.Time `json:"dueDate"`
	Order       *int       `json:"order"`
}

func postTask(store Storage, auth Authenticator, pub Publisher, notifier Notifier, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var req createTaskRequest
		if err := decodeJSON(c, taskBodyMaxSize, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		req.Title = strings.TrimSpace(req.Title)
		if req.Title == "" {
			return c.String(http.StatusBadRequest, "title is required")
		}
		if req.ProjectID == "" {
			return c.String(http.StatusBadRequest, "projectId is required")
		}
		if req.Status == "" {
			req.Status = string(domain.StatusToDo)
		}
		if !domain.ValidStatus(domain.Status(req.Status)) {
			return c.String(http.StatusBadRequest, "invalid status")
		}
		if req.Priority == "" {
			req.Priority = string(domain.PriorityMedium)
		}
		if !domain.ValidPriority(domain.Priority(req.Priority)) {
			return c.String(http.StatusBadRequest, "invalid priority")
		}

		if _, err := requireMember(c, store, req.ProjectID, userID); err != nil {
			return membershipError(c, err)
		}

		task := domain.Task{
			ID:          uuid.NewString(),
			Title:       req.Title,
			Description: req.Description,
			Status:      domain.Status(req.Status),
			Priority:    domain.Priority(req.Priority),
			ProjectID:   req.ProjectID,
			AssignedTo:  req.AssignedTo,
			CreatedBy:   userID,
			DueDate:     req.DueDate,
			CreatedAt:   time.Now().UTC(),
		}
		if req.Order != nil {
			task.Order = *req.Order
		} else {
			// Append at the bottom of the target column.
			order, err := nextColumnOrder(c, store, req.ProjectID, task.Status)
			if err != nil {
				c.Logger().Error(err)
				return c.String(http.StatusInternalServerError, err.Error())
			}
			task.Order = order
		}

		if err := store.CreateTask(ctx, task); err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}

		publishEvent(c, pub, logger, domain.TaskCreated(task))
		if task.AssignedTo != "" && task.AssignedTo != userID {
			notifier.Emit(domain.Notification{
				Recipient: task.AssignedTo,
				Sender:    userID,
				Kind:      domain.NotificationAssignment,
				Message:   fmt.Sprintf("You were assigned to %q", task.Title),
				RelatedID: task.ID,
				ProjectID: task.ProjectID,
			})
		}
		return c.JSON(http.StatusCreated, task)
	}
}

func nextColumnOrder(c echo.Context, store Storage, projectID string, status domain.Status) (int, error) {
	tasks, err := store.ListTasksByProject(c.Request().Context(), projectID)
	if err != nil {
		return 0, err
	}
	n := 0
	for i := range tasks {
		if tasks[i].Status == status {
			n++
		}
	}
	return n, nil
}

type updateTaskRequest struct {
	ProjectID    string     `json:"projectId"`
	Title        *string    `json:"title"`
	Description  *string    `json:"description"`
	Status       *string    `json:"status"`
	Priority     *string    `json:"priority"`
	AssignedTo   *string    `json:"assignedTo"`
	Order        *int       `json:"order"`
	DueDate      *time.Time `json:"dueDate"`
	ClearDueDate bool       `json:"clearDueDate"`
}

func putTask(store Storage, auth Authenticator, pub Publisher, notifier Notifier, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var req updateTaskRequest
		if err := decodeJSON(c, taskBodyMaxSize, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if req.ProjectID == "" {
			return c.String(http.StatusBadRequest, "projectId is required")
		}

		upd := storage.TaskUpdate{
			Title:        req.Title,
			Description:  req.Description,
			AssignedTo:   req.AssignedTo,
			Order:        req.Order,
			DueDate:      req.DueDate,
			ClearDueDate: req.ClearDueDate,
		}
		if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
			return c.String(http.StatusBadRequest, "title cannot be empty")
		}
		if req.Status != nil {
			s := domain.Status(*req.Status)
			if !domain.ValidStatus(s) {
				return c.String(http.StatusBadRequest, "invalid status")
			}
			upd.Status = &s
		}
		if req.Priority != nil {
			p := domain.Priority(*req.Priority)
			if !domain.ValidPriority(p) {
				return c.String(http.StatusBadRequest, "invalid priority")
			}
			upd.Priority = &p
		}

		if _, err := requireMember(c, store, req.ProjectID, userID); err != nil {
			return membershipError(c, err)
		}

		taskID := c.Param("id")
		prev, err := store.GetTask(ctx, req.ProjectID, taskID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return c.String(http.StatusNotFound, "task not found")
			}
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}

		task, err := store.UpdateTask(ctx, req.ProjectID, taskID, upd)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return c.String(http.StatusNotFound, "task not found")
			}
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}

		publishEvent(c, pub, logger, domain.TaskUpdated(*task))
		if task.AssignedTo != "" && task.AssignedTo != userID && task.AssignedTo != prev.AssignedTo {
			notifier.Emit(domain.Notification{
				Recipient: task.AssignedTo,
				Sender:    userID,
				Kind:      domain.NotificationAssignment,
				Message:   fmt.Sprintf("You were assigned to %q", task.Title),
				RelatedID: task.ID,
				ProjectID: task.ProjectID,
			})
		}
		return c.JSON(http.StatusOK, task)
	}
}

func deleteTask(store Storage, auth Authenticator, pub Publisher, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		projectID := c.QueryParam("projectId")
		if projectID == "" {
			return c.String(http.StatusBadRequest, "projectId is required")
		}
		if _, err := requireMember(c, store, projectID, userID); err != nil {
			return membershipError(c, err)
		}

		taskID := c.Param("id")
		if err := store.DeleteTask(ctx, projectID, taskID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return c.String(http.StatusNotFound, "task not found")
			}
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}

		publishEvent(c, pub, logger, domain.TaskDeleted(projectID, taskID))
		return c.NoContent(http.StatusNoContent)
	}
}

type commentRequest struct {
	ProjectID string `json:"projectId"`
	Text      string `json:"text"`
}

func postComment(store Storage, auth Authenticator, pub Publisher, notifier Notifier, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var req commentRequest
		if err := decodeJSON(c, taskBodyMaxSize, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		req.Text = strings.TrimSpace(req.Text)
		if req.Text == "" {
			return c.String(http.StatusBadRequest, "text is required")
		}
		if req.ProjectID == "" {
			return c.String(http.StatusBadRequest, "projectId is required")
		}
		if _, err := requireMember(c, store, req.ProjectID, userID); err != nil {
			return membershipError(c, err)
		}

		taskID := c.Param("id")
		task, err := store.AppendComment(ctx, req.ProjectID, taskID, userID, req.Text)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return c.String(http.StatusNotFound, "task not found")
			}
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}

		publishEvent(c, pub, logger, domain.TaskUpdated(*task))
		if task.AssignedTo != "" && task.AssignedTo != userID {
			notifier.Emit(domain.Notification{
				Recipient: task.AssignedTo,
				Sender:    userID,
				Kind:      domain.NotificationComment,
				Message:   fmt.Sprintf("New comment on %q", task.Title),
				RelatedID: task.ID,
				ProjectID: task.ProjectID,
			})
		}
		return c.JSON(http.StatusOK, task)
	}
}

type reorderRequest struct {
	ProjectID string               `json:"projectId"`
	Tasks     []domain.OrderUpdate `json:"tasks"`
}

type reorderConflictResponse struct {
	Error   string   `json:"error"`
	Applied int      `json:"applied"`
	Failed  []string `json:"failed"`
	Resync  bool     `json:"resync"`
}

func putReorder(store Storage, auth Authenticator, pub Publisher, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var req reorderRequest
		if err := decodeJSON(c, reorderBodyMaxSize, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if req.ProjectID == "" {
			return c.String(http.StatusBadRequest, "projectId is required")
		}
		if len(req.Tasks) == 0 {
			return c.String(http.StatusBadRequest, "tasks is required")
		}
		for _, u := range req.Tasks {
			if u.ID == "" {
				return c.String(http.StatusBadRequest, "task id is required")
			}
			if !domain.ValidStatus(u.Status) {
				return c.String(http.StatusBadRequest, "invalid status")
			}
		}
		if _, err := requireMember(c, store, req.ProjectID, userID); err != nil {
			return membershipError(c, err)
		}

		if err := store.BatchUpdateOrder(ctx, req.ProjectID, req.Tasks); err != nil {
			var partial *domain.PartialFailureError
			if errors.As(err, &partial) {
				logger.WithFields(log.Fields{
					"projectId": req.ProjectID,
					"applied":   partial.Applied,
					"failed":    len(partial.Failed),
				}).Warn("reorder batch partially applied")
				return c.JSON(http.StatusConflict, reorderConflictResponse{
					Error:   "reorder partially applied",
					Applied: partial.Applied,
					Failed:  partial.Failed,
					Resync:  true,
				})
			}
			if errors.Is(err, domain.ErrNotFound) {
				return c.String(http.StatusNotFound, "task not found")
			}
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}

		publishEvent(c, pub, logger, domain.TasksReordered(req.ProjectID, req.Tasks))
		return c.NoContent(http.StatusNoContent)
	}
}

type projectSummary struct {
	domain.Project
	TotalTasks  int     `json:"totalTasks"`
	ActiveTasks int     `json:"activeTasks"`
	Progress    float64 `json:"progress"`
}

func getProjects(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		projects, err := store.ListProjectsForUser(ctx, userID)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}

		summaries := make([]projectSummary, 0, len(projects))
		for _, p := range projects {
			tasks, err := store.ListTasksByProject(ctx, p.ID)
			if err != nil {
				c.Logger().Error(err)
				return c.String(http.StatusInternalServerError, err.Error())
			}
			done := 0
			for i := range tasks {
				if tasks[i].Status == domain.StatusDone {
					done++
				}
			}
			s := projectSummary{Project: p, TotalTasks: len(tasks), ActiveTasks: len(tasks) - done}
			if len(tasks) > 0 {
				s.Progress = float64(done) / float64(len(tasks)) * 100
			}
			summaries = append(summaries, s)
		}
		return c.JSON(http.StatusOK, summaries)
	}
}

type createProjectRequest struct {
	Title    string     `json:"title"`
	Category string     `json:"category"`
	DueDate  *time.Time `json:"dueDate"`
}

func postProject(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var req createProjectRequest
		if err := decodeJSON(c, taskBodyMaxSize, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		req.Title = strings.TrimSpace(req.Title)
		if req.Title == "" {
			return c.String(http.StatusBadRequest, "title is required")
		}
		if req.Category == "" {
			req.Category = "General"
		}

		p := domain.Project{
			ID:        uuid.NewString(),
			Title:     req.Title,
			Category:  req.Category,
			DueDate:   req.DueDate,
			OwnerID:   userID,
			Members:   []string{userID},
			CreatedAt: time.Now().UTC(),
		}
		if err := store.CreateProject(ctx, p); err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusCreated, p)
	}
}

func getProject(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		p, err := requireMember(c, store, c.Param("projectId"), userID)
		if err != nil {
			return membershipError(c, err)
		}
		return c.JSON(http.StatusOK, p)
	}
}

func deleteProject(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		projectID := c.Param("projectId")
		p, err := store.GetProject(ctx, projectID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return c.String(http.StatusNotFound, "project not found")
			}
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		if p.OwnerID != userID {
			return c.String(http.StatusForbidden, "only the owner can delete a project")
		}

		if err := store.DeleteProject(ctx, projectID); err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.NoContent(http.StatusNoContent)
	}
}

type inviteRequest struct {
	Email string `json:"email"`
}

func putMember(store Storage, auth Authenticator, notifier Notifier) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var req inviteRequest
		if err := decodeJSON(c, taskBodyMaxSize, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		req.Email = strings.TrimSpace(req.Email)
		if req.Email == "" {
			return c.String(http.StatusBadRequest, "email is required")
		}

		projectID := c.Param("projectId")
		if _, err := requireMember(c, store, projectID, userID); err != nil {
			return membershipError(c, err)
		}

		invited, err := store.FindUserByEmail(ctx, req.Email)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return c.String(http.StatusNotFound, "user not found")
			}
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}

		p, err := store.AddMember(ctx, projectID, invited.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return c.String(http.StatusNotFound, "project not found")
			}
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}

		if invited.ID != userID {
			notifier.Emit(domain.Notification{
				Recipient: invited.ID,
				Sender:    userID,
				Kind:      domain.NotificationInvite,
				Message:   fmt.Sprintf("You were added to project %q", p.Title),
				RelatedID: p.ID,
				ProjectID: p.ID,
			})
		}
		return c.JSON(http.StatusOK, p)
	}
}

func getNotifications(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		limit := defaultNotificationLimit
		if raw := strings.TrimSpace(c.QueryParam("limit")); raw != "" {
			parsed, parseErr := strconv.Atoi(raw)
			if parseErr != nil || parsed <= 0 {
				return c.String(http.StatusBadRequest, "invalid limit")
			}
			limit = parsed
		}

		notifications, err := store.ListNotifications(c.Request().Context(), userID, limit)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, notifications)
	}
}

func getUnreadCount(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		count, err := store.UnreadCount(c.Request().Context(), userID)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, map[string]int{"count": count})
	}
}

func putRead(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		n, err := store.MarkRead(c.Request().Context(), userID, c.Param("id"))
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return c.String(http.StatusNotFound, "notification not found")
			}
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, n)
	}
}

func putReadAll(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		if err := store.MarkAllRead(c.Request().Context(), userID); err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.NoContent(http.StatusNoContent)
	}
}
