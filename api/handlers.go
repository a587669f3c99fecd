package api

import (
	"context"

	"github.com/jacentio/todo/model"
	"github.com/jacentio/todo/repository"
)

// --- Settings ---

func (h *Handler) getSettings(ctx context.Context, userID string, req Request) Response {
	s, created, err := h.repos.Settings.GetOrCreate(ctx, userID)
	if err != nil {
		return h.fail(ctx, req, err)
	}
	if created {
		return ok("settings created with defaults", s)
	}
	return ok("settings retrieved", s)
}

// updateSettings handles PATCH /settings. A user without settings gets the
// defaults created first and the patch applied on top, so unlike the
// repository's Update this route never answers 404.
func (h *Handler) updateSettings(ctx context.Context, userID string, req Request) Response {
	var patch model.SettingsPatch
	if err := decode(req, &patch); err != nil {
		return h.fail(ctx, req, err)
	}
	if err := patch.Validate(); err != nil {
		return h.fail(ctx, req, err)
	}

	if _, _, err := h.repos.Settings.GetOrCreate(ctx, userID); err != nil {
		return h.fail(ctx, req, err)
	}
	s, err := h.repos.Settings.Update(ctx, userID, patch)
	if err != nil {
		return h.fail(ctx, req, err)
	}
	return ok("settings updated", s)
}

// --- Categories ---

func (h *Handler) listCategories(ctx context.Context, userID string, req Request) Response {
	categories, err := h.repos.Categories.ListByUser(ctx, userID)
	if err != nil {
		return h.fail(ctx, req, err)
	}
	return ok("categories retrieved", categories)
}

func (h *Handler) createCategory(ctx context.Context, userID string, req Request) Response {
	var in model.CategoryInput
	if err := decode(req, &in); err != nil {
		return h.fail(ctx, req, err)
	}

	c, err := h.repos.Categories.Create(ctx, userID, in)
	if err != nil {
		return h.fail(ctx, req, err)
	}
	return ok("category created", c)
}

func (h *Handler) updateCategory(ctx context.Context, userID string, req Request) Response {
	categoryID, err := queryID(req, "categoryId")
	if err != nil {
		return h.fail(ctx, req, err)
	}
	var patch model.CategoryPatch
	if err := decode(req, &patch); err != nil {
		return h.fail(ctx, req, err)
	}

	c, err := h.repos.Categories.Update(ctx, userID, categoryID, patch)
	if err != nil {
		return h.fail(ctx, req, err)
	}
	return ok("category updated", c)
}

func (h *Handler) deleteCategory(ctx context.Context, userID string, req Request) Response {
	categoryID, err := queryID(req, "categoryId")
	if err != nil {
		return h.fail(ctx, req, err)
	}
	if err := h.repos.Categories.Delete(ctx, userID, categoryID); err != nil {
		return h.fail(ctx, req, err)
	}
	return ok("category deleted", nil)
}

// --- Tasks ---

// TaskDetail is a task with its notifications.
type TaskDetail struct {
	Task          *model.Task          `json:"task"`
	Notifications []model.Notification `json:"notifications"`
}

// FailedNotification reports a default notification that was not created.
type FailedNotification struct {
	ReminderTimeBeforeDue int    `json:"reminderTimeBeforeDue"`
	Error                 string `json:"error"`
}

// TaskCreated is the response data of task creation.
type TaskCreated struct {
	TaskDetail
	FailedNotifications []FailedNotification `json:"failedNotifications,omitempty"`
}

func newTaskCreated(r *repository.TaskCreateResult) TaskCreated {
	out := TaskCreated{TaskDetail: TaskDetail{
		Task:          r.Task,
		Notifications: r.Created(),
	}}
	if out.Notifications == nil {
		out.Notifications = []model.Notification{}
	}
	for _, f := range r.Failed() {
		out.FailedNotifications = append(out.FailedNotifications, FailedNotification{
			ReminderTimeBeforeDue: f.ReminderTimeBeforeDue,
			Error:                 f.Err.Error(),
		})
	}
	return out
}

func (h *Handler) listTasks(ctx context.Context, userID string, req Request) Response {
	tasks, err := h.repos.Tasks.ListByUser(ctx, userID)
	if err != nil {
		return h.fail(ctx, req, err)
	}
	return ok("tasks retrieved", tasks)
}

func (h *Handler) getTask(ctx context.Context, userID string, req Request) Response {
	taskID, err := queryID(req, "taskId")
	if err != nil {
		return h.fail(ctx, req, err)
	}

	t, err := h.repos.Tasks.Get(ctx, userID, taskID)
	if err != nil {
		return h.fail(ctx, req, err)
	}
	notifications, err := h.repos.Notifications.ListByTask(ctx, userID, taskID)
	if err != nil {
		return h.fail(ctx, req, err)
	}
	return ok("task retrieved", TaskDetail{Task: t, Notifications: notifications})
}

func (h *Handler) createTask(ctx context.Context, userID string, req Request) Response {
	var in model.TaskInput
	if err := decode(req, &in); err != nil {
		return h.fail(ctx, req, err)
	}

	result, err := h.repos.Tasks.Create(ctx, userID, in)
	if err != nil {
		return h.fail(ctx, req, err)
	}
	if result.Partial() {
		return ok("task created; some notifications could not be created", newTaskCreated(result))
	}
	return ok("task created", newTaskCreated(result))
}

func (h *Handler) updateTask(ctx context.Context, userID string, req Request) Response {
	taskID, err := queryID(req, "taskId")
	if err != nil {
		return h.fail(ctx, req, err)
	}
	var patch model.TaskPatch
	if err := decode(req, &patch); err != nil {
		return h.fail(ctx, req, err)
	}

	t, err := h.repos.Tasks.Update(ctx, userID, taskID, patch)
	if err != nil {
		return h.fail(ctx, req, err)
	}
	return ok("task updated", t)
}

func (h *Handler) deleteTask(ctx context.Context, userID string, req Request) Response {
	taskID, err := queryID(req, "taskId")
	if err != nil {
		return h.fail(ctx, req, err)
	}
	if err := h.repos.Tasks.Delete(ctx, userID, taskID); err != nil {
		return h.fail(ctx, req, err)
	}
	return ok("task deleted", nil)
}

// --- Notifications ---

func (h *Handler) listNotifications(ctx context.Context, userID string, req Request) Response {
	taskID, err := queryID(req, "taskId")
	if err != nil {
		return h.fail(ctx, req, err)
	}
	notifications, err := h.repos.Notifications.ListByTask(ctx, userID, taskID)
	if err != nil {
		return h.fail(ctx, req, err)
	}
	return ok("notifications retrieved", notifications)
}

func (h *Handler) createNotification(ctx context.Context, userID string, req Request) Response {
	taskID, err := queryID(req, "taskId")
	if err != nil {
		return h.fail(ctx, req, err)
	}
	var in model.NotificationInput
	if err := decode(req, &in); err != nil {
		return h.fail(ctx, req, err)
	}

	n, err := h.repos.Notifications.Create(ctx, userID, taskID, in)
	if err != nil {
		return h.fail(ctx, req, err)
	}
	return ok("notification created", n)
}

func (h *Handler) updateNotification(ctx context.Context, userID string, req Request) Response {
	taskID, err := queryID(req, "taskId")
	if err != nil {
		return h.fail(ctx, req, err)
	}
	notificationID, err := queryID(req, "notificationId")
	if err != nil {
		return h.fail(ctx, req, err)
	}
	var patch model.NotificationPatch
	if err := decode(req, &patch); err != nil {
		return h.fail(ctx, req, err)
	}

	n, err := h.repos.Notifications.Update(ctx, userID, taskID, notificationID, patch)
	if err != nil {
		return h.fail(ctx, req, err)
	}
	return ok("notification updated", n)
}

func (h *Handler) deleteNotification(ctx context.Context, userID string, req Request) Response {
	taskID, err := queryID(req, "taskId")
	if err != nil {
		return h.fail(ctx, req, err)
	}
	notificationID, err := queryID(req, "notificationId")
	if err != nil {
		return h.fail(ctx, req, err)
	}
	if err := h.repos.Notifications.Delete(ctx, userID, taskID, notificationID); err != nil {
		return h.fail(ctx, req, err)
	}
	return ok("notification deleted", nil)
}

// --- User ---

// UserDeleted is the response data of account deletion.
type UserDeleted struct {
	Deleted int `json:"deleted"`
	Batches int `json:"batches"`
}

func (h *Handler) deleteUser(ctx context.Context, userID string, req Request) Response {
	stats, err := h.repos.DeleteUser(ctx, userID)
	if err != nil {
		return h.fail(ctx, req, err)
	}
	h.logger.InfoContext(ctx, "user deleted", "userId", userID, "items", stats.Deleted)
	return ok("user deleted", UserDeleted{Deleted: stats.Deleted, Batches: stats.Batches})
}
