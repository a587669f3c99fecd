package repository

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jacentio/todo/internal/keys"
	"github.com/jacentio/todo/model"
	"github.com/jacentio/todo/store"
)

// TaskRepository stores tasks.
type TaskRepository struct {
	store         *store.Store
	logger        *slog.Logger
	newID         IDFunc
	notifications *NotificationRepository
}

// NotificationOutcome is the result of creating one default notification.
// Exactly one of Notification and Err is set.
type NotificationOutcome struct {
	ReminderTimeBeforeDue int
	Notification          *model.Notification
	Err                   error
}

// TaskCreateResult is a created task plus the outcome of each default
// notification requested with it. Failed notifications are not rolled back.
type TaskCreateResult struct {
	Task          *model.Task
	Notifications []NotificationOutcome
}

// Created returns the notifications that were written.
func (r *TaskCreateResult) Created() []model.Notification {
	var out []model.Notification
	for _, o := range r.Notifications {
		if o.Err == nil {
			out = append(out, *o.Notification)
		}
	}
	return out
}

// Failed returns the outcomes that carry an error.
func (r *TaskCreateResult) Failed() []NotificationOutcome {
	var out []NotificationOutcome
	for _, o := range r.Notifications {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// Partial reports whether some requested notification could not be created.
func (r *TaskCreateResult) Partial() bool {
	return len(r.Failed()) > 0
}

func (r *TaskRepository) Get(ctx context.Context, userID, taskID string) (*model.Task, error) {
	var t model.Task
	if err := r.store.Get(ctx, keys.TaskKey{UserID: userID, TaskID: taskID}, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Create stores a new task, then one enabled notification per selected
// default offset in ascending order. An error is returned only when the task
// itself could not be written; notification failures are reported in the result.
func (r *TaskRepository) Create(ctx context.Context, userID string, in model.TaskInput) (*TaskCreateResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	t := &model.Task{
		UserID:        userID,
		TaskID:        r.newID(),
		TaskTitle:     strings.TrimSpace(in.TaskTitle),
		TaskNotes:     in.TaskNotes,
		TaskDueDate:   in.TaskDueDate,
		TaskCompleted: in.TaskCompleted,
		CategoryID:    in.CategoryID,
	}
	if err := r.store.Create(ctx, keys.TaskKey{UserID: userID, TaskID: t.TaskID}, t); err != nil {
		return nil, err
	}

	result := &TaskCreateResult{Task: t}
	for _, minutes := range in.DefaultNotifications.Selected() {
		n, err := r.notifications.Create(ctx, userID, t.TaskID, model.ReminderInput(minutes))
		result.Notifications = append(result.Notifications, NotificationOutcome{
			ReminderTimeBeforeDue: minutes,
			Notification:          n,
			Err:                   err,
		})
	}

	if failed := result.Failed(); len(failed) > 0 {
		r.logger.WarnContext(ctx, "task created with missing notifications",
			"userId", userID,
			"taskId", t.TaskID,
			"requested", len(result.Notifications),
			"failed", len(failed),
		)
	}
	return result, nil
}

func (r *TaskRepository) Update(ctx context.Context, userID, taskID string, patch model.TaskPatch) (*model.Task, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	var t model.Task
	if err := r.store.Update(ctx, keys.TaskKey{UserID: userID, TaskID: taskID}, patch.Changes(), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// ListByUser returns the user's tasks in sort-key order, without notifications.
func (r *TaskRepository) ListByUser(ctx context.Context, userID string) ([]model.Task, error) {
	return listKind[model.Task](ctx, r.store, userID, keys.TaskPrefix(), keys.KindTask)
}

// Delete removes a task. Its notifications are removed asynchronously by the
// stream handler reacting to the task's removal.
func (r *TaskRepository) Delete(ctx context.Context, userID, taskID string) error {
	return r.store.Delete(ctx, keys.TaskKey{UserID: userID, TaskID: taskID})
}
