package repository

import (
	"context"
	"log/slog"

	"github.com/jacentio/todo/internal/keys"
	"github.com/jacentio/todo/model"
	"github.com/jacentio/todo/store"
)

// NotificationRepository stores task notifications.
// Every notification is addressed by its user, task and notification ids.
type NotificationRepository struct {
	store  *store.Store
	logger *slog.Logger
	newID  IDFunc
}

func (r *NotificationRepository) key(userID, taskID, notificationID string) keys.NotificationKey {
	return keys.NotificationKey{UserID: userID, TaskID: taskID, NotificationID: notificationID}
}

func (r *NotificationRepository) Get(ctx context.Context, userID, taskID, notificationID string) (*model.Notification, error) {
	var n model.Notification
	if err := r.store.Get(ctx, r.key(userID, taskID, notificationID), &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// Create stores a new notification for taskID. The task is not read.
func (r *NotificationRepository) Create(ctx context.Context, userID, taskID string, in model.NotificationInput) (*model.Notification, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	n := &model.Notification{
		UserID:                userID,
		TaskID:                taskID,
		NotificationID:        r.newID(),
		NotificationEnabled:   in.Enabled(),
		ReminderTimeBeforeDue: *in.ReminderTimeBeforeDue,
	}
	if err := r.store.Create(ctx, r.key(userID, taskID, n.NotificationID), n); err != nil {
		return nil, err
	}
	return n, nil
}

func (r *NotificationRepository) Update(ctx context.Context, userID, taskID, notificationID string, patch model.NotificationPatch) (*model.Notification, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	var n model.Notification
	if err := r.store.Update(ctx, r.key(userID, taskID, notificationID), patch.Changes(), &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// ListByUser returns every notification of every task of the user.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string) ([]model.Notification, error) {
	return listKind[model.Notification](ctx, r.store, userID, keys.TaskPrefix(), keys.KindNotification)
}

// ListByTask returns the notifications of one task.
func (r *NotificationRepository) ListByTask(ctx context.Context, userID, taskID string) ([]model.Notification, error) {
	if !keys.ValidID(taskID) {
		// An invalid task id would widen the prefix scan
		_, err := keys.Encode(keys.TaskKey{UserID: userID, TaskID: taskID})
		return nil, err
	}
	return listKind[model.Notification](ctx, r.store, userID, keys.NotificationPrefix(taskID), keys.KindNotification)
}

func (r *NotificationRepository) Delete(ctx context.Context, userID, taskID, notificationID string) error {
	return r.store.Delete(ctx, r.key(userID, taskID, notificationID))
}
