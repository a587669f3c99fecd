package model

import "github.com/jacentio/todo/store"

// Notification is a reminder attached to a task.
type Notification struct {
	UserID                string `json:"userId" dynamodbav:"userId"`
	TaskID                string `json:"taskId" dynamodbav:"taskId"`
	NotificationID        string `json:"notificationId" dynamodbav:"notificationId"`
	NotificationEnabled   bool   `json:"notificationEnabled" dynamodbav:"notificationEnabled"`
	ReminderTimeBeforeDue int    `json:"reminderTimeBeforeDue" dynamodbav:"reminderTimeBeforeDue"`
	Timestamps
}

// NotificationInput holds the fields of a new notification.
// NotificationEnabled defaults to true.
type NotificationInput struct {
	NotificationEnabled   *bool `json:"notificationEnabled"`
	ReminderTimeBeforeDue *int  `json:"reminderTimeBeforeDue"`
}

// ReminderInput returns the input of an enabled reminder minutes before due.
func ReminderInput(minutes int) NotificationInput {
	return NotificationInput{
		NotificationEnabled:   ptr(true),
		ReminderTimeBeforeDue: ptr(minutes),
	}
}

func (in NotificationInput) Validate() error {
	if in.ReminderTimeBeforeDue == nil {
		return Invalid("reminderTimeBeforeDue", "is required")
	}
	if *in.ReminderTimeBeforeDue < 0 {
		return Invalid("reminderTimeBeforeDue", "must not be negative")
	}
	return nil
}

// Enabled returns NotificationEnabled or its default.
func (in NotificationInput) Enabled() bool {
	if in.NotificationEnabled == nil {
		return true
	}
	return *in.NotificationEnabled
}

// NotificationPatch is a sparse notification update.
type NotificationPatch struct {
	NotificationEnabled   *bool `json:"notificationEnabled"`
	ReminderTimeBeforeDue *int  `json:"reminderTimeBeforeDue"`
}

func (p NotificationPatch) Validate() error {
	if p.ReminderTimeBeforeDue != nil && *p.ReminderTimeBeforeDue < 0 {
		return Invalid("reminderTimeBeforeDue", "must not be negative")
	}
	if len(p.Changes()) == 0 {
		return Invalid("", "no fields to update")
	}
	return nil
}

func (p NotificationPatch) Changes() []store.Change {
	var c []store.Change
	if p.NotificationEnabled != nil {
		c = append(c, store.Change{Name: "notificationEnabled", Value: *p.NotificationEnabled})
	}
	if p.ReminderTimeBeforeDue != nil {
		c = append(c, store.Change{Name: "reminderTimeBeforeDue", Value: *p.ReminderTimeBeforeDue})
	}
	return c
}
