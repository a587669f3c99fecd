package model

import (
	"strings"

	"github.com/jacentio/todo/store"
)

// Task is a to-do item. CategoryID may be nil or name a deleted category;
// both mean the task is uncategorized.
type Task struct {
	UserID        string  `json:"userId" dynamodbav:"userId"`
	TaskID        string  `json:"taskId" dynamodbav:"taskId"`
	TaskTitle     string  `json:"taskTitle" dynamodbav:"taskTitle"`
	TaskNotes     string  `json:"taskNotes" dynamodbav:"taskNotes"`
	TaskDueDate   int64   `json:"taskDueDate" dynamodbav:"taskDueDate"`
	TaskCompleted bool    `json:"taskCompleted" dynamodbav:"taskCompleted"`
	CategoryID    *string `json:"categoryId" dynamodbav:"categoryId"`
	Timestamps
}

// HasDueDate reports whether a due date is set.
func (t *Task) HasDueDate() bool {
	return t.TaskDueDate != 0
}

// TaskInput holds the fields of a new task. DefaultNotifications selects the
// reminders created along with the task; it is not stored on the task.
type TaskInput struct {
	TaskTitle            string               `json:"taskTitle"`
	TaskNotes            string               `json:"taskNotes"`
	TaskDueDate          int64                `json:"taskDueDate"`
	TaskCompleted        bool                 `json:"taskCompleted"`
	CategoryID           *string              `json:"categoryId"`
	DefaultNotifications DefaultNotifications `json:"defaultNotifications,omitempty"`
}

func (in TaskInput) Validate() error {
	if strings.TrimSpace(in.TaskTitle) == "" {
		return Invalid("taskTitle", "is required")
	}
	if in.TaskDueDate < 0 {
		return Invalid("taskDueDate", "must be epoch milliseconds or 0")
	}
	if in.CategoryID != nil && *in.CategoryID == "" {
		return Invalid("categoryId", "must be null or a category id")
	}
	return in.DefaultNotifications.Validate("defaultNotifications", false)
}

// TaskPatch is a sparse task update. CategoryID distinguishes a missing key
// from an explicit null, which clears the category.
type TaskPatch struct {
	TaskTitle     *string        `json:"taskTitle"`
	TaskNotes     *string        `json:"taskNotes"`
	TaskDueDate   *int64         `json:"taskDueDate"`
	TaskCompleted *bool          `json:"taskCompleted"`
	CategoryID    NullableString `json:"categoryId"`
}

func (p TaskPatch) Validate() error {
	if p.TaskTitle != nil && strings.TrimSpace(*p.TaskTitle) == "" {
		return Invalid("taskTitle", "must not be empty")
	}
	if p.TaskDueDate != nil && *p.TaskDueDate < 0 {
		return Invalid("taskDueDate", "must be epoch milliseconds or 0")
	}
	if p.CategoryID.Value != nil && *p.CategoryID.Value == "" {
		return Invalid("categoryId", "must be null or a category id")
	}
	if len(p.Changes()) == 0 {
		return Invalid("", "no fields to update")
	}
	return nil
}

func (p TaskPatch) Changes() []store.Change {
	var c []store.Change
	if p.TaskTitle != nil {
		c = append(c, store.Change{Name: "taskTitle", Value: *p.TaskTitle})
	}
	if p.TaskNotes != nil {
		c = append(c, store.Change{Name: "taskNotes", Value: *p.TaskNotes})
	}
	if p.TaskDueDate != nil {
		c = append(c, store.Change{Name: "taskDueDate", Value: *p.TaskDueDate})
	}
	if p.TaskCompleted != nil {
		c = append(c, store.Change{Name: "taskCompleted", Value: *p.TaskCompleted})
	}
	if p.CategoryID.Set {
		c = append(c, store.Change{Name: "categoryId", Value: p.CategoryID.Value})
	}
	return c
}
