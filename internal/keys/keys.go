// Package keys builds and parses the composite primary keys of the single table.
//
// Every item lives in the partition of its owning user. The sort key starts with
// a kind tag so that items of one kind can be range-scanned by prefix:
//
//	USER#<userId>  SETTINGS#
//	USER#<userId>  CATEGORY#<categoryId>
//	USER#<userId>  TASK#<taskId>
//	USER#<userId>  TASK#<taskId>NOTIFICATION#<notificationId>
//
// A notification sort key begins with its task's sort key, so a TASK# prefix
// scan returns notifications too. Callers that want one kind decode each key.
package keys

import (
	"errors"
	"fmt"
	"strings"
)

const (
	sep = "#"

	tagUser         = "USER" + sep
	tagSettings     = "SETTINGS" + sep
	tagCategory     = "CATEGORY" + sep
	tagTask         = "TASK" + sep
	tagNotification = "NOTIFICATION" + sep
)

// ErrMalformedKey is returned when a key cannot be encoded or decoded.
var ErrMalformedKey = errors.New("todo: malformed key")

// Kind identifies the entity kind a key addresses.
type Kind int

const (
	KindSettings Kind = iota + 1
	KindCategory
	KindTask
	KindNotification
)

func (k Kind) String() string {
	switch k {
	case KindSettings:
		return "settings"
	case KindCategory:
		return "category"
	case KindTask:
		return "task"
	case KindNotification:
		return "notification"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Key is the closed set of key variants. Only the types in this package implement it.
type Key interface {
	Kind() Kind
	Partition() string
	Sort() string
	ids() []string
}

// SettingsKey addresses the per-user settings singleton.
type SettingsKey struct {
	UserID string
}

// CategoryKey addresses a category.
type CategoryKey struct {
	UserID     string
	CategoryID string
}

// TaskKey addresses a task.
type TaskKey struct {
	UserID string
	TaskID string
}

// NotificationKey addresses a notification of a task.
type NotificationKey struct {
	UserID         string
	TaskID         string
	NotificationID string
}

func (SettingsKey) Kind() Kind     { return KindSettings }
func (CategoryKey) Kind() Kind     { return KindCategory }
func (TaskKey) Kind() Kind         { return KindTask }
func (NotificationKey) Kind() Kind { return KindNotification }

func (k SettingsKey) Partition() string     { return UserPartition(k.UserID) }
func (k CategoryKey) Partition() string     { return UserPartition(k.UserID) }
func (k TaskKey) Partition() string         { return UserPartition(k.UserID) }
func (k NotificationKey) Partition() string { return UserPartition(k.UserID) }

func (k SettingsKey) Sort() string { return tagSettings }
func (k CategoryKey) Sort() string { return tagCategory + k.CategoryID }
func (k TaskKey) Sort() string     { return tagTask + k.TaskID }
func (k NotificationKey) Sort() string {
	return tagTask + k.TaskID + tagNotification + k.NotificationID
}

func (k SettingsKey) ids() []string     { return []string{k.UserID} }
func (k CategoryKey) ids() []string     { return []string{k.UserID, k.CategoryID} }
func (k TaskKey) ids() []string         { return []string{k.UserID, k.TaskID} }
func (k NotificationKey) ids() []string { return []string{k.UserID, k.TaskID, k.NotificationID} }

// Pair is an encoded (partition, sort) primary key.
type Pair struct {
	Partition string
	Sort      string
}

// UserPartition returns the partition key of a user.
func UserPartition(userID string) string {
	return tagUser + userID
}

// CategoryPrefix is the sort-key prefix shared by all categories.
func CategoryPrefix() string { return tagCategory }

// TaskPrefix is the sort-key prefix shared by all tasks and their notifications.
func TaskPrefix() string { return tagTask }

// NotificationPrefix is the sort-key prefix of the notifications of one task.
func NotificationPrefix(taskID string) string {
	return tagTask + taskID + tagNotification
}

// SettingsPrefix is the sort key of the settings item, usable as a prefix.
func SettingsPrefix() string { return tagSettings }

// ValidID reports whether id can be embedded in a key.
// Ids must be non-empty and free of the separator so decoding stays unambiguous.
func ValidID(id string) bool {
	return id != "" && !strings.Contains(id, sep)
}

// Encode validates k and returns its primary key.
func Encode(k Key) (Pair, error) {
	if k == nil {
		return Pair{}, fmt.Errorf("%w: nil key", ErrMalformedKey)
	}
	for _, id := range k.ids() {
		if !ValidID(id) {
			return Pair{}, fmt.Errorf("%w: invalid %s id %q", ErrMalformedKey, k.Kind(), id)
		}
	}
	return Pair{Partition: k.Partition(), Sort: k.Sort()}, nil
}

// Decode parses a primary key back into its variant.
// Tags are matched in a fixed order: the user tag on the partition, then the kind
// tag at the start of the sort key, then (for tasks) the first NOTIFICATION# tag.
func Decode(partition, sort string) (Key, error) {
	userID, ok := strings.CutPrefix(partition, tagUser)
	if !ok || !ValidID(userID) {
		return nil, fmt.Errorf("%w: partition %q", ErrMalformedKey, partition)
	}

	switch {
	case sort == tagSettings:
		return SettingsKey{UserID: userID}, nil

	case strings.HasPrefix(sort, tagCategory):
		id := sort[len(tagCategory):]
		if !ValidID(id) {
			return nil, fmt.Errorf("%w: sort %q", ErrMalformedKey, sort)
		}
		return CategoryKey{UserID: userID, CategoryID: id}, nil

	case strings.HasPrefix(sort, tagTask):
		rest := sort[len(tagTask):]
		taskID, notificationID, hasNotification := strings.Cut(rest, tagNotification)
		if !ValidID(taskID) {
			return nil, fmt.Errorf("%w: sort %q", ErrMalformedKey, sort)
		}
		if !hasNotification {
			return TaskKey{UserID: userID, TaskID: taskID}, nil
		}
		if !ValidID(notificationID) {
			return nil, fmt.Errorf("%w: sort %q", ErrMalformedKey, sort)
		}
		return NotificationKey{UserID: userID, TaskID: taskID, NotificationID: notificationID}, nil
	}

	return nil, fmt.Errorf("%w: unknown sort key %q", ErrMalformedKey, sort)
}

// DecodePair is Decode for an encoded Pair.
func DecodePair(p Pair) (Key, error) {
	return Decode(p.Partition, p.Sort)
}
