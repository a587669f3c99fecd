package model

import (
	"slices"
	"strconv"

	"github.com/jacentio/todo/store"
)

// SortMode selects how the client orders its task list.
type SortMode string

const (
	SortByCategory SortMode = "category"
	SortByDate     SortMode = "date"
)

// Valid reports whether m is a known sort mode.
func (m SortMode) Valid() bool {
	return m == SortByCategory || m == SortByDate
}

// ReminderMinutes are the only reminder offsets a default notification can use.
var ReminderMinutes = []int{5, 15, 30, 45, 60}

// DefaultNotifications maps a reminder offset in minutes ("5", "15", ...) to
// whether a notification is created for new tasks.
type DefaultNotifications map[string]bool

// NewDefaultNotifications returns the full map with every offset disabled.
func NewDefaultNotifications() DefaultNotifications {
	d := make(DefaultNotifications, len(ReminderMinutes))
	for _, m := range ReminderMinutes {
		d[strconv.Itoa(m)] = false
	}
	return d
}

// Validate checks that every key is a known offset. When complete is true
// all five offsets must be present.
func (d DefaultNotifications) Validate(field string, complete bool) error {
	for k := range d {
		m, err := strconv.Atoi(k)
		if err != nil || !slices.Contains(ReminderMinutes, m) || k != strconv.Itoa(m) {
			return Invalid(field, "unknown reminder offset %q", k)
		}
	}
	if complete && len(d) != len(ReminderMinutes) {
		return Invalid(field, "must contain exactly the offsets %v", ReminderMinutes)
	}
	return nil
}

// Selected returns the enabled offsets in ascending order.
func (d DefaultNotifications) Selected() []int {
	var out []int
	for _, m := range ReminderMinutes {
		if d[strconv.Itoa(m)] {
			out = append(out, m)
		}
	}
	return out
}

// Settings is the per-user settings singleton.
type Settings struct {
	UserID               string               `json:"userId" dynamodbav:"userId"`
	TwelveHour           bool                 `json:"twelveHour" dynamodbav:"twelveHour"`
	EnableNotifications  bool                 `json:"enableNotifications" dynamodbav:"enableNotifications"`
	DisplayEmail         bool                 `json:"displayEmail" dynamodbav:"displayEmail"`
	DefaultNotifications DefaultNotifications `json:"defaultNotifications" dynamodbav:"defaultNotifications"`
	SortMode             SortMode             `json:"sortMode" dynamodbav:"sortMode"`
	Timestamps
}

// DefaultSettings returns the settings a new user starts with.
func DefaultSettings(userID string) *Settings {
	return &Settings{
		UserID:               userID,
		TwelveHour:           false,
		EnableNotifications:  true,
		DisplayEmail:         true,
		DefaultNotifications: NewDefaultNotifications(),
		SortMode:             SortByCategory,
	}
}

// SettingsPatch is a sparse settings update.
// DefaultNotifications, when present, replaces the whole map and must be complete.
type SettingsPatch struct {
	TwelveHour           *bool                `json:"twelveHour"`
	EnableNotifications  *bool                `json:"enableNotifications"`
	DisplayEmail         *bool                `json:"displayEmail"`
	DefaultNotifications DefaultNotifications `json:"defaultNotifications"`
	SortMode             *SortMode            `json:"sortMode"`
}

// Validate checks the populated fields.
func (p SettingsPatch) Validate() error {
	if p.SortMode != nil && !p.SortMode.Valid() {
		return Invalid("sortMode", "must be %q or %q", SortByCategory, SortByDate)
	}
	if p.DefaultNotifications != nil {
		if err := p.DefaultNotifications.Validate("defaultNotifications", true); err != nil {
			return err
		}
	}
	if len(p.Changes()) == 0 {
		return Invalid("", "no fields to update")
	}
	return nil
}

// Changes returns one change per populated field.
func (p SettingsPatch) Changes() []store.Change {
	var c []store.Change
	if p.TwelveHour != nil {
		c = append(c, store.Change{Name: "twelveHour", Value: *p.TwelveHour})
	}
	if p.EnableNotifications != nil {
		c = append(c, store.Change{Name: "enableNotifications", Value: *p.EnableNotifications})
	}
	if p.DisplayEmail != nil {
		c = append(c, store.Change{Name: "displayEmail", Value: *p.DisplayEmail})
	}
	if p.DefaultNotifications != nil {
		c = append(c, store.Change{Name: "defaultNotifications", Value: p.DefaultNotifications})
	}
	if p.SortMode != nil {
		c = append(c, store.Change{Name: "sortMode", Value: *p.SortMode})
	}
	return c
}
