// Package repository implements one repository per entity kind on top of the
// single-table store.
//
// Repositories own id generation and the mapping between create inputs,
// patches and stored attributes. Every operation except task creation is a
// single round-trip to the store.
package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/google/uuid"

	"github.com/jacentio/todo/internal/keys"
	"github.com/jacentio/todo/store"
)

// IDFunc generates entity ids.
type IDFunc func() string

// Repositories bundles the four entity repositories sharing one store.
type Repositories struct {
	store *store.Store

	Settings      *SettingsRepository
	Categories    *CategoryRepository
	Tasks         *TaskRepository
	Notifications *NotificationRepository
}

// New creates every repository over s. A nil logger uses slog.Default().
func New(s *store.Store, logger *slog.Logger) *Repositories {
	return NewWithIDs(s, logger, uuid.NewString)
}

// NewWithIDs is New with a custom id generator.
func NewWithIDs(s *store.Store, logger *slog.Logger, newID IDFunc) *Repositories {
	if logger == nil {
		logger = slog.Default()
	}
	if newID == nil {
		newID = uuid.NewString
	}

	notifications := &NotificationRepository{store: s, logger: logger, newID: newID}
	return &Repositories{
		store:         s,
		Settings:      &SettingsRepository{store: s, logger: logger},
		Categories:    &CategoryRepository{store: s, logger: logger, newID: newID},
		Tasks:         &TaskRepository{store: s, logger: logger, newID: newID, notifications: notifications},
		Notifications: notifications,
	}
}

// DeleteUser removes every item in the user's partition.
func (r *Repositories) DeleteUser(ctx context.Context, userID string) (store.CascadeStats, error) {
	if !keys.ValidID(userID) {
		return store.CascadeStats{}, fmt.Errorf("%w: invalid user id %q", keys.ErrMalformedKey, userID)
	}
	return r.store.DeletePartition(ctx, keys.UserPartition(userID))
}

// listKind queries prefix in the user's partition and unmarshals the items
// whose decoded key is of kind. Other kinds sharing the prefix are skipped.
func listKind[T any](ctx context.Context, s *store.Store, userID, prefix string, kind keys.Kind) ([]T, error) {
	if !keys.ValidID(userID) {
		return nil, fmt.Errorf("%w: invalid user id %q", keys.ErrMalformedKey, userID)
	}

	items, err := s.Query(ctx, keys.UserPartition(userID), prefix)
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, len(items))
	for _, item := range items {
		k, err := keys.Decode(store.PartitionKey(item), store.SortKey(item))
		if err != nil {
			return nil, err
		}
		if k.Kind() != kind {
			continue
		}

		var v T
		if err := attributevalue.UnmarshalMap(item, &v); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", kind, err)
		}
		out = append(out, v)
	}
	return out, nil
}
