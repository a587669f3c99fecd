package repository

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jacentio/todo/internal/keys"
	"github.com/jacentio/todo/model"
	"github.com/jacentio/todo/store"
)

// SettingsRepository stores the per-user settings singleton.
type SettingsRepository struct {
	store  *store.Store
	logger *slog.Logger
}

// Get returns the user's settings or store.ErrNotFound for a new user.
func (r *SettingsRepository) Get(ctx context.Context, userID string) (*model.Settings, error) {
	var s model.Settings
	if err := r.store.Get(ctx, keys.SettingsKey{UserID: userID}, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Create writes the default settings for userID.
func (r *SettingsRepository) Create(ctx context.Context, userID string) (*model.Settings, error) {
	s := model.DefaultSettings(userID)
	if err := r.store.Create(ctx, keys.SettingsKey{UserID: userID}, s); err != nil {
		return nil, err
	}
	r.logger.InfoContext(ctx, "created default settings", "userId", userID)
	return s, nil
}

// GetOrCreate returns the user's settings, creating the defaults on first access.
// created reports whether this call wrote them.
func (r *SettingsRepository) GetOrCreate(ctx context.Context, userID string) (s *model.Settings, created bool, err error) {
	s, err = r.Get(ctx, userID)
	if err == nil || !errors.Is(err, store.ErrNotFound) {
		return s, false, err
	}

	s, err = r.Create(ctx, userID)
	if errors.Is(err, store.ErrAlreadyExists) {
		// Lost a race with a concurrent first access
		s, err = r.Get(ctx, userID)
		return s, false, err
	}
	return s, err == nil, err
}

// Update applies patch to existing settings.
func (r *SettingsRepository) Update(ctx context.Context, userID string, patch model.SettingsPatch) (*model.Settings, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	var s model.Settings
	if err := r.store.Update(ctx, keys.SettingsKey{UserID: userID}, patch.Changes(), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Delete removes the user's settings.
func (r *SettingsRepository) Delete(ctx context.Context, userID string) error {
	return r.store.Delete(ctx, keys.SettingsKey{UserID: userID})
}
