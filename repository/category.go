package repository

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jacentio/todo/internal/keys"
	"github.com/jacentio/todo/model"
	"github.com/jacentio/todo/store"
)

// CategoryRepository stores categories.
type CategoryRepository struct {
	store  *store.Store
	logger *slog.Logger
	newID  IDFunc
}

func (r *CategoryRepository) Get(ctx context.Context, userID, categoryID string) (*model.Category, error) {
	var c model.Category
	if err := r.store.Get(ctx, keys.CategoryKey{UserID: userID, CategoryID: categoryID}, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Create stores a new category under a fresh id.
func (r *CategoryRepository) Create(ctx context.Context, userID string, in model.CategoryInput) (*model.Category, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	c := &model.Category{
		UserID:       userID,
		CategoryID:   r.newID(),
		CategoryName: strings.TrimSpace(in.CategoryName),
	}
	if err := r.store.Create(ctx, keys.CategoryKey{UserID: userID, CategoryID: c.CategoryID}, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *CategoryRepository) Update(ctx context.Context, userID, categoryID string, patch model.CategoryPatch) (*model.Category, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	var c model.Category
	if err := r.store.Update(ctx, keys.CategoryKey{UserID: userID, CategoryID: categoryID}, patch.Changes(), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListByUser returns the user's categories in sort-key order.
func (r *CategoryRepository) ListByUser(ctx context.Context, userID string) ([]model.Category, error) {
	return listKind[model.Category](ctx, r.store, userID, keys.CategoryPrefix(), keys.KindCategory)
}

// Delete removes a category. Tasks referring to it keep the dangling id.
func (r *CategoryRepository) Delete(ctx context.Context, userID, categoryID string) error {
	return r.store.Delete(ctx, keys.CategoryKey{UserID: userID, CategoryID: categoryID})
}
