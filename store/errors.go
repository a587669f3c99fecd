package store

import "errors"

var (
	// ErrNotFound is returned when an item doesn't exist.
	ErrNotFound = errors.New("todo: item not found")

	// ErrAlreadyExists is returned when creating an item whose key is taken.
	ErrAlreadyExists = errors.New("todo: item already exists")

	// ErrConflict is returned when concurrent writers keep moving an item's
	// updatedAt past every value Update tries.
	ErrConflict = errors.New("todo: concurrent update")

	// ErrStore wraps every failure reported by DynamoDB itself
	// (throttling, capacity, network faults).
	ErrStore = errors.New("todo: store call failed")

	// ErrIncompleteBatch is returned when a batch delete reports unprocessed keys.
	// Re-running the delete is safe.
	ErrIncompleteBatch = errors.New("todo: batch delete left unprocessed items")
)
