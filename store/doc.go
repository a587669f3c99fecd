// Package store provides the DynamoDB data access layer for a single-table design.
//
// All entities share one table keyed by a partition key (PK) and a sort key (SK).
// Keys are produced by the internal keys package; this package turns them into
// item reads, conditional writes and prefix scans.
//
// # Key Features
//
//   - Conditional create (never overwrites an existing item)
//   - Sparse updates that never create missing items
//   - Store-managed createdAt/updatedAt epoch-millisecond timestamps
//   - Paginated prefix queries over a partition
//   - Cascading partition delete with concurrent 25-item batches
//
// # Entity Interfaces
//
// Entities that carry managed timestamps implement [Timestamped]:
//
//	type Timestamped interface {
//	    SetTimestamps(createdAt, updatedAt int64)
//	}
//
// # Configuration
//
// Use [DefaultConfig] and override the table name:
//
//	cfg := store.DefaultConfig()
//	cfg.TableName = "todo-prod"
//
// # Errors
//
// The package defines domain-specific errors:
//
//   - [ErrNotFound] - item doesn't exist
//   - [ErrAlreadyExists] - item with the same key already exists
//   - [ErrStore] - the underlying DynamoDB call failed
//   - [ErrIncompleteBatch] - a batch delete left unprocessed items
package store
