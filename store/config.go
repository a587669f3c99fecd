package store

// MaxBatchSize is the DynamoDB limit on items per BatchWriteItem call.
const MaxBatchSize = 25

// Config holds configuration for the Store.
type Config struct {
	// TableName is the name of the single table holding every entity.
	// Default: "todo"
	TableName string

	// PageSize limits the number of items per query page.
	// Default: 0 (DynamoDB decides, up to 1 MB per page)
	PageSize int32

	// MaxConcurrentBatches bounds the batch deletes in flight per page
	// during a cascading delete.
	// Default: 25
	// Max: 25
	MaxConcurrentBatches int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		TableName:            "todo",
		MaxConcurrentBatches: MaxBatchSize,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.TableName == "" {
		c.TableName = "todo"
	}
	if c.PageSize < 0 {
		c.PageSize = 0
	}
	if c.MaxConcurrentBatches < 1 || c.MaxConcurrentBatches > MaxBatchSize {
		c.MaxConcurrentBatches = MaxBatchSize
	}
}
