package store

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Attribute names managed by the store.
const (
	AttrPartition = "PK"
	AttrSort      = "SK"
	AttrCreatedAt = "createdAt"
	AttrUpdatedAt = "updatedAt"
)

// Client is the subset of the DynamoDB API the store uses.
// *dynamodb.Client satisfies it.
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

var _ Client = (*dynamodb.Client)(nil)

// Item is a raw DynamoDB item.
type Item = map[string]types.AttributeValue

// Timestamped is implemented by entities carrying store-managed timestamps.
type Timestamped interface {
	SetTimestamps(createdAt, updatedAt int64)
}

// Change is one attribute assignment of a sparse update.
type Change struct {
	// Name is the stored attribute name.
	Name string

	// Value is marshalled with attributevalue; a nil pointer stores NULL.
	Value any
}

// CascadeStats reports the work done by a cascading delete.
type CascadeStats struct {
	// Pages is the number of query pages read.
	Pages int

	// Rounds is the number of pages that issued at least one batch.
	Rounds int

	// Batches is the number of BatchWriteItem calls.
	Batches int

	// Deleted is the number of keys targeted for deletion.
	Deleted int
}

// Clock hands out strictly increasing epoch-millisecond timestamps.
type Clock struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewClock creates a Clock reading from now, or time.Now when nil.
func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

// Now returns the current time in epoch milliseconds, bumped past the
// previous value when the wall clock has not advanced.
func (c *Clock) Now() int64 {
	ms := c.now().UnixMilli()

	c.mu.Lock()
	defer c.mu.Unlock()
	if ms <= c.last {
		ms = c.last + 1
	}
	c.last = ms
	return ms
}

// After returns a timestamp greater than both ms and any value handed out so far.
func (c *Clock) After(ms int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ms > c.last {
		c.last = ms
	}
	c.last++
	return c.last
}
