package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/jacentio/todo/internal/keys"
)

// Store provides DynamoDB operations over the single table.
type Store struct {
	client Client
	config Config
	logger *slog.Logger
	clock  *Clock
}

// New creates a new Store instance.
func New(client Client, config Config, logger *slog.Logger) *Store {
	config.validate()
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		client: client,
		config: config,
		logger: logger,
		clock:  NewClock(nil),
	}
}

// SetClock replaces the timestamp source.
func (s *Store) SetClock(c *Clock) {
	s.clock = c
}

// TableName returns the configured table name.
func (s *Store) TableName() string {
	return s.config.TableName
}

// Now returns the next managed timestamp in epoch milliseconds.
func (s *Store) Now() int64 {
	return s.clock.Now()
}

// primaryKey encodes k into its DynamoDB key attributes.
func primaryKey(k keys.Key) (Item, error) {
	pair, err := keys.Encode(k)
	if err != nil {
		return nil, err
	}
	return Item{
		AttrPartition: &types.AttributeValueMemberS{Value: pair.Partition},
		AttrSort:      &types.AttributeValueMemberS{Value: pair.Sort},
	}, nil
}

// Get reads the item at k into out, returning ErrNotFound if it is missing.
func (s *Store) Get(ctx context.Context, k keys.Key, out any) error {
	key, err := primaryKey(k)
	if err != nil {
		return err
	}

	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.config.TableName),
		Key:       key,
	})
	if err != nil {
		return s.wrap(ctx, "get item", err)
	}
	if result.Item == nil {
		return ErrNotFound
	}

	if err := attributevalue.UnmarshalMap(result.Item, out); err != nil {
		return fmt.Errorf("unmarshal %s: %w", k.Kind(), err)
	}
	return nil
}

// Create writes entity at k, failing with ErrAlreadyExists if the key is taken.
// Timestamped entities get createdAt and updatedAt set before the write.
func (s *Store) Create(ctx context.Context, k keys.Key, entity any) error {
	key, err := primaryKey(k)
	if err != nil {
		return err
	}

	if ts, ok := entity.(Timestamped); ok {
		now := s.clock.Now()
		ts.SetTimestamps(now, now)
	}

	item, err := attributevalue.MarshalMap(entity)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", k.Kind(), err)
	}
	for name, v := range key {
		item[name] = v
	}

	cond := expression.AttributeNotExists(expression.Name(AttrPartition))
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("build expression: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(s.config.TableName),
		Item:                      item,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrAlreadyExists
		}
		return s.wrap(ctx, "put item", err)
	}
	return nil
}

// maxUpdateAttempts bounds how often Update chases a stored updatedAt that is
// ahead of this process's clock.
const maxUpdateAttempts = 3

// Update applies changes to the existing item at k and bumps updatedAt past
// the stored value. It never creates an item: a missing key fails with
// ErrNotFound and nothing is written.
// The updated item is unmarshalled into out when out is non-nil.
func (s *Store) Update(ctx context.Context, k keys.Key, changes []Change, out any) error {
	key, err := primaryKey(k)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	for attempt := 1; ; attempt++ {
		result, err := s.updateAt(ctx, key, changes, now)
		if err == nil {
			if out == nil {
				return nil
			}
			if err := attributevalue.UnmarshalMap(result.Attributes, out); err != nil {
				return fmt.Errorf("unmarshal %s: %w", k.Kind(), err)
			}
			return nil
		}

		var condErr *types.ConditionalCheckFailedException
		if !errors.As(err, &condErr) {
			return s.wrap(ctx, "update item", err)
		}
		if len(condErr.Item) == 0 {
			return ErrNotFound
		}

		// The item exists, so its updatedAt is at or past now.
		prev, ok := updatedAt(condErr.Item)
		if !ok || attempt == maxUpdateAttempts {
			s.logger.WarnContext(ctx, "update lost to a newer updatedAt",
				"table", s.config.TableName,
				"kind", k.Kind().String(),
				"attempts", attempt,
			)
			return fmt.Errorf("%w: %s", ErrConflict, k.Kind())
		}
		s.logger.DebugContext(ctx, "stored updatedAt ahead of clock",
			"kind", k.Kind().String(),
			"stored", prev,
			"now", now,
		)
		now = s.clock.After(prev)
	}
}

// updateAt issues one conditional update stamping updatedAt with now. The
// condition holds only for an existing item whose stored updatedAt is below now.
func (s *Store) updateAt(ctx context.Context, key Item, changes []Change, now int64) (*dynamodb.UpdateItemOutput, error) {
	update := expression.Set(expression.Name(AttrUpdatedAt), expression.Value(now))
	for _, c := range changes {
		// Skip managed fields
		switch c.Name {
		case "", AttrPartition, AttrSort, AttrCreatedAt, AttrUpdatedAt:
			continue
		}
		update = update.Set(expression.Name(c.Name), expression.Value(c.Value))
	}

	cond := expression.AttributeExists(expression.Name(AttrPartition)).And(
		expression.Or(
			expression.AttributeNotExists(expression.Name(AttrUpdatedAt)),
			expression.Name(AttrUpdatedAt).LessThan(expression.Value(now)),
		),
	)
	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return nil, fmt.Errorf("build expression: %w", err)
	}

	return s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                           aws.String(s.config.TableName),
		Key:                                 key,
		UpdateExpression:                    expr.Update(),
		ConditionExpression:                 expr.Condition(),
		ExpressionAttributeNames:            expr.Names(),
		ExpressionAttributeValues:           expr.Values(),
		ReturnValues:                        types.ReturnValueAllNew,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
}

// updatedAt reads the stored updatedAt of a raw item.
func updatedAt(item Item) (int64, bool) {
	n, ok := item[AttrUpdatedAt].(*types.AttributeValueMemberN)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseInt(n.Value, 10, 64)
	return v, err == nil
}

// Delete removes the item at k, returning ErrNotFound if it does not exist.
func (s *Store) Delete(ctx context.Context, k keys.Key) error {
	key, err := primaryKey(k)
	if err != nil {
		return err
	}

	cond := expression.AttributeExists(expression.Name(AttrPartition))
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("build expression: %w", err)
	}

	_, err = s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                 aws.String(s.config.TableName),
		Key:                       key,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrNotFound
		}
		return s.wrap(ctx, "delete item", err)
	}
	return nil
}

// Query returns every item in partition whose sort key begins with sortPrefix,
// in ascending sort-key order. An empty prefix returns the whole partition.
func (s *Store) Query(ctx context.Context, partition, sortPrefix string) ([]Item, error) {
	input, err := s.queryInput(partition, sortPrefix, false)
	if err != nil {
		return nil, err
	}

	// Paginate through all results
	var items []Item
	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, s.wrap(ctx, "query", err)
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

// queryInput builds a key-condition query over partition and an optional sort prefix.
func (s *Store) queryInput(partition, sortPrefix string, keysOnly bool) (*dynamodb.QueryInput, error) {
	keyCond := expression.Key(AttrPartition).Equal(expression.Value(partition))
	if sortPrefix != "" {
		keyCond = keyCond.And(expression.Key(AttrSort).BeginsWith(sortPrefix))
	}

	builder := expression.NewBuilder().WithKeyCondition(keyCond)
	if keysOnly {
		builder = builder.WithProjection(expression.NamesList(
			expression.Name(AttrPartition),
			expression.Name(AttrSort),
		))
	}
	expr, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("build expression: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.config.TableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}
	if keysOnly {
		input.ProjectionExpression = expr.Projection()
	}
	if s.config.PageSize > 0 {
		input.Limit = aws.Int32(s.config.PageSize)
	}
	return input, nil
}

// wrap logs a failed DynamoDB call and tags the error with ErrStore.
func (s *Store) wrap(ctx context.Context, op string, err error) error {
	attrs := []any{
		"op", op,
		"table", s.config.TableName,
		"error", err,
	}
	var ae smithy.APIError
	if errors.As(err, &ae) {
		attrs = append(attrs, "code", ae.ErrorCode(), "fault", ae.ErrorFault().String())
	}
	s.logger.ErrorContext(ctx, "dynamodb call failed", attrs...)
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}

// SortKey extracts the sort key string of a raw item.
func SortKey(item Item) string {
	if v, ok := item[AttrSort].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

// PartitionKey extracts the partition key string of a raw item.
func PartitionKey(item Item) string {
	if v, ok := item[AttrPartition].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}
