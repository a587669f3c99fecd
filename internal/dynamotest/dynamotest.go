// Package dynamotest provides an in-memory DynamoDB table for tests.
//
// It implements the calls used by the store package for tables keyed by
// PK (partition) and SK (sort). Expressions rendered by the
// feature/dynamodb/expression builder are parsed with a participle grammar:
// SET updates, AND/OR/NOT conditions over comparisons, attribute_exists,
// attribute_not_exists and begins_with.
package dynamotest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	attrPK = "PK"
	attrSK = "SK"
)

// Hook runs before every call. A non-nil error is returned to the caller
// and the call has no effect.
type Hook func(op string, params any) error

// Table is an in-memory DynamoDB with one or more PK/SK tables.
type Table struct {
	mu     sync.Mutex
	tables map[string]map[string]map[string]types.AttributeValue

	calls    map[string]int
	inFlight map[string]int
	maxIn    map[string]int

	// Hook, when set, can fail calls.
	Hook Hook

	// BatchDelay slows every BatchWriteItem so concurrent batches overlap.
	BatchDelay time.Duration
}

// New creates an empty Table.
func New() *Table {
	return &Table{
		tables:   make(map[string]map[string]map[string]types.AttributeValue),
		calls:    make(map[string]int),
		inFlight: make(map[string]int),
		maxIn:    make(map[string]int),
	}
}

// Calls returns how many times op was invoked.
func (t *Table) Calls(op string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls[op]
}

// MaxInFlight returns the highest number of concurrent calls to op observed.
func (t *Table) MaxInFlight(op string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.maxIn[op]
}

// Len returns the number of items stored in table.
func (t *Table) Len(table string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tables[table])
}

// Items returns copies of every item in table, ordered by PK then SK.
func (t *Table) Items(table string) []map[string]types.AttributeValue {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]string, 0, len(t.tables[table]))
	for id := range t.tables[table] {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	items := make([]map[string]types.AttributeValue, 0, len(ids))
	for _, id := range ids {
		items = append(items, clone(t.tables[table][id]))
	}
	return items
}

// Put stores item directly, bypassing conditions and hooks.
func (t *Table) Put(table string, item map[string]types.AttributeValue) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.table(table)[itemID(item)] = clone(item)
}

func (t *Table) begin(op string, params any) error {
	t.mu.Lock()
	t.calls[op]++
	t.inFlight[op]++
	if t.inFlight[op] > t.maxIn[op] {
		t.maxIn[op] = t.inFlight[op]
	}
	hook := t.Hook
	t.mu.Unlock()

	if hook != nil {
		if err := hook(op, params); err != nil {
			t.end(op)
			return err
		}
	}
	return nil
}

func (t *Table) end(op string) {
	t.mu.Lock()
	t.inFlight[op]--
	t.mu.Unlock()
}

func (t *Table) table(name string) map[string]map[string]types.AttributeValue {
	tbl, ok := t.tables[name]
	if !ok {
		tbl = make(map[string]map[string]types.AttributeValue)
		t.tables[name] = tbl
	}
	return tbl
}

// GetItem implements store.Client.
func (t *Table) GetItem(ctx context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if err := t.begin("GetItem", params); err != nil {
		return nil, err
	}
	defer t.end("GetItem")

	t.mu.Lock()
	defer t.mu.Unlock()

	item, ok := t.table(aws.ToString(params.TableName))[itemID(params.Key)]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: clone(item)}, nil
}

// PutItem implements store.Client.
func (t *Table) PutItem(ctx context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if err := t.begin("PutItem", params); err != nil {
		return nil, err
	}
	defer t.end("PutItem")

	t.mu.Lock()
	defer t.mu.Unlock()

	tbl := t.table(aws.ToString(params.TableName))
	id := itemID(params.Item)
	existing := tbl[id]

	ok, err := evalCondition(aws.ToString(params.ConditionExpression), env{
		item: existing, names: params.ExpressionAttributeNames, values: params.ExpressionAttributeValues,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, conditionFailed(existing, params.ReturnValuesOnConditionCheckFailure)
	}

	tbl[id] = clone(params.Item)
	return &dynamodb.PutItemOutput{}, nil
}

// UpdateItem implements store.Client. Only SET clauses are supported.
func (t *Table) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	if err := t.begin("UpdateItem", params); err != nil {
		return nil, err
	}
	defer t.end("UpdateItem")

	t.mu.Lock()
	defer t.mu.Unlock()

	tbl := t.table(aws.ToString(params.TableName))
	id := itemID(params.Key)
	existing := tbl[id]

	e := env{item: existing, names: params.ExpressionAttributeNames, values: params.ExpressionAttributeValues}
	ok, err := evalCondition(aws.ToString(params.ConditionExpression), e)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, conditionFailed(existing, params.ReturnValuesOnConditionCheckFailure)
	}

	base := existing
	if base == nil {
		base = params.Key
	}
	updated, err := applyUpdate(aws.ToString(params.UpdateExpression), base, e)
	if err != nil {
		return nil, err
	}
	tbl[id] = updated

	out := &dynamodb.UpdateItemOutput{}
	if params.ReturnValues == types.ReturnValueAllNew {
		out.Attributes = clone(updated)
	}
	return out, nil
}

// DeleteItem implements store.Client.
func (t *Table) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	if err := t.begin("DeleteItem", params); err != nil {
		return nil, err
	}
	defer t.end("DeleteItem")

	t.mu.Lock()
	defer t.mu.Unlock()

	tbl := t.table(aws.ToString(params.TableName))
	id := itemID(params.Key)
	existing := tbl[id]

	ok, err := evalCondition(aws.ToString(params.ConditionExpression), env{
		item: existing, names: params.ExpressionAttributeNames, values: params.ExpressionAttributeValues,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, conditionFailed(existing, params.ReturnValuesOnConditionCheckFailure)
	}

	delete(tbl, id)
	return &dynamodb.DeleteItemOutput{}, nil
}

// Query implements store.Client. Items are returned in ascending SK order.
func (t *Table) Query(ctx context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if err := t.begin("Query", params); err != nil {
		return nil, err
	}
	defer t.end("Query")

	keyCond := aws.ToString(params.KeyConditionExpression)
	if strings.TrimSpace(keyCond) == "" {
		return nil, fmt.Errorf("dynamotest: query without key condition")
	}
	if _, err := parseCondition(keyCond); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var matched []map[string]types.AttributeValue
	for _, item := range t.table(aws.ToString(params.TableName)) {
		ok, err := evalCondition(keyCond, env{
			item: item, names: params.ExpressionAttributeNames, values: params.ExpressionAttributeValues,
		})
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, item)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return itemID(matched[i]) < itemID(matched[j])
	})

	if params.ExclusiveStartKey != nil {
		start := itemID(params.ExclusiveStartKey)
		i := sort.Search(len(matched), func(i int) bool {
			return itemID(matched[i]) > start
		})
		matched = matched[i:]
	}

	out := &dynamodb.QueryOutput{}
	limit := int(aws.ToInt32(params.Limit))
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
		last := matched[limit-1]
		out.LastEvaluatedKey = map[string]types.AttributeValue{
			attrPK: last[attrPK],
			attrSK: last[attrSK],
		}
	}

	for _, item := range matched {
		out.Items = append(out.Items, clone(item))
	}
	out.Count = int32(len(out.Items))
	out.ScannedCount = out.Count
	return out, nil
}

// BatchWriteItem implements store.Client.
func (t *Table) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	if err := t.begin("BatchWriteItem", params); err != nil {
		return nil, err
	}
	defer t.end("BatchWriteItem")

	for _, reqs := range params.RequestItems {
		if len(reqs) > 25 {
			return nil, fmt.Errorf("dynamotest: batch of %d exceeds 25 requests", len(reqs))
		}
	}

	if t.BatchDelay > 0 {
		select {
		case <-time.After(t.BatchDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for name, reqs := range params.RequestItems {
		tbl := t.table(name)
		for _, req := range reqs {
			switch {
			case req.DeleteRequest != nil:
				delete(tbl, itemID(req.DeleteRequest.Key))
			case req.PutRequest != nil:
				tbl[itemID(req.PutRequest.Item)] = clone(req.PutRequest.Item)
			}
		}
	}
	return &dynamodb.BatchWriteItemOutput{}, nil
}

func resolveName(token string, names map[string]string) string {
	if strings.HasPrefix(token, "#") {
		return names[token]
	}
	return token
}

// conditionFailed returns the error DynamoDB reports for a failed condition,
// carrying the existing item when the caller asked for ALL_OLD.
func conditionFailed(existing map[string]types.AttributeValue, rv types.ReturnValuesOnConditionCheckFailure) error {
	err := &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	if rv == types.ReturnValuesOnConditionCheckFailureAllOld {
		err.Item = clone(existing)
	}
	return err
}

func itemID(item map[string]types.AttributeValue) string {
	return stringAttr(item, attrPK) + "\x00" + stringAttr(item, attrSK)
}

func stringAttr(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func clone(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	if item == nil {
		return nil
	}
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}
