package store_test

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/jacentio/todo/internal/dynamotest"
	"github.com/jacentio/todo/internal/keys"
	"github.com/jacentio/todo/store"
)

// --- Test Entity Types ---

// note is a minimal timestamped entity.
type note struct {
	Title     string  `dynamodbav:"title"`
	Body      *string `dynamodbav:"body"`
	CreatedAt int64   `dynamodbav:"createdAt"`
	UpdatedAt int64   `dynamodbav:"updatedAt"`
}

func (n *note) SetTimestamps(createdAt, updatedAt int64) {
	n.CreatedAt = createdAt
	n.UpdatedAt = updatedAt
}

func newTestStore(t *testing.T, cfg store.Config) (*store.Store, *dynamotest.Table) {
	t.Helper()
	db := dynamotest.New()
	return store.New(db, cfg, nil), db
}

func seedTasks(t *testing.T, s *store.Store, userID string, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		k := keys.TaskKey{UserID: userID, TaskID: fmt.Sprintf("t%04d", i)}
		if err := s.Create(ctx, k, &note{Title: k.TaskID}); err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}
}

// --- Config ---

func TestDefaultConfig(t *testing.T) {
	cfg := store.DefaultConfig()

	if cfg.TableName != "todo" {
		t.Errorf("expected TableName 'todo', got %q", cfg.TableName)
	}
	if cfg.MaxConcurrentBatches != store.MaxBatchSize {
		t.Errorf("expected MaxConcurrentBatches %d, got %d", store.MaxBatchSize, cfg.MaxConcurrentBatches)
	}
	if cfg.PageSize != 0 {
		t.Errorf("expected PageSize 0, got %d", cfg.PageSize)
	}
}

func TestNewStore(t *testing.T) {
	s := store.New(dynamotest.New(), store.Config{}, nil)
	if s == nil {
		t.Fatal("expected non-nil store")
	}
	if s.TableName() != "todo" {
		t.Errorf("expected default table name, got %q", s.TableName())
	}
}

// --- Clock ---

func TestClock_StrictlyIncreasing(t *testing.T) {
	fixed := time.UnixMilli(1_700_000_000_000)
	c := store.NewClock(func() time.Time { return fixed })

	prev := c.Now()
	if prev != fixed.UnixMilli() {
		t.Fatalf("expected first reading %d, got %d", fixed.UnixMilli(), prev)
	}
	for i := 0; i < 100; i++ {
		next := c.Now()
		if next <= prev {
			t.Fatalf("reading %d: %d is not after %d", i, next, prev)
		}
		prev = next
	}
}

func TestClock_After(t *testing.T) {
	fixed := time.UnixMilli(1_000)
	c := store.NewClock(func() time.Time { return fixed })

	if got := c.After(5_000); got != 5_001 {
		t.Errorf("expected 5001, got %d", got)
	}
	if got := c.Now(); got != 5_002 {
		t.Errorf("expected Now to continue past After, got %d", got)
	}
	if got := c.After(10); got != 5_003 {
		t.Errorf("expected an older value to still advance, got %d", got)
	}
}

func TestClock_Concurrent(t *testing.T) {
	c := store.NewClock(nil)

	var mu sync.Mutex
	seen := make(map[int64]bool)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				ts := c.Now()
				mu.Lock()
				seen[ts] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != 800 {
		t.Errorf("expected 800 distinct timestamps, got %d", len(seen))
	}
}

// --- CRUD ---

func TestCreateAndGet(t *testing.T) {
	s, _ := newTestStore(t, store.DefaultConfig())
	ctx := context.Background()
	k := keys.CategoryKey{UserID: "u1", CategoryID: "c1"}

	in := &note{Title: "errands"}
	if err := s.Create(ctx, k, in); err != nil {
		t.Fatalf("create: %v", err)
	}
	if in.CreatedAt == 0 || in.CreatedAt != in.UpdatedAt {
		t.Errorf("expected equal non-zero timestamps, got %d/%d", in.CreatedAt, in.UpdatedAt)
	}

	var out note
	if err := s.Get(ctx, k, &out); err != nil {
		t.Fatalf("get: %v", err)
	}
	if out.Title != "errands" {
		t.Errorf("expected title 'errands', got %q", out.Title)
	}
	if out.CreatedAt != in.CreatedAt {
		t.Errorf("expected createdAt %d, got %d", in.CreatedAt, out.CreatedAt)
	}
}

func TestCreate_AlreadyExists(t *testing.T) {
	s, _ := newTestStore(t, store.DefaultConfig())
	ctx := context.Background()
	k := keys.TaskKey{UserID: "u1", TaskID: "t1"}

	if err := s.Create(ctx, k, &note{Title: "first"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := s.Create(ctx, k, &note{Title: "second"})
	if !errors.Is(err, store.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	var out note
	if err := s.Get(ctx, k, &out); err != nil {
		t.Fatalf("get: %v", err)
	}
	if out.Title != "first" {
		t.Errorf("expected original item kept, got %q", out.Title)
	}
}

func TestGet_NotFound(t *testing.T) {
	s, _ := newTestStore(t, store.DefaultConfig())

	var out note
	err := s.Get(context.Background(), keys.SettingsKey{UserID: "nobody"}, &out)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestInvalidKey(t *testing.T) {
	s, db := newTestStore(t, store.DefaultConfig())
	ctx := context.Background()
	bad := keys.TaskKey{UserID: "u1", TaskID: "a#b"}

	if err := s.Create(ctx, bad, &note{}); !errors.Is(err, keys.ErrMalformedKey) {
		t.Errorf("create: expected ErrMalformedKey, got %v", err)
	}
	if err := s.Get(ctx, bad, &note{}); !errors.Is(err, keys.ErrMalformedKey) {
		t.Errorf("get: expected ErrMalformedKey, got %v", err)
	}
	if db.Calls("PutItem")+db.Calls("GetItem") != 0 {
		t.Error("expected no store calls for malformed keys")
	}
}

func TestUpdate(t *testing.T) {
	s, _ := newTestStore(t, store.DefaultConfig())
	ctx := context.Background()
	k := keys.TaskKey{UserID: "u1", TaskID: "t1"}

	created := &note{Title: "draft"}
	if err := s.Create(ctx, k, created); err != nil {
		t.Fatalf("create: %v", err)
	}

	body := "details"
	var out note
	err := s.Update(ctx, k, []store.Change{
		{Name: "title", Value: "final"},
		{Name: "body", Value: &body},
		{Name: store.AttrCreatedAt, Value: int64(1)},
	}, &out)
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if out.Title != "final" {
		t.Errorf("expected title 'final', got %q", out.Title)
	}
	if out.Body == nil || *out.Body != "details" {
		t.Errorf("expected body 'details', got %v", out.Body)
	}
	if out.CreatedAt != created.CreatedAt {
		t.Errorf("createdAt changed: %d -> %d", created.CreatedAt, out.CreatedAt)
	}
	if out.UpdatedAt <= created.UpdatedAt {
		t.Errorf("expected updatedAt to advance past %d, got %d", created.UpdatedAt, out.UpdatedAt)
	}
}

func TestUpdate_ClearsWithNilPointer(t *testing.T) {
	s, _ := newTestStore(t, store.DefaultConfig())
	ctx := context.Background()
	k := keys.TaskKey{UserID: "u1", TaskID: "t1"}

	body := "x"
	if err := s.Create(ctx, k, &note{Title: "a", Body: &body}); err != nil {
		t.Fatalf("create: %v", err)
	}

	var cleared *string
	var out note
	if err := s.Update(ctx, k, []store.Change{{Name: "body", Value: cleared}}, &out); err != nil {
		t.Fatalf("update: %v", err)
	}
	if out.Body != nil {
		t.Errorf("expected nil body, got %q", *out.Body)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	s, db := newTestStore(t, store.DefaultConfig())

	err := s.Update(context.Background(), keys.TaskKey{UserID: "u1", TaskID: "ghost"},
		[]store.Change{{Name: "title", Value: "x"}}, nil)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if n := db.Len(s.TableName()); n != 0 {
		t.Errorf("expected no item written, found %d", n)
	}
}

func TestUpdate_StoredTimestampAhead(t *testing.T) {
	db := dynamotest.New()
	ahead := store.New(db, store.DefaultConfig(), nil)
	ahead.SetClock(store.NewClock(func() time.Time { return time.Now().Add(2 * time.Second) }))
	s := store.New(db, store.DefaultConfig(), nil)
	ctx := context.Background()
	k := keys.TaskKey{UserID: "u1", TaskID: "t1"}

	// Written by an instance whose clock runs ahead of this one.
	created := &note{Title: "draft"}
	if err := ahead.Create(ctx, k, created); err != nil {
		t.Fatalf("create: %v", err)
	}

	var out note
	if err := s.Update(ctx, k, []store.Change{{Name: "title", Value: "final"}}, &out); err != nil {
		t.Fatalf("update: %v", err)
	}
	if out.UpdatedAt <= created.UpdatedAt {
		t.Errorf("expected updatedAt past stored %d, got %d", created.UpdatedAt, out.UpdatedAt)
	}
	if out.Title != "final" {
		t.Errorf("expected title 'final', got %q", out.Title)
	}
	if calls := db.Calls("UpdateItem"); calls != 2 {
		t.Errorf("expected one reissued update, got %d calls", calls)
	}

	// The local clock now stays ahead of what it has seen stored.
	if next := s.Now(); next <= out.UpdatedAt {
		t.Errorf("expected clock past %d, got %d", out.UpdatedAt, next)
	}
}

func TestUpdate_StoredTimestampKeepsMoving(t *testing.T) {
	s, db := newTestStore(t, store.DefaultConfig())
	ctx := context.Background()
	k := keys.TaskKey{UserID: "u1", TaskID: "t1"}

	if err := s.Create(ctx, k, &note{Title: "draft"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	stored := db.Items(s.TableName())[0]

	// Another writer stamps a later updatedAt before every attempt.
	future := time.Now().Add(time.Hour).UnixMilli()
	db.Hook = func(op string, _ any) error {
		if op == "UpdateItem" {
			future += 1000
			stored[store.AttrUpdatedAt] = &types.AttributeValueMemberN{Value: strconv.FormatInt(future, 10)}
			db.Put(s.TableName(), stored)
		}
		return nil
	}

	err := s.Update(ctx, k, []store.Change{{Name: "title", Value: "final"}}, nil)
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if calls := db.Calls("UpdateItem"); calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}

	var got note
	db.Hook = nil
	if err := s.Get(ctx, k, &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "draft" {
		t.Errorf("expected no update applied, got title %q", got.Title)
	}
}

func TestDelete(t *testing.T) {
	s, _ := newTestStore(t, store.DefaultConfig())
	ctx := context.Background()
	k := keys.CategoryKey{UserID: "u1", CategoryID: "c1"}

	if err := s.Create(ctx, k, &note{Title: "x"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Delete(ctx, k); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Get(ctx, k, &note{}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.Delete(ctx, k); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestQuery_PrefixAndOrder(t *testing.T) {
	s, _ := newTestStore(t, store.Config{PageSize: 2})
	ctx := context.Background()

	creates := []keys.Key{
		keys.TaskKey{UserID: "u1", TaskID: "b"},
		keys.CategoryKey{UserID: "u1", CategoryID: "c1"},
		keys.TaskKey{UserID: "u1", TaskID: "a"},
		keys.NotificationKey{UserID: "u1", TaskID: "a", NotificationID: "n1"},
		keys.TaskKey{UserID: "u2", TaskID: "z"},
		keys.SettingsKey{UserID: "u1"},
	}
	for _, k := range creates {
		if err := s.Create(ctx, k, &note{}); err != nil {
			t.Fatalf("create %v: %v", k, err)
		}
	}

	items, err := s.Query(ctx, keys.UserPartition("u1"), keys.TaskPrefix())
	if err != nil {
		t.Fatalf("query: %v", err)
	}

	want := []string{"TASK#a", "TASK#aNOTIFICATION#n1", "TASK#b"}
	if len(items) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(items))
	}
	for i, item := range items {
		if got := store.SortKey(item); got != want[i] {
			t.Errorf("item %d: expected %q, got %q", i, want[i], got)
		}
		if got := store.PartitionKey(item); got != "USER#u1" {
			t.Errorf("item %d: expected partition USER#u1, got %q", i, got)
		}
	}

	all, err := s.Query(ctx, keys.UserPartition("u1"), "")
	if err != nil {
		t.Fatalf("query all: %v", err)
	}
	if len(all) != 5 {
		t.Errorf("expected 5 items in partition, got %d", len(all))
	}
}

func TestStoreError(t *testing.T) {
	s, db := newTestStore(t, store.DefaultConfig())
	throttled := &smithy.GenericAPIError{
		Code:    "ProvisionedThroughputExceededException",
		Message: "slow down",
		Fault:   smithy.FaultClient,
	}
	db.Hook = func(op string, _ any) error { return throttled }

	err := s.Get(context.Background(), keys.SettingsKey{UserID: "u1"}, &note{})
	if !errors.Is(err, store.ErrStore) {
		t.Fatalf("expected ErrStore, got %v", err)
	}
	var ae smithy.APIError
	if !errors.As(err, &ae) || ae.ErrorCode() != "ProvisionedThroughputExceededException" {
		t.Errorf("expected wrapped API error, got %v", err)
	}
	if errors.Is(err, store.ErrNotFound) {
		t.Error("store failure must not look like ErrNotFound")
	}
}

// --- Cascade ---

func TestDeletePartition(t *testing.T) {
	tests := []struct {
		name     string
		items    int
		pageSize int32
	}{
		{"single page", 60, 0},
		{"exact batch", 25, 0},
		{"one over", 26, 0},
		{"paged by batch multiple", 130, 50},
		{"paged by batch size", 101, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, db := newTestStore(t, store.Config{PageSize: tt.pageSize})
			seedTasks(t, s, "u1", tt.items)
			seedTasks(t, s, "u2", 3)

			stats, err := s.DeletePartition(context.Background(), keys.UserPartition("u1"))
			if err != nil {
				t.Fatalf("delete partition: %v", err)
			}

			remaining, err := s.Query(context.Background(), keys.UserPartition("u1"), "")
			if err != nil {
				t.Fatalf("query: %v", err)
			}
			if len(remaining) != 0 {
				t.Errorf("expected empty partition, %d items remain", len(remaining))
			}
			if db.Len(s.TableName()) != 3 {
				t.Errorf("expected other tenant untouched, table has %d items", db.Len(s.TableName()))
			}

			if stats.Deleted != tt.items {
				t.Errorf("expected %d deleted, got %d", tt.items, stats.Deleted)
			}
			if stats.Rounds > store.BatchCount(tt.items) {
				t.Errorf("expected at most %d rounds, got %d", store.BatchCount(tt.items), stats.Rounds)
			}
			if stats.Batches != db.Calls("BatchWriteItem") {
				t.Errorf("stats report %d batches, client saw %d", stats.Batches, db.Calls("BatchWriteItem"))
			}
		})
	}
}

func TestDeletePartition_Empty(t *testing.T) {
	s, db := newTestStore(t, store.DefaultConfig())

	stats, err := s.DeletePartition(context.Background(), keys.UserPartition("nobody"))
	if err != nil {
		t.Fatalf("delete partition: %v", err)
	}
	if stats.Deleted != 0 || stats.Rounds != 0 {
		t.Errorf("expected no work, got %+v", stats)
	}
	if db.Calls("BatchWriteItem") != 0 {
		t.Error("expected no batch writes")
	}
}

func TestDeletePartition_Idempotent(t *testing.T) {
	s, _ := newTestStore(t, store.DefaultConfig())
	seedTasks(t, s, "u1", 40)
	ctx := context.Background()

	if _, err := s.DeletePartition(ctx, keys.UserPartition("u1")); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	stats, err := s.DeletePartition(ctx, keys.UserPartition("u1"))
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if stats.Deleted != 0 {
		t.Errorf("expected nothing left to delete, got %d", stats.Deleted)
	}
}

func TestDeletePartition_ConcurrentBatches(t *testing.T) {
	s, db := newTestStore(t, store.Config{MaxConcurrentBatches: 4})
	db.BatchDelay = 20 * time.Millisecond
	seedTasks(t, s, "u1", 200)

	stats, err := s.DeletePartition(context.Background(), keys.UserPartition("u1"))
	if err != nil {
		t.Fatalf("delete partition: %v", err)
	}
	if stats.Batches != 8 {
		t.Errorf("expected 8 batches, got %d", stats.Batches)
	}
	if got := db.MaxInFlight("BatchWriteItem"); got < 2 || got > 4 {
		t.Errorf("expected between 2 and 4 concurrent batches, got %d", got)
	}
}

func TestDeletePartition_ResumesAfterFailure(t *testing.T) {
	s, db := newTestStore(t, store.Config{PageSize: 25, MaxConcurrentBatches: 1})
	seedTasks(t, s, "u1", 75)
	ctx := context.Background()

	var mu sync.Mutex
	batches := 0
	db.Hook = func(op string, _ any) error {
		if op != "BatchWriteItem" {
			return nil
		}
		mu.Lock()
		defer mu.Unlock()
		batches++
		if batches == 2 {
			return &smithy.GenericAPIError{Code: "InternalServerError", Fault: smithy.FaultServer}
		}
		return nil
	}

	_, err := s.DeletePartition(ctx, keys.UserPartition("u1"))
	if !errors.Is(err, store.ErrStore) {
		t.Fatalf("expected ErrStore, got %v", err)
	}
	if n := db.Len(s.TableName()); n != 50 {
		t.Errorf("expected partial deletion leaving 50 items, got %d", n)
	}

	if _, err := s.DeletePartition(ctx, keys.UserPartition("u1")); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if n := db.Len(s.TableName()); n != 0 {
		t.Errorf("expected empty table after resume, got %d", n)
	}
}

// unprocessedClient reports every batch as fully unprocessed.
type unprocessedClient struct {
	*dynamotest.Table
}

func (c unprocessedClient) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	return &dynamodb.BatchWriteItemOutput{
		UnprocessedItems: params.RequestItems,
	}, nil
}

func TestDeletePartition_Unprocessed(t *testing.T) {
	db := dynamotest.New()
	s := store.New(unprocessedClient{db}, store.DefaultConfig(), nil)
	seedTasks(t, s, "u1", 5)

	_, err := s.DeletePartition(context.Background(), keys.UserPartition("u1"))
	if !errors.Is(err, store.ErrIncompleteBatch) {
		t.Fatalf("expected ErrIncompleteBatch, got %v", err)
	}
}

func TestDeletePrefix(t *testing.T) {
	s, db := newTestStore(t, store.DefaultConfig())
	ctx := context.Background()

	for _, k := range []keys.Key{
		keys.TaskKey{UserID: "u1", TaskID: "t1"},
		keys.NotificationKey{UserID: "u1", TaskID: "t1", NotificationID: "n1"},
		keys.NotificationKey{UserID: "u1", TaskID: "t1", NotificationID: "n2"},
		keys.NotificationKey{UserID: "u1", TaskID: "t2", NotificationID: "n3"},
	} {
		if err := s.Create(ctx, k, &note{}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	stats, err := s.DeletePrefix(ctx, keys.UserPartition("u1"), keys.NotificationPrefix("t1"))
	if err != nil {
		t.Fatalf("delete prefix: %v", err)
	}
	if stats.Deleted != 2 {
		t.Errorf("expected 2 deleted, got %d", stats.Deleted)
	}
	if n := db.Len(s.TableName()); n != 2 {
		t.Errorf("expected 2 items left, got %d", n)
	}
}

func TestBatchCount(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{0, 0},
		{1, 1},
		{25, 1},
		{26, 2},
		{100, 4},
		{101, 5},
	}
	for _, tt := range tests {
		if got := store.BatchCount(tt.n); got != tt.want {
			t.Errorf("BatchCount(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

// --- Examples ---

func ExampleStore_DeletePartition() {
	s := store.New(dynamotest.New(), store.DefaultConfig(), nil)
	ctx := context.Background()

	for i := 0; i < 30; i++ {
		k := keys.TaskKey{UserID: "alice", TaskID: fmt.Sprint(i)}
		_ = s.Create(ctx, k, &note{Title: "task"})
	}

	stats, err := s.DeletePartition(ctx, keys.UserPartition("alice"))
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println(stats.Deleted, stats.Batches)
	// Output: 30 2
}

// --- Benchmarks ---

func BenchmarkDeletePartition(b *testing.B) {
	ctx := context.Background()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		s := store.New(dynamotest.New(), store.DefaultConfig(), nil)
		for j := 0; j < 100; j++ {
			_ = s.Create(ctx, keys.TaskKey{UserID: "u", TaskID: fmt.Sprint(j)}, &note{})
		}
		b.StartTimer()

		if _, err := s.DeletePartition(ctx, keys.UserPartition("u")); err != nil {
			b.Fatal(err)
		}
	}
}
