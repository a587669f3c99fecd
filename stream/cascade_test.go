package stream_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/smithy-go"

	"github.com/jacentio/todo/internal/dynamotest"
	"github.com/jacentio/todo/internal/keys"
	"github.com/jacentio/todo/store"
	"github.com/jacentio/todo/stream"
)

type item struct {
	Title string `dynamodbav:"title"`
}

func setup(t *testing.T) (*stream.Handler, *store.Store, *dynamotest.Table) {
	t.Helper()
	db := dynamotest.New()
	s := store.New(db, store.DefaultConfig(), nil)
	return stream.NewHandler(s, nil), s, db
}

func seed(t *testing.T, s *store.Store, ks ...keys.Key) {
	t.Helper()
	for _, k := range ks {
		if err := s.Create(context.Background(), k, &item{Title: k.Sort()}); err != nil {
			t.Fatalf("seed %s: %v", k.Sort(), err)
		}
	}
}

func notifications(userID, taskID string, n int) []keys.Key {
	out := make([]keys.Key, n)
	for i := range out {
		out[i] = keys.NotificationKey{UserID: userID, TaskID: taskID, NotificationID: fmt.Sprintf("n%02d", i)}
	}
	return out
}

func removeEvent(ks ...keys.Key) events.DynamoDBEvent {
	var ev events.DynamoDBEvent
	for i, k := range ks {
		ev.Records = append(ev.Records, events.DynamoDBEventRecord{
			EventID:   fmt.Sprintf("event-%d", i),
			EventName: "REMOVE",
			Change: events.DynamoDBStreamRecord{
				Keys: map[string]events.DynamoDBAttributeValue{
					store.AttrPartition: events.NewStringAttribute(k.Partition()),
					store.AttrSort:      events.NewStringAttribute(k.Sort()),
				},
			},
		})
	}
	return ev
}

func TestNewHandler(t *testing.T) {
	if h := stream.NewHandler(nil, nil); h == nil {
		t.Fatal("expected non-nil Handler")
	}
}

func TestHandleTaskRemoval_DeletesNotifications(t *testing.T) {
	h, s, db := setup(t)

	// t1 is already gone; its notifications remain.
	seed(t, s, notifications("u1", "t1", 30)...)
	seed(t, s, keys.TaskKey{UserID: "u1", TaskID: "t10"})
	seed(t, s, notifications("u1", "t10", 2)...)
	seed(t, s, notifications("u2", "t1", 2)...)
	seed(t, s, keys.CategoryKey{UserID: "u1", CategoryID: "c1"})

	err := h.HandleTaskRemoval(context.Background(), removeEvent(keys.TaskKey{UserID: "u1", TaskID: "t1"}))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}

	remaining, err := s.Query(context.Background(), keys.UserPartition("u1"), keys.NotificationPrefix("t1"))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("expected t1 notifications removed, %d remain", len(remaining))
	}

	// t10 shares the t1 text prefix, u2 shares the task id.
	if got := db.Len(s.TableName()); got != 6 {
		t.Errorf("expected 6 unrelated items kept, got %d", got)
	}
}

func TestHandleTaskRemoval_Idempotent(t *testing.T) {
	h, s, db := setup(t)
	seed(t, s, notifications("u1", "t1", 3)...)

	ev := removeEvent(keys.TaskKey{UserID: "u1", TaskID: "t1"})
	for i := 0; i < 2; i++ {
		if err := h.HandleTaskRemoval(context.Background(), ev); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	if got := db.Len(s.TableName()); got != 0 {
		t.Errorf("expected empty table, got %d items", got)
	}
}

func TestHandleTaskRemoval_IgnoresOtherRecords(t *testing.T) {
	h, s, db := setup(t)
	seed(t, s, notifications("u1", "t1", 2)...)

	ev := removeEvent(
		keys.CategoryKey{UserID: "u1", CategoryID: "c1"},
		keys.SettingsKey{UserID: "u1"},
		keys.NotificationKey{UserID: "u1", TaskID: "t1", NotificationID: "n00"},
	)
	ev.Records = append(ev.Records,
		events.DynamoDBEventRecord{EventName: "INSERT", Change: removeEvent(keys.TaskKey{UserID: "u1", TaskID: "t1"}).Records[0].Change},
		events.DynamoDBEventRecord{EventName: "REMOVE", Change: events.DynamoDBStreamRecord{
			Keys: map[string]events.DynamoDBAttributeValue{
				store.AttrPartition: events.NewStringAttribute("LEGACY#1"),
				store.AttrSort:      events.NewStringAttribute("TASK#t1"),
			},
		}},
	)

	if err := h.HandleTaskRemoval(context.Background(), ev); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if calls := db.Calls("Query"); calls != 0 {
		t.Errorf("expected no queries, got %d", calls)
	}
	if got := db.Len(s.TableName()); got != 2 {
		t.Errorf("expected 2 items kept, got %d", got)
	}
}

func TestHandleTaskRemoval_StopsOnFailure(t *testing.T) {
	h, s, db := setup(t)
	seed(t, s, notifications("u1", "t1", 2)...)
	seed(t, s, notifications("u1", "t2", 2)...)

	db.Hook = func(op string, _ any) error {
		if op == "BatchWriteItem" {
			return &smithy.GenericAPIError{Code: "ThrottlingException", Fault: smithy.FaultServer}
		}
		return nil
	}

	ev := removeEvent(keys.TaskKey{UserID: "u1", TaskID: "t1"}, keys.TaskKey{UserID: "u1", TaskID: "t2"})
	err := h.HandleTaskRemoval(context.Background(), ev)
	if !errors.Is(err, store.ErrStore) {
		t.Fatalf("expected ErrStore, got %v", err)
	}
	if calls := db.Calls("BatchWriteItem"); calls != 1 {
		t.Errorf("expected processing to stop after the first record, got %d batch calls", calls)
	}

	db.Hook = nil
	if err := h.HandleTaskRemoval(context.Background(), ev); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if got := db.Len(s.TableName()); got != 0 {
		t.Errorf("expected empty table after retry, got %d items", got)
	}
}

func TestHandleTaskRemoval_EmptyEvent(t *testing.T) {
	h, _, _ := setup(t)
	if err := h.HandleTaskRemoval(context.Background(), events.DynamoDBEvent{}); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}
