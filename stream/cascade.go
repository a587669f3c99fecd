// Package stream provides the DynamoDB Streams handler that removes the
// notifications of deleted tasks.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/todo/internal/keys"
	"github.com/jacentio/todo/store"
)

const eventRemove = "REMOVE"

// Handler processes table stream events.
type Handler struct {
	store  *store.Store
	logger *slog.Logger
}

// NewHandler creates a new stream handler.
func NewHandler(s *store.Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:  s,
		logger: logger,
	}
}

// HandleTaskRemoval deletes the notifications of every task removed in event.
// Records are processed in order and the first failure is returned so the
// batch is retried. Retries are safe: deleting notifications that are already
// gone is a no-op.
func (h *Handler) HandleTaskRemoval(ctx context.Context, event events.DynamoDBEvent) error {
	for i := range event.Records {
		record := &event.Records[i]
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.ErrorContext(ctx, "failed to process record",
				"eventID", record.EventID,
				"error", err,
			)
			return err
		}
	}
	return nil
}

func (h *Handler) processRecord(ctx context.Context, record *events.DynamoDBEventRecord) error {
	if record.EventName != eventRemove {
		return nil
	}

	k, err := recordKey(record)
	if err != nil {
		// Items outside the key layout are not ours to clean up.
		h.logger.WarnContext(ctx, "skipping record with unknown key",
			"eventID", record.EventID,
			"error", err,
		)
		return nil
	}
	task, ok := k.(keys.TaskKey)
	if !ok {
		return nil
	}

	stats, err := h.store.DeletePrefix(ctx, task.Partition(), keys.NotificationPrefix(task.TaskID))
	if err != nil {
		return fmt.Errorf("delete notifications of task %s: %w", task.TaskID, err)
	}

	h.logger.InfoContext(ctx, "task notifications removed",
		"userId", task.UserID,
		"taskId", task.TaskID,
		"deleted", stats.Deleted,
	)
	return nil
}

// recordKey decodes the primary key of a stream record, preferring the Keys
// image and falling back to the old image.
func recordKey(record *events.DynamoDBEventRecord) (keys.Key, error) {
	image := record.Change.Keys
	if getStringAttr(image, store.AttrPartition) == "" {
		image = record.Change.OldImage
	}

	partition := getStringAttr(image, store.AttrPartition)
	sort := getStringAttr(image, store.AttrSort)
	if partition == "" || sort == "" {
		return nil, errors.New("record has no primary key")
	}
	return keys.Decode(partition, sort)
}

// getStringAttr extracts a string attribute from a stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}
