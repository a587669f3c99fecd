package store

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/sync/errgroup"
)

// DeletePartition removes every item in partition.
//
// The partition is read page by page. The keys of a page are split into
// batches of at most MaxBatchSize, all batches of the page are deleted
// concurrently, and the next page is only fetched once every batch of the
// current page has completed. The operation is not atomic: a failure leaves
// the partition partially deleted, and calling DeletePartition again resumes
// the work because deleting a missing key is a no-op.
func (s *Store) DeletePartition(ctx context.Context, partition string) (CascadeStats, error) {
	return s.DeletePrefix(ctx, partition, "")
}

// DeletePrefix removes every item in partition whose sort key begins with sortPrefix.
func (s *Store) DeletePrefix(ctx context.Context, partition, sortPrefix string) (CascadeStats, error) {
	var stats CascadeStats

	input, err := s.queryInput(partition, sortPrefix, true)
	if err != nil {
		return stats, err
	}

	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return stats, s.wrap(ctx, "query", err)
		}
		stats.Pages++

		if len(page.Items) == 0 {
			continue
		}

		batches, err := s.deletePage(ctx, page.Items)
		stats.Batches += batches
		if err != nil {
			return stats, err
		}
		stats.Rounds++
		stats.Deleted += len(page.Items)

		s.logger.DebugContext(ctx, "deleted page",
			"partition", partition,
			"prefix", sortPrefix,
			"items", len(page.Items),
			"batches", batches,
		)
	}

	s.logger.InfoContext(ctx, "cascade delete completed",
		"partition", partition,
		"prefix", sortPrefix,
		"pages", stats.Pages,
		"deleted", stats.Deleted,
	)
	return stats, nil
}

// deletePage issues the batch deletes for one page and waits for all of them.
// It returns the number of batches issued.
func (s *Store) deletePage(ctx context.Context, items []Item) (int, error) {
	chunks := chunkKeys(items, MaxBatchSize)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.MaxConcurrentBatches)

	for _, chunk := range chunks {
		g.Go(func() error {
			return s.deleteBatch(ctx, chunk)
		})
	}

	return len(chunks), g.Wait()
}

// deleteBatch deletes up to MaxBatchSize keys in one call.
func (s *Store) deleteBatch(ctx context.Context, chunk []types.WriteRequest) error {
	out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
		RequestItems: map[string][]types.WriteRequest{
			s.config.TableName: chunk,
		},
	})
	if err != nil {
		return s.wrap(ctx, "batch write item", err)
	}

	if unprocessed := len(out.UnprocessedItems[s.config.TableName]); unprocessed > 0 {
		s.logger.WarnContext(ctx, "batch delete left unprocessed items",
			"table", s.config.TableName,
			"unprocessed", unprocessed,
		)
		return fmt.Errorf("%w: %d of %d keys", ErrIncompleteBatch, unprocessed, len(chunk))
	}
	return nil
}

// chunkKeys turns items into delete requests grouped by at most size.
func chunkKeys(items []Item, size int) [][]types.WriteRequest {
	var chunks [][]types.WriteRequest
	for i := 0; i < len(items); i += size {
		end := min(i+size, len(items))

		chunk := make([]types.WriteRequest, 0, end-i)
		for _, item := range items[i:end] {
			chunk = append(chunk, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{
					Key: Item{
						AttrPartition: item[AttrPartition],
						AttrSort:      item[AttrSort],
					},
				},
			})
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}

// BatchCount returns the number of batches needed to delete n keys.
func BatchCount(n int) int {
	return (n + MaxBatchSize - 1) / MaxBatchSize
}
