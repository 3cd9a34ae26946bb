// results.go
// Result documents, in submission order.

package redis

import (
	"context"
	"encoding/json"
	"math"
)

// Append adds doc at the end of the result list.
func (c *Client) Append(ctx context.Context, doc json.RawMessage) error {
	return c.rdb.RPush(ctx, c.key, []byte(doc)).Err()
}

// List returns at most limit documents starting at offset. A zero limit
// returns nothing.
func (c *Client) List(ctx context.Context, offset, limit int64) ([]json.RawMessage, error) {
	if limit == 0 {
		return nil, nil
	}
	vals, err := c.rdb.LRange(ctx, c.key, offset, stopIndex(offset, limit)).Result()
	if err != nil {
		return nil, err
	}
	docs := make([]json.RawMessage, 0, len(vals))
	for _, v := range vals {
		docs = append(docs, json.RawMessage(v))
	}
	return docs, nil
}

// stopIndex is the inclusive LRANGE stop for a page of limit documents
// starting at offset; -1 means the end of the list.
func stopIndex(offset, limit int64) int64 {
	if limit > math.MaxInt64-offset {
		return -1
	}
	return offset + limit - 1
}

// Count returns the number of stored documents.
func (c *Client) Count(ctx context.Context) (int64, error) {
	return c.rdb.LLen(ctx, c.key).Result()
}
