package kvdb

import (
	"context"
	"errors"
	"time"
)

// Client is the durable key-value backend under the store adapter.
// Implementations: impls/sqlite (local file), impls/memory, impls/redis.
type Client interface {
	Init() error
	Close() error
	GetHandle() any // generic handle. use with runtime type assertion
	GetConf() *Conf

	//---- Key Ops ----

	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, keys ...string) (int64, error)

	// ScanKeys iterates over keys starting with prefix in batches.
	// Returns keys []string, nextCursor any, err error
	// The cursor type and meaning are backend-specific and opaque to callers.
	// When nextCursor is nil, the scan is complete.
	ScanKeys(ctx context.Context, prefix string, cursor any, scanBatchSize int) ([]string, any, error)

	//---- Single-value Ops ----

	// Set stores value under key. expiration 0 = no expiration
	Set(ctx context.Context, key string, value string, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error) // val, found, err
}

var ErrNotSupported = errors.New("kvdb: operation not supported")

// ScanAll drains ScanKeys for prefix
func ScanAll(ctx context.Context, c Client, prefix string, batch int) ([]string, error) {
	var (
		all    []string
		cursor any
	)
	for {
		keys, next, err := c.ScanKeys(ctx, prefix, cursor, batch)
		if err != nil {
			return nil, err
		}
		all = append(all, keys...)
		if next == nil {
			return all, nil
		}
		cursor = next
	}
}
