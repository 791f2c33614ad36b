package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zeptools/clinsup/db/kvdb"
	"go.uber.org/zap"

	lowimpl "github.com/redis/go-redis/v9"
)

type Client struct {
	Conf   *kvdb.Conf
	Logger *zap.Logger

	// implementation details, not exported
	internal *lowimpl.Client
}

// Ensure redis.Client implements kvdb.Client interface
var _ kvdb.Client = (*Client)(nil)

func (c *Client) Init() error {
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	c.internal = lowimpl.NewClient(&lowimpl.Options{
		Addr:     fmt.Sprintf("%s:%d", c.Conf.Host, c.Conf.Port),
		Password: c.Conf.PW,
		DB:       c.Conf.DB,
	})
	c.Logger.Info("redis internal initialized", zap.String("addr", fmt.Sprintf("%s:%d", c.Conf.Host, c.Conf.Port)))
	return nil
}

func (c *Client) Close() error {
	if c.internal == nil {
		return nil
	}
	return c.internal.Close()
}

func (c *Client) GetHandle() any { // use with runtime type assertion
	return c.internal
}

func (c *Client) GetConf() *kvdb.Conf {
	return c.Conf
}

//--- Key Ops ----

func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.internal.Exists(ctx, key).Result()
	return n > 0, err
}

func (c *Client) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	return c.internal.Del(ctx, keys...).Result()
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func (c *Client) ScanKeys(ctx context.Context, prefix string, cursor any, scanBatchSize int) ([]string, any, error) {
	var cur uint64
	if cursor != nil {
		cur = cursor.(uint64)
	}
	keys, nextCursor, err := c.internal.Scan(ctx, cur, globEscaper.Replace(prefix)+"*", int64(scanBatchSize)).Result()
	if err != nil {
		return nil, nil, err
	}
	// Redis returns nextCursor == 0 when the scan is complete.
	if nextCursor == 0 {
		return keys, nil, nil
	}
	return keys, nextCursor, nil
}

//---- Single-value Ops ----

func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.internal.Get(ctx, key).Result()
	if errors.Is(err, lowimpl.Nil) {
		return "", false, nil // redis.Nil -> ok: false, err: nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (c *Client) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	return c.internal.Set(ctx, key, value, expiration).Err()
}
