// Package sqlite is the default local kvdb backend: a single-file store
// standing in for the browser's local storage.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zeptools/clinsup/db/kvdb"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	expires_at INTEGER NOT NULL DEFAULT 0
);`

type Client struct {
	Conf   *kvdb.Conf
	Logger *zap.Logger

	internal *sql.DB
	now      func() time.Time
}

// Ensure sqlite.Client implements kvdb.Client interface
var _ kvdb.Client = (*Client)(nil)

func (c *Client) Init() error {
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.now == nil {
		c.now = time.Now
	}
	path := c.Conf.Path
	if path == "" {
		path = "clinsup.db"
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	// one connection: ":memory:" databases are per-connection and writes stay ordered
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping database: %w", err)
	}
	if _, err = db.Exec(schema); err != nil {
		_ = db.Close()
		return fmt.Errorf("init schema: %w", err)
	}
	c.internal = db
	c.Logger.Info("sqlite kv store ready", zap.String("path", path))
	return nil
}

func (c *Client) Close() error {
	if c.internal == nil {
		return nil
	}
	return c.internal.Close()
}

func (c *Client) GetHandle() any {
	return c.internal
}

func (c *Client) GetConf() *kvdb.Conf {
	return c.Conf
}

//---- Key Ops ----

func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	_, found, err := c.Get(ctx, key)
	return found, err
}

func (c *Client) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	res, err := c.internal.ExecContext(ctx, "DELETE FROM kv WHERE key IN ("+placeholders+")", args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ScanKeys pages through keys in key order. The cursor is the last key returned.
// substr and length both count characters, so non-ASCII prefixes match.
func (c *Client) ScanKeys(ctx context.Context, prefix string, cursor any, scanBatchSize int) ([]string, any, error) {
	if scanBatchSize <= 0 {
		scanBatchSize = 100
	}
	after := ""
	if cursor != nil {
		after = cursor.(string)
	}
	rows, err := c.internal.QueryContext(ctx, `
		SELECT key FROM kv
		WHERE substr(key, 1, length(?)) = ? AND key > ? AND (expires_at = 0 OR expires_at > ?)
		ORDER BY key
		LIMIT ?`,
		prefix, prefix, after, c.now().UnixMilli(), scanBatchSize,
	)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = rows.Close() }()

	keys := make([]string, 0, scanBatchSize)
	for rows.Next() {
		var k string
		if err = rows.Scan(&k); err != nil {
			return nil, nil, err
		}
		keys = append(keys, k)
	}
	if err = rows.Err(); err != nil {
		return nil, nil, err
	}
	if len(keys) < scanBatchSize {
		return keys, nil, nil
	}
	return keys, keys[len(keys)-1], nil
}

//---- Single-value Ops ----

func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	var (
		val       string
		expiresAt int64
	)
	err := c.internal.QueryRowContext(ctx, "SELECT value, expires_at FROM kv WHERE key = ?", key).Scan(&val, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if expiresAt != 0 && expiresAt <= c.now().UnixMilli() {
		return "", false, nil
	}
	return val, true, nil
}

func (c *Client) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	var expiresAt int64
	if expiration > 0 {
		expiresAt = c.now().Add(expiration).UnixMilli()
	}
	_, err := c.internal.ExecContext(ctx, `
		INSERT INTO kv (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, expiresAt,
	)
	return err
}
