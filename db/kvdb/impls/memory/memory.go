// Package memory is a volatile kvdb backend for tests and dry runs.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/zeptools/clinsup/db/kvdb"
)

type entry struct {
	value     string
	expiresAt time.Time // zero = no expiration
}

type Client struct {
	Conf *kvdb.Conf

	mu   sync.RWMutex
	data map[string]entry
	now  func() time.Time
}

// Ensure memory.Client implements kvdb.Client interface
var _ kvdb.Client = (*Client)(nil)

// New returns an initialized client
func New() *Client {
	c := &Client{Conf: &kvdb.Conf{Type: "memory"}}
	_ = c.Init()
	return c
}

func (c *Client) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = make(map[string]entry)
	}
	if c.now == nil {
		c.now = time.Now
	}
	return nil
}

func (c *Client) Close() error {
	return nil
}

func (c *Client) GetHandle() any {
	return c.data
}

func (c *Client) GetConf() *kvdb.Conf {
	return c.Conf
}

func (c *Client) live(e entry) bool {
	return e.expiresAt.IsZero() || e.expiresAt.After(c.now())
}

func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	_, found, err := c.Get(ctx, key)
	return found, err
}

func (c *Client) Delete(_ context.Context, keys ...string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for _, k := range keys {
		if e, ok := c.data[k]; ok {
			if c.live(e) {
				n++
			}
			delete(c.data, k)
		}
	}
	return n, nil
}

func (c *Client) ScanKeys(_ context.Context, prefix string, cursor any, scanBatchSize int) ([]string, any, error) {
	if scanBatchSize <= 0 {
		scanBatchSize = 100
	}
	after := ""
	if cursor != nil {
		after = cursor.(string)
	}
	c.mu.RLock()
	matched := make([]string, 0)
	for k, e := range c.data {
		if strings.HasPrefix(k, prefix) && k > after && c.live(e) {
			matched = append(matched, k)
		}
	}
	c.mu.RUnlock()
	sort.Strings(matched)
	if len(matched) <= scanBatchSize {
		return matched, nil, nil
	}
	page := matched[:scanBatchSize]
	return page, page[len(page)-1], nil
}

func (c *Client) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.data[key]
	if !ok || !c.live(e) {
		return "", false, nil
	}
	return e.value, true, nil
}

func (c *Client) Set(_ context.Context, key string, value string, expiration time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := entry{value: value}
	if expiration > 0 {
		e.expiresAt = c.now().Add(expiration)
	}
	c.data[key] = e
	return nil
}
