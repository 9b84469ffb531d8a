package flags

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
)

// Cache stores flag images by upper-case country code.
type Cache interface {
	// Name identifies the cache layer in logs and metrics.
	Name() string
	// Get returns the cached image; ok is false on a miss.
	Get(ctx context.Context, code string) (data []byte, ok bool, err error)
	Put(ctx context.Context, code string, data []byte) error
}

// DiskCache keeps one PNG per country in a directory, named after the upper
// case code (e.g. Flags/ES.png).
type DiskCache struct {
	dir string
}

// NewDiskCache creates a cache rooted at dir. The directory is created on
// the first Put.
func NewDiskCache(dir string) *DiskCache {
	return &DiskCache{dir: dir}
}

// Name implements Cache.
func (c *DiskCache) Name() string { return "disk" }

// Path returns the file a flag is stored in.
func (c *DiskCache) Path(code string) string {
	return filepath.Join(c.dir, code+".png")
}

// Get implements Cache.
func (c *DiskCache) Get(_ context.Context, code string) ([]byte, bool, error) {
	data, err := os.ReadFile(c.Path(code))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cached flag %s: %w", code, err)
	}
	return data, true, nil
}

// Put implements Cache. The image is written to a temporary file and renamed
// into place, so concurrent writers of one code leave a complete file; the
// last rename wins.
func (c *DiskCache) Put(_ context.Context, code string, data []byte) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("create flag cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(c.dir, "."+code+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp flag file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write flag %s: %w", code, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close flag %s: %w", code, err)
	}
	if err := os.Rename(tmp.Name(), c.Path(code)); err != nil {
		return fmt.Errorf("store flag %s: %w", code, err)
	}
	return nil
}

// DefaultRedisPrefix namespaces flag keys.
const DefaultRedisPrefix = "countrytimeline:flag:"

// RedisCache shares flags between service instances. Keys never expire.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache creates a redis-backed cache. An empty prefix selects
// DefaultRedisPrefix.
func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisCache{client: client, prefix: prefix}
}

// Name implements Cache.
func (c *RedisCache) Name() string { return "redis" }

func (c *RedisCache) key(code string) string {
	return c.prefix + code
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, code string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, c.key(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get flag %s: %w", code, err)
	}
	return data, true, nil
}

// Put implements Cache.
func (c *RedisCache) Put(ctx context.Context, code string, data []byte) error {
	if err := c.client.Set(ctx, c.key(code), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set flag %s: %w", code, err)
	}
	return nil
}
