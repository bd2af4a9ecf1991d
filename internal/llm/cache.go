package llm

import (
	"context"
	"encoding/hex"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/zeebo/blake3"
)

const (
	defaultCacheSize = 256
	defaultCacheTTL  = 10 * time.Minute
)

// CacheConfig configures the completion cache.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	Size    int           `mapstructure:"size" yaml:"size" validate:"gte=0"`
	TTL     time.Duration `mapstructure:"ttl" yaml:"ttl" validate:"gte=0"`
}

type cacheEntry struct {
	text     string
	storedAt time.Time
}

// cachedProvider memoizes successful completions keyed by model, system
// prompt and prompt.
type cachedProvider struct {
	underlying Provider
	cache      *lru.Cache[string, cacheEntry]
	ttl        time.Duration
	now        func() time.Time
}

// WithCache wraps p with an LRU completion cache when config enables it.
func WithCache(p Provider, config CacheConfig) Provider {
	if !config.Enabled {
		return p
	}
	if config.Size <= 0 {
		config.Size = defaultCacheSize
	}
	if config.TTL <= 0 {
		config.TTL = defaultCacheTTL
	}
	cache, err := lru.New[string, cacheEntry](config.Size)
	if err != nil {
		// lru.New only errors on non-positive size which we guard above.
		return p
	}
	return &cachedProvider{underlying: p, cache: cache, ttl: config.TTL, now: time.Now}
}

func (c *cachedProvider) Complete(ctx context.Context, req Request) (string, error) {
	key := cacheKey(req)
	if entry, ok := c.cache.Get(key); ok {
		if c.now().Sub(entry.storedAt) < c.ttl {
			return entry.text, nil
		}
		c.cache.Remove(key)
	}

	text, err := c.underlying.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	c.cache.Add(key, cacheEntry{text: text, storedAt: c.now()})
	return text, nil
}

func cacheKey(req Request) string {
	h := blake3.New()
	for _, part := range []string{req.Model, req.System, req.Prompt} {
		_, _ = h.Write([]byte(part))
		_, _ = h.Write([]byte{0})
	}
	if req.JSON {
		_, _ = h.Write([]byte("json"))
	}
	return hex.EncodeToString(h.Sum(nil))
}
