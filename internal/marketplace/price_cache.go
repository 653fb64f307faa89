package marketplace

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// PriceCache keeps recent competing-price pages in Redis so bursts of
// announcements for the same section share one provider round trip.  A nil
// *PriceCache is valid and caches nothing.
type PriceCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

// NewPriceCache returns nil when rdb is nil or ttl is not positive.
func NewPriceCache(rdb *redis.Client, ttl time.Duration) *PriceCache {
	if rdb == nil || ttl <= 0 {
		return nil
	}
	return &PriceCache{rdb: rdb, ttl: ttl, prefix: "prices"}
}

func (c *PriceCache) key(catalogID, section string) string {
	return c.prefix + ":" + catalogID + ":" + section
}

// Get returns cached entries.  Redis errors count as a miss.
func (c *PriceCache) Get(ctx context.Context, catalogID, section string) ([]Entry, bool) {
	if c == nil {
		return nil, false
	}
	bs, err := c.rdb.Get(ctx, c.key(catalogID, section)).Bytes()
	if err != nil {
		return nil, false
	}
	var entries []Entry
	if err := json.Unmarshal(bs, &entries); err != nil {
		return nil, false
	}
	return entries, true
}

// Set stores entries for the configured ttl.  Failures are ignored.
func (c *PriceCache) Set(ctx context.Context, catalogID, section string, entries []Entry) {
	if c == nil {
		return
	}
	bs, err := json.Marshal(entries)
	if err != nil {
		return
	}
	_ = c.rdb.SetEx(ctx, c.key(catalogID, section), bs, c.ttl).Err()
}
