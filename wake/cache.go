package wake

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// cache is a small TTL store. Entries without a TTL never expire.
type cache struct {
	cacheInstance *gocache.Cache
}

func newCache() *cache {
	return &cache{cacheInstance: gocache.New(gocache.NoExpiration, 10*time.Second)}
}

// put stores value for ttl. Passing gocache.NoExpiration keeps it until
// deleted.
func (c *cache) put(key string, value interface{}, ttl time.Duration) {
	c.cacheInstance.Set(key, value, ttl)
}

func (c *cache) get(key string) (interface{}, bool) {
	return c.cacheInstance.Get(key)
}

// add stores value only if key is absent or expired.
func (c *cache) add(key string, value interface{}, ttl time.Duration) bool {
	return c.cacheInstance.Add(key, value, ttl) == nil
}

func (c *cache) delete(key string) {
	c.cacheInstance.Delete(key)
}
