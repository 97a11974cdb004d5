package memory

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// AckCache remembers the result of every accepted mutating message by its
// messageId. A replayed messageId gets the cached ack back without the
// effect being applied twice.
type AckCache struct {
	cache *cache.Cache
}

func NewAckCache(ttl time.Duration) *AckCache {
	// Purge interval at twice the TTL keeps the sweep cheap; entries only
	// need to outlive the sender's retry window.
	return &AckCache{
		cache: cache.New(ttl, 2*ttl),
	}
}

func (c *AckCache) Save(messageId string, ack []byte) {
	c.cache.Set(messageId, ack, cache.DefaultExpiration)
}

func (c *AckCache) Get(messageId string) ([]byte, bool) {
	if x, found := c.cache.Get(messageId); found {
		return x.([]byte), true
	}
	return nil, false
}

func (c *AckCache) Delete(messageId string) {
	c.cache.Delete(messageId)
}
