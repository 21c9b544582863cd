package rates

import (
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
)

const (
	DefaultRateCacheExpiration = 24 * time.Hour
	rateCacheCleanupInterval   = time.Hour
)

type cachedProvider struct {
	next  Provider
	cache *cache.Cache
}

// NewCachedProvider memoizes successful lookups of next. Failures are not cached.
func NewCachedProvider(next Provider, expiration time.Duration) Provider {
	if expiration <= 0 {
		expiration = DefaultRateCacheExpiration
	}
	return &cachedProvider{
		next:  next,
		cache: cache.New(expiration, rateCacheCleanupInterval),
	}
}

func (c *cachedProvider) Rate(currency string, date time.Time) (decimal.Decimal, error) {
	currency = strings.ToUpper(currency)
	key := currency + "|" + dayKey(date)
	if v, found := c.cache.Get(key); found {
		return v.(decimal.Decimal), nil
	}
	r, err := c.next.Rate(currency, date)
	if err != nil {
		return decimal.Zero, err
	}
	c.cache.SetDefault(key, r)
	return r, nil
}
