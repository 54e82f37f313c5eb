package extractor

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/ytget/ytqueue/internal/model"
)

// DefaultResolutionTTL is how long a resolution stays cached
const DefaultResolutionTTL = 10 * time.Minute

// Cached memoizes successful resolutions of another Extractor. Resolutions
// with failed entries are not cached so a later submit retries them.
type Cached struct {
	next  Extractor
	cache *cache.Cache
}

// NewCached wraps next with a TTL cache
func NewCached(next Extractor, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = DefaultResolutionTTL
	}
	return &Cached{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
	}
}

// Resolve returns a cached resolution or asks the wrapped extractor
func (c *Cached) Resolve(ctx context.Context, url string, opts ResolveOptions) (*model.Resolution, error) {
	key := opts.CookieFile + "\x00" + url
	if v, ok := c.cache.Get(key); ok {
		return cloneResolution(v.(*model.Resolution)), nil
	}

	res, err := c.next.Resolve(ctx, url, opts)
	if err != nil {
		return nil, err
	}
	if !res.HasFailures() {
		c.cache.Set(key, cloneResolution(res), cache.DefaultExpiration)
	}
	return res, nil
}

// Download is passed through
func (c *Cached) Download(ctx context.Context, req Request, progress ProgressFunc, cancel CancelCheck) (Result, error) {
	return c.next.Download(ctx, req, progress, cancel)
}

// Len returns the number of cached resolutions
func (c *Cached) Len() int {
	return c.cache.ItemCount()
}

func cloneResolution(r *model.Resolution) *model.Resolution {
	out := *r
	out.Items = append([]model.ResolvedItem(nil), r.Items...)
	out.Failures = append([]model.EntryError(nil), r.Failures...)
	return &out
}
