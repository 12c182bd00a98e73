package inclusion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/sergeknystautas/landed/internal/hosting"
)

// CachingProber memoizes successful probe outcomes for a TTL. Failures are
// never cached, so a transient error cannot pin a target to "not included".
// Identical concurrent probes are collapsed into one outbound call.
//
// A shared probe runs detached from any one caller's cancellation, bounded by
// its own timeout; each caller stops waiting when its own context ends.
//
// Cached commit slices are shared between callers and must not be modified.
type CachingProber struct {
	next    Prober
	cache   *expirable.LRU[string, []hosting.Commit]
	group   singleflight.Group
	timeout time.Duration
}

// NewCachingProber wraps next with an LRU of size entries expiring after ttl.
// Shared probes are bounded by timeout (DefaultRequestTimeout when zero).
func NewCachingProber(next Prober, size int, ttl, timeout time.Duration) *CachingProber {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &CachingProber{
		next:    next,
		cache:   expirable.NewLRU[string, []hosting.Commit](size, nil, ttl),
		timeout: timeout,
	}
}

// Compare implements Prober.
func (c *CachingProber) Compare(ctx context.Context, creds hosting.Credentials, from, to string) ([]hosting.Commit, error) {
	key := cacheKey(creds, "compare", from, to)
	return c.load(ctx, key, func(ctx context.Context) ([]hosting.Commit, error) {
		return c.next.Compare(ctx, creds, from, to)
	})
}

// SearchCommits implements Prober.
func (c *CachingProber) SearchCommits(ctx context.Context, creds hosting.Credentials, ref, term string, perPage int) ([]hosting.Commit, error) {
	key := cacheKey(creds, "search", ref, term, strconv.Itoa(perPage))
	return c.load(ctx, key, func(ctx context.Context) ([]hosting.Commit, error) {
		return c.next.SearchCommits(ctx, creds, ref, term, perPage)
	})
}

// Len returns the number of cached entries.
func (c *CachingProber) Len() int {
	return c.cache.Len()
}

// Purge drops every cached entry.
func (c *CachingProber) Purge() {
	c.cache.Purge()
}

func (c *CachingProber) load(ctx context.Context, key string, fetch func(context.Context) ([]hosting.Commit, error)) ([]hosting.Commit, error) {
	if commits, ok := c.cache.Get(key); ok {
		return commits, nil
	}
	ch := c.group.DoChan(key, func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		commits, err := fetch(shared)
		if err != nil {
			return nil, err
		}
		c.cache.Add(key, commits)
		return commits, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]hosting.Commit), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// cacheKey scopes entries to host, project and a token fingerprint so that
// callers with different access never share results.
func cacheKey(creds hosting.Credentials, parts ...string) string {
	sum := sha256.Sum256([]byte(creds.Token))
	fields := append([]string{creds.BaseURL(), creds.ProjectID, hex.EncodeToString(sum[:8])}, parts...)
	return strings.Join(fields, "\x00")
}
