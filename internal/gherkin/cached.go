package gherkin

import (
	"github.com/klauern/featsync/internal/cache"
	"github.com/klauern/featsync/internal/logging"
)

// CachedParser memoizes parse results by (sourcePath, contentHash). A cache
// hit skips re-parsing entirely; the cached tree is shared, so callers must
// treat it as read-only.
type CachedParser struct {
	cache *cache.Cache[*Feature]
}

// NewCachedParser creates a parser backed by the given cache. A nil cache
// disables memoization.
func NewCachedParser(c *cache.Cache[*Feature]) *CachedParser {
	return &CachedParser{cache: c}
}

// Parse returns the memoized tree for unchanged content, parsing otherwise.
func (cp *CachedParser) Parse(content, sourcePath string) (*Feature, error) {
	key := cache.ValidationKey(sourcePath, cache.Hash(content))
	if cp.cache != nil {
		if feature, ok := cp.cache.Get(key); ok {
			logging.Debug("parse cache hit", logging.Path(sourcePath))
			return feature, nil
		}
	}

	feature, err := Parse(content, sourcePath)
	if err != nil {
		return nil, err
	}
	if cp.cache != nil {
		cp.cache.Set(key, feature)
	}
	return feature, nil
}
