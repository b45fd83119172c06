package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-dispatcher/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const descriptorCacheKeyPrefix = "go-dispatcher::descriptors::v1"

// CachedDescriptorSource fronts a descriptor source with a cache so per-call
// refreshes outside production do not hit the catalog every time.
type CachedDescriptorSource struct {
	base  core.DescriptorSource
	cache repositorycache.CacheService
	key   string
}

func NewCachedDescriptorSource(
	base core.DescriptorSource,
	cacheService repositorycache.CacheService,
	namespace string,
) (*CachedDescriptorSource, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base descriptor source is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: descriptor cache service is required")
	}
	return &CachedDescriptorSource{
		base:  base,
		cache: cacheService,
		key:   DescriptorCacheKey(namespace),
	}, nil
}

// DescriptorCacheKey returns go-dispatcher::descriptors::v1::<namespace>,
// defaulting the namespace to "default".
func DescriptorCacheKey(namespace string) string {
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		namespace = "default"
	}
	return descriptorCacheKeyPrefix + "::" + namespace
}

func (s *CachedDescriptorSource) Discover(ctx context.Context) ([]core.ServiceDescriptor, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return nil, fmt.Errorf("sqlstore: cached descriptor source is not configured")
	}
	descriptors, err := repositorycache.GetOrFetch(ctx, s.cache, s.key, func(ctx context.Context) ([]core.ServiceDescriptor, error) {
		return s.base.Discover(ctx)
	})
	if err != nil {
		return nil, err
	}
	out := make([]core.ServiceDescriptor, 0, len(descriptors))
	for _, desc := range descriptors {
		out = append(out, desc.Clone())
	}
	return out, nil
}

// Invalidate drops the cached catalog; the next Discover reads the base source.
func (s *CachedDescriptorSource) Invalidate(ctx context.Context) error {
	if s == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached descriptor source is not configured")
	}
	return s.cache.Delete(ctx, s.key)
}
