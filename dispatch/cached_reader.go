package dispatch

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-channels/core"
)

const defaultChannelCacheKeyPrefix = "go-channels::default_channel::v1"

// CachedChannelReader fronts default-channel lookups with the repository
// cache. Outbound dispatch hits this on every reply, while channel records
// change only on connect and disconnect, so the entry is invalidated
// explicitly on mutation instead of expiring on the hot path.
type CachedChannelReader struct {
	base  core.ChannelDefaultsReader
	cache repositorycache.CacheService
}

var _ core.ChannelDefaultsReader = (*CachedChannelReader)(nil)

func NewCachedChannelReader(base core.ChannelDefaultsReader, cacheService repositorycache.CacheService) (*CachedChannelReader, error) {
	if base == nil {
		return nil, fmt.Errorf("dispatch: base channel reader is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("dispatch: cache service is required")
	}
	return &CachedChannelReader{base: base, cache: cacheService}, nil
}

// DefaultChannelCacheKey returns the deterministic cache key for one
// merchant's default channel of a provider:
// go-channels::default_channel::v1::<merchant_id>::<provider>
// with each segment URL-path escaped.
func DefaultChannelCacheKey(merchantID string, provider core.ChannelProvider) (string, error) {
	merchantID = strings.TrimSpace(merchantID)
	if merchantID == "" {
		return "", fmt.Errorf("dispatch: merchant id is required")
	}
	if !provider.Valid() {
		return "", fmt.Errorf("dispatch: invalid provider %q", provider)
	}
	return strings.Join([]string{
		defaultChannelCacheKeyPrefix,
		url.PathEscape(merchantID),
		url.PathEscape(string(provider)),
	}, "::"), nil
}

func (r *CachedChannelReader) FindDefault(ctx context.Context, merchantID string, provider core.ChannelProvider) (core.Channel, error) {
	if r == nil || r.base == nil || r.cache == nil {
		return core.Channel{}, fmt.Errorf("dispatch: cached channel reader is not configured")
	}
	cacheKey, err := DefaultChannelCacheKey(merchantID, provider)
	if err != nil {
		return core.Channel{}, err
	}
	return repositorycache.GetOrFetch(ctx, r.cache, cacheKey, func(ctx context.Context) (core.Channel, error) {
		return r.base.FindDefault(ctx, merchantID, provider)
	})
}

// Invalidate drops the cached default for one merchant/provider pair. Call
// it after any channel mutation that can change which channel is default or
// its credentials.
func (r *CachedChannelReader) Invalidate(ctx context.Context, merchantID string, provider core.ChannelProvider) error {
	if r == nil || r.cache == nil {
		return fmt.Errorf("dispatch: cached channel reader is not configured")
	}
	cacheKey, err := DefaultChannelCacheKey(merchantID, provider)
	if err != nil {
		return err
	}
	return r.cache.Delete(ctx, cacheKey)
}
