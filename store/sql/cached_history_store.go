package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/goliatone/go-integrations/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const historyCacheKeyPrefix = "go-integrations::history::v1"

// CachedHistoryStore layers a read cache over a history store. The log is
// append-only, so cached pages only go stale on writes for the same pair and
// Append invalidates them.
type CachedHistoryStore struct {
	base  core.HistoryStore
	cache repositorycache.CacheService
}

func NewCachedHistoryStore(base core.HistoryStore, cacheService repositorycache.CacheService) (*CachedHistoryStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base history store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: history cache service is required")
	}
	return &CachedHistoryStore{base: base, cache: cacheService}, nil
}

// HistoryCacheKey returns the deterministic cache key for history reads:
// go-integrations::history::v1::<user_key>::<service>::<limit> with each
// segment URL-path escaped.
func HistoryCacheKey(userKey, service string, limit int) (string, error) {
	userKey = strings.TrimSpace(userKey)
	service = strings.TrimSpace(service)
	if userKey == "" || service == "" {
		return "", fmt.Errorf("sqlstore: user key and service are required")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	segments := []string{
		url.PathEscape(userKey),
		url.PathEscape(service),
		strconv.Itoa(limit),
	}
	return strings.Join(append([]string{historyCacheKeyPrefix}, segments...), "::"), nil
}

func (s *CachedHistoryStore) Append(ctx context.Context, event core.AuditEvent) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached history store is not configured")
	}
	if err := s.base.Append(ctx, event); err != nil {
		return err
	}
	// The default page is invalidated eagerly; caller-specific limits age
	// out on the cache service TTL.
	cacheKey, err := HistoryCacheKey(event.UserKey, event.Service, defaultHistoryLimit)
	if err != nil {
		return nil
	}
	if err := s.cache.Delete(ctx, cacheKey); err != nil {
		return fmt.Errorf("sqlstore: invalidate history cache: %w", err)
	}
	return nil
}

func (s *CachedHistoryStore) List(ctx context.Context, userKey, service string, limit int) ([]core.AuditEvent, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return nil, fmt.Errorf("sqlstore: cached history store is not configured")
	}
	cacheKey, err := HistoryCacheKey(userKey, service, limit)
	if err != nil {
		return nil, err
	}

	events, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) ([]core.AuditEvent, error) {
		return s.base.List(ctx, userKey, service, limit)
	})
	if err != nil {
		return nil, err
	}
	out := make([]core.AuditEvent, len(events))
	copy(out, events)
	return out, nil
}

var _ core.HistoryStore = (*CachedHistoryStore)(nil)
