package sqlstore

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-integrations/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

type stubHistoryStore struct {
	mu          sync.Mutex
	events      []core.AuditEvent
	listCalls   int
	appendCalls int
	listErr     error
	appendErr   error
}

func (s *stubHistoryStore) Append(_ context.Context, event core.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendCalls++
	if s.appendErr != nil {
		return s.appendErr
	}
	s.events = append([]core.AuditEvent{event}, s.events...)
	return nil
}

func (s *stubHistoryStore) List(_ context.Context, _, _ string, limit int) ([]core.AuditEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	if limit <= 0 || limit > len(s.events) {
		limit = len(s.events)
	}
	out := make([]core.AuditEvent, limit)
	copy(out, s.events[:limit])
	return out, nil
}

func newTestHistoryCacheService(t *testing.T) repositorycache.CacheService {
	t.Helper()
	config := repositorycache.DefaultConfig()
	config.TTL = time.Minute
	service, err := repositorycache.NewCacheService(config)
	if err != nil {
		t.Fatalf("new cache service: %v", err)
	}
	return service
}

func TestCachedHistoryStoreListMissFetchThenHit(t *testing.T) {
	base := &stubHistoryStore{events: []core.AuditEvent{{
		UserKey:    "user_cache_1",
		Service:    "calendar",
		AccountID:  "default",
		EventType:  core.AuditEventConnected,
		Metadata:   map[string]any{},
		OccurredAt: time.Now().UTC(),
	}}}
	store, err := NewCachedHistoryStore(base, newTestHistoryCacheService(t))
	if err != nil {
		t.Fatalf("new cached history store: %v", err)
	}

	events, err := store.List(context.Background(), "user_cache_1", "calendar", 10)
	if err != nil {
		t.Fatalf("first list: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	if base.listCalls != 1 {
		t.Fatalf("expected first list to hit the base store once, got %d", base.listCalls)
	}

	if _, err := store.List(context.Background(), "user_cache_1", "calendar", 10); err != nil {
		t.Fatalf("second list: %v", err)
	}
	if base.listCalls != 1 {
		t.Fatalf("expected second list to be a cache hit, base list calls=%d", base.listCalls)
	}
}

func TestCachedHistoryStoreAppendInvalidatesDefaultPage(t *testing.T) {
	base := &stubHistoryStore{}
	store, err := NewCachedHistoryStore(base, newTestHistoryCacheService(t))
	if err != nil {
		t.Fatalf("new cached history store: %v", err)
	}

	if _, err := store.List(context.Background(), "user_cache_2", "calendar", 0); err != nil {
		t.Fatalf("prime cache: %v", err)
	}
	if base.listCalls != 1 {
		t.Fatalf("expected one base read after prime, got %d", base.listCalls)
	}

	if err := store.Append(context.Background(), core.AuditEvent{
		UserKey:   "user_cache_2",
		Service:   "calendar",
		AccountID: "default",
		EventType: core.AuditEventTokenRefreshed,
		Metadata:  map[string]any{},
	}); err != nil {
		t.Fatalf("append through cached store: %v", err)
	}
	if base.appendCalls != 1 {
		t.Fatalf("expected base append call count=1, got %d", base.appendCalls)
	}

	events, err := store.List(context.Background(), "user_cache_2", "calendar", 0)
	if err != nil {
		t.Fatalf("list after invalidation: %v", err)
	}
	if base.listCalls != 2 {
		t.Fatalf("expected invalidated page to force a second base read, got %d", base.listCalls)
	}
	if len(events) != 1 || events[0].EventType != core.AuditEventTokenRefreshed {
		t.Fatalf("expected the appended event back, got %+v", events)
	}
}

func TestCachedHistoryStoreDistinctLimitsUseDistinctEntries(t *testing.T) {
	base := &stubHistoryStore{events: []core.AuditEvent{
		{UserKey: "user_cache_3", Service: "calendar", EventType: core.AuditEventConnected, Metadata: map[string]any{}},
		{UserKey: "user_cache_3", Service: "calendar", EventType: core.AuditEventTokenRefreshed, Metadata: map[string]any{}},
	}}
	store, err := NewCachedHistoryStore(base, newTestHistoryCacheService(t))
	if err != nil {
		t.Fatalf("new cached history store: %v", err)
	}

	if _, err := store.List(context.Background(), "user_cache_3", "calendar", 1); err != nil {
		t.Fatalf("list limit=1: %v", err)
	}
	if _, err := store.List(context.Background(), "user_cache_3", "calendar", 2); err != nil {
		t.Fatalf("list limit=2: %v", err)
	}
	if base.listCalls != 2 {
		t.Fatalf("expected distinct limits to fetch separately, base list calls=%d", base.listCalls)
	}
}

func TestHistoryCacheKeyContract(t *testing.T) {
	key, err := HistoryCacheKey(" user/alpha ", "Google Calendar", 0)
	if err != nil {
		t.Fatalf("cache key: %v", err)
	}
	if !strings.HasPrefix(key, historyCacheKeyPrefix+"::") {
		t.Fatalf("expected versioned prefix, got %q", key)
	}
	if strings.Contains(key, " ") {
		t.Fatalf("expected escaped segments, got %q", key)
	}
	if !strings.HasSuffix(key, "::50") {
		t.Fatalf("expected default limit segment, got %q", key)
	}

	if _, err := HistoryCacheKey("", "calendar", 10); err == nil {
		t.Fatalf("expected error for empty user key")
	}
}

func TestCachedHistoryStoreErrorPropagation(t *testing.T) {
	baseErr := errors.New("history backend down")
	base := &stubHistoryStore{listErr: baseErr}
	store, err := NewCachedHistoryStore(base, newTestHistoryCacheService(t))
	if err != nil {
		t.Fatalf("new cached history store: %v", err)
	}

	if _, err := store.List(context.Background(), "user_cache_4", "calendar", 5); !errors.Is(err, baseErr) {
		t.Fatalf("expected base error propagation, got %v", err)
	}
}

func TestNewCachedHistoryStoreRequiresDependencies(t *testing.T) {
	if _, err := NewCachedHistoryStore(nil, newTestHistoryCacheService(t)); err == nil {
		t.Fatalf("expected error for nil base store")
	}
	if _, err := NewCachedHistoryStore(&stubHistoryStore{}, nil); err == nil {
		t.Fatalf("expected error for nil cache service")
	}
}
