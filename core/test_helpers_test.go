package core

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

type testSecretProvider struct {
	failDecrypt bool
}

func (p testSecretProvider) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("test secret provider: plaintext is required")
	}
	encoded := base64.StdEncoding.EncodeToString(plaintext)
	return []byte("enc:" + encoded), nil
}

func (p testSecretProvider) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	if p.failDecrypt {
		return nil, fmt.Errorf("test secret provider: ciphertext authentication failed")
	}
	value := strings.TrimSpace(string(ciphertext))
	if value == "" || !strings.HasPrefix(value, "enc:") {
		return nil, fmt.Errorf("test secret provider: invalid ciphertext")
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, "enc:"))
	if err != nil {
		return nil, fmt.Errorf("test secret provider: decode ciphertext: %w", err)
	}
	return decoded, nil
}

func (p testSecretProvider) Metadata() (string, int) {
	return "test-key", 1
}

type memoryIntegrationStore struct {
	mu   sync.Mutex
	next int
	rows map[string]Integration
}

func newMemoryIntegrationStore() *memoryIntegrationStore {
	return &memoryIntegrationStore{rows: map[string]Integration{}}
}

func (s *memoryIntegrationStore) pairRows(userKey, service string) []Integration {
	out := []Integration{}
	for _, row := range s.rows {
		if row.UserKey == userKey && row.Service == service {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsDefault != out[j].IsDefault {
			return out[i].IsDefault
		}
		return out[i].ConnectedAt.Before(out[j].ConnectedAt)
	})
	return out
}

func (s *memoryIntegrationStore) Find(_ context.Context, userKey, service, accountID string) (Integration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.pairRows(userKey, service)
	if accountID == "" {
		if len(rows) == 0 {
			return Integration{}, ErrIntegrationNotFound
		}
		return rows[0], nil
	}
	for _, row := range rows {
		if row.AccountID == accountID {
			return row, nil
		}
	}
	return Integration{}, ErrIntegrationNotFound
}

func (s *memoryIntegrationStore) List(_ context.Context, userKey, service string) ([]Integration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pairRows(userKey, service), nil
}

func (s *memoryIntegrationStore) Upsert(_ context.Context, in UpsertIntegrationInput) (Integration, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for id, row := range s.rows {
		if row.UserKey == in.UserKey && row.Service == in.Service && row.AccountID == in.AccountID {
			row.CredentialType = in.CredentialType
			row.EncryptedPayload = in.EncryptedPayload
			if strings.TrimSpace(in.AccountDisplayName) != "" {
				row.AccountDisplayName = in.AccountDisplayName
			}
			row.Status = IntegrationStatusConnected
			row.ErrorMessage = ""
			row.UpdatedAt = now
			s.rows[id] = row
			return row, false, nil
		}
	}
	s.next++
	isDefault := len(s.pairRows(in.UserKey, in.Service)) == 0
	row := Integration{
		ID:                 fmt.Sprintf("ig_%d", s.next),
		UserKey:            in.UserKey,
		Service:            in.Service,
		AccountID:          in.AccountID,
		CredentialType:     in.CredentialType,
		EncryptedPayload:   in.EncryptedPayload,
		AccountDisplayName: in.AccountDisplayName,
		IsDefault:          isDefault,
		Status:             IntegrationStatusConnected,
		ConnectedAt:        now,
		UpdatedAt:          now,
	}
	s.rows[row.ID] = row
	return row, true, nil
}

func (s *memoryIntegrationStore) SetStatus(_ context.Context, id string, status IntegrationStatus, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return ErrIntegrationNotFound
	}
	row.Status = status
	row.ErrorMessage = errorMessage
	row.UpdatedAt = time.Now().UTC()
	s.rows[id] = row
	return nil
}

func (s *memoryIntegrationStore) SetDefault(_ context.Context, userKey, service, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	target := ""
	for id, row := range s.rows {
		if row.UserKey == userKey && row.Service == service && row.AccountID == accountID {
			target = id
		}
	}
	if target == "" {
		return ErrIntegrationNotFound
	}
	for id, row := range s.rows {
		if row.UserKey == userKey && row.Service == service {
			row.IsDefault = id == target
			s.rows[id] = row
		}
	}
	return nil
}

func (s *memoryIntegrationStore) Delete(_ context.Context, userKey, service, accountID string) ([]Integration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := []Integration{}
	removedDefault := false
	for id, row := range s.rows {
		if row.UserKey != userKey || row.Service != service {
			continue
		}
		if accountID != "" && row.AccountID != accountID {
			continue
		}
		removed = append(removed, row)
		removedDefault = removedDefault || row.IsDefault
		delete(s.rows, id)
	}
	if len(removed) == 0 {
		return nil, ErrIntegrationNotFound
	}
	if removedDefault {
		remaining := s.pairRows(userKey, service)
		if len(remaining) > 0 {
			// Oldest connected account wins; any status when none is connected.
			oldest := Integration{}
			for _, row := range remaining {
				if row.Status != IntegrationStatusConnected {
					continue
				}
				if oldest.ID == "" || row.ConnectedAt.Before(oldest.ConnectedAt) {
					oldest = row
				}
			}
			if oldest.ID == "" {
				for _, row := range remaining {
					if oldest.ID == "" || row.ConnectedAt.Before(oldest.ConnectedAt) {
						oldest = row
					}
				}
			}
			oldest.IsDefault = true
			s.rows[oldest.ID] = oldest
		}
	}
	return removed, nil
}

type memoryHistoryStore struct {
	mu     sync.Mutex
	next   int
	events []AuditEvent
	fail   bool
}

func newMemoryHistoryStore() *memoryHistoryStore {
	return &memoryHistoryStore{}
}

func (s *memoryHistoryStore) Append(_ context.Context, event AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return fmt.Errorf("memory history store: append failed")
	}
	if err := event.EventType.Validate(); err != nil {
		return err
	}
	s.next++
	event.ID = fmt.Sprintf("ev_%d", s.next)
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	s.events = append(s.events, event)
	return nil
}

func (s *memoryHistoryStore) List(_ context.Context, userKey, service string, limit int) ([]AuditEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []AuditEvent{}
	for i := len(s.events) - 1; i >= 0; i-- {
		event := s.events[i]
		if event.UserKey != userKey || event.Service != service {
			continue
		}
		out = append(out, event)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *memoryHistoryStore) eventTypes(userKey, service, accountID string) []AuditEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []AuditEventType{}
	for _, event := range s.events {
		if event.UserKey != userKey || event.Service != service {
			continue
		}
		if accountID != "" && event.AccountID != accountID {
			continue
		}
		out = append(out, event.EventType)
	}
	return out
}

type fakeExchanger struct {
	mu           sync.Mutex
	refreshCalls int
	refreshErr   error
	tokens       TokenSet
	account      AccountInfo
	exchangeErr  error
}

func (e *fakeExchanger) ExchangeCode(context.Context, string, string, string, string) (TokenSet, AccountInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.exchangeErr != nil {
		return TokenSet{}, AccountInfo{}, e.exchangeErr
	}
	return e.tokens, e.account, nil
}

func (e *fakeExchanger) ExchangeRefreshToken(context.Context, string, string) (TokenSet, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.refreshCalls++
	if e.refreshErr != nil {
		return TokenSet{}, e.refreshErr
	}
	return e.tokens, nil
}

func (e *fakeExchanger) calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.refreshCalls
}

type staticConfigProvider struct {
	cfg Config
}

func (p staticConfigProvider) Load(context.Context, Config) (Config, error) {
	return p.cfg, nil
}

type passthroughOptionsResolver struct{}

func (passthroughOptionsResolver) Resolve(defaults, loaded, runtime Config) (Config, error) {
	resolved := defaults
	for _, layer := range []Config{loaded, runtime} {
		if strings.TrimSpace(layer.ServiceName) != "" {
			resolved.ServiceName = layer.ServiceName
		}
		if strings.TrimSpace(layer.EncryptionKey) != "" {
			resolved.EncryptionKey = layer.EncryptionKey
		}
		if layer.RefreshLeadWindow > 0 {
			resolved.RefreshLeadWindow = layer.RefreshLeadWindow
		}
		if strings.TrimSpace(layer.AuditSource) != "" {
			resolved.AuditSource = layer.AuditSource
		}
	}
	return resolved, resolved.Validate()
}

type testFixture struct {
	service   *Service
	store     *memoryIntegrationStore
	history   *memoryHistoryStore
	exchanger *fakeExchanger
	now       time.Time
}

func newTestFixture(t interface{ Fatalf(string, ...any) }, options ...Option) *testFixture {
	registry, err := NewServiceRegistry(
		ServiceDefinition{ID: "calendar", DisplayName: "Calendar", AuthMethod: CredentialTypeOAuth},
		ServiceDefinition{ID: "mailer", DisplayName: "Mailer", AuthMethod: CredentialTypeAPIKey},
	)
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}

	fixture := &testFixture{
		store:     newMemoryIntegrationStore(),
		history:   newMemoryHistoryStore(),
		exchanger: &fakeExchanger{},
		now:       time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	base := []Option{
		WithConfigProvider(staticConfigProvider{cfg: DefaultConfig()}),
		WithOptionsResolver(passthroughOptionsResolver{}),
		WithSecretProvider(testSecretProvider{}),
		WithServiceRegistry(registry),
		WithIntegrationStore(fixture.store),
		WithHistoryStore(fixture.history),
		WithExchanger(fixture.exchanger),
		WithClock(func() time.Time { return fixture.now }),
	}
	service, err := NewService(Config{}, append(base, options...)...)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	fixture.service = service
	return fixture
}

func (f *testFixture) futureTime(d time.Duration) *time.Time {
	at := f.now.Add(d)
	return &at
}

func (f *testFixture) storeOAuth(t interface{ Fatalf(string, ...any) }, userKey, accountID string, expiresAt *time.Time) Integration {
	integration, err := f.service.StoreTokens(context.Background(), StoreTokensRequest{
		UserKey: userKey,
		Service: "calendar",
		Tokens: TokenSet{
			AccessToken:  "access-" + accountID,
			RefreshToken: "refresh-" + accountID,
			ExpiresAt:    expiresAt,
		},
		Account: AccountInfo{AccountID: accountID, DisplayName: accountID + "@example.com"},
	})
	if err != nil {
		t.Fatalf("store tokens for %s: %v", accountID, err)
	}
	return integration
}
