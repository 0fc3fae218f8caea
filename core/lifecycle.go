package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// DefaultAccountID names the account slot used when a service has no
// meaningful account identity, such as most API-key services.
const DefaultAccountID = "default"

// StoreTokens persists an exchanged OAuth token set as a connected
// integration. Reconnecting an existing (user, service, account) triple
// replaces the stored credentials in place and keeps the default flag.
func (s *Service) StoreTokens(ctx context.Context, req StoreTokensRequest) (Integration, error) {
	if s == nil {
		return Integration{}, fmt.Errorf("core: service is nil")
	}
	userKey := strings.TrimSpace(req.UserKey)
	if userKey == "" {
		return Integration{}, s.MapError(fmt.Errorf("core: user key is required"))
	}

	definition, err := s.registry.Lookup(req.Service)
	if err != nil {
		return Integration{}, s.MapError(err)
	}
	if definition.AuthMethod != CredentialTypeOAuth {
		return Integration{}, s.MapError(&ConfigurationError{
			Field:  "service",
			Reason: fmt.Sprintf("%s authenticates with %s, not oauth tokens", definition.ID, definition.AuthMethod),
		})
	}
	if strings.TrimSpace(req.Tokens.AccessToken) == "" {
		return Integration{}, s.MapError(fmt.Errorf("core: access token is required"))
	}

	accountID := strings.TrimSpace(req.Account.AccountID)
	if accountID == "" {
		accountID = DefaultAccountID
	}

	encrypted, err := s.encryptCredentials(ctx, BearerTokenCredentials{
		AccessToken:  strings.TrimSpace(req.Tokens.AccessToken),
		RefreshToken: strings.TrimSpace(req.Tokens.RefreshToken),
		ExpiresAt:    cloneTimePointer(req.Tokens.ExpiresAt),
	})
	if err != nil {
		return Integration{}, s.MapError(err)
	}

	integration, created, err := s.integrationStore.Upsert(ctx, UpsertIntegrationInput{
		UserKey:            userKey,
		Service:            definition.ID,
		AccountID:          accountID,
		CredentialType:     CredentialTypeOAuth,
		EncryptedPayload:   encrypted,
		AccountDisplayName: strings.TrimSpace(req.Account.DisplayName),
	})
	if err != nil {
		return Integration{}, s.MapError(err)
	}

	eventType := AuditEventConnected
	if !created {
		eventType = AuditEventReconnected
	}
	s.appendAudit(ctx, AuditEvent{
		UserKey:   userKey,
		Service:   definition.ID,
		AccountID: accountID,
		EventType: eventType,
	})
	s.logInfo(ctx, "integration tokens stored", map[string]any{
		"user_key":   userKey,
		"service":    definition.ID,
		"account_id": accountID,
		"created":    created,
	})
	return integration, nil
}

// ConnectAPIKey stores a static API key for a key-based service.
func (s *Service) ConnectAPIKey(ctx context.Context, req ConnectAPIKeyRequest) (Integration, error) {
	if s == nil {
		return Integration{}, fmt.Errorf("core: service is nil")
	}
	userKey := strings.TrimSpace(req.UserKey)
	if userKey == "" {
		return Integration{}, s.MapError(fmt.Errorf("core: user key is required"))
	}

	definition, err := s.registry.Lookup(req.Service)
	if err != nil {
		return Integration{}, s.MapError(err)
	}
	if definition.AuthMethod != CredentialTypeAPIKey {
		return Integration{}, s.MapError(&ConfigurationError{
			Field:  "service",
			Reason: fmt.Sprintf("%s authenticates with %s, not a static api key", definition.ID, definition.AuthMethod),
		})
	}
	if strings.TrimSpace(req.APIKey) == "" {
		return Integration{}, s.MapError(fmt.Errorf("core: api key is required"))
	}

	accountID := strings.TrimSpace(req.AccountID)
	if accountID == "" {
		accountID = DefaultAccountID
	}

	encrypted, err := s.encryptCredentials(ctx, APIKeyCredentials{
		APIKey:            strings.TrimSpace(req.APIKey),
		AdditionalHeaders: copyStringMap(req.AdditionalHeaders),
	})
	if err != nil {
		return Integration{}, s.MapError(err)
	}

	integration, created, err := s.integrationStore.Upsert(ctx, UpsertIntegrationInput{
		UserKey:            userKey,
		Service:            definition.ID,
		AccountID:          accountID,
		CredentialType:     CredentialTypeAPIKey,
		EncryptedPayload:   encrypted,
		AccountDisplayName: strings.TrimSpace(req.DisplayName),
	})
	if err != nil {
		return Integration{}, s.MapError(err)
	}

	eventType := AuditEventConnected
	if !created {
		eventType = AuditEventReconnected
	}
	s.appendAudit(ctx, AuditEvent{
		UserKey:   userKey,
		Service:   definition.ID,
		AccountID: accountID,
		EventType: eventType,
	})
	s.logInfo(ctx, "integration api key stored", map[string]any{
		"user_key":   userKey,
		"service":    definition.ID,
		"account_id": accountID,
		"created":    created,
	})
	return integration, nil
}

// Disconnect removes one account, or every account for the service when
// accountID is empty. Stored ciphertext goes with the row; the audit trail
// stays.
func (s *Service) Disconnect(ctx context.Context, userKey, service, accountID string) ([]Integration, error) {
	if s == nil {
		return nil, fmt.Errorf("core: service is nil")
	}
	userKey = strings.TrimSpace(userKey)
	if userKey == "" {
		return nil, s.MapError(fmt.Errorf("core: user key is required"))
	}
	definition, err := s.registry.Lookup(service)
	if err != nil {
		return nil, s.MapError(err)
	}

	removed, err := s.integrationStore.Delete(ctx, userKey, definition.ID, strings.TrimSpace(accountID))
	if err != nil {
		if errors.Is(err, ErrIntegrationNotFound) {
			return nil, s.MapError(&NotConnectedError{Service: definition.Label()})
		}
		return nil, s.MapError(err)
	}

	for _, integration := range removed {
		s.appendAudit(ctx, AuditEvent{
			UserKey:   userKey,
			Service:   definition.ID,
			AccountID: integration.AccountID,
			EventType: AuditEventDisconnected,
		})
	}
	s.logInfo(ctx, "integration disconnected", map[string]any{
		"user_key": userKey,
		"service":  definition.ID,
		"removed":  len(removed),
	})
	return removed, nil
}

// SetDefaultAccount moves the default flag to the named account. The swap is
// atomic in the store so the pair invariant holds under concurrent writers.
func (s *Service) SetDefaultAccount(ctx context.Context, userKey, service, accountID string) error {
	if s == nil {
		return fmt.Errorf("core: service is nil")
	}
	userKey = strings.TrimSpace(userKey)
	if userKey == "" {
		return s.MapError(fmt.Errorf("core: user key is required"))
	}
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return s.MapError(fmt.Errorf("core: account id is required"))
	}
	definition, err := s.registry.Lookup(service)
	if err != nil {
		return s.MapError(err)
	}

	if err := s.integrationStore.SetDefault(ctx, userKey, definition.ID, accountID); err != nil {
		if errors.Is(err, ErrIntegrationNotFound) {
			return s.MapError(&NotConnectedError{Service: definition.Label()})
		}
		return s.MapError(err)
	}
	s.logInfo(ctx, "integration default account changed", map[string]any{
		"user_key":   userKey,
		"service":    definition.ID,
		"account_id": accountID,
	})
	return nil
}

// ListAccounts returns every connected account for the service, default
// first.
func (s *Service) ListAccounts(ctx context.Context, userKey, service string) ([]Integration, error) {
	if s == nil {
		return nil, fmt.Errorf("core: service is nil")
	}
	userKey = strings.TrimSpace(userKey)
	if userKey == "" {
		return nil, s.MapError(fmt.Errorf("core: user key is required"))
	}
	definition, err := s.registry.Lookup(service)
	if err != nil {
		return nil, s.MapError(err)
	}
	accounts, err := s.integrationStore.List(ctx, userKey, definition.ID)
	if err != nil {
		return nil, s.MapError(err)
	}
	return accounts, nil
}

// ListHistory returns the newest audit events for the pair, most recent
// first.
func (s *Service) ListHistory(ctx context.Context, userKey, service string, limit int) ([]AuditEvent, error) {
	if s == nil {
		return nil, fmt.Errorf("core: service is nil")
	}
	userKey = strings.TrimSpace(userKey)
	if userKey == "" {
		return nil, s.MapError(fmt.Errorf("core: user key is required"))
	}
	definition, err := s.registry.Lookup(service)
	if err != nil {
		return nil, s.MapError(err)
	}
	events, err := s.historyStore.List(ctx, userKey, definition.ID, limit)
	if err != nil {
		return nil, s.MapError(err)
	}
	return events, nil
}
