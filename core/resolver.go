package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Resolve returns ready-to-use credentials for one service account. OAuth
// integrations go through the freshness check and may refresh synchronously;
// API-key integrations decrypt and return. An empty accountID selects the
// default account.
func (s *Service) Resolve(ctx context.Context, userKey, service, accountID string) (ResolvedCredentials, error) {
	if s == nil {
		return ResolvedCredentials{}, fmt.Errorf("core: service is nil")
	}
	userKey = strings.TrimSpace(userKey)
	if userKey == "" {
		return ResolvedCredentials{}, s.MapError(fmt.Errorf("core: user key is required"))
	}
	definition, err := s.registry.Lookup(service)
	if err != nil {
		return ResolvedCredentials{}, s.MapError(err)
	}

	switch definition.AuthMethod {
	case CredentialTypeOAuth:
		integration, token, err := s.freshAccessToken(ctx, userKey, definition, accountID)
		if err != nil {
			return ResolvedCredentials{}, s.MapError(err)
		}
		return ResolvedCredentials{
			Service:        definition.ID,
			AccountID:      integration.AccountID,
			CredentialType: CredentialTypeOAuth,
			AccessToken:    token,
		}, nil
	case CredentialTypeAPIKey:
		integration, err := s.findIntegration(ctx, userKey, definition, accountID)
		if err != nil {
			return ResolvedCredentials{}, s.MapError(err)
		}
		if err := gateIntegrationStatus(definition, integration); err != nil {
			return ResolvedCredentials{}, s.MapError(err)
		}
		credentials, err := s.decryptIntegration(ctx, integration)
		if err != nil {
			return ResolvedCredentials{}, s.MapError(err)
		}
		apiKey, ok := credentials.(APIKeyCredentials)
		if !ok {
			return ResolvedCredentials{}, s.MapError(fmt.Errorf("%w: expected api key payload for %s", ErrCredentialPayloadTypeUnsupported, definition.ID))
		}
		return ResolvedCredentials{
			Service:           definition.ID,
			AccountID:         integration.AccountID,
			CredentialType:    CredentialTypeAPIKey,
			APIKey:            apiKey.APIKey,
			AdditionalHeaders: copyStringMap(apiKey.AdditionalHeaders),
		}, nil
	default:
		return ResolvedCredentials{}, s.MapError(&ConfigurationError{
			Field:  "service",
			Reason: fmt.Sprintf("unsupported auth method %q for %s", definition.AuthMethod, definition.ID),
		})
	}
}

// GetAccessToken returns a valid bearer token for an OAuth service,
// refreshing first when the stored token is inside the lead window.
func (s *Service) GetAccessToken(ctx context.Context, userKey, service, accountID string) (string, error) {
	if s == nil {
		return "", fmt.Errorf("core: service is nil")
	}
	userKey = strings.TrimSpace(userKey)
	if userKey == "" {
		return "", s.MapError(fmt.Errorf("core: user key is required"))
	}
	definition, err := s.registry.Lookup(service)
	if err != nil {
		return "", s.MapError(err)
	}
	if definition.AuthMethod != CredentialTypeOAuth {
		return "", s.MapError(&ConfigurationError{
			Field:  "service",
			Reason: fmt.Sprintf("%s authenticates with %s, not oauth tokens", definition.ID, definition.AuthMethod),
		})
	}
	_, token, err := s.freshAccessToken(ctx, userKey, definition, accountID)
	if err != nil {
		return "", s.MapError(err)
	}
	return token, nil
}

// Refresh forces a token refresh for the account regardless of how much
// lifetime the stored token has left.
func (s *Service) Refresh(ctx context.Context, userKey, service, accountID string) (Integration, error) {
	if s == nil {
		return Integration{}, fmt.Errorf("core: service is nil")
	}
	userKey = strings.TrimSpace(userKey)
	if userKey == "" {
		return Integration{}, s.MapError(fmt.Errorf("core: user key is required"))
	}
	definition, err := s.registry.Lookup(service)
	if err != nil {
		return Integration{}, s.MapError(err)
	}
	if definition.AuthMethod != CredentialTypeOAuth {
		return Integration{}, s.MapError(&ConfigurationError{
			Field:  "service",
			Reason: fmt.Sprintf("%s authenticates with %s, not oauth tokens", definition.ID, definition.AuthMethod),
		})
	}

	integration, err := s.findIntegration(ctx, userKey, definition, accountID)
	if err != nil {
		return Integration{}, s.MapError(err)
	}
	if integration.Status == IntegrationStatusDisconnected {
		return Integration{}, s.MapError(&DisconnectedError{Service: definition.Label()})
	}

	release, err := s.acquireRefreshLock(ctx, userKey, definition.ID, integration.AccountID)
	if err != nil {
		return Integration{}, s.MapError(err)
	}
	defer release()

	integration, err = s.findIntegration(ctx, userKey, definition, integration.AccountID)
	if err != nil {
		return Integration{}, s.MapError(err)
	}
	bearer, err := s.bearerCredentials(ctx, definition, integration)
	if err != nil {
		return Integration{}, s.MapError(err)
	}
	refreshed, err := s.refreshBearer(ctx, userKey, definition, integration, bearer)
	if err != nil {
		return Integration{}, s.MapError(err)
	}
	return refreshed, nil
}

// freshAccessToken is the shared read path: status gate, decrypt, and a
// synchronous refresh when the token sits inside the lead window.
func (s *Service) freshAccessToken(ctx context.Context, userKey string, definition ServiceDefinition, accountID string) (Integration, string, error) {
	integration, err := s.findIntegration(ctx, userKey, definition, accountID)
	if err != nil {
		return Integration{}, "", err
	}
	if err := gateIntegrationStatus(definition, integration); err != nil {
		return Integration{}, "", err
	}

	credentials, err := s.decryptIntegration(ctx, integration)
	if err != nil {
		return Integration{}, "", err
	}
	bearer, ok := credentials.(BearerTokenCredentials)
	if !ok {
		return Integration{}, "", fmt.Errorf("%w: expected bearer token payload for %s", ErrCredentialPayloadTypeUnsupported, definition.ID)
	}

	if !s.tokenNeedsRefresh(bearer) {
		return integration, bearer.AccessToken, nil
	}

	release, err := s.acquireRefreshLock(ctx, userKey, definition.ID, integration.AccountID)
	if err != nil {
		return Integration{}, "", err
	}
	defer release()

	// Another caller may have refreshed while this one waited on the lock.
	integration, err = s.findIntegration(ctx, userKey, definition, integration.AccountID)
	if err != nil {
		return Integration{}, "", err
	}
	if err := gateIntegrationStatus(definition, integration); err != nil {
		return Integration{}, "", err
	}
	bearer, err = s.bearerCredentials(ctx, definition, integration)
	if err != nil {
		return Integration{}, "", err
	}
	if !s.tokenNeedsRefresh(bearer) {
		return integration, bearer.AccessToken, nil
	}

	refreshed, err := s.refreshBearer(ctx, userKey, definition, integration, bearer)
	if err != nil {
		return Integration{}, "", err
	}
	fresh, err := s.bearerCredentials(ctx, definition, refreshed)
	if err != nil {
		return Integration{}, "", err
	}
	return refreshed, fresh.AccessToken, nil
}

// refreshBearer exchanges the stored refresh token and persists the result.
// Callers must hold the refresh lock for this account.
func (s *Service) refreshBearer(ctx context.Context, userKey string, definition ServiceDefinition, integration Integration, bearer BearerTokenCredentials) (Integration, error) {
	if strings.TrimSpace(bearer.RefreshToken) == "" {
		s.markExpired(ctx, userKey, definition, integration, AuditEventTokenExpired, "no refresh token on record")
		return Integration{}, &ExpiredCredentialError{Service: definition.Label()}
	}
	if s.exchanger == nil {
		return Integration{}, &ConfigurationError{Field: "exchanger", Reason: "a token exchanger is required to refresh oauth tokens"}
	}

	tokens, err := s.exchanger.ExchangeRefreshToken(ctx, definition.ID, bearer.RefreshToken)
	if err != nil {
		var oauthErr *OAuthError
		if errors.As(err, &oauthErr) {
			s.markExpired(ctx, userKey, definition, integration, AuditEventTokenExpired, oauthErr.Error())
			return Integration{}, &ExpiredCredentialError{Service: definition.Label(), Cause: err}
		}
		// Transport failures also expire the row: a token past its refresh
		// point must not be reused, and the caller decides whether to retry.
		s.markExpired(ctx, userKey, definition, integration, AuditEventConnectionError, err.Error())
		s.logWarn(ctx, "token refresh failed", map[string]any{
			"user_key":   userKey,
			"service":    definition.ID,
			"account_id": integration.AccountID,
			"error":      err.Error(),
		})
		return Integration{}, err
	}
	if strings.TrimSpace(tokens.AccessToken) == "" {
		s.markExpired(ctx, userKey, definition, integration, AuditEventTokenExpired, "provider returned an empty access token")
		return Integration{}, &ExpiredCredentialError{Service: definition.Label()}
	}

	refreshToken := strings.TrimSpace(tokens.RefreshToken)
	if refreshToken == "" {
		// Providers that do not rotate refresh tokens omit the field.
		refreshToken = bearer.RefreshToken
	}

	encrypted, err := s.encryptCredentials(ctx, BearerTokenCredentials{
		AccessToken:  strings.TrimSpace(tokens.AccessToken),
		RefreshToken: refreshToken,
		ExpiresAt:    cloneTimePointer(tokens.ExpiresAt),
	})
	if err != nil {
		return Integration{}, err
	}

	updated, _, err := s.integrationStore.Upsert(ctx, UpsertIntegrationInput{
		UserKey:            userKey,
		Service:            definition.ID,
		AccountID:          integration.AccountID,
		CredentialType:     CredentialTypeOAuth,
		EncryptedPayload:   encrypted,
		AccountDisplayName: integration.AccountDisplayName,
	})
	if err != nil {
		return Integration{}, err
	}

	s.appendAudit(ctx, AuditEvent{
		UserKey:   userKey,
		Service:   definition.ID,
		AccountID: integration.AccountID,
		EventType: AuditEventTokenRefreshed,
	})
	s.logInfo(ctx, "integration token refreshed", map[string]any{
		"user_key":   userKey,
		"service":    definition.ID,
		"account_id": integration.AccountID,
	})
	return updated, nil
}

func (s *Service) findIntegration(ctx context.Context, userKey string, definition ServiceDefinition, accountID string) (Integration, error) {
	integration, err := s.integrationStore.Find(ctx, userKey, definition.ID, strings.TrimSpace(accountID))
	if err != nil {
		if errors.Is(err, ErrIntegrationNotFound) {
			return Integration{}, &NotConnectedError{Service: definition.Label()}
		}
		return Integration{}, err
	}
	return integration, nil
}

// decryptIntegration opens the stored payload. A failed decrypt flips the
// row to the error state so the broken ciphertext is not retried on every
// read.
func (s *Service) decryptIntegration(ctx context.Context, integration Integration) (Credentials, error) {
	credentials, err := s.decryptCredentials(ctx, integration.EncryptedPayload)
	if err == nil {
		return credentials, nil
	}

	var decryptionErr *DecryptionError
	if errors.As(err, &decryptionErr) {
		if statusErr := s.integrationStore.SetStatus(ctx, integration.ID, IntegrationStatusErrored, "stored credentials could not be decrypted"); statusErr != nil {
			s.logError(ctx, "status update failed after decrypt failure", map[string]any{
				"integration_id": integration.ID,
				"error":          statusErr.Error(),
			})
		}
		s.appendAudit(ctx, AuditEvent{
			UserKey:      integration.UserKey,
			Service:      integration.Service,
			AccountID:    integration.AccountID,
			EventType:    AuditEventConnectionError,
			ErrorMessage: "stored credentials could not be decrypted",
		})
	}
	return nil, err
}

func (s *Service) bearerCredentials(ctx context.Context, definition ServiceDefinition, integration Integration) (BearerTokenCredentials, error) {
	credentials, err := s.decryptIntegration(ctx, integration)
	if err != nil {
		return BearerTokenCredentials{}, err
	}
	bearer, ok := credentials.(BearerTokenCredentials)
	if !ok {
		return BearerTokenCredentials{}, fmt.Errorf("%w: expected bearer token payload for %s", ErrCredentialPayloadTypeUnsupported, definition.ID)
	}
	return bearer, nil
}

func (s *Service) tokenNeedsRefresh(bearer BearerTokenCredentials) bool {
	if bearer.ExpiresAt == nil {
		return false
	}
	window := DefaultRefreshLeadWindow
	if s != nil && s.config.RefreshLeadWindow > 0 {
		window = s.config.RefreshLeadWindow
	}
	return !s.clock().Add(window).Before(bearer.ExpiresAt.UTC())
}

func (s *Service) acquireRefreshLock(ctx context.Context, userKey, service, accountID string) (func(), error) {
	if s == nil || s.refreshLocker == nil {
		return func() {}, nil
	}
	key := userKey + "|" + service + "|" + accountID
	return s.refreshLocker.Acquire(ctx, key)
}

// markExpired flips the row to expired and records the audit event: a
// token_expired event when the credential itself is beyond recovery, a
// connection_error event when the provider could not be reached.
func (s *Service) markExpired(ctx context.Context, userKey string, definition ServiceDefinition, integration Integration, event AuditEventType, reason string) {
	if err := s.integrationStore.SetStatus(ctx, integration.ID, IntegrationStatusExpired, reason); err != nil {
		s.logError(ctx, "status update failed while marking expired", map[string]any{
			"integration_id": integration.ID,
			"error":          err.Error(),
		})
	}
	s.appendAudit(ctx, AuditEvent{
		UserKey:      userKey,
		Service:      definition.ID,
		AccountID:    integration.AccountID,
		EventType:    event,
		ErrorMessage: reason,
	})
}

func gateIntegrationStatus(definition ServiceDefinition, integration Integration) error {
	switch integration.Status {
	case IntegrationStatusConnected:
		return nil
	case IntegrationStatusExpired:
		return &ExpiredCredentialError{Service: definition.Label()}
	case IntegrationStatusDisconnected:
		return &DisconnectedError{Service: definition.Label()}
	case IntegrationStatusErrored:
		return &ConnectionErroredError{Service: definition.Label(), Reason: integration.ErrorMessage}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidIntegrationStatus, string(integration.Status))
	}
}
