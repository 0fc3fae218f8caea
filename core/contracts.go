package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

// SecretProvider seals and opens credential payloads. Implementations use
// authenticated encryption so tampered ciphertext fails at Decrypt rather
// than decoding to garbage.
type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
	Metadata() (keyID string, version int)
}

type UpsertIntegrationInput struct {
	UserKey            string
	Service            string
	AccountID          string
	CredentialType     CredentialType
	EncryptedPayload   string
	AccountDisplayName string
}

// IntegrationStore is the persistence contract for integration rows.
//
// Find with an empty accountID selects by is_default DESC, connected_at ASC.
// Upsert marks the first row for a (userKey, service) pair as default.
// SetDefault must unset-then-set inside one transaction.
// Delete reports the removed rows and promotes the oldest remaining connected
// account to default when the default was removed, falling back to the oldest
// of any status when none is connected.
type IntegrationStore interface {
	Find(ctx context.Context, userKey, service, accountID string) (Integration, error)
	List(ctx context.Context, userKey, service string) ([]Integration, error)
	Upsert(ctx context.Context, in UpsertIntegrationInput) (Integration, bool, error)
	SetStatus(ctx context.Context, id string, status IntegrationStatus, errorMessage string) error
	SetDefault(ctx context.Context, userKey, service, accountID string) error
	Delete(ctx context.Context, userKey, service, accountID string) ([]Integration, error)
}

// HistoryStore persists the append-only audit log. Append returns an error to
// the caller; the lifecycle layer logs and swallows it (audit writes never
// fail the triggering operation).
type HistoryStore interface {
	Append(ctx context.Context, event AuditEvent) error
	List(ctx context.Context, userKey, service string, limit int) ([]AuditEvent, error)
}

// TokenSet is a normalized token-endpoint response. ExpiresAt is absolute,
// computed from expires_in at exchange time; nil means the provider declared
// no expiry. Metadata retains unrecognized top-level response fields.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Scope        string
	ExpiresAt    *time.Time
	Metadata     map[string]any
}

type AccountInfo struct {
	AccountID   string
	DisplayName string
	Metadata    map[string]any
}

// Exchanger talks to a provider's token endpoint.
type Exchanger interface {
	ExchangeCode(ctx context.Context, provider, code, redirectURI, codeVerifier string) (TokenSet, AccountInfo, error)
	ExchangeRefreshToken(ctx context.Context, provider, refreshToken string) (TokenSet, error)
}

type StoreTokensRequest struct {
	UserKey string
	Service string
	Tokens  TokenSet
	Account AccountInfo
}

type ConnectAPIKeyRequest struct {
	UserKey           string
	Service           string
	APIKey            string
	AdditionalHeaders map[string]string
	AccountID         string
	DisplayName       string
}

// ResolvedCredentials is the adapter-facing result of Resolve. Exactly one of
// AccessToken or APIKey is set, matching CredentialType. Adapters must not
// log or persist the decrypted value beyond one request.
type ResolvedCredentials struct {
	Service           string
	AccountID         string
	CredentialType    CredentialType
	AccessToken       string
	APIKey            string
	AdditionalHeaders map[string]string
}

// RefreshLocker serializes the refresh path per credential. The default is an
// in-process keyed mutex; distributed deployments can supply their own.
type RefreshLocker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}
