package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidCredentialType            = errors.New("core: invalid credential type")
	ErrInvalidIntegrationStatus         = errors.New("core: invalid integration status")
	ErrInvalidIntegrationStatusChange   = errors.New("core: invalid integration status transition")
	ErrInvalidAuditEventType            = errors.New("core: invalid audit event type")
	ErrIntegrationNotFound              = errors.New("core: integration not found")
	ErrCredentialPayloadTypeUnsupported = errors.New("core: credential payload type unsupported")
)

type CredentialType string

const (
	CredentialTypeOAuth  CredentialType = "oauth"
	CredentialTypeAPIKey CredentialType = "api_key"
)

func (t CredentialType) Validate() error {
	switch t {
	case CredentialTypeOAuth, CredentialTypeAPIKey:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidCredentialType, string(t))
	}
}

type IntegrationStatus string

const (
	IntegrationStatusConnected    IntegrationStatus = "connected"
	IntegrationStatusExpired      IntegrationStatus = "expired"
	IntegrationStatusErrored      IntegrationStatus = "error"
	IntegrationStatusDisconnected IntegrationStatus = "disconnected"
)

func (s IntegrationStatus) Validate() error {
	switch s {
	case IntegrationStatusConnected, IntegrationStatusExpired,
		IntegrationStatusErrored, IntegrationStatusDisconnected:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidIntegrationStatus, string(s))
	}
}

// Integration is one connected account for one service, owned by a single
// user key. At most one row per (user key, service) carries IsDefault.
type Integration struct {
	ID                 string
	UserKey            string
	Service            string
	AccountID          string
	CredentialType     CredentialType
	EncryptedPayload   string
	AccountDisplayName string
	IsDefault          bool
	Status             IntegrationStatus
	ErrorMessage       string
	ConnectedAt        time.Time
	UpdatedAt          time.Time
}

func (i *Integration) TransitionTo(status IntegrationStatus, reason string, now time.Time) error {
	if i == nil {
		return nil
	}
	if i.Status == status {
		i.UpdatedAt = now
		if strings.TrimSpace(reason) != "" {
			i.ErrorMessage = strings.TrimSpace(reason)
		}
		return nil
	}
	if !integrationTransitionAllowed(i.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidIntegrationStatusChange, i.Status, status)
	}
	i.Status = status
	i.UpdatedAt = now
	if strings.TrimSpace(reason) != "" {
		i.ErrorMessage = strings.TrimSpace(reason)
	}
	if status == IntegrationStatusConnected {
		i.ErrorMessage = ""
	}
	return nil
}

func integrationTransitionAllowed(current, next IntegrationStatus) bool {
	allowed := map[IntegrationStatus]map[IntegrationStatus]struct{}{
		IntegrationStatusConnected: {
			IntegrationStatusExpired:      {},
			IntegrationStatusErrored:      {},
			IntegrationStatusDisconnected: {},
		},
		IntegrationStatusExpired: {
			IntegrationStatusConnected:    {},
			IntegrationStatusErrored:      {},
			IntegrationStatusDisconnected: {},
		},
		IntegrationStatusErrored: {
			IntegrationStatusConnected:    {},
			IntegrationStatusExpired:      {},
			IntegrationStatusDisconnected: {},
		},
		IntegrationStatusDisconnected: {
			IntegrationStatusConnected: {},
		},
	}
	_, ok := allowed[current][next]
	return ok
}

type AuditEventType string

const (
	AuditEventConnected       AuditEventType = "connected"
	AuditEventReconnected     AuditEventType = "reconnected"
	AuditEventDisconnected    AuditEventType = "disconnected"
	AuditEventTokenExpired    AuditEventType = "token_expired"
	AuditEventTokenRefreshed  AuditEventType = "token_refreshed"
	AuditEventConnectionError AuditEventType = "connection_error"
)

func (t AuditEventType) Validate() error {
	switch t {
	case AuditEventConnected, AuditEventReconnected, AuditEventDisconnected,
		AuditEventTokenExpired, AuditEventTokenRefreshed, AuditEventConnectionError:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidAuditEventType, string(t))
	}
}

// AuditEvent is an immutable lifecycle record. Appended once per transition,
// never updated or deleted.
type AuditEvent struct {
	ID           string
	UserKey      string
	Service      string
	AccountID    string
	EventType    AuditEventType
	EventSource  string
	OccurredAt   time.Time
	ErrorMessage string
	Metadata     map[string]any
}

// Credentials is the closed union of decrypted credential payloads. The two
// variants are APIKeyCredentials and BearerTokenCredentials; consumers switch
// on the concrete type and treat anything else as unsupported.
type Credentials interface {
	Type() CredentialType
	credentials()
}

type APIKeyCredentials struct {
	APIKey            string
	AdditionalHeaders map[string]string
}

func (APIKeyCredentials) Type() CredentialType { return CredentialTypeAPIKey }

func (APIKeyCredentials) credentials() {}

type BearerTokenCredentials struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
}

func (BearerTokenCredentials) Type() CredentialType { return CredentialTypeOAuth }

func (BearerTokenCredentials) credentials() {}

func cloneTimePointer(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := value.UTC()
	return &clone
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func copyStringMap(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
