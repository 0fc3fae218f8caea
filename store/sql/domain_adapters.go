package sqlstore

import (
	"strings"
	"time"

	"github.com/goliatone/go-integrations/core"
)

func newIntegrationRecord(in core.UpsertIntegrationInput, isDefault bool, now time.Time) *integrationRecord {
	return &integrationRecord{
		UserKey:            strings.TrimSpace(in.UserKey),
		Service:            strings.TrimSpace(in.Service),
		AccountID:          strings.TrimSpace(in.AccountID),
		CredentialType:     string(in.CredentialType),
		EncryptedPayload:   in.EncryptedPayload,
		AccountDisplayName: strings.TrimSpace(in.AccountDisplayName),
		IsDefault:          isDefault,
		Status:             string(core.IntegrationStatusConnected),
		ErrorMessage:       "",
		ConnectedAt:        now,
		UpdatedAt:          now,
	}
}

func (r *integrationRecord) toDomain() core.Integration {
	if r == nil {
		return core.Integration{}
	}
	return core.Integration{
		ID:                 r.ID,
		UserKey:            r.UserKey,
		Service:            r.Service,
		AccountID:          r.AccountID,
		CredentialType:     core.CredentialType(r.CredentialType),
		EncryptedPayload:   r.EncryptedPayload,
		AccountDisplayName: r.AccountDisplayName,
		IsDefault:          r.IsDefault,
		Status:             core.IntegrationStatus(r.Status),
		ErrorMessage:       r.ErrorMessage,
		ConnectedAt:        r.ConnectedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

func newAuditEventRecord(event core.AuditEvent, now time.Time) *auditEventRecord {
	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = now
	}
	return &auditEventRecord{
		UserKey:      strings.TrimSpace(event.UserKey),
		Service:      strings.TrimSpace(event.Service),
		AccountID:    strings.TrimSpace(event.AccountID),
		EventType:    string(event.EventType),
		EventSource:  strings.TrimSpace(event.EventSource),
		ErrorMessage: strings.TrimSpace(event.ErrorMessage),
		Metadata:     RedactMetadata(event.Metadata),
		OccurredAt:   occurredAt.UTC(),
	}
}

func (r *auditEventRecord) toDomain() core.AuditEvent {
	if r == nil {
		return core.AuditEvent{}
	}
	metadata := r.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return core.AuditEvent{
		ID:           r.ID,
		UserKey:      r.UserKey,
		Service:      r.Service,
		AccountID:    r.AccountID,
		EventType:    core.AuditEventType(r.EventType),
		EventSource:  r.EventSource,
		ErrorMessage: r.ErrorMessage,
		Metadata:     metadata,
		OccurredAt:   r.OccurredAt,
	}
}
