package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type integrationRecord struct {
	bun.BaseModel `bun:"table:integrations,alias:ig"`

	ID                 string    `bun:"id,pk"`
	UserKey            string    `bun:"user_key,notnull"`
	Service            string    `bun:"service,notnull"`
	AccountID          string    `bun:"account_id,notnull"`
	CredentialType     string    `bun:"credential_type,notnull"`
	EncryptedPayload   string    `bun:"encrypted_payload,notnull"`
	AccountDisplayName string    `bun:"account_display_name"`
	IsDefault          bool      `bun:"is_default,notnull"`
	Status             string    `bun:"status,notnull"`
	ErrorMessage       string    `bun:"error_message"`
	ConnectedAt        time.Time `bun:"connected_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt          time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type auditEventRecord struct {
	bun.BaseModel `bun:"table:integration_history,alias:ih"`

	ID           string         `bun:"id,pk"`
	UserKey      string         `bun:"user_key,notnull"`
	Service      string         `bun:"service,notnull"`
	AccountID    string         `bun:"account_id,notnull"`
	EventType    string         `bun:"event_type,notnull"`
	EventSource  string         `bun:"event_source"`
	ErrorMessage string         `bun:"error_message"`
	Metadata     map[string]any `bun:"metadata,type:jsonb,notnull"`
	OccurredAt   time.Time      `bun:"occurred_at,nullzero,notnull,default:current_timestamp"`
}
