package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-integrations/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

const defaultHistoryLimit = 50

// HistoryStore persists the append-only integration audit log. Rows are only
// ever inserted; metadata is redacted on the way in so credential material
// never reaches the table.
type HistoryStore struct {
	repo repository.Repository[*auditEventRecord]
}

func NewHistoryStore(db *bun.DB) (*HistoryStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*auditEventRecord](db, auditEventHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid audit event repository wiring: %w", err)
		}
	}
	return &HistoryStore{repo: repo}, nil
}

func (s *HistoryStore) Append(ctx context.Context, event core.AuditEvent) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: history store is not configured")
	}
	if strings.TrimSpace(event.UserKey) == "" {
		return fmt.Errorf("sqlstore: user key is required")
	}
	if strings.TrimSpace(event.Service) == "" {
		return fmt.Errorf("sqlstore: service is required")
	}
	if err := event.EventType.Validate(); err != nil {
		return err
	}

	record := newAuditEventRecord(event, time.Now().UTC())
	_, err := s.repo.Create(ctx, record)
	return err
}

func (s *HistoryStore) List(ctx context.Context, userKey, service string, limit int) ([]core.AuditEvent, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: history store is not configured")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("user_key", "=", strings.TrimSpace(userKey)),
		repository.SelectBy("service", "=", strings.TrimSpace(service)),
		repository.OrderBy("occurred_at DESC"),
		repository.SelectPaginate(limit, 0),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.AuditEvent, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}
