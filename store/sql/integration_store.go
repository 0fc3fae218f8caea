package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-integrations/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// IntegrationStore persists integration rows in the integrations table. The
// single-default invariant per (user_key, service) pair is enforced inside
// transactions here, not left to callers.
type IntegrationStore struct {
	db   *bun.DB
	repo repository.Repository[*integrationRecord]
}

func NewIntegrationStore(db *bun.DB) (*IntegrationStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*integrationRecord](db, integrationHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid integration repository wiring: %w", err)
		}
	}
	return &IntegrationStore{db: db, repo: repo}, nil
}

func (s *IntegrationStore) Find(ctx context.Context, userKey, service, accountID string) (core.Integration, error) {
	if s == nil || s.repo == nil {
		return core.Integration{}, fmt.Errorf("sqlstore: integration store is not configured")
	}
	userKey = strings.TrimSpace(userKey)
	service = strings.TrimSpace(service)
	if userKey == "" || service == "" {
		return core.Integration{}, fmt.Errorf("sqlstore: user key and service are required")
	}

	criteria := []repository.SelectCriteria{
		repository.SelectBy("user_key", "=", userKey),
		repository.SelectBy("service", "=", service),
	}
	if accountID = strings.TrimSpace(accountID); accountID != "" {
		criteria = append(criteria, repository.SelectBy("account_id", "=", accountID))
	} else {
		criteria = append(criteria, repository.OrderBy("is_default DESC", "connected_at ASC"))
	}
	criteria = append(criteria, repository.SelectPaginate(1, 0))

	records, _, err := s.repo.List(ctx, criteria...)
	if err != nil {
		return core.Integration{}, err
	}
	if len(records) == 0 {
		return core.Integration{}, core.ErrIntegrationNotFound
	}
	return records[0].toDomain(), nil
}

func (s *IntegrationStore) List(ctx context.Context, userKey, service string) ([]core.Integration, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: integration store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("user_key", "=", strings.TrimSpace(userKey)),
		repository.SelectBy("service", "=", strings.TrimSpace(service)),
		repository.OrderBy("is_default DESC", "connected_at ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.Integration, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

// Upsert replaces the stored payload for an existing (user, service, account)
// triple or inserts a new row. The first row for a pair becomes the default.
func (s *IntegrationStore) Upsert(ctx context.Context, in core.UpsertIntegrationInput) (core.Integration, bool, error) {
	if s == nil || s.db == nil || s.repo == nil {
		return core.Integration{}, false, fmt.Errorf("sqlstore: integration store is not configured")
	}
	if strings.TrimSpace(in.UserKey) == "" || strings.TrimSpace(in.Service) == "" {
		return core.Integration{}, false, fmt.Errorf("sqlstore: user key and service are required")
	}
	if strings.TrimSpace(in.AccountID) == "" {
		return core.Integration{}, false, fmt.Errorf("sqlstore: account id is required")
	}
	if err := in.CredentialType.Validate(); err != nil {
		return core.Integration{}, false, err
	}
	if strings.TrimSpace(in.EncryptedPayload) == "" {
		return core.Integration{}, false, fmt.Errorf("sqlstore: encrypted payload is required")
	}

	now := time.Now().UTC()
	var out core.Integration
	created := false
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, err := findIntegrationTx(ctx, tx, in.UserKey, in.Service, in.AccountID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if existing != nil {
			existing.CredentialType = string(in.CredentialType)
			existing.EncryptedPayload = in.EncryptedPayload
			if trimmed := strings.TrimSpace(in.AccountDisplayName); trimmed != "" {
				existing.AccountDisplayName = trimmed
			}
			existing.Status = string(core.IntegrationStatusConnected)
			existing.ErrorMessage = ""
			existing.UpdatedAt = now
			if _, err := tx.NewUpdate().Model(existing).WherePK().Exec(ctx); err != nil {
				return err
			}
			out = existing.toDomain()
			return nil
		}

		pairCount, err := tx.NewSelect().
			Model((*integrationRecord)(nil)).
			Where("?TableAlias.user_key = ?", strings.TrimSpace(in.UserKey)).
			Where("?TableAlias.service = ?", strings.TrimSpace(in.Service)).
			Count(ctx)
		if err != nil {
			return err
		}

		record := newIntegrationRecord(in, pairCount == 0, now)
		inserted, err := s.repo.CreateTx(ctx, tx, record)
		if err != nil {
			return err
		}
		out = inserted.toDomain()
		created = true
		return nil
	})
	if err != nil {
		return core.Integration{}, false, err
	}
	return out, created, nil
}

func (s *IntegrationStore) SetStatus(ctx context.Context, id string, status core.IntegrationStatus, errorMessage string) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: integration store is not configured")
	}
	trimmedID := strings.TrimSpace(id)
	if trimmedID == "" {
		return fmt.Errorf("sqlstore: integration id is required")
	}
	if err := status.Validate(); err != nil {
		return err
	}

	current, err := s.repo.GetByID(ctx, trimmedID)
	if err != nil {
		return err
	}
	current.Status = string(status)
	current.ErrorMessage = strings.TrimSpace(errorMessage)
	current.UpdatedAt = time.Now().UTC()

	_, err = s.repo.Update(ctx, current, repository.UpdateByID(trimmedID))
	return err
}

// SetDefault moves the default flag to the named account in one transaction:
// every row for the pair is unset, then the target is set.
func (s *IntegrationStore) SetDefault(ctx context.Context, userKey, service, accountID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: integration store is not configured")
	}
	userKey = strings.TrimSpace(userKey)
	service = strings.TrimSpace(service)
	accountID = strings.TrimSpace(accountID)
	if userKey == "" || service == "" || accountID == "" {
		return fmt.Errorf("sqlstore: user key, service, and account id are required")
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		target, err := findIntegrationTx(ctx, tx, userKey, service, accountID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return core.ErrIntegrationNotFound
			}
			return err
		}

		now := time.Now().UTC()
		if _, err := tx.NewUpdate().
			Model((*integrationRecord)(nil)).
			Set("is_default = ?", false).
			Set("updated_at = ?", now).
			Where("user_key = ?", userKey).
			Where("service = ?", service).
			Where("is_default = ?", true).
			Exec(ctx); err != nil {
			return err
		}

		_, err = tx.NewUpdate().
			Model((*integrationRecord)(nil)).
			Set("is_default = ?", true).
			Set("updated_at = ?", now).
			Where("id = ?", target.ID).
			Exec(ctx)
		return err
	})
}

// Delete removes one account, or every account for the pair when accountID is
// empty, and promotes the oldest remaining connected account when the default
// went away (falling back to the oldest of any status when none is connected).
// The removed rows are returned so callers can audit each one.
func (s *IntegrationStore) Delete(ctx context.Context, userKey, service, accountID string) ([]core.Integration, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: integration store is not configured")
	}
	userKey = strings.TrimSpace(userKey)
	service = strings.TrimSpace(service)
	accountID = strings.TrimSpace(accountID)
	if userKey == "" || service == "" {
		return nil, fmt.Errorf("sqlstore: user key and service are required")
	}

	var removed []core.Integration
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var records []*integrationRecord
		query := tx.NewSelect().
			Model(&records).
			Where("?TableAlias.user_key = ?", userKey).
			Where("?TableAlias.service = ?", service)
		if accountID != "" {
			query = query.Where("?TableAlias.account_id = ?", accountID)
		}
		if err := query.Scan(ctx); err != nil {
			return err
		}
		if len(records) == 0 {
			return core.ErrIntegrationNotFound
		}

		removedDefault := false
		ids := make([]string, 0, len(records))
		for _, record := range records {
			removed = append(removed, record.toDomain())
			removedDefault = removedDefault || record.IsDefault
			ids = append(ids, record.ID)
		}

		if _, err := tx.NewDelete().
			Model((*integrationRecord)(nil)).
			Where("id IN (?)", bun.In(ids)).
			Exec(ctx); err != nil {
			return err
		}

		if !removedDefault {
			return nil
		}

		oldest := new(integrationRecord)
		err := tx.NewSelect().
			Model(oldest).
			Where("?TableAlias.user_key = ?", userKey).
			Where("?TableAlias.service = ?", service).
			Where("?TableAlias.status = ?", string(core.IntegrationStatusConnected)).
			OrderExpr("?TableAlias.connected_at ASC").
			Limit(1).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			// No connected account left; keep a default anyway so the pair
			// still resolves once the remaining account is reconnected.
			oldest = new(integrationRecord)
			err = tx.NewSelect().
				Model(oldest).
				Where("?TableAlias.user_key = ?", userKey).
				Where("?TableAlias.service = ?", service).
				OrderExpr("?TableAlias.connected_at ASC").
				Limit(1).
				Scan(ctx)
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		_, err = tx.NewUpdate().
			Model((*integrationRecord)(nil)).
			Set("is_default = ?", true).
			Set("updated_at = ?", time.Now().UTC()).
			Where("id = ?", oldest.ID).
			Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

func findIntegrationTx(ctx context.Context, tx bun.Tx, userKey, service, accountID string) (*integrationRecord, error) {
	record := new(integrationRecord)
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.user_key = ?", strings.TrimSpace(userKey)).
		Where("?TableAlias.service = ?", strings.TrimSpace(service)).
		Where("?TableAlias.account_id = ?", strings.TrimSpace(accountID)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}
