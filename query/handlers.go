package query

import (
	"context"

	"github.com/goliatone/go-integrations/core"
)

// CredentialReader is the read-side slice of the integrations service.
type CredentialReader interface {
	Resolve(ctx context.Context, userKey, service, accountID string) (core.ResolvedCredentials, error)
	GetAccessToken(ctx context.Context, userKey, service, accountID string) (string, error)
}

type AccountReader interface {
	ListAccounts(ctx context.Context, userKey, service string) ([]core.Integration, error)
}

type HistoryReader interface {
	ListHistory(ctx context.Context, userKey, service string, limit int) ([]core.AuditEvent, error)
}

type ResolveCredentialsQuery struct {
	reader CredentialReader
}

func NewResolveCredentialsQuery(reader CredentialReader) *ResolveCredentialsQuery {
	return &ResolveCredentialsQuery{reader: reader}
}

func (q *ResolveCredentialsQuery) Query(ctx context.Context, msg ResolveCredentialsMessage) (core.ResolvedCredentials, error) {
	if q == nil || q.reader == nil {
		return core.ResolvedCredentials{}, queryDependencyError("query: credential reader is required")
	}
	return q.reader.Resolve(ctx, msg.UserKey, msg.Service, msg.AccountID)
}

type GetAccessTokenQuery struct {
	reader CredentialReader
}

func NewGetAccessTokenQuery(reader CredentialReader) *GetAccessTokenQuery {
	return &GetAccessTokenQuery{reader: reader}
}

func (q *GetAccessTokenQuery) Query(ctx context.Context, msg GetAccessTokenMessage) (string, error) {
	if q == nil || q.reader == nil {
		return "", queryDependencyError("query: credential reader is required")
	}
	return q.reader.GetAccessToken(ctx, msg.UserKey, msg.Service, msg.AccountID)
}

type ListAccountsQuery struct {
	reader AccountReader
}

func NewListAccountsQuery(reader AccountReader) *ListAccountsQuery {
	return &ListAccountsQuery{reader: reader}
}

func (q *ListAccountsQuery) Query(ctx context.Context, msg ListAccountsMessage) ([]core.Integration, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: account reader is required")
	}
	return q.reader.ListAccounts(ctx, msg.UserKey, msg.Service)
}

type ListHistoryQuery struct {
	reader HistoryReader
}

func NewListHistoryQuery(reader HistoryReader) *ListHistoryQuery {
	return &ListHistoryQuery{reader: reader}
}

func (q *ListHistoryQuery) Query(ctx context.Context, msg ListHistoryMessage) ([]core.AuditEvent, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: history reader is required")
	}
	return q.reader.ListHistory(ctx, msg.UserKey, msg.Service, msg.Limit)
}
