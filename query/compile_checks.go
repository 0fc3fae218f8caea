package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-integrations/core"
)

var (
	_ gocmd.Querier[ResolveCredentialsMessage, core.ResolvedCredentials] = (*ResolveCredentialsQuery)(nil)
	_ gocmd.Querier[GetAccessTokenMessage, string]                       = (*GetAccessTokenQuery)(nil)
	_ gocmd.Querier[ListAccountsMessage, []core.Integration]             = (*ListAccountsQuery)(nil)
	_ gocmd.Querier[ListHistoryMessage, []core.AuditEvent]               = (*ListHistoryQuery)(nil)
)
