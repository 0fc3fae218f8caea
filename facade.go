package integrations

import (
	"fmt"

	integrationscommand "github.com/goliatone/go-integrations/command"
	"github.com/goliatone/go-integrations/core"
	integrationsquery "github.com/goliatone/go-integrations/query"
)

var _ CommandQueryService = (*core.Service)(nil)

// CommandQueryService is the full surface the facade dispatches against. The
// core Service satisfies it.
type CommandQueryService interface {
	integrationscommand.MutatingService
	integrationsquery.CredentialReader
	integrationsquery.AccountReader
	integrationsquery.HistoryReader
}

type Commands struct {
	StoreTokens       *integrationscommand.StoreTokensCommand
	ConnectAPIKey     *integrationscommand.ConnectAPIKeyCommand
	Refresh           *integrationscommand.RefreshCommand
	SetDefaultAccount *integrationscommand.SetDefaultAccountCommand
	Disconnect        *integrationscommand.DisconnectCommand
}

type Queries struct {
	ResolveCredentials *integrationsquery.ResolveCredentialsQuery
	GetAccessToken     *integrationsquery.GetAccessTokenQuery
	ListAccounts       *integrationsquery.ListAccountsQuery
	ListHistory        *integrationsquery.ListHistoryQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

func NewFacade(service CommandQueryService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("integrations: command/query service is required")
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		StoreTokens:       integrationscommand.NewStoreTokensCommand(service),
		ConnectAPIKey:     integrationscommand.NewConnectAPIKeyCommand(service),
		Refresh:           integrationscommand.NewRefreshCommand(service),
		SetDefaultAccount: integrationscommand.NewSetDefaultAccountCommand(service),
		Disconnect:        integrationscommand.NewDisconnectCommand(service),
	}
	facade.queries = Queries{
		ResolveCredentials: integrationsquery.NewResolveCredentialsQuery(service),
		GetAccessToken:     integrationsquery.NewGetAccessTokenQuery(service),
		ListAccounts:       integrationsquery.NewListAccountsQuery(service),
		ListHistory:        integrationsquery.NewListHistoryQuery(service),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}
