package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-integrations/core"
)

// MutatingService is the slice of the integrations service the commands need.
type MutatingService interface {
	StoreTokens(ctx context.Context, req core.StoreTokensRequest) (core.Integration, error)
	ConnectAPIKey(ctx context.Context, req core.ConnectAPIKeyRequest) (core.Integration, error)
	Refresh(ctx context.Context, userKey, service, accountID string) (core.Integration, error)
	SetDefaultAccount(ctx context.Context, userKey, service, accountID string) error
	Disconnect(ctx context.Context, userKey, service, accountID string) ([]core.Integration, error)
}

type StoreTokensCommand struct {
	service MutatingService
}

func NewStoreTokensCommand(service MutatingService) *StoreTokensCommand {
	return &StoreTokensCommand{service: service}
}

func (c *StoreTokensCommand) Execute(ctx context.Context, msg StoreTokensMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: store tokens service is required")
	}
	out, err := c.service.StoreTokens(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ConnectAPIKeyCommand struct {
	service MutatingService
}

func NewConnectAPIKeyCommand(service MutatingService) *ConnectAPIKeyCommand {
	return &ConnectAPIKeyCommand{service: service}
}

func (c *ConnectAPIKeyCommand) Execute(ctx context.Context, msg ConnectAPIKeyMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: connect api key service is required")
	}
	out, err := c.service.ConnectAPIKey(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RefreshCommand struct {
	service MutatingService
}

func NewRefreshCommand(service MutatingService) *RefreshCommand {
	return &RefreshCommand{service: service}
}

func (c *RefreshCommand) Execute(ctx context.Context, msg RefreshMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: refresh service is required")
	}
	out, err := c.service.Refresh(ctx, msg.UserKey, msg.Service, msg.AccountID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type SetDefaultAccountCommand struct {
	service MutatingService
}

func NewSetDefaultAccountCommand(service MutatingService) *SetDefaultAccountCommand {
	return &SetDefaultAccountCommand{service: service}
}

func (c *SetDefaultAccountCommand) Execute(ctx context.Context, msg SetDefaultAccountMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: set default account service is required")
	}
	return c.service.SetDefaultAccount(ctx, msg.UserKey, msg.Service, msg.AccountID)
}

type DisconnectCommand struct {
	service MutatingService
}

func NewDisconnectCommand(service MutatingService) *DisconnectCommand {
	return &DisconnectCommand{service: service}
}

func (c *DisconnectCommand) Execute(ctx context.Context, msg DisconnectMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: disconnect service is required")
	}
	out, err := c.service.Disconnect(ctx, msg.UserKey, msg.Service, msg.AccountID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
