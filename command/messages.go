package command

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-integrations/core"
)

const (
	TypeStoreTokens       = "integrations.command.tokens.store"
	TypeConnectAPIKey     = "integrations.command.apikey.connect"
	TypeRefresh           = "integrations.command.refresh"
	TypeSetDefaultAccount = "integrations.command.account.set_default"
	TypeDisconnect        = "integrations.command.disconnect"
)

type StoreTokensMessage struct {
	Request core.StoreTokensRequest
}

func (StoreTokensMessage) Type() string { return TypeStoreTokens }

func (m StoreTokensMessage) Validate() error {
	if strings.TrimSpace(m.Request.UserKey) == "" {
		return fmt.Errorf("command: user key is required")
	}
	if strings.TrimSpace(m.Request.Service) == "" {
		return fmt.Errorf("command: service is required")
	}
	if strings.TrimSpace(m.Request.Tokens.AccessToken) == "" {
		return fmt.Errorf("command: access token is required")
	}
	return nil
}

type ConnectAPIKeyMessage struct {
	Request core.ConnectAPIKeyRequest
}

func (ConnectAPIKeyMessage) Type() string { return TypeConnectAPIKey }

func (m ConnectAPIKeyMessage) Validate() error {
	if strings.TrimSpace(m.Request.UserKey) == "" {
		return fmt.Errorf("command: user key is required")
	}
	if strings.TrimSpace(m.Request.Service) == "" {
		return fmt.Errorf("command: service is required")
	}
	if strings.TrimSpace(m.Request.APIKey) == "" {
		return fmt.Errorf("command: api key is required")
	}
	return nil
}

type RefreshMessage struct {
	UserKey   string
	Service   string
	AccountID string
}

func (RefreshMessage) Type() string { return TypeRefresh }

func (m RefreshMessage) Validate() error {
	if strings.TrimSpace(m.UserKey) == "" {
		return fmt.Errorf("command: user key is required")
	}
	if strings.TrimSpace(m.Service) == "" {
		return fmt.Errorf("command: service is required")
	}
	return nil
}

type SetDefaultAccountMessage struct {
	UserKey   string
	Service   string
	AccountID string
}

func (SetDefaultAccountMessage) Type() string { return TypeSetDefaultAccount }

func (m SetDefaultAccountMessage) Validate() error {
	if strings.TrimSpace(m.UserKey) == "" {
		return fmt.Errorf("command: user key is required")
	}
	if strings.TrimSpace(m.Service) == "" {
		return fmt.Errorf("command: service is required")
	}
	if strings.TrimSpace(m.AccountID) == "" {
		return fmt.Errorf("command: account id is required")
	}
	return nil
}

type DisconnectMessage struct {
	UserKey   string
	Service   string
	AccountID string
}

func (DisconnectMessage) Type() string { return TypeDisconnect }

func (m DisconnectMessage) Validate() error {
	if strings.TrimSpace(m.UserKey) == "" {
		return fmt.Errorf("command: user key is required")
	}
	if strings.TrimSpace(m.Service) == "" {
		return fmt.Errorf("command: service is required")
	}
	return nil
}
