package query

import (
	"fmt"
	"strings"
)

const (
	TypeResolveCredentials = "integrations.query.credentials.resolve"
	TypeGetAccessToken     = "integrations.query.access_token.get"
	TypeListAccounts       = "integrations.query.accounts.list"
	TypeListHistory        = "integrations.query.history.list"
)

type ResolveCredentialsMessage struct {
	UserKey   string
	Service   string
	AccountID string
}

func (ResolveCredentialsMessage) Type() string { return TypeResolveCredentials }

func (m ResolveCredentialsMessage) Validate() error {
	if strings.TrimSpace(m.UserKey) == "" {
		return fmt.Errorf("query: user key is required")
	}
	if strings.TrimSpace(m.Service) == "" {
		return fmt.Errorf("query: service is required")
	}
	return nil
}

type GetAccessTokenMessage struct {
	UserKey   string
	Service   string
	AccountID string
}

func (GetAccessTokenMessage) Type() string { return TypeGetAccessToken }

func (m GetAccessTokenMessage) Validate() error {
	if strings.TrimSpace(m.UserKey) == "" {
		return fmt.Errorf("query: user key is required")
	}
	if strings.TrimSpace(m.Service) == "" {
		return fmt.Errorf("query: service is required")
	}
	return nil
}

type ListAccountsMessage struct {
	UserKey string
	Service string
}

func (ListAccountsMessage) Type() string { return TypeListAccounts }

func (m ListAccountsMessage) Validate() error {
	if strings.TrimSpace(m.UserKey) == "" {
		return fmt.Errorf("query: user key is required")
	}
	if strings.TrimSpace(m.Service) == "" {
		return fmt.Errorf("query: service is required")
	}
	return nil
}

type ListHistoryMessage struct {
	UserKey string
	Service string
	Limit   int
}

func (ListHistoryMessage) Type() string { return TypeListHistory }

func (m ListHistoryMessage) Validate() error {
	if strings.TrimSpace(m.UserKey) == "" {
		return fmt.Errorf("query: user key is required")
	}
	if strings.TrimSpace(m.Service) == "" {
		return fmt.Errorf("query: service is required")
	}
	if m.Limit < 0 {
		return fmt.Errorf("query: limit must be >= 0")
	}
	return nil
}
