package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[StoreTokensMessage]       = (*StoreTokensCommand)(nil)
	_ gocmd.Commander[ConnectAPIKeyMessage]     = (*ConnectAPIKeyCommand)(nil)
	_ gocmd.Commander[RefreshMessage]           = (*RefreshCommand)(nil)
	_ gocmd.Commander[SetDefaultAccountMessage] = (*SetDefaultAccountCommand)(nil)
	_ gocmd.Commander[DisconnectMessage]        = (*DisconnectCommand)(nil)
)
