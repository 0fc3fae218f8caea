package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ CredentialCodec = JSONCredentialCodec{}
	_ ConfigProvider  = (*CfgxConfigProvider)(nil)
	_ OptionsResolver = GoOptionsResolver{}
	_ RefreshLocker   = (*MemoryRefreshLocker)(nil)

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
