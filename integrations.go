package integrations

import (
	"strings"

	"github.com/goliatone/go-integrations/core"
	"github.com/goliatone/go-integrations/security"
	sqlstore "github.com/goliatone/go-integrations/store/sql"
)

type Config = core.Config

type Option = core.Option

type Service = core.Service

type ServiceRegistry = core.ServiceRegistry
type ServiceDefinition = core.ServiceDefinition

type Integration = core.Integration
type IntegrationStatus = core.IntegrationStatus
type CredentialType = core.CredentialType
type AuditEvent = core.AuditEvent
type AuditEventType = core.AuditEventType

type TokenSet = core.TokenSet
type AccountInfo = core.AccountInfo
type ResolvedCredentials = core.ResolvedCredentials
type StoreTokensRequest = core.StoreTokensRequest
type ConnectAPIKeyRequest = core.ConnectAPIKeyRequest

type SecretProvider = core.SecretProvider
type IntegrationStore = core.IntegrationStore
type HistoryStore = core.HistoryStore
type Exchanger = core.Exchanger

var (
	WithLogger           = core.WithLogger
	WithLoggerProvider   = core.WithLoggerProvider
	WithErrorMapper      = core.WithErrorMapper
	WithConfigProvider   = core.WithConfigProvider
	WithOptionsResolver  = core.WithOptionsResolver
	WithSecretProvider   = core.WithSecretProvider
	WithCredentialCodec  = core.WithCredentialCodec
	WithServiceRegistry  = core.WithServiceRegistry
	WithIntegrationStore = core.WithIntegrationStore
	WithHistoryStore     = core.WithHistoryStore
	WithExchanger        = core.WithExchanger
	WithRefreshLocker    = core.WithRefreshLocker
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

// New builds a service with the conventional wiring: the secret provider is
// derived from the configured encryption key unless an option replaces it.
// Stores, registry, and exchanger still come from options.
func New(cfg Config, opts ...Option) (*Service, error) {
	options := make([]Option, 0, len(opts)+1)
	if key := strings.TrimSpace(cfg.EncryptionKey); key != "" {
		provider, err := security.NewAppKeySecretProviderFromString(key)
		if err != nil {
			return nil, err
		}
		options = append(options, core.WithSecretProvider(provider))
	}
	options = append(options, opts...)
	return core.NewService(cfg, options...)
}

// RepositoryOptions builds the bun-backed stores from a persistence client or
// *bun.DB and returns the options that wire them into the service.
func RepositoryOptions(persistenceClient any) ([]Option, error) {
	factory := sqlstore.NewRepositoryFactory()
	if err := factory.BuildStores(persistenceClient); err != nil {
		return nil, err
	}
	return []Option{
		core.WithIntegrationStore(factory.IntegrationStore()),
		core.WithHistoryStore(factory.HistoryStore()),
	}, nil
}
