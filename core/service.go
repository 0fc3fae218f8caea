package core

import (
	"context"
	"fmt"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// Service is the credential lifecycle core. It owns connect, resolve,
// refresh, and disconnect for every registered external service, with
// credentials encrypted at rest and every transition audited.
type Service struct {
	config           Config
	logger           Logger
	loggerProvider   LoggerProvider
	errorMapper      ErrorMapper
	secretProvider   SecretProvider
	credentialCodec  CredentialCodec
	registry         *ServiceRegistry
	integrationStore IntegrationStore
	historyStore     HistoryStore
	exchanger        Exchanger
	refreshLocker    RefreshLocker
	now              func() time.Time
}

func NewService(cfg Config, options ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, option := range options {
		if option != nil {
			option(&builder)
		}
	}

	provider, logger := glog.Resolve("integrations", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("integrations"); named != nil {
			logger = glog.Ensure(named)
		}
	}
	builder.loggerProvider = provider
	builder.logger = logger

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, fmt.Errorf("core: load config: %w", err)
	}
	resolved, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, fmt.Errorf("core: resolve config: %w", err)
	}

	if builder.integrationStore == nil {
		return nil, &ConfigurationError{Field: "integration_store", Reason: "an integration store is required"}
	}
	if builder.historyStore == nil {
		return nil, &ConfigurationError{Field: "history_store", Reason: "a history store is required"}
	}
	if builder.secretProvider == nil {
		return nil, &ConfigurationError{Field: "secret_provider", Reason: "a secret provider is required"}
	}
	if builder.registry == nil {
		registry, err := NewServiceRegistry()
		if err != nil {
			return nil, err
		}
		builder.registry = registry
	}

	return &Service{
		config:           resolved,
		logger:           builder.logger,
		loggerProvider:   builder.loggerProvider,
		errorMapper:      builder.errorMapper,
		secretProvider:   builder.secretProvider,
		credentialCodec:  builder.credentialCodec,
		registry:         builder.registry,
		integrationStore: builder.integrationStore,
		historyStore:     builder.historyStore,
		exchanger:        builder.exchanger,
		refreshLocker:    builder.refreshLocker,
		now:              builder.now,
	}, nil
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Registry() *ServiceRegistry {
	if s == nil {
		return nil
	}
	return s.registry
}

func (s *Service) MapError(err error) error {
	if s == nil || err == nil {
		return err
	}
	mapper := s.errorMapper
	if mapper == nil {
		mapper = defaultErrorMapper
	}
	if mapped := mapper(err); mapped != nil {
		return mapped
	}
	return err
}

func (s *Service) clock() time.Time {
	if s == nil || s.now == nil {
		return time.Now().UTC()
	}
	return s.now().UTC()
}

func (s *Service) encryptCredentials(ctx context.Context, credentials Credentials) (string, error) {
	if s == nil || s.secretProvider == nil {
		return "", &ConfigurationError{Field: "secret_provider", Reason: "a secret provider is required"}
	}
	codec := s.credentialCodec
	if codec == nil {
		codec = JSONCredentialCodec{}
	}
	plaintext, err := codec.Encode(credentials)
	if err != nil {
		return "", err
	}
	ciphertext, err := s.secretProvider.Encrypt(ctx, plaintext)
	if err != nil {
		return "", fmt.Errorf("core: encrypt credential payload: %w", err)
	}
	return string(ciphertext), nil
}

func (s *Service) decryptCredentials(ctx context.Context, encrypted string) (Credentials, error) {
	if s == nil || s.secretProvider == nil {
		return nil, &ConfigurationError{Field: "secret_provider", Reason: "a secret provider is required"}
	}
	codec := s.credentialCodec
	if codec == nil {
		codec = JSONCredentialCodec{}
	}
	plaintext, err := s.secretProvider.Decrypt(ctx, []byte(encrypted))
	if err != nil {
		return nil, &DecryptionError{Cause: err}
	}
	credentials, err := codec.Decode(plaintext)
	if err != nil {
		return nil, &DecryptionError{Cause: err}
	}
	return credentials, nil
}
