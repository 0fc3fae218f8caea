package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	IntegrationErrorBadInput        = "INTEGRATION_BAD_INPUT"
	IntegrationErrorServiceUnknown  = "INTEGRATION_SERVICE_UNKNOWN"
	IntegrationErrorNotConnected    = "INTEGRATION_NOT_CONNECTED"
	IntegrationErrorExpired         = "INTEGRATION_CREDENTIAL_EXPIRED"
	IntegrationErrorDisconnected    = "INTEGRATION_DISCONNECTED"
	IntegrationErrorConnectionState = "INTEGRATION_CONNECTION_ERROR"
	IntegrationErrorDecryptFailed   = "INTEGRATION_DECRYPT_FAILED"
	IntegrationErrorConfiguration   = "INTEGRATION_CONFIGURATION"
	IntegrationErrorOAuthRejected   = "INTEGRATION_OAUTH_REJECTED"
	IntegrationErrorNetwork         = "INTEGRATION_NETWORK"
	IntegrationErrorInternal        = "INTEGRATION_INTERNAL_ERROR"
)

// ConfigurationError reports missing or malformed wiring (encryption key,
// provider config, unknown service). Fatal, never retried.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e == nil {
		return "core: configuration error"
	}
	if strings.TrimSpace(e.Field) == "" {
		return fmt.Sprintf("core: configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("core: configuration error: %s: %s", e.Field, e.Reason)
}

// NotConnectedError means no integration row exists for the service.
type NotConnectedError struct {
	Service string
}

func (e *NotConnectedError) Error() string {
	return fmt.Sprintf("core: %s is not connected; connect it from the integration settings before use", serviceLabel(e.serviceName()))
}

func (e *NotConnectedError) serviceName() string {
	if e == nil {
		return ""
	}
	return e.Service
}

// ExpiredCredentialError means the stored credential can no longer be used
// and the user must reconnect the service.
type ExpiredCredentialError struct {
	Service string
	Cause   error
}

func (e *ExpiredCredentialError) Error() string {
	service := ""
	if e != nil {
		service = e.Service
	}
	return fmt.Sprintf("core: the connection to %s has expired; reconnect it from the integration settings", serviceLabel(service))
}

func (e *ExpiredCredentialError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

type DisconnectedError struct {
	Service string
}

func (e *DisconnectedError) Error() string {
	service := ""
	if e != nil {
		service = e.Service
	}
	return fmt.Sprintf("core: %s was disconnected; reconnect it from the integration settings before use", serviceLabel(service))
}

// ConnectionErroredError means the row exists but sits in the error state.
type ConnectionErroredError struct {
	Service string
	Reason  string
}

func (e *ConnectionErroredError) Error() string {
	service := ""
	if e != nil {
		service = e.Service
	}
	return fmt.Sprintf("core: the connection to %s is in an error state; reconnect it from the integration settings", serviceLabel(service))
}

// DecryptionError means the ciphertext failed authentication or the key does
// not match. Treated identically to an expired credential: the user must
// reconnect, the same ciphertext is never retried.
type DecryptionError struct {
	Cause error
}

func (e *DecryptionError) Error() string {
	if e == nil || e.Cause == nil {
		return "core: stored credentials could not be decrypted; reconnect the service"
	}
	return "core: stored credentials could not be decrypted; reconnect the service: " + e.Cause.Error()
}

func (e *DecryptionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// OAuthError is a structured rejection from a provider token endpoint.
type OAuthError struct {
	Provider    string
	Code        string
	Description string
	HTTPStatus  int
}

func (e *OAuthError) Error() string {
	if e == nil {
		return "core: oauth provider rejected the request"
	}
	detail := strings.TrimSpace(e.Description)
	if detail == "" {
		detail = strings.TrimSpace(e.Code)
	}
	if detail == "" {
		detail = "unknown error"
	}
	if strings.TrimSpace(e.Provider) == "" {
		return fmt.Sprintf("core: oauth provider rejected the request: %s", detail)
	}
	return fmt.Sprintf("core: %s rejected the token request: %s", e.Provider, detail)
}

// NetworkError is a transport-level failure reaching the provider. Transient;
// callers may retry, this package does not.
type NetworkError struct {
	Provider string
	Cause    error
}

func (e *NetworkError) Error() string {
	if e == nil || e.Cause == nil {
		return "core: network failure reaching the provider"
	}
	if strings.TrimSpace(e.Provider) == "" {
		return "core: network failure reaching the provider: " + e.Cause.Error()
	}
	return fmt.Sprintf("core: network failure reaching %s: %s", e.Provider, e.Cause.Error())
}

func (e *NetworkError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

type UnknownServiceError struct {
	Service string
}

func (e *UnknownServiceError) Error() string {
	service := ""
	if e != nil {
		service = e.Service
	}
	return fmt.Sprintf("core: service %q is not registered", service)
}

func serviceLabel(service string) string {
	trimmed := strings.TrimSpace(service)
	if trimmed == "" {
		return "this service"
	}
	return trimmed
}

type ErrorMapper func(err error) *goerrors.Error

func integrationErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureIntegrationErrorEnvelope(richErr)
	}

	var (
		configurationErr *ConfigurationError
		unknownErr       *UnknownServiceError
		notConnectedErr  *NotConnectedError
		expiredErr       *ExpiredCredentialError
		disconnectedErr  *DisconnectedError
		erroredErr       *ConnectionErroredError
		decryptionErr    *DecryptionError
		oauthErr         *OAuthError
		networkErr       *NetworkError
	)
	switch {
	case errors.As(err, &configurationErr):
		return newIntegrationError(err.Error(), goerrors.CategoryInternal, IntegrationErrorConfiguration)
	case errors.As(err, &unknownErr):
		return newIntegrationError(err.Error(), goerrors.CategoryNotFound, IntegrationErrorServiceUnknown)
	case errors.As(err, &notConnectedErr):
		return newIntegrationError(err.Error(), goerrors.CategoryNotFound, IntegrationErrorNotConnected)
	case errors.As(err, &expiredErr):
		return newIntegrationError(err.Error(), goerrors.CategoryAuth, IntegrationErrorExpired)
	case errors.As(err, &disconnectedErr):
		return newIntegrationError(err.Error(), goerrors.CategoryAuth, IntegrationErrorDisconnected)
	case errors.As(err, &erroredErr):
		return newIntegrationError(err.Error(), goerrors.CategoryAuth, IntegrationErrorConnectionState)
	case errors.As(err, &decryptionErr):
		return newIntegrationError(err.Error(), goerrors.CategoryAuth, IntegrationErrorDecryptFailed)
	case errors.As(err, &oauthErr):
		return newIntegrationError(err.Error(), goerrors.CategoryAuth, IntegrationErrorOAuthRejected)
	case errors.As(err, &networkErr):
		return newIntegrationError(err.Error(), goerrors.CategoryExternal, IntegrationErrorNetwork)
	case errors.Is(err, ErrIntegrationNotFound):
		return newIntegrationError(err.Error(), goerrors.CategoryNotFound, IntegrationErrorNotConnected)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "mismatch"):
		return newIntegrationError(err.Error(), goerrors.CategoryBadInput, IntegrationErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureIntegrationErrorEnvelope(mapped)
}

func newIntegrationError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureIntegrationErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureIntegrationErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = integrationHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultIntegrationTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultIntegrationTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return IntegrationErrorBadInput
	case goerrors.CategoryNotFound:
		return IntegrationErrorNotConnected
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return IntegrationErrorExpired
	case goerrors.CategoryExternal:
		return IntegrationErrorNetwork
	default:
		return IntegrationErrorInternal
	}
}

func integrationHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
