package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	CredentialPayloadFormatJSONV1 = "integration_credential_json"
	CredentialPayloadVersionV1    = 1
)

// CredentialCodec serializes the Credentials union for encryption. The codec
// handles structure only; confidentiality is the SecretProvider's job.
type CredentialCodec interface {
	Format() string
	Version() int
	Encode(credentials Credentials) ([]byte, error)
	Decode(payload []byte) (Credentials, error)
}

type JSONCredentialCodec struct{}

func (JSONCredentialCodec) Format() string {
	return CredentialPayloadFormatJSONV1
}

func (JSONCredentialCodec) Version() int {
	return CredentialPayloadVersionV1
}

type jsonCredentialPayload struct {
	CredentialType    string            `json:"credential_type"`
	APIKey            string            `json:"api_key,omitempty"`
	AdditionalHeaders map[string]string `json:"additional_headers,omitempty"`
	AccessToken       string            `json:"access_token,omitempty"`
	RefreshToken      string            `json:"refresh_token,omitempty"`
	ExpiresAt         *time.Time        `json:"expires_at,omitempty"`
}

func (JSONCredentialCodec) Encode(credentials Credentials) ([]byte, error) {
	if credentials == nil {
		return nil, fmt.Errorf("core: credentials are required")
	}

	payload := jsonCredentialPayload{
		CredentialType: string(credentials.Type()),
	}
	switch typed := credentials.(type) {
	case APIKeyCredentials:
		if strings.TrimSpace(typed.APIKey) == "" {
			return nil, fmt.Errorf("core: api key is required")
		}
		payload.APIKey = strings.TrimSpace(typed.APIKey)
		payload.AdditionalHeaders = copyStringMap(typed.AdditionalHeaders)
	case BearerTokenCredentials:
		if strings.TrimSpace(typed.AccessToken) == "" {
			return nil, fmt.Errorf("core: access token is required")
		}
		payload.AccessToken = strings.TrimSpace(typed.AccessToken)
		payload.RefreshToken = strings.TrimSpace(typed.RefreshToken)
		payload.ExpiresAt = cloneTimePointer(typed.ExpiresAt)
	default:
		return nil, fmt.Errorf("%w: %T", ErrCredentialPayloadTypeUnsupported, credentials)
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("core: encode credential payload: %w", err)
	}
	return encoded, nil
}

func (JSONCredentialCodec) Decode(payload []byte) (Credentials, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("core: credential payload is empty")
	}
	decoded := jsonCredentialPayload{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, fmt.Errorf("core: decode credential payload: %w", err)
	}

	switch CredentialType(strings.TrimSpace(decoded.CredentialType)) {
	case CredentialTypeAPIKey:
		if strings.TrimSpace(decoded.APIKey) == "" {
			return nil, fmt.Errorf("core: credential payload is missing api key")
		}
		return APIKeyCredentials{
			APIKey:            strings.TrimSpace(decoded.APIKey),
			AdditionalHeaders: copyStringMap(decoded.AdditionalHeaders),
		}, nil
	case CredentialTypeOAuth:
		if strings.TrimSpace(decoded.AccessToken) == "" {
			return nil, fmt.Errorf("core: credential payload is missing access token")
		}
		return BearerTokenCredentials{
			AccessToken:  strings.TrimSpace(decoded.AccessToken),
			RefreshToken: strings.TrimSpace(decoded.RefreshToken),
			ExpiresAt:    cloneTimePointer(decoded.ExpiresAt),
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrCredentialPayloadTypeUnsupported, decoded.CredentialType)
	}
}
