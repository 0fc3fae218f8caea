package oauth

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-integrations/core"
)

// AccountExtractor pulls the external account identity out of the token
// response payload. Providers that only expose identity through a separate
// userinfo endpoint supply their own extractor.
type AccountExtractor func(payload map[string]any) (core.AccountInfo, error)

func extractAccount(cfg ProviderConfig, payload tokenEndpointPayload) (core.AccountInfo, error) {
	extractor := cfg.AccountExtractor
	if extractor == nil {
		extractor = DefaultAccountExtractor
	}
	account, err := extractor(payload.Extra)
	if err != nil {
		return core.AccountInfo{}, fmt.Errorf("oauth: extract account for provider %q: %w", cfg.ID, err)
	}
	account.AccountID = strings.TrimSpace(account.AccountID)
	account.DisplayName = strings.TrimSpace(account.DisplayName)
	return account, nil
}

// DefaultAccountExtractor probes the common identity fields providers embed
// alongside the token. An absent identity is not an error; the caller falls
// back to the default account slot.
func DefaultAccountExtractor(payload map[string]any) (core.AccountInfo, error) {
	accountID := ""
	for _, key := range []string{"account_id", "user_id", "id", "sub", "email"} {
		if value := readAnyString(payload[key]); value != "" {
			accountID = value
			break
		}
	}
	displayName := ""
	for _, key := range []string{"name", "display_name", "login", "email"} {
		if value := readAnyString(payload[key]); value != "" {
			displayName = value
			break
		}
	}
	return core.AccountInfo{
		AccountID:   accountID,
		DisplayName: displayName,
		Metadata:    payload,
	}, nil
}
