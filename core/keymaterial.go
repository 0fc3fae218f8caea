package core

import (
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// DecodeEncryptionKey turns configured key material into raw bytes. Hex and
// base64 encodings are accepted when they decode to full-strength material;
// anything else is treated as raw bytes. Length is enforced by
// ValidateEncryptionKey, not here.
func DecodeEncryptionKey(key string) ([]byte, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return nil, &ConfigurationError{Field: "encryption_key", Reason: "key material is required"}
	}
	if decoded, err := hex.DecodeString(trimmed); err == nil && len(decoded) >= minimumEncryptionKeyBytes {
		return decoded, nil
	}
	if decoded, err := base64.StdEncoding.DecodeString(trimmed); err == nil && len(decoded) >= minimumEncryptionKeyBytes {
		return decoded, nil
	}
	if decoded, err := base64.RawURLEncoding.DecodeString(trimmed); err == nil && len(decoded) >= minimumEncryptionKeyBytes {
		return decoded, nil
	}
	return []byte(trimmed), nil
}
