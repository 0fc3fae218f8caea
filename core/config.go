package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultRefreshLeadWindow is how close to expiry a token may get before
	// a read triggers a synchronous refresh.
	DefaultRefreshLeadWindow = 5 * time.Minute

	minimumEncryptionKeyBytes = 32
)

type Config struct {
	ServiceName       string        `koanf:"service_name" mapstructure:"service_name"`
	EncryptionKey     string        `koanf:"encryption_key" mapstructure:"encryption_key"`
	RefreshLeadWindow time.Duration `koanf:"refresh_lead_window" mapstructure:"refresh_lead_window"`
	AuditSource       string        `koanf:"audit_source" mapstructure:"audit_source"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:       "integrations",
		RefreshLeadWindow: DefaultRefreshLeadWindow,
		AuditSource:       "integrations",
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.RefreshLeadWindow < 0 {
		return fmt.Errorf("core: refresh_lead_window must not be negative")
	}
	if key := strings.TrimSpace(c.EncryptionKey); key != "" {
		if err := ValidateEncryptionKey(key); err != nil {
			return err
		}
	}
	return nil
}

// ValidateEncryptionKey enforces the master-key contract: at least 32 bytes
// of raw material, either directly or after base64/hex decoding. A single
// static key; rotation is not supported and a changed key invalidates all
// stored ciphertexts.
func ValidateEncryptionKey(key string) error {
	material, err := DecodeEncryptionKey(key)
	if err != nil {
		return err
	}
	if len(material) < minimumEncryptionKeyBytes {
		return &ConfigurationError{
			Field:  "encryption_key",
			Reason: fmt.Sprintf("key must be at least %d bytes, got %d", minimumEncryptionKeyBytes, len(material)),
		}
	}
	return nil
}
