package security

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/goliatone/go-integrations/core"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func TestAppKeySecretProviderRoundTrip(t *testing.T) {
	provider, err := NewAppKeySecretProvider(testKey(t))
	if err != nil {
		t.Fatalf("build provider: %v", err)
	}
	ctx := context.Background()

	plaintext := []byte(`{"credential_type":"oauth","access_token":"secret"}`)
	ciphertext, err := provider.Encrypt(ctx, plaintext)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if !strings.HasPrefix(string(ciphertext), envelopePrefix) {
		t.Fatalf("expected envelope prefix, got %q", ciphertext[:24])
	}
	if bytes.Contains(ciphertext, []byte("secret")) {
		t.Fatal("ciphertext must not contain the plaintext")
	}

	decrypted, err := provider.Decrypt(ctx, ciphertext)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Fatalf("round trip mismatch: %s", decrypted)
	}
}

func TestAppKeySecretProviderNonceUniqueness(t *testing.T) {
	provider, err := NewAppKeySecretProvider(testKey(t))
	if err != nil {
		t.Fatalf("build provider: %v", err)
	}
	ctx := context.Background()

	first, err := provider.Encrypt(ctx, []byte("same plaintext"))
	if err != nil {
		t.Fatalf("encrypt first: %v", err)
	}
	second, err := provider.Encrypt(ctx, []byte("same plaintext"))
	if err != nil {
		t.Fatalf("encrypt second: %v", err)
	}
	if bytes.Equal(first, second) {
		t.Fatal("two encryptions of the same plaintext must differ")
	}
}

func TestAppKeySecretProviderRejectsTamperedCiphertext(t *testing.T) {
	provider, err := NewAppKeySecretProvider(testKey(t))
	if err != nil {
		t.Fatalf("build provider: %v", err)
	}
	ctx := context.Background()

	ciphertext, err := provider.Encrypt(ctx, []byte("payload"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	tampered := strings.Replace(string(ciphertext), `"ciphertext":"`, `"ciphertext":"AAAA`, 1)
	if _, err := provider.Decrypt(ctx, []byte(tampered)); err == nil {
		t.Fatal("tampered ciphertext must fail decryption")
	}
}

func TestAppKeySecretProviderWrongKeyFails(t *testing.T) {
	ctx := context.Background()
	first, err := NewAppKeySecretProvider(testKey(t))
	if err != nil {
		t.Fatalf("build first provider: %v", err)
	}
	second, err := NewAppKeySecretProvider(testKey(t))
	if err != nil {
		t.Fatalf("build second provider: %v", err)
	}

	ciphertext, err := first.Encrypt(ctx, []byte("payload"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := second.Decrypt(ctx, ciphertext); err == nil {
		t.Fatal("decryption under a different key must fail")
	}
}

func TestNewAppKeySecretProviderRejectsShortKey(t *testing.T) {
	_, err := NewAppKeySecretProvider([]byte("short"))
	var configErr *core.ConfigurationError
	if !errors.As(err, &configErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestNewAppKeySecretProviderFromStringEncodings(t *testing.T) {
	key := testKey(t)
	ctx := context.Background()

	hexProvider, err := NewAppKeySecretProviderFromString(hex.EncodeToString(key))
	if err != nil {
		t.Fatalf("hex key: %v", err)
	}
	base64Provider, err := NewAppKeySecretProviderFromString(base64.StdEncoding.EncodeToString(key))
	if err != nil {
		t.Fatalf("base64 key: %v", err)
	}

	// Both decode to the same raw material, so ciphertexts interoperate.
	ciphertext, err := hexProvider.Encrypt(ctx, []byte("shared"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	decrypted, err := base64Provider.Decrypt(ctx, ciphertext)
	if err != nil {
		t.Fatalf("decrypt with base64 provider: %v", err)
	}
	if string(decrypted) != "shared" {
		t.Fatalf("unexpected plaintext %q", decrypted)
	}
}

func TestNewAppKeySecretProviderFromStringRejectsShortKey(t *testing.T) {
	if _, err := NewAppKeySecretProviderFromString("tiny"); err == nil {
		t.Fatal("expected short string key to fail")
	}
}

func TestAppKeySecretProviderMetadataInEnvelope(t *testing.T) {
	provider, err := NewAppKeySecretProvider(testKey(t), WithKeyID("primary"), WithVersion(3))
	if err != nil {
		t.Fatalf("build provider: %v", err)
	}

	keyID, version := provider.Metadata()
	if keyID != "primary" || version != 3 {
		t.Fatalf("unexpected metadata %q/%d", keyID, version)
	}

	ciphertext, err := provider.Encrypt(context.Background(), []byte("payload"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	body := strings.TrimPrefix(string(ciphertext), envelopePrefix)
	if !strings.Contains(body, `"kid":"primary"`) || !strings.Contains(body, `"ver":3`) {
		t.Fatalf("envelope should carry key metadata: %s", body)
	}
}

func TestAppKeySecretProviderKeyMetadataMismatch(t *testing.T) {
	key := testKey(t)
	ctx := context.Background()

	writer, err := NewAppKeySecretProvider(key, WithKeyID("old"))
	if err != nil {
		t.Fatalf("build writer: %v", err)
	}
	reader, err := NewAppKeySecretProvider(key, WithKeyID("new"))
	if err != nil {
		t.Fatalf("build reader: %v", err)
	}

	ciphertext, err := writer.Encrypt(ctx, []byte("payload"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := reader.Decrypt(ctx, ciphertext); err == nil {
		t.Fatal("mismatched key id must fail before decryption")
	}
}
