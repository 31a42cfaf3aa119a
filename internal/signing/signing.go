// Package signing generates API keys and destination signing secrets and
// computes outbound webhook signatures.
package signing

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Namespace tags distinguish key material at a glance in logs and configs.
const (
	APIKeyTag        = "lop_"
	SigningSecretTag = "whsec_"
)

const (
	tokenBytes   = 24
	prefixLength = 12
)

// Secret is freshly generated key material. Plain is surfaced to the caller
// exactly once; only Hash and Prefix may be persisted.
type Secret struct {
	Plain  string
	Hash   string
	Prefix string
}

// NewAPIKey generates a workspace API key.
func NewAPIKey() (Secret, error) {
	return newSecret(APIKeyTag)
}

// NewSigningSecret generates a destination HMAC signing secret.
func NewSigningSecret() (Secret, error) {
	return newSecret(SigningSecretTag)
}

func newSecret(tag string) (Secret, error) {
	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return Secret{}, fmt.Errorf("generate secret: %w", err)
	}

	plain := tag + hex.EncodeToString(raw)

	return Secret{
		Plain:  plain,
		Hash:   HashKey(plain),
		Prefix: plain[:prefixLength],
	}, nil
}

// HashKey returns the SHA-256 hex digest of a plaintext key. The digest is
// what gets stored and what inbound keys are compared against.
func HashKey(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

// WebhookSignature computes the HMAC-SHA256 signature carried in the
// X-Leadops-Signature header, over "{timestamp}.{payload}".
//
// The HMAC is keyed by the stored hash of the signing secret, not the
// plaintext secret. Existing receivers verify against this scheme, so it is
// preserved as-is; changing it would break every configured destination.
func WebhookSignature(secretHash string, timestamp int64, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secretHash))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyWebhookSignature checks a signature in constant time.
func VerifyWebhookSignature(secretHash string, timestamp int64, payload []byte, signature string) bool {
	expected := WebhookSignature(secretHash, timestamp, payload)
	return hmac.Equal([]byte(signature), []byte(expected))
}
