package signature

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// SecretPrefix marks symmetric signing secrets
	SecretPrefix = "whsec_"

	// Version is the identifier for the current signature scheme
	Version = "v1"

	// SecretBytes is the size of generated secrets (256 bits)
	SecretBytes = 32

	// MinSecretBytes is the minimum accepted secret size (192 bits)
	MinSecretBytes = 24

	// MaxSecretBytes is the maximum accepted secret size (512 bits)
	MaxSecretBytes = 64
)

// Secret is a per-subscription signing secret
type Secret struct {
	raw    []byte
	base64 string
}

// GenerateSecret creates a new cryptographically secure signing secret
func GenerateSecret() (Secret, error) {
	bytes := make([]byte, SecretBytes)
	if _, err := rand.Read(bytes); err != nil {
		return Secret{}, fmt.Errorf("generating random bytes: %w", err)
	}

	return Secret{
		raw:    bytes,
		base64: SecretPrefix + base64.StdEncoding.EncodeToString(bytes),
	}, nil
}

// ParseSecret parses a base64-encoded secret with the whsec_ prefix
func ParseSecret(encoded string) (Secret, error) {
	if !strings.HasPrefix(encoded, SecretPrefix) {
		return Secret{}, fmt.Errorf("secret must start with %s prefix", SecretPrefix)
	}

	b64 := strings.TrimPrefix(encoded, SecretPrefix)
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return Secret{}, fmt.Errorf("decoding base64 secret: %w", err)
	}

	if len(raw) < MinSecretBytes || len(raw) > MaxSecretBytes {
		return Secret{}, fmt.Errorf("secret size must be between %d and %d bytes", MinSecretBytes, MaxSecretBytes)
	}

	return Secret{
		raw:    raw,
		base64: encoded,
	}, nil
}

// String returns the base64-encoded secret with prefix
func (s Secret) String() string {
	return s.base64
}

// Bytes returns the raw secret bytes
func (s Secret) Bytes() []byte {
	return s.raw
}

// Tag is a computed authentication tag in the form v1,<base64>
type Tag struct {
	Version   string
	Signature string
}

// String returns the tag in header form: v1,<base64_signature>
func (t Tag) String() string {
	return fmt.Sprintf("%s,%s", t.Version, t.Signature)
}

// ParseTag parses a header value in the form v1,<base64_signature>
func ParseTag(value string) (Tag, error) {
	parts := strings.SplitN(value, ",", 2)
	if len(parts) != 2 {
		return Tag{}, fmt.Errorf("invalid signature format, expected 'version,signature'")
	}

	return Tag{
		Version:   parts[0],
		Signature: parts[1],
	}, nil
}

// Sign computes an HMAC-SHA256 tag over the canonical serialized event.
// The signed content is: {eventID}.{unix timestamp}.{payload}, which also
// lets receivers reject replays and deduplicate by event id.
func Sign(secret Secret, eventID string, timestamp time.Time, payload []byte) (Tag, error) {
	if strings.Contains(eventID, ".") {
		return Tag{}, fmt.Errorf("event ID must not contain '.'")
	}

	timestampStr := strconv.FormatInt(timestamp.Unix(), 10)
	signedContent := fmt.Sprintf("%s.%s.%s", eventID, timestampStr, payload)

	mac := hmac.New(sha256.New, secret.Bytes())
	mac.Write([]byte(signedContent))
	sum := mac.Sum(nil)

	return Tag{
		Version:   Version,
		Signature: base64.StdEncoding.EncodeToString(sum),
	}, nil
}

// Verify recomputes the tag and compares in constant time.
// Returns true when the tag is valid.
func Verify(secret Secret, eventID string, timestamp time.Time, payload []byte, expected Tag) (bool, error) {
	if expected.Version != Version {
		return false, fmt.Errorf("unsupported signature version: %s", expected.Version)
	}

	calculated, err := Sign(secret, eventID, timestamp, payload)
	if err != nil {
		return false, fmt.Errorf("calculating signature: %w", err)
	}

	expectedRaw, err := base64.StdEncoding.DecodeString(expected.Signature)
	if err != nil {
		return false, fmt.Errorf("decoding expected signature: %w", err)
	}

	calculatedRaw, err := base64.StdEncoding.DecodeString(calculated.Signature)
	if err != nil {
		return false, fmt.Errorf("decoding calculated signature: %w", err)
	}

	return subtle.ConstantTimeCompare(expectedRaw, calculatedRaw) == 1, nil
}
