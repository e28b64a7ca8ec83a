package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const defaultSecretBytes = 24

// SecretGenerator issues API key secrets. Output is URL-safe base64, so it never contains the
// "." that separates user ID and secret.
type SecretGenerator struct {
	Bytes int
}

func (g SecretGenerator) NewSecret() (string, error) {
	n := g.Bytes
	if n <= 0 {
		n = defaultSecretBytes
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("security: entropy read failed: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
