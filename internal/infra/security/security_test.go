package security

import (
	"strings"
	"testing"
)

func TestBcryptHasherRoundTrip(t *testing.T) {
	h := BcryptHasher{Cost: 4}
	hash, err := h.Hash("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := h.Compare(hash, "s3cret"); err != nil {
		t.Fatalf("compare: %v", err)
	}
	if err := h.Compare(hash, "other"); err == nil {
		t.Fatalf("wrong secret must not match")
	}
}

func TestSecretGeneratorHasNoSeparator(t *testing.T) {
	a, err := SecretGenerator{}.NewSecret()
	if err != nil {
		t.Fatalf("secret: %v", err)
	}
	b, _ := SecretGenerator{}.NewSecret()
	if a == b || strings.Contains(a, ".") || len(a) != 32 {
		t.Fatalf("unexpected secrets %q %q", a, b)
	}
}
