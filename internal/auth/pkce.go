package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// verifierAlphabet is the unreserved character set allowed in PKCE code
// verifiers (RFC 7636 §4.1).
const verifierAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"

const (
	// VerifierMinLength and VerifierMaxLength bound verifier lengths per RFC 7636.
	VerifierMinLength = 43
	VerifierMaxLength = 128
)

// GenerateVerifier produces a cryptographically random PKCE code verifier of
// the given length over the RFC 7636 alphabet. Lengths outside [43, 128] are
// clamped; 43 characters of this alphabet already exceed 128 bits of entropy.
func GenerateVerifier(length int) (string, error) {
	if length < VerifierMinLength {
		length = VerifierMinLength
	}
	if length > VerifierMaxLength {
		length = VerifierMaxLength
	}

	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	for i, b := range buf {
		buf[i] = verifierAlphabet[int(b)%len(verifierAlphabet)]
	}

	return string(buf), nil
}

// DeriveChallenge computes the S256 code challenge for a verifier: the
// SHA-256 digest encoded as URL-safe base64 without padding. The result is
// deterministic; only the challenge travels to the authorization server,
// the verifier stays with the caller until the token exchange.
func DeriveChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
