package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// SecretPrefix marks a string as a meshgate gateway key.
	SecretPrefix = "mgw_"

	// secretBytes is the random entropy in a gateway key (256 bits).
	secretBytes = 32

	// displayPrefixLen is how much of the plaintext is kept for display:
	// the marker plus 8 hex characters.
	displayPrefixLen = len(SecretPrefix) + 8
)

// Secret is a freshly issued gateway key.
// Plaintext must be handed to the gateway and then forgotten.
type Secret struct {
	Plaintext string
	Hash      string
	Prefix    string
}

// IssueSecret generates a new random gateway key.
func IssueSecret() (Secret, error) {
	b := make([]byte, secretBytes)
	if _, err := rand.Read(b); err != nil {
		return Secret{}, fmt.Errorf("generating gateway secret: %w", err)
	}

	plaintext := SecretPrefix + hex.EncodeToString(b)
	return Secret{
		Plaintext: plaintext,
		Hash:      HashSecret(plaintext),
		Prefix:    plaintext[:displayPrefixLen],
	}, nil
}

// HashSecret returns the hex SHA-256 digest stored for a gateway key.
// Keys carry 256 bits of entropy, so a fast hash is sufficient and lets
// authentication use an indexed lookup.
func HashSecret(plaintext string) string {
	h := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(h[:])
}

// VerifySecret reports whether plaintext hashes to storedHash.
// The comparison runs in constant time over the digest.
func VerifySecret(plaintext, storedHash string) bool {
	if plaintext == "" || storedHash == "" {
		return false
	}
	candidate := HashSecret(plaintext)
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(strings.ToLower(storedHash))) == 1
}
