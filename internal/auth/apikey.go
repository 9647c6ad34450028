// Package auth provides API key generation and validation for the conversion
// API. Keys are random strings shown once; only their bcrypt hashes are kept
// in the configuration.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// API key generation and validation constants
const (
	// APIKeyLength is the length of the random part of an API key
	APIKeyLength = 32
	// APIKeyPrefix is the standard prefix for all API keys
	APIKeyPrefix = "sx"
	// DisplayPrefixLength is the number of random characters shown by DisplayPrefix
	DisplayPrefixLength = 8

	// BcryptCost is the bcrypt cost for hashing API keys
	BcryptCost = 12
	// BcryptMaxInputLength is the maximum input length for bcrypt (72 bytes)
	BcryptMaxInputLength = 72
)

// hashCost is lowered by tests.
var hashCost = BcryptCost

// GeneratedAPIKey is a new key together with the hash to configure.
type GeneratedAPIKey struct {
	Key    string `json:"key"`
	Hash   string `json:"hash"`
	Prefix string `json:"prefix"`
}

// GenerateAPIKey creates a new random API key and its hash.
func GenerateAPIKey() (*GeneratedAPIKey, error) {
	randomBytes := make([]byte, APIKeyLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return nil, fmt.Errorf("failed to generate random key: %w", err)
	}

	// base32 has no ambiguous characters
	randomPart := strings.ToLower(base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(randomBytes))
	key := fmt.Sprintf("%s_%s", APIKeyPrefix, randomPart[:APIKeyLength])

	hash, err := HashAPIKey(key)
	if err != nil {
		return nil, err
	}
	return &GeneratedAPIKey{Key: key, Hash: hash, Prefix: DisplayPrefix(key)}, nil
}

// keyBytes applies the pre-hash used for keys longer than bcrypt accepts.
func keyBytes(apiKey string) []byte {
	b := []byte(apiKey)
	if len(b) > BcryptMaxInputLength {
		sum := sha256.Sum256(b)
		b = sum[:]
	}
	return b
}

// HashAPIKey creates a bcrypt hash of an API key.
func HashAPIKey(apiKey string) (string, error) {
	if apiKey == "" {
		return "", fmt.Errorf("API key cannot be empty")
	}

	hash, err := bcrypt.GenerateFromPassword(keyBytes(apiKey), hashCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash API key: %w", err)
	}
	return string(hash), nil
}

// ValidateAPIKey checks if a provided API key matches the stored hash.
func ValidateAPIKey(apiKey, storedHash string) bool {
	if apiKey == "" || storedHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(storedHash), keyBytes(apiKey)) == nil
}

// IsKeyHash reports whether hash is a bcrypt hash.
func IsKeyHash(hash string) bool {
	_, err := bcrypt.Cost([]byte(hash))
	return err == nil
}

// IsValidAPIKeyFormat checks if an API key has the correct format.
func IsValidAPIKeyFormat(apiKey string) bool {
	random, ok := strings.CutPrefix(apiKey, APIKeyPrefix+"_")
	if !ok || len(random) != APIKeyLength {
		return false
	}
	for _, char := range random {
		if (char < 'a' || char > 'z') && (char < '2' || char > '7') {
			return false
		}
	}
	return true
}

// DisplayPrefix returns a prefix of apiKey that is safe to log.
func DisplayPrefix(apiKey string) string {
	if !IsValidAPIKeyFormat(apiKey) {
		return "invalid_key"
	}
	return apiKey[:len(APIKeyPrefix)+1+DisplayPrefixLength] + "..."
}

// KeySet validates presented keys against the configured hashes.
type KeySet struct {
	hashes []string
}

// NewKeySet creates a key set from bcrypt hashes.
func NewKeySet(hashes []string) *KeySet {
	return &KeySet{hashes: append([]string(nil), hashes...)}
}

// Len returns the number of configured keys.
func (s *KeySet) Len() int {
	return len(s.hashes)
}

// Match reports whether apiKey matches any configured hash. Keys with the
// wrong format are rejected before any hash comparison.
func (s *KeySet) Match(apiKey string) bool {
	if !IsValidAPIKeyFormat(apiKey) {
		return false
	}
	for _, hash := range s.hashes {
		if ValidateAPIKey(apiKey, hash) {
			return true
		}
	}
	return false
}
