package auth

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	hashCost = bcrypt.MinCost
	os.Exit(m.Run())
}

func TestGenerateAPIKey(t *testing.T) {
	generated, err := GenerateAPIKey()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(generated.Key, APIKeyPrefix+"_"))
	assert.Len(t, generated.Key, len(APIKeyPrefix)+1+APIKeyLength)
	assert.True(t, IsValidAPIKeyFormat(generated.Key))
	assert.True(t, IsKeyHash(generated.Hash))
	assert.True(t, ValidateAPIKey(generated.Key, generated.Hash))
	assert.Equal(t, generated.Key[:11]+"...", generated.Prefix)
}

func TestGenerateAPIKey_Uniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for range 20 {
		generated, err := GenerateAPIKey()
		require.NoError(t, err)
		assert.False(t, seen[generated.Key], "duplicate key generated")
		seen[generated.Key] = true
	}
}

func TestHashAPIKey(t *testing.T) {
	t.Run("empty key", func(t *testing.T) {
		_, err := HashAPIKey("")
		assert.Error(t, err)
	})

	t.Run("hashes differ by salt", func(t *testing.T) {
		first, err := HashAPIKey("sx_same")
		require.NoError(t, err)
		second, err := HashAPIKey("sx_same")
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})

	t.Run("long key", func(t *testing.T) {
		long := strings.Repeat("a", 100)
		hash, err := HashAPIKey(long)
		require.NoError(t, err)
		assert.True(t, ValidateAPIKey(long, hash))
		assert.False(t, ValidateAPIKey(long+"b", hash))
	})
}

func TestValidateAPIKey(t *testing.T) {
	validKey := "sx_test_key_123"
	validHash, err := HashAPIKey(validKey)
	require.NoError(t, err)

	tests := []struct {
		name     string
		apiKey   string
		hash     string
		expected bool
	}{
		{name: "valid key and hash", apiKey: validKey, hash: validHash, expected: true},
		{name: "wrong key", apiKey: "sx_wrong_key_123", hash: validHash},
		{name: "invalid hash", apiKey: validKey, hash: "invalid_hash"},
		{name: "empty key", apiKey: "", hash: validHash},
		{name: "empty hash", apiKey: validKey, hash: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ValidateAPIKey(tt.apiKey, tt.hash))
		})
	}
}

func TestIsValidAPIKeyFormat(t *testing.T) {
	random := strings.Repeat("a2", APIKeyLength/2)

	tests := []struct {
		name     string
		apiKey   string
		expected bool
	}{
		{name: "valid", apiKey: "sx_" + random, expected: true},
		{name: "empty", apiKey: ""},
		{name: "wrong prefix", apiKey: "sk_" + random},
		{name: "too short", apiKey: "sx_" + random[:10]},
		{name: "too long", apiKey: "sx_" + random + "a"},
		{name: "upper case", apiKey: "sx_" + strings.ToUpper(random)},
		{name: "outside base32 alphabet", apiKey: "sx_" + strings.Repeat("a1", APIKeyLength/2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsValidAPIKeyFormat(tt.apiKey))
		})
	}
}

func TestDisplayPrefix(t *testing.T) {
	key := "sx_" + strings.Repeat("b", APIKeyLength)
	assert.Equal(t, "sx_bbbbbbbb...", DisplayPrefix(key))
	assert.Equal(t, "invalid_key", DisplayPrefix("secret"))
}

func TestIsKeyHash(t *testing.T) {
	hash, err := HashAPIKey("sx_key")
	require.NoError(t, err)

	assert.True(t, IsKeyHash(hash))
	assert.False(t, IsKeyHash("plaintext"))
	assert.False(t, IsKeyHash(""))
}

func TestKeySet(t *testing.T) {
	first, err := GenerateAPIKey()
	require.NoError(t, err)
	second, err := GenerateAPIKey()
	require.NoError(t, err)
	other, err := GenerateAPIKey()
	require.NoError(t, err)

	set := NewKeySet([]string{first.Hash, second.Hash})
	assert.Equal(t, 2, set.Len())
	assert.True(t, set.Match(first.Key))
	assert.True(t, set.Match(second.Key))
	assert.False(t, set.Match(other.Key))
	assert.False(t, set.Match(""))
	assert.False(t, set.Match("not-a-key"))

	assert.False(t, NewKeySet(nil).Match(first.Key))
}
