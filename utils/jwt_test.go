package utils

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseToken(t *testing.T) {
	token, claims, err := GenerateToken("secret", 42, "u@example.com", time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, claims.ID)

	parsed, err := ParseToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), parsed.UserID)
	assert.Equal(t, "u@example.com", parsed.Email)
	assert.Equal(t, claims.ID, parsed.ID)

	_, err = ParseToken("wrong", token)
	assert.Error(t, err)
}

func TestParseTokenExpired(t *testing.T) {
	token, _, err := GenerateToken("secret", 1, "u@example.com", -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken("secret", token)
	assert.Error(t, err)
}

func TestTokenBlacklistInMemory(t *testing.T) {
	b := NewTokenBlacklist(nil)
	ctx := context.Background()

	require.NoError(t, b.Revoke(ctx, "live", time.Now().Add(time.Hour)))
	require.NoError(t, b.Revoke(ctx, "stale", time.Now().Add(-time.Second)))

	assert.True(t, b.IsRevoked(ctx, "live"))
	assert.False(t, b.IsRevoked(ctx, "stale"))
	assert.False(t, b.IsRevoked(ctx, "unknown"))
}

func TestTokenBlacklistPrunesExpiredOnRevoke(t *testing.T) {
	b := NewTokenBlacklist(nil)
	ctx := context.Background()
	b.entries["expired-1"] = time.Now().Add(-time.Minute)
	b.entries["expired-2"] = time.Now().Add(-time.Hour)

	require.NoError(t, b.Revoke(ctx, "fresh", time.Now().Add(time.Hour)))

	assert.Len(t, b.entries, 1)
	assert.Contains(t, b.entries, "fresh")
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)
	assert.True(t, CheckPassword(hash, "s3cret"))
	assert.False(t, CheckPassword(hash, "guess"))
	assert.False(t, CheckPassword("", ""))

	_, err = HashPassword(strings.Repeat("x", MaxPasswordBytes+1))
	assert.ErrorIs(t, err, ErrPasswordTooLong)

	assert.False(t, CheckPassword(DummyHash(), "s3cret"))
	assert.Equal(t, DummyHash(), DummyHash())
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "hello", StripTags("<b>hello</b>"))
	assert.NotContains(t, Sanitize(`<p onclick="x()">hi</p><script>alert(1)</script>`), "script")
	assert.Contains(t, Sanitize("<p>hi</p>"), "<p>hi</p>")
}
