package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	token, exp, err := Issue("giaovien1", 1, "preschool-pickup", "secret", time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := Parse(token, "secret", "preschool-pickup")
	require.NoError(t, err)
	assert.Equal(t, "giaovien1", claims.Account)
	assert.Equal(t, 1, claims.Role)
}

func TestParseWrongKey(t *testing.T) {
	token, _, err := Issue("giaovien1", 1, "preschool-pickup", "secret", time.Hour)
	require.NoError(t, err)

	_, err = Parse(token, "other-secret", "preschool-pickup")
	assert.Error(t, err)
}

func TestParseIssuerMismatch(t *testing.T) {
	token, _, err := Issue("giaovien1", 1, "someone-else", "secret", time.Hour)
	require.NoError(t, err)

	_, err = Parse(token, "secret", "preschool-pickup")
	assert.Error(t, err)
}

func TestParseExpired(t *testing.T) {
	token, _, err := Issue("giaovien1", 1, "preschool-pickup", "secret", -time.Minute)
	require.NoError(t, err)

	_, err = Parse(token, "secret", "preschool-pickup")
	assert.Error(t, err)
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("matkhau123")
	require.NoError(t, err)
	assert.NotEqual(t, "matkhau123", hash)
	assert.True(t, VerifyPassword("matkhau123", hash))
	assert.False(t, VerifyPassword("wrong", hash))
}
