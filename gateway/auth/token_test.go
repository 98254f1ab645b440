package auth

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"satvault/crypto"
)

func caller(b byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	raw[0] = b
	return crypto.NewAddress(crypto.AccountPrefix, raw)
}

func TestIssueAndParseToken(t *testing.T) {
	cfg := TokenConfig{Secret: "shared-secret", Issuer: "satvault", Audience: "satvault-api"}
	token, err := IssueToken(cfg, caller(7), time.Hour, time.Now())
	require.NoError(t, err)

	got, err := ParseToken(cfg, token)
	require.NoError(t, err)
	require.True(t, got.Equal(caller(7)))
}

func TestParseTokenRejects(t *testing.T) {
	cfg := TokenConfig{Secret: "shared-secret", Issuer: "satvault", Audience: "satvault-api"}
	now := time.Now()

	expired, err := IssueToken(cfg, caller(1), time.Minute, now.Add(-time.Hour))
	require.NoError(t, err)
	_, err = ParseToken(cfg, expired)
	require.ErrorIs(t, err, ErrInvalidToken)

	other := cfg
	other.Secret = "different"
	forged, err := IssueToken(other, caller(1), time.Hour, now)
	require.NoError(t, err)
	_, err = ParseToken(cfg, forged)
	require.ErrorIs(t, err, ErrInvalidToken)

	wrongAudience := cfg
	wrongAudience.Audience = "elsewhere"
	token, err := IssueToken(wrongAudience, caller(1), time.Hour, now)
	require.NoError(t, err)
	_, err = ParseToken(cfg, token)
	require.ErrorIs(t, err, ErrInvalidToken)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": caller(1).String(),
		"exp": now.Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ParseToken(cfg, unsigned)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseToken(TokenConfig{}, token)
	require.ErrorIs(t, err, ErrSecretRequired)
}
