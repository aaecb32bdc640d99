package auth

import (
	"testing"
	"time"

	"clearlot/config"
	"clearlot/internal/domain"

	"github.com/stretchr/testify/require"
)

func testJWTConfig() *config.JWTConfig {
	return &config.JWTConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessExpiry:  time.Minute,
		RefreshExpiry: time.Hour,
		Issuer:        "clearlot",
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	cfg := testJWTConfig()
	tok, err := GenerateAccessToken(cfg, 42, "buyer@example.com", domain.RoleBuyer)
	require.NoError(t, err)

	claims, err := ParseAccessToken(cfg, tok)
	require.NoError(t, err)
	require.EqualValues(t, 42, claims.UserID)
	require.Equal(t, "buyer@example.com", claims.Email)
	require.Equal(t, domain.RoleBuyer, claims.Role)
}

func TestRefreshTokenCarriesOnlyUserID(t *testing.T) {
	cfg := testJWTConfig()
	tok, err := GenerateRefreshToken(cfg, 7)
	require.NoError(t, err)

	claims, err := ParseRefreshToken(cfg, tok)
	require.NoError(t, err)
	require.EqualValues(t, 7, claims.UserID)

	// a refresh token never opens the API surface
	_, err = ParseAccessToken(cfg, tok)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsForeignSignature(t *testing.T) {
	cfg := testJWTConfig()
	tok, err := GenerateAccessToken(cfg, 1, "a@b.example", domain.RoleSeller)
	require.NoError(t, err)

	other := testJWTConfig()
	other.AccessSecret = "some-other-secret"
	_, err = ParseAccessToken(other, tok)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsForeignIssuer(t *testing.T) {
	issuer := testJWTConfig()
	issuer.Issuer = "someone-else"
	tok, err := GenerateAccessToken(issuer, 1, "a@b.example", domain.RoleBuyer)
	require.NoError(t, err)

	_, err = ParseAccessToken(testJWTConfig(), tok)
	require.ErrorIs(t, err, ErrInvalidToken)
}
