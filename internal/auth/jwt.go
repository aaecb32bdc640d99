package auth

import (
	"errors"
	"time"

	"clearlot/config"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// AccessClaims is the marketplace identity embedded in short-lived access
// tokens. Role travels in the token so admin gating needs no user lookup per
// request.
type AccessClaims struct {
	UserID uint   `json:"uid"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// RefreshClaims carries nothing but the user id; email and role are re-read
// from the user row when the pair is reissued, so a role change takes effect
// on the next refresh.
type RefreshClaims struct {
	UserID uint `json:"uid"`
	jwt.RegisteredClaims
}

func GenerateAccessToken(cfg *config.JWTConfig, userID uint, email, role string) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.AccessExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    cfg.Issuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.AccessSecret))
}

func GenerateRefreshToken(cfg *config.JWTConfig, userID uint) (string, error) {
	now := time.Now()
	claims := RefreshClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.RefreshExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    cfg.Issuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.RefreshSecret))
}

func ParseAccessToken(cfg *config.JWTConfig, tokenString string) (*AccessClaims, error) {
	var claims AccessClaims
	if err := parseInto(tokenString, &claims, cfg.AccessSecret, cfg.Issuer); err != nil {
		return nil, err
	}
	return &claims, nil
}

func ParseRefreshToken(cfg *config.JWTConfig, tokenString string) (*RefreshClaims, error) {
	var claims RefreshClaims
	if err := parseInto(tokenString, &claims, cfg.RefreshSecret, cfg.Issuer); err != nil {
		return nil, err
	}
	return &claims, nil
}

// parseInto validates signature, expiry, signing method and issuer. Pinning
// HS256 keeps an alg-swapped token from ever reaching claim validation.
func parseInto(tokenString string, claims jwt.Claims, secret, issuer string) error {
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
	)
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}
	return nil
}
