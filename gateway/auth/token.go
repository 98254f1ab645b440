package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"satvault/crypto"
)

const defaultClockSkew = 2 * time.Minute

var (
	ErrSecretRequired = errors.New("auth: signing secret not configured")
	ErrInvalidToken   = errors.New("auth: invalid token")
)

// Claims carries the caller identity in the registered subject claim.
type Claims struct {
	jwt.RegisteredClaims
}

// TokenConfig controls issuing and verifying caller tokens.
type TokenConfig struct {
	Secret    string
	Issuer    string
	Audience  string
	ClockSkew time.Duration
}

func (c TokenConfig) secret() ([]byte, error) {
	trimmed := strings.TrimSpace(c.Secret)
	if trimmed == "" {
		return nil, ErrSecretRequired
	}
	return []byte(trimmed), nil
}

// IssueToken signs an HS256 token naming caller as its subject.
func IssueToken(cfg TokenConfig, caller crypto.Address, ttl time.Duration, now time.Time) (string, error) {
	secret, err := cfg.secret()
	if err != nil {
		return "", err
	}
	if caller.IsZero() {
		return "", fmt.Errorf("auth: caller address required")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   caller.String(),
		Issuer:    cfg.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}}
	if cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{cfg.Audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseToken verifies tokenString and returns the caller it names.
func ParseToken(cfg TokenConfig, tokenString string) (crypto.Address, error) {
	secret, err := cfg.secret()
	if err != nil {
		return crypto.Address{}, err
	}
	skew := cfg.ClockSkew
	if skew <= 0 {
		skew = defaultClockSkew
	}
	opts := []jwt.ParserOption{
		jwt.WithLeeway(skew),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return crypto.Address{}, ErrInvalidToken
	}
	caller, err := crypto.DecodeAddress(strings.TrimSpace(claims.Subject))
	if err != nil {
		return crypto.Address{}, fmt.Errorf("%w: subject: %v", ErrInvalidToken, err)
	}
	if caller.IsZero() {
		return crypto.Address{}, fmt.Errorf("%w: zero subject", ErrInvalidToken)
	}
	return caller, nil
}
