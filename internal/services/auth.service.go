package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultTokenExpiry = 90 * 24 * time.Hour
	tokenIssuer        = "raspimon"
	minSecretLength    = 32
)

var ErrAuthDisabled = errors.New("auth disabled: no secret configured")

// AuthService issues and verifies operator tokens for the mutating API
type AuthService struct {
	secretKey   []byte
	tokenExpiry time.Duration
	now         func() time.Time
}

// OperatorClaims represents the JWT claims structure. Subject names the operator.
type OperatorClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// NewAuthService builds the service. An empty secret disables authentication.
func NewAuthService(secretKey string, tokenExpiry time.Duration) *AuthService {
	if tokenExpiry <= 0 {
		tokenExpiry = DefaultTokenExpiry
	}
	return &AuthService{secretKey: []byte(secretKey), tokenExpiry: tokenExpiry, now: time.Now}
}

// Enabled reports whether tokens are required
func (a *AuthService) Enabled() bool {
	return a != nil && len(a.secretKey) > 0
}

// WeakSecret reports whether the secret is shorter than recommended for HMAC-SHA256
func (a *AuthService) WeakSecret() bool {
	return a.Enabled() && len(a.secretKey) < minSecretLength
}

// GenerateToken signs a token for subject. A non-positive expiry uses the configured default.
func (a *AuthService) GenerateToken(subject string, expiry time.Duration) (string, time.Time, error) {
	if !a.Enabled() {
		return "", time.Time{}, ErrAuthDisabled
	}
	if subject == "" {
		return "", time.Time{}, fmt.Errorf("%w: token subject is required", ErrConfiguration)
	}
	if expiry <= 0 {
		expiry = a.tokenExpiry
	}

	now := a.now()
	expiresAt := now.Add(expiry)
	claims := OperatorClaims{
		Role: "operator",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(a.secretKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ValidateToken verifies and parses a JWT token
func (a *AuthService) ValidateToken(tokenString string) (*OperatorClaims, error) {
	if !a.Enabled() {
		return nil, ErrAuthDisabled
	}

	claims := &OperatorClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secretKey, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
