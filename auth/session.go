// Package auth issues and verifies anonymous session tokens. A session is a
// random id carried as the JWT subject; no personal data is stored.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned for missing, malformed, forged, or expired
// tokens.
var ErrInvalidToken = errors.New("invalid token")

// DefaultTokenTTL matches the access token lifetime of the web client.
const DefaultTokenTTL = 30 * time.Minute

// Token is an issued anonymous session.
type Token struct {
	AccessToken string    `json:"access_token"` //nolint:gosec // G117: token response field
	TokenType   string    `json:"token_type"`
	ExpiresIn   int64     `json:"expires_in"`
	SessionID   string    `json:"-"`
	ExpiresAt   time.Time `json:"-"`
}

// Issuer signs and verifies HS256 session tokens.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an Issuer. A non-positive ttl uses DefaultTokenTTL.
func NewIssuer(secret []byte, issuer string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Issuer{secret: secret, issuer: issuer, ttl: ttl, now: time.Now}
}

// Issue creates a new anonymous session and its token.
func (i *Issuer) Issue() (*Token, error) {
	now := i.now()
	sessionID := uuid.NewString()

	claims := jwt.MapClaims{
		"sub":  sessionID,
		"type": "anonymous",
		"iat":  now.Unix(),
		"exp":  now.Add(i.ttl).Unix(),
	}
	if i.issuer != "" {
		claims["iss"] = i.issuer
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}
	return &Token{
		AccessToken: signed,
		TokenType:   "bearer",
		ExpiresIn:   int64(i.ttl.Seconds()),
		SessionID:   sessionID,
		ExpiresAt:   now.Add(i.ttl),
	}, nil
}

// Verify validates token and returns its session id.
func (i *Issuer) Verify(token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return i.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	if _, err := uuid.Parse(sub); err != nil {
		return "", ErrInvalidToken
	}
	return sub, nil
}
