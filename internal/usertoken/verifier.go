// Package usertoken verifies the access tokens issued by the hosted auth
// backend. Tokens are HS256 JWTs signed with the project secret; the subject
// is the user id that owns dreams.
package usertoken

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	defaultAudience = "authenticated"
	defaultLeeway   = 30 * time.Second
	minSecretLen    = 32
)

var (
	// ErrMissingToken is returned for empty bearer values.
	ErrMissingToken = errors.New("access token missing")
	// ErrInvalidToken covers signature, expiry and claim failures.
	ErrInvalidToken = errors.New("access token invalid")
)

// Config configures user access-token verification.
type Config struct {
	Secret   string
	Issuer   string
	Audience string
	Leeway   time.Duration
}

// Claims are the fields the services read from an access token.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the verified caller.
type Identity struct {
	UserID string
	Email  string
}

// Verifier validates user access tokens and extracts the caller identity.
type Verifier struct {
	secret   []byte
	issuer   string
	audience string
	leeway   time.Duration
}

// NewVerifier creates a token verifier.
func NewVerifier(cfg Config) (*Verifier, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if len(secret) < minSecretLen {
		return nil, fmt.Errorf("token verifier requires a secret of at least %d bytes", minSecretLen)
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = defaultAudience
	}
	leeway := cfg.Leeway
	if leeway <= 0 {
		leeway = defaultLeeway
	}
	return &Verifier{
		secret:   []byte(secret),
		issuer:   strings.TrimSpace(cfg.Issuer),
		audience: audience,
		leeway:   leeway,
	}, nil
}

// Verify validates the token and returns the caller identity.
func (v *Verifier) Verify(token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, ErrMissingToken
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		if err == nil {
			err = errors.New("token not valid")
		}
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return Identity{}, fmt.Errorf("%w: subject missing", ErrInvalidToken)
	}
	return Identity{UserID: subject, Email: claims.Email}, nil
}

// VerifySubject validates the token and returns the subject user ID.
func (v *Verifier) VerifySubject(token string) (string, error) {
	id, err := v.Verify(token)
	if err != nil {
		return "", err
	}
	return id.UserID, nil
}

// Issue signs a token for userID. Used by the CLI for local development and by tests.
func (v *Verifier) Issue(userID, email string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", errors.New("user id is required")
	}
	now := time.Now().UTC()
	claims := Claims{
		Email: email,
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    v.issuer,
			Audience:  jwt.ClaimStrings{v.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
