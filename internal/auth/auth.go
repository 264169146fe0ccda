package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// VisitorTokenTTL is how long an anonymous reader keeps the same identity.
const VisitorTokenTTL = 30 * 24 * time.Hour

var (
	ErrInvalidToken       = errors.New("invalid visitor token")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type visitorClaims struct {
	VisitorID string `json:"visitor_id"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies visitor identity tokens (HS256).
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) (*Tokens, error) {
	if len(secret) < 16 {
		return nil, errors.New("jwt secret must be at least 16 bytes")
	}
	if ttl <= 0 {
		ttl = VisitorTokenTTL
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue creates a new visitor id and its signed token.
func (t *Tokens) Issue() (visitorID, token string, expires time.Time, err error) {
	visitorID = uuid.NewString()
	now := t.now()
	expires = now.Add(t.ttl)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, visitorClaims{
		VisitorID: visitorID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   visitorID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})
	token, err = tok.SignedString(t.secret)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("sign visitor token: %w", err)
	}
	return visitorID, token, expires, nil
}

// Parse returns the visitor id carried by a valid token.
func (t *Tokens) Parse(raw string) (string, error) {
	parsed, err := jwt.ParseWithClaims(raw, &visitorClaims{}, func(token *jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*visitorClaims)
	if !ok || !parsed.Valid || claims.VisitorID == "" {
		return "", ErrInvalidToken
	}
	if _, err := uuid.Parse(claims.VisitorID); err != nil {
		return "", ErrInvalidToken
	}
	return claims.VisitorID, nil
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
