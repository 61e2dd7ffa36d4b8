package http

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dkeye/Call/internal/domain"
)

var ErrInvalidToken = errors.New("invalid token")

// TokenIssuer signs HS256 bearer tokens whose subject is the member id.
// Non-browser clients (callctl, native apps) use them instead of the
// session cookie.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer returns an issuer; ttl <= 0 issues tokens without expiry.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (t *TokenIssuer) Issue(id domain.MemberID) (string, error) {
	now := t.now()
	claims := jwt.RegisteredClaims{
		Subject:  id.String(),
		ID:       uuid.NewString(),
		IssuedAt: jwt.NewNumericDate(now),
	}
	if t.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(t.ttl))
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (t *TokenIssuer) Verify(raw string) (domain.MemberID, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	id, err := domain.ParseMemberID(claims.Subject)
	if err != nil {
		return 0, fmt.Errorf("%w: subject: %v", ErrInvalidToken, err)
	}
	return id, nil
}
