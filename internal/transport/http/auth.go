package http

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var errUnauthorized = errors.New("unauthorized")

// Authenticator checks that a websocket token was issued for the connecting player.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator returns nil when secret is empty, which disables the check.
func NewAuthenticator(secret string) *Authenticator {
	if secret == "" {
		return nil
	}
	return &Authenticator{secret: []byte(secret)}
}

// Issue signs an HS256 token whose subject is playerID.
func (a *Authenticator) Issue(playerID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   playerID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Verify accepts tokens signed with the shared secret for playerID only.
func (a *Authenticator) Verify(tokenStr, playerID string) error {
	if tokenStr == "" {
		return errUnauthorized
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", errUnauthorized, err)
	}
	if !token.Valid || claims.Subject != playerID {
		return errUnauthorized
	}
	return nil
}
