// Package state signs the OAuth state parameter. A signed state survives
// restarts, is bound to one client ID and can optionally be bound to the
// browser that asked for it through a nonce cookie.
package state

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "membrs"

// ErrInvalid is returned for a state that is malformed, forged, expired or
// issued for another client.
var ErrInvalid = errors.New("invalid oauth state")

type claims struct {
	jwt.RegisteredClaims
	Nonce string `json:"nonce,omitempty"`
}

// Signer issues and verifies HS256-signed states.
type Signer struct {
	key []byte
	now func() time.Time
}

// NewSigner creates a signer for key.
func NewSigner(key []byte) *Signer {
	return &Signer{key: key, now: time.Now}
}

// WithClock replaces the signer's time source.
func (s *Signer) WithClock(now func() time.Time) *Signer {
	s.now = now
	return s
}

// Issue signs a state for clientID. A non-empty nonce must later be matched
// by the caller; ttl <= 0 issues a state without expiry.
func (s *Signer) Issue(clientID, nonce string, ttl time.Duration) (string, error) {
	now := s.now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   issuer,
			Audience: jwt.ClaimStrings{clientID},
			IssuedAt: jwt.NewNumericDate(now),
		},
		Nonce: nonce,
	}
	if ttl > 0 {
		c.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign state: %w", err)
	}
	return signed, nil
}

// Verify checks state's signature, client and expiry and returns its nonce.
func (s *Signer) Verify(state, clientID string) (string, error) {
	if state == "" {
		return "", ErrInvalid
	}
	var c claims
	_, err := jwt.ParseWithClaims(state, &c, func(*jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(clientID),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return c.Nonce, nil
}
