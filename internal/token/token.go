// ABOUTME: Session token issue/verify using HS256 signed JWTs
// ABOUTME: Verification returns a typed result instead of raising on bad input

package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Status classifies the outcome of verifying a session token.
type Status string

const (
	StatusValid        Status = "valid"
	StatusExpired      Status = "expired"
	StatusBadSignature Status = "bad_signature"
	StatusMalformed    Status = "malformed"

	// StatusRevoked covers both an explicitly revoked token and a token whose
	// device no longer exists. The registry sets it; the codec never does.
	StatusRevoked Status = "revoked"
)

// Result is the outcome of Verify. DeviceID is set only when Status is
// StatusValid.
type Result struct {
	Status   Status
	DeviceID string
}

// Valid reports whether the token passed every codec-level check.
func (r Result) Valid() bool {
	return r.Status == StatusValid
}

// Codec signs and verifies session tokens with a shared HMAC secret.
type Codec struct {
	secret []byte
}

// NewCodec creates a codec signing with the given secret.
func NewCodec(secret []byte) *Codec {
	return &Codec{secret: secret}
}

// Issue creates a signed token binding the device ID for the given lifetime.
// Claims are sub (device ID), iat, and exp in Unix seconds.
func (c *Codec) Issue(deviceID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": deviceID,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify checks the token's structure, signature, and expiry. It never
// returns an error: every failure mode maps to a non-valid Status so callers
// can collapse them to a single unauthorized outcome.
func (c *Codec) Verify(tokenString string) Result {
	tok, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	})

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return Result{Status: StatusExpired}
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return Result{Status: StatusBadSignature}
		default:
			return Result{Status: StatusMalformed}
		}
	}

	if !tok.Valid {
		return Result{Status: StatusMalformed}
	}

	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Result{Status: StatusMalformed}
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return Result{Status: StatusMalformed}
	}

	return Result{Status: StatusValid, DeviceID: sub}
}
