package tokens

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoExpiry is returned when a token carries no usable exp claim.
var ErrNoExpiry = errors.New("token has no exp claim")

// ExpiresAt decodes the exp claim of a JWT access token without verifying its
// signature. The client cannot verify tokens (it does not hold the signing
// key); the value is informational and never used for access decisions.
func ExpiresAt(raw string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, err
	}
	if exp == nil {
		return time.Time{}, ErrNoExpiry
	}
	return exp.Time, nil
}

// Expired reports whether raw carries an exp claim in the past relative to now.
// Tokens without a decodable exp are never reported as expired.
func Expired(raw string, now time.Time) bool {
	exp, err := ExpiresAt(raw)
	if err != nil {
		return false
	}
	return !now.Before(exp)
}
