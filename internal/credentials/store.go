// Package credentials persists the two opaque session tokens.
//
// Every backend is scoped to an origin (scheme://host[:port] of the API the
// tokens were issued by). Processes configured with the same origin and the
// same backend see each other's writes; writes replace the whole value and the
// last write wins.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Key names one of the two persisted entries.
type Key string

const (
	AccessToken  Key = "access_token"
	RefreshToken Key = "refresh_token"
)

// Keys lists every key a Store accepts.
var Keys = []Key{AccessToken, RefreshToken}

var (
	// ErrUnknownKey is returned for any key other than AccessToken and RefreshToken.
	ErrUnknownKey = errors.New("credentials: unknown key")
	// ErrEmptyValue is returned by Set for an empty value; use Remove instead.
	ErrEmptyValue = errors.New("credentials: empty value")
)

// Valid reports whether k is one of the supported keys.
func (k Key) Valid() bool {
	return k == AccessToken || k == RefreshToken
}

// Store provides origin-scoped credential persistence.
type Store interface {
	// Get returns the stored value and whether it was present.
	Get(ctx context.Context, key Key) (string, bool, error)
	// Set replaces the stored value.
	Set(ctx context.Context, key Key, value string) error
	// Remove deletes the value. Removing a missing key is not an error.
	Remove(ctx context.Context, key Key) error
}

// Clear removes every key from s, returning the first error encountered after
// attempting all removals.
func Clear(ctx context.Context, s Store) error {
	var first error
	for _, k := range Keys {
		if err := s.Remove(ctx, k); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func checkSet(key Key, value string) error {
	if !key.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownKey, string(key))
	}
	if value == "" {
		return ErrEmptyValue
	}
	return nil
}

func checkKey(key Key) error {
	if !key.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownKey, string(key))
	}
	return nil
}

// OriginOf derives the storage origin from an API base URL.
func OriginOf(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("base url %q has no scheme or host", baseURL)
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), nil
}
