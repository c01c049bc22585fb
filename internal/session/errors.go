package session

import "errors"

var (
	// ErrInvalidCredentials: the backend rejected the username/password pair.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrExchangeFailed: the credential exchange could not be completed
	// (network or server failure).
	ErrExchangeFailed = errors.New("credential exchange failed")
	// ErrProfileFetchFailed: the exchange succeeded but the profile call did
	// not. The freshly stored tokens are rolled back.
	ErrProfileFetchFailed = errors.New("profile fetch failed")
	// ErrLoginInProgress rejects a second Login while one is in flight.
	ErrLoginInProgress = errors.New("login already in progress")
	// ErrAlreadyAuthenticated rejects Login on an established session.
	ErrAlreadyAuthenticated = errors.New("already authenticated")
	// ErrSuperseded is returned by an operation whose result was discarded
	// because a logout, expiry or newer login happened while it ran.
	ErrSuperseded = errors.New("superseded by a newer session change")
	// ErrBootstrapFailed wraps the reason a stored token could not be restored.
	ErrBootstrapFailed = errors.New("bootstrap failed")
)
