// Package session owns the authentication state machine of a running
// application: restoring a session from stored credentials, logging in and
// out, and resetting when the transport reports an authorization expiry.
//
// A Manager is the single owner of the Session. Consumers read snapshots via
// Current and never mutate state directly.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/iub-eis/eis/frontend/go-dashboard/internal/api"
	"github.com/iub-eis/eis/frontend/go-dashboard/internal/credentials"
	"github.com/iub-eis/eis/frontend/go-dashboard/internal/tokens"
	"github.com/iub-eis/eis/frontend/go-dashboard/internal/transport"
	"github.com/iub-eis/eis/frontend/go-dashboard/pkg/logger"
	"github.com/iub-eis/eis/frontend/go-dashboard/pkg/metrics"
)

// Remote is the subset of the backend the Manager depends on. *api.Client
// satisfies it.
type Remote interface {
	Exchange(ctx context.Context, username, password string) (api.TokenPair, error)
	Profile(ctx context.Context) (api.Profile, error)
	Register(ctx context.Context, req api.RegisterRequest) error
}

// Manager drives the session state machine.
type Manager struct {
	store  credentials.Store
	remote Remote

	snap atomic.Pointer[Session]

	// mu serialises transitions and the store writes that go with them.
	mu sync.Mutex
	// gen is bumped by every transition that invalidates in-flight work
	// (login start, logout, expiry). Late results from an older generation
	// are discarded.
	gen         uint64
	loginActive bool
	loginSeen   bool

	bootOnce sync.Once
	bootErr  error
}

// NewManager builds a Manager. The initial status is Bootstrapping when an
// access token is stored and Anonymous otherwise; no network call is made
// until Bootstrap.
func NewManager(ctx context.Context, store credentials.Store, remote Remote) (*Manager, error) {
	if store == nil || remote == nil {
		return nil, errors.New("session: store and remote are required")
	}
	m := &Manager{store: store, remote: remote}
	_, ok, err := store.Get(ctx, credentials.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("session: read stored credentials: %w", err)
	}
	initial := Session{Status: Anonymous}
	if ok {
		initial.Status = Bootstrapping
	}
	m.snap.Store(&initial)
	return m, nil
}

// Current returns a snapshot of the session. It never blocks.
func (m *Manager) Current() Session {
	s := *m.snap.Load()
	if s.Identity != nil {
		id := *s.Identity
		s.Identity = &id
	}
	return s
}

// set publishes next. Callers hold mu.
func (m *Manager) set(next Session) {
	prev := m.snap.Load()
	m.snap.Store(&next)
	if prev.Status != next.Status {
		metrics.SessionTransitions.WithLabelValues(prev.Status.String(), next.Status.String()).Inc()
		if next.Identity != nil {
			logger.Infof("session: %s -> %s (user=%s role=%s)", prev.Status, next.Status, next.Identity.Username, next.Identity.Role)
		} else {
			logger.Infof("session: %s -> %s", prev.Status, next.Status)
		}
	}
}

// Bootstrap restores the session from the credential store. It runs once per
// Manager; later calls return the first call's result. Without a stored token
// it settles on Anonymous without any network call. When the profile cannot
// be fetched the stored access token is removed and the session falls back to
// Anonymous; the returned error wraps ErrBootstrapFailed and is meant for logs
// only. Bootstrap does nothing once a login has started.
func (m *Manager) Bootstrap(ctx context.Context) error {
	m.bootOnce.Do(func() { m.bootErr = m.bootstrap(ctx) })
	return m.bootErr
}

func (m *Manager) bootstrap(ctx context.Context) error {
	m.mu.Lock()
	if m.loginSeen {
		m.mu.Unlock()
		logger.Debugf("session: bootstrap skipped, a login already started")
		return nil
	}
	gen := m.gen
	token, ok, err := m.store.Get(ctx, credentials.AccessToken)
	if err != nil {
		m.set(Session{Status: Anonymous})
		m.mu.Unlock()
		logger.Warnf("session: bootstrap could not read credentials: %v", err)
		return fmt.Errorf("%w: %v", ErrBootstrapFailed, err)
	}
	if !ok {
		m.set(Session{Status: Anonymous})
		m.mu.Unlock()
		return nil
	}
	refresh, _, _ := m.store.Get(ctx, credentials.RefreshToken)
	m.set(Session{Status: Bootstrapping})
	m.mu.Unlock()

	prof, err := m.remote.Profile(ctx)
	var id Identity
	if err == nil {
		id, err = identityFrom(prof)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen || m.loginSeen {
		logger.Debugf("session: bootstrap result discarded")
		return ErrSuperseded
	}
	if err != nil {
		if rmErr := m.store.Remove(context.WithoutCancel(ctx), credentials.AccessToken); rmErr != nil {
			logger.Errorf("session: removing stale access token: %v", rmErr)
		}
		m.set(Session{Status: Anonymous})
		logger.Infof("session: stored token could not be restored: %v", err)
		return fmt.Errorf("%w: %w", ErrBootstrapFailed, err)
	}
	m.set(authenticated(token, refresh, id))
	return nil
}

// Login exchanges username and password for tokens, persists them and fetches
// the profile, strictly in that order.
//
// A rejected exchange leaves the session Anonymous and the store untouched. A
// failed exchange moves to Error. A failed profile fetch removes the tokens
// just written and moves to Error. If a logout or expiry lands while Login is
// waiting on the backend, its result is discarded and ErrSuperseded returned.
func (m *Manager) Login(ctx context.Context, username, password string) (Identity, error) {
	m.mu.Lock()
	if m.loginActive {
		m.mu.Unlock()
		metrics.LoginResults.WithLabelValues("in_progress").Inc()
		return Identity{}, ErrLoginInProgress
	}
	if m.snap.Load().Status == Authenticated {
		m.mu.Unlock()
		metrics.LoginResults.WithLabelValues("already_authenticated").Inc()
		return Identity{}, ErrAlreadyAuthenticated
	}
	m.loginActive = true
	m.loginSeen = true
	m.gen++
	gen := m.gen
	m.set(Session{Status: Authenticating})
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.loginActive = false
		m.mu.Unlock()
	}()

	id, result, err := m.login(ctx, gen, username, password)
	metrics.LoginResults.WithLabelValues(result).Inc()
	return id, err
}

func (m *Manager) login(ctx context.Context, gen uint64, username, password string) (Identity, string, error) {
	pair, err := m.remote.Exchange(ctx, username, password)
	if err != nil {
		if errors.Is(err, api.ErrRejected) {
			if !m.commit(gen, Session{Status: Anonymous}) {
				return Identity{}, "superseded", ErrSuperseded
			}
			logger.Infof("session: login rejected for %s", username)
			return Identity{}, "invalid_credentials", fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
		}
		wrapped := fmt.Errorf("%w: %w", ErrExchangeFailed, err)
		if !m.commit(gen, Session{Status: Error, Err: wrapped}) {
			return Identity{}, "superseded", ErrSuperseded
		}
		logger.Warnf("session: credential exchange failed: %v", err)
		return Identity{}, "exchange_failed", wrapped
	}

	// the profile endpoint authenticates with the stored token, so it must be
	// written before the profile call goes out
	if err := m.persist(ctx, gen, pair); err != nil {
		if errors.Is(err, ErrSuperseded) {
			return Identity{}, "superseded", err
		}
		wrapped := fmt.Errorf("%w: %w", ErrExchangeFailed, err)
		m.commit(gen, Session{Status: Error, Err: wrapped})
		return Identity{}, "exchange_failed", wrapped
	}

	prof, err := m.remote.Profile(ctx)
	var id Identity
	if err == nil {
		id, err = identityFrom(prof)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return Identity{}, "superseded", ErrSuperseded
	}
	if err != nil {
		wrapped := fmt.Errorf("%w: %w", ErrProfileFetchFailed, err)
		if rbErr := credentials.Clear(context.WithoutCancel(ctx), m.store); rbErr != nil {
			logger.Errorf("session: rolling back tokens after profile failure: %v", rbErr)
		}
		m.set(Session{Status: Error, Err: wrapped})
		logger.Warnf("session: profile fetch after login failed: %v", err)
		return Identity{}, "profile_failed", wrapped
	}
	m.set(authenticated(pair.Access, pair.Refresh, id))
	return id, "success", nil
}

// persist writes both tokens unless the login was superseded.
func (m *Manager) persist(ctx context.Context, gen uint64, pair api.TokenPair) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return ErrSuperseded
	}
	if err := m.store.Set(ctx, credentials.AccessToken, pair.Access); err != nil {
		return fmt.Errorf("store access token: %w", err)
	}
	if pair.Refresh == "" {
		return m.store.Remove(ctx, credentials.RefreshToken)
	}
	if err := m.store.Set(ctx, credentials.RefreshToken, pair.Refresh); err != nil {
		_ = m.store.Remove(context.WithoutCancel(ctx), credentials.AccessToken)
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

// commit publishes next if gen is still current.
func (m *Manager) commit(gen uint64, next Session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return false
	}
	m.set(next)
	return true
}

// Logout removes both stored tokens and resets the session to Anonymous.
// Calling it on an anonymous session is a no-op apart from the removals.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	err := credentials.Clear(ctx, m.store)
	m.set(Session{Status: Anonymous})
	if err != nil {
		return fmt.Errorf("session: clear credentials: %w", err)
	}
	return nil
}

// Expire is the transport's AuthorizationExpired hook. It resets an
// authenticated session to Anonymous when the failed request carried the
// session's current access token, or no token at all (the store was cleared
// by another process). Responses belonging to an older session are ignored.
// The transport has already cleared the store.
func (m *Manager) Expire(ctx context.Context, ev transport.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.snap.Load()
	if cur.Status != Authenticated || (ev.AccessToken != "" && ev.AccessToken != cur.AccessToken) {
		logger.Debugf("session: expiry for %s %s ignored (status=%s)", ev.Method, ev.Path, cur.Status)
		return
	}
	m.gen++
	m.set(Session{Status: Anonymous})
	logger.Infof("session: authorization expired on %s %s, signed out", ev.Method, ev.Path)
}

// Register creates a new account. It never changes the session.
func (m *Manager) Register(ctx context.Context, req api.RegisterRequest) error {
	if req.Role != "" {
		r, err := ParseRole(req.Role)
		if err != nil {
			return err
		}
		req.Role = r.String()
	}
	if err := m.remote.Register(ctx, req); err != nil {
		logger.Infof("session: registration of %s failed: %v", req.Username, err)
		return err
	}
	logger.Infof("session: registered %s", req.Username)
	return nil
}

func identityFrom(p api.Profile) (Identity, error) {
	role, err := ParseRole(p.Role)
	if err != nil {
		return Identity{}, err
	}
	return Identity{
		ID:         p.ID,
		Username:   p.Username,
		Email:      p.Email,
		Role:       role,
		Department: p.Department,
	}, nil
}

func authenticated(access, refresh string, id Identity) Session {
	s := Session{
		Status:       Authenticated,
		AccessToken:  access,
		RefreshToken: refresh,
		Identity:     &id,
	}
	if exp, err := tokens.ExpiresAt(access); err == nil {
		s.ExpiresAt = exp
	}
	return s
}
