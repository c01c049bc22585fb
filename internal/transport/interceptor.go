// Package transport wraps every outbound API request with the session's
// credentials and turns authorization failures into a single, observable
// AuthorizationExpired outcome.
//
// The interceptor never navigates and never retries. On a 401 for any request
// not marked Public it clears the stored tokens, runs the registered
// hooks synchronously, publishes an Event for the application's top-level
// listener and hands the original response back to the caller. The refresh
// token is never presented to any endpoint: expiry always means a full login.
package transport

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/iub-eis/eis/frontend/go-dashboard/internal/credentials"
	"github.com/iub-eis/eis/frontend/go-dashboard/pkg/logger"
	"github.com/iub-eis/eis/frontend/go-dashboard/pkg/metrics"
)

// ErrAuthorizationExpired marks a 401 received on a non-public call.
var ErrAuthorizationExpired = errors.New("authorization expired")

// RequestIDHeader is attached to every outbound request that lacks one.
const RequestIDHeader = "X-Request-ID"

const eventBuffer = 16

// Event describes one AuthorizationExpired outcome.
type Event struct {
	Method    string
	Path      string
	Status    int
	RequestID string
	At        time.Time
	// AccessToken is the token the failed request carried, empty when the
	// store held none. Hooks use it to ignore responses that belong to an
	// older session.
	AccessToken string `json:"-"`
}

// ExpiredFunc is a synchronous AuthorizationExpired hook.
type ExpiredFunc func(ctx context.Context, ev Event)

type publicKey struct{}

// Public marks requests made with ctx as unauthenticated: no bearer token is
// attached and a 401 is an ordinary response, not an expiry.
func Public(ctx context.Context) context.Context {
	return context.WithValue(ctx, publicKey{}, true)
}

// IsPublic reports whether ctx was marked with Public.
func IsPublic(ctx context.Context) bool {
	v, _ := ctx.Value(publicKey{}).(bool)
	return v
}

// Interceptor is an http.RoundTripper reading the access token from a
// credentials.Store on every request.
type Interceptor struct {
	base  http.RoundTripper
	store credentials.Store
	now   func() time.Time

	mu     sync.RWMutex
	hooks  []ExpiredFunc
	events chan Event
}

// New wraps base (http.DefaultTransport when nil).
func New(store credentials.Store, base http.RoundTripper) *Interceptor {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Interceptor{
		base:   base,
		store:  store,
		now:    time.Now,
		events: make(chan Event, eventBuffer),
	}
}

// OnAuthorizationExpired registers a hook run synchronously, in registration
// order, before the failed response is returned to the caller.
func (i *Interceptor) OnAuthorizationExpired(fn ExpiredFunc) {
	if fn == nil {
		return
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.hooks = append(i.hooks, fn)
}

// Events delivers AuthorizationExpired outcomes to the application's single
// top-level listener. Events are dropped when the listener falls behind.
func (i *Interceptor) Events() <-chan Event {
	return i.events
}

func (i *Interceptor) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	out := req.Clone(ctx)
	if out.Header.Get(RequestIDHeader) == "" {
		out.Header.Set(RequestIDHeader, uuid.NewString())
	}

	var token string
	if IsPublic(ctx) {
		out.Header.Del("Authorization")
	} else {
		t, ok, err := i.store.Get(ctx, credentials.AccessToken)
		switch {
		case err != nil:
			logger.Warnf("transport: reading access token failed, sending unauthenticated: %v", err)
		case ok:
			token = t
			out.Header.Set("Authorization", "Bearer "+t)
		}
	}

	resp, err := i.base.RoundTrip(out)
	if err != nil {
		return nil, err
	}
	if resp.Request == nil {
		resp.Request = out
	}
	metrics.APIResponses.WithLabelValues(statusClass(resp.StatusCode)).Inc()

	// a 401 without a token still ends the session: another process sharing
	// the store may have signed out
	if resp.StatusCode == http.StatusUnauthorized && !IsPublic(ctx) {
		i.expire(ctx, Event{
			Method:      out.Method,
			Path:        out.URL.Path,
			Status:      resp.StatusCode,
			RequestID:   out.Header.Get(RequestIDHeader),
			At:          i.now(),
			AccessToken: token,
		})
	}
	return resp, nil
}

func (i *Interceptor) expire(ctx context.Context, ev Event) {
	metrics.AuthorizationExpired.Inc()
	// cleanup must complete even if the caller gives up on the request
	ctx = context.WithoutCancel(ctx)

	current, ok, err := i.store.Get(ctx, credentials.AccessToken)
	switch {
	case err != nil:
		logger.Warnf("transport: reading access token during expiry: %v", err)
		if err := credentials.Clear(ctx, i.store); err != nil {
			logger.Errorf("transport: clearing credentials: %v", err)
		}
	case ok && current != ev.AccessToken:
		logger.Debugf("transport: 401 for %s %s belongs to an older session, stored tokens kept", ev.Method, ev.Path)
	default:
		if err := credentials.Clear(ctx, i.store); err != nil {
			logger.Errorf("transport: clearing credentials: %v", err)
		}
	}
	logger.Infof("transport: authorization expired on %s %s (request_id=%s)", ev.Method, ev.Path, ev.RequestID)

	i.mu.RLock()
	hooks := append([]ExpiredFunc(nil), i.hooks...)
	i.mu.RUnlock()
	for _, fn := range hooks {
		fn(ctx, ev)
	}

	select {
	case i.events <- ev:
	default:
		logger.Warnf("transport: expiry listener is behind, event for %s dropped", ev.Path)
	}
}

// Expired reports whether resp is an AuthorizationExpired outcome: a 401 on a
// request that was not marked public.
func Expired(resp *http.Response) bool {
	if resp == nil || resp.StatusCode != http.StatusUnauthorized || resp.Request == nil {
		return false
	}
	return !IsPublic(resp.Request.Context())
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	}
	return "1xx"
}
