package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/iub-eis/eis/frontend/go-dashboard/internal/apitest"
	"github.com/iub-eis/eis/frontend/go-dashboard/internal/credentials"
	"github.com/iub-eis/eis/frontend/go-dashboard/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ali = apitest.User{
	ID: 7, Username: "ali", Password: "correct", Email: "ali@iub.edu.bd",
	Role: "student", Department: "CSE", Access: "AAA", Refresh: "BBB",
}

func newClient(t *testing.T, b *apitest.Backend) (*Client, credentials.Store, *transport.Interceptor) {
	t.Helper()
	store := credentials.NewMemoryStore()
	ic := transport.New(store, nil)
	c, err := NewClient(b.BaseURL(), ic, 5*time.Second)
	require.NoError(t, err)
	return c, store, ic
}

func TestNewClient_RejectsBadBaseURL(t *testing.T) {
	_, err := NewClient("not a url", nil, time.Second)
	require.Error(t, err)
	_, err = NewClient("127.0.0.1:8000", nil, time.Second)
	require.Error(t, err)
}

func TestExchange_Success(t *testing.T) {
	b := apitest.NewBackend(t, ali)
	c, _, _ := newClient(t, b)

	pair, err := c.Exchange(context.Background(), "ali", "correct")
	require.NoError(t, err)
	assert.Equal(t, TokenPair{Access: "AAA", Refresh: "BBB"}, pair)
}

func TestExchange_RejectedCredentialsDoNotExpireSession(t *testing.T) {
	b := apitest.NewBackend(t, ali)
	c, store, ic := newClient(t, b)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, credentials.AccessToken, "AAA"))

	_, err := c.Exchange(ctx, "ali", "wrong")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRejected))
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Contains(t, apiErr.Message, "No active account")

	v, ok, _ := store.Get(ctx, credentials.AccessToken)
	assert.True(t, ok)
	assert.Equal(t, "AAA", v)
	select {
	case <-ic.Events():
		t.Fatal("a rejected login is not an authorization expiry")
	default:
	}
}

func TestExchange_NetworkFailureIsNotRejection(t *testing.T) {
	b := apitest.NewBackend(t, ali)
	c, _, _ := newClient(t, b)
	b.Server.Close()

	_, err := c.Exchange(context.Background(), "ali", "correct")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrRejected))
}

func TestProfile_UsesStoredToken(t *testing.T) {
	b := apitest.NewBackend(t, ali)
	c, store, _ := newClient(t, b)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, credentials.AccessToken, "AAA"))

	p, err := c.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.ID)
	assert.Equal(t, "ali", p.Username)
	assert.Equal(t, "student", p.Role)
	assert.Equal(t, "CSE", p.Department)
}

func TestProfile_RevokedTokenExpires(t *testing.T) {
	b := apitest.NewBackend(t, ali)
	c, store, _ := newClient(t, b)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, credentials.AccessToken, "AAA"))
	require.NoError(t, store.Set(ctx, credentials.RefreshToken, "BBB"))
	b.Revoke("AAA")

	_, err := c.Profile(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, transport.ErrAuthorizationExpired))
	_, ok, _ := store.Get(ctx, credentials.RefreshToken)
	assert.False(t, ok)
}

func TestRegister_SurfacesFieldErrors(t *testing.T) {
	b := apitest.NewBackend(t)
	c, store, _ := newClient(t, b)

	err := c.Register(context.Background(), RegisterRequest{Username: "new", Password: "short"})
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Contains(t, apiErr.Message, "at least 8 characters")

	require.NoError(t, c.Register(context.Background(), RegisterRequest{Username: "new", Password: "long-enough", Role: "teacher"}))
	assert.Equal(t, 0, store.(*credentials.MemoryStore).Len(), "registration never stores credentials")
}

func TestDo_PassesThroughAndExpires(t *testing.T) {
	b := apitest.NewBackend(t, ali)
	c, store, _ := newClient(t, b)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, credentials.AccessToken, "AAA"))

	resp, err := c.Do(ctx, http.MethodGet, "echo/alerts?page=2", nil, http.Header{"X-Trace": {"t1"}})
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got map[string]string
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "/api/echo/alerts", got["path"])
	assert.Equal(t, "page=2", got["query"])
	assert.Equal(t, "ali", got["user"])

	b.Revoke("AAA")
	resp, err = c.Do(ctx, http.MethodGet, "/echo/alerts", nil, nil)
	assert.Nil(t, resp)
	require.Error(t, err)
	assert.True(t, errors.Is(err, transport.ErrAuthorizationExpired))
}

func TestDo_UnauthorizedWithoutTokenExpires(t *testing.T) {
	b := apitest.NewBackend(t, ali)
	c, _, ic := newClient(t, b)

	resp, err := c.Do(context.Background(), http.MethodGet, "/echo/alerts", nil, nil)
	assert.Nil(t, resp)
	require.ErrorIs(t, err, transport.ErrAuthorizationExpired)
	select {
	case ev := <-ic.Events():
		assert.Equal(t, "/api/echo/alerts", ev.Path)
		assert.Empty(t, ev.AccessToken)
	default:
		t.Fatal("expected an expiry event")
	}
}
