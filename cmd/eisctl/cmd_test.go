package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/iub-eis/eis/frontend/go-dashboard/internal/api"
	"github.com/iub-eis/eis/frontend/go-dashboard/internal/apitest"
	"github.com/iub-eis/eis/frontend/go-dashboard/internal/credentials"
	"github.com/iub-eis/eis/frontend/go-dashboard/internal/session"
	"github.com/iub-eis/eis/frontend/go-dashboard/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nadia = apitest.User{ID: 7, Username: "nadia", Password: "correct", Email: "nadia@iub.edu.bd", Role: "counselor", Department: "CSE", Access: "AAA", Refresh: "BBB"}

// env is one backend plus the store every invocation shares.
type env struct {
	backend *apitest.Backend
	store   *credentials.MemoryStore
}

func setup(t *testing.T) *env {
	t.Helper()
	return &env{backend: apitest.NewBackend(t, nadia), store: credentials.NewMemoryStore()}
}

// invoke runs one eisctl process against the shared store.
func (e *env) invoke(t *testing.T, args ...string) (string, error) {
	t.Helper()
	ctx := context.Background()
	ic := transport.New(e.store, nil)
	client, err := api.NewClient(e.backend.BaseURL(), ic, 5*time.Second)
	require.NoError(t, err)
	mgr, err := session.NewManager(ctx, e.store, client)
	require.NoError(t, err)
	ic.OnAuthorizationExpired(mgr.Expire)

	var out bytes.Buffer
	cli := &commandLine{sess: mgr, out: &out}
	err = cli.run(ctx, append([]string{"eisctl"}, args...))
	return out.String(), err
}

func withPassword(t *testing.T, pwd string) {
	t.Helper()
	old := readPasswordFunc
	readPasswordFunc = func(int) ([]byte, error) { return []byte(pwd), nil }
	t.Cleanup(func() { readPasswordFunc = old })
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
}

func Test_commandLine_usage(t *testing.T) {
	e := setup(t)
	withPassword(t, "correct")
	tests := []cliTest{
		{name: "no command", args: nil, wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "login: no username", args: []string{"login"}, wantErr: errHelp},
		{name: "login: bad flag", args: []string{"login", "-user", "x"}, wantErr: errHelp},
		{name: "register: no role", args: []string{"register", "-username", "x"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.invoke(t, tt.args...)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func Test_commandLine_loginStatusLogout(t *testing.T) {
	e := setup(t)

	withPassword(t, "wrong")
	_, err := e.invoke(t, "login", "-username", "nadia")
	require.EqualError(t, err, "invalid username or password")
	_, ok, _ := e.store.Get(context.Background(), credentials.AccessToken)
	assert.False(t, ok)

	withPassword(t, "correct")
	out, err := e.invoke(t, "login", "-username", "nadia")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as nadia (counselor). Dashboard: /counselor")

	// a later invocation restores the stored session
	out, err = e.invoke(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "AUTHENTICATED as nadia (counselor)")

	out, err = e.invoke(t, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "email:      nadia@iub.edu.bd")
	assert.Contains(t, out, "department: CSE")

	_, err = e.invoke(t, "login", "-username", "nadia")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already signed in as nadia")

	out, err = e.invoke(t, "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed out.")

	out, err = e.invoke(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "ANONYMOUS")
	_, err = e.invoke(t, "whoami")
	require.EqualError(t, err, "not signed in")
}

func Test_commandLine_statusAfterRevocation(t *testing.T) {
	e := setup(t)
	withPassword(t, "correct")
	_, err := e.invoke(t, "login", "-username", "nadia")
	require.NoError(t, err)

	e.backend.Revoke("AAA")
	out, err := e.invoke(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "ANONYMOUS")
	_, ok, _ := e.store.Get(context.Background(), credentials.AccessToken)
	assert.False(t, ok)
}

func Test_commandLine_statusShowsTokenExpiry(t *testing.T) {
	sign := func(exp time.Time) string {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": 8, "exp": exp.Unix()}).SignedString([]byte("backend-secret"))
		require.NoError(t, err)
		return tok
	}
	e := &env{
		backend: apitest.NewBackend(t,
			apitest.User{ID: 8, Username: "tanvir", Password: "correct", Role: "admin", Access: sign(time.Now().Add(8 * time.Hour)), Refresh: "R1"},
			apitest.User{ID: 9, Username: "sadia", Password: "correct", Role: "student", Access: sign(time.Now().Add(-time.Hour)), Refresh: "R2"},
		),
		store: credentials.NewMemoryStore(),
	}
	withPassword(t, "correct")

	_, err := e.invoke(t, "login", "-username", "tanvir")
	require.NoError(t, err)
	out, err := e.invoke(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "token expires ")

	_, err = e.invoke(t, "logout")
	require.NoError(t, err)
	// the backend still accepts it; the client only reports the exp claim
	_, err = e.invoke(t, "login", "-username", "sadia")
	require.NoError(t, err)
	out, err = e.invoke(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "AUTHENTICATED as sadia (student), token expired ")
}

func Test_commandLine_register(t *testing.T) {
	e := setup(t)

	withPassword(t, "short")
	_, err := e.invoke(t, "register", "-username", "karim", "-role", "student")
	var apiErr *api.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Contains(t, err.Error(), "at least 8 characters")

	_, err = e.invoke(t, "register", "-username", "karim", "-role", "dean")
	require.ErrorIs(t, err, session.ErrUnknownRole)

	withPassword(t, "long-enough")
	out, err := e.invoke(t, "register", "-username", "karim", "-role", "Teacher", "-department", "EEE")
	require.NoError(t, err)
	assert.Contains(t, out, "Account karim created")
	// registering never signs in
	_, ok, _ := e.store.Get(context.Background(), credentials.AccessToken)
	assert.False(t, ok)

	out, err = e.invoke(t, "login", "-username", "karim")
	require.NoError(t, err)
	assert.Contains(t, out, "Dashboard: /teacher")
}

func Test_commandLine_readPasswordError(t *testing.T) {
	e := setup(t)
	old := readPasswordFunc
	readPasswordFunc = func(int) ([]byte, error) { return nil, errors.New("not a terminal") }
	defer func() { readPasswordFunc = old }()

	_, err := e.invoke(t, "login", "-username", "nadia")
	require.EqualError(t, err, "not a terminal")
}
