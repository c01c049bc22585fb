package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iub-eis/eis/frontend/go-dashboard/internal/transport"
)

const (
	loginPath    = "/users/login/"
	profilePath  = "/users/profile/"
	registerPath = "/users/register/"

	maxErrorBody = 4 << 10
)

// ErrRejected is returned by Exchange when the backend refuses the credentials.
var ErrRejected = errors.New("credentials rejected")

// Error is a non-2xx backend response.
type Error struct {
	Status  int
	Message string
	err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
}

func (e *Error) Unwrap() error { return e.err }

// TokenPair is the credential exchange result.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Profile is the identity payload of the profile endpoint. Role is kept as
// the raw wire string; the session package owns its validation.
type Profile struct {
	ID         int64  `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email,omitempty"`
	Role       string `json:"role"`
	Phone      string `json:"phone,omitempty"`
	Department string `json:"department,omitempty"`
}

// RegisterRequest is the new-account payload.
type RegisterRequest struct {
	Username   string `json:"username"`
	Email      string `json:"email,omitempty"`
	Password   string `json:"password"`
	Role       string `json:"role,omitempty"`
	Department string `json:"department,omitempty"`
}

// Client calls the EIS REST backend. Every request goes through the
// transport the client was built with (normally a *transport.Interceptor).
type Client struct {
	base string
	http *http.Client
}

// NewClient builds a client for baseURL (e.g. http://127.0.0.1:8000/api).
func NewClient(baseURL string, rt http.RoundTripper, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("api base url %q has no scheme or host", baseURL)
	}
	return &Client{
		base: strings.TrimRight(u.String(), "/"),
		http: &http.Client{Transport: rt, Timeout: timeout},
	}, nil
}

// Exchange trades username and password for a token pair. The request is
// public: no stored token is attached and a rejection never counts as expiry.
func (c *Client) Exchange(ctx context.Context, username, password string) (TokenPair, error) {
	body := map[string]string{"username": username, "password": password}
	var out TokenPair
	err := c.doJSON(transport.Public(ctx), http.MethodPost, loginPath, body, &out)
	if err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusBadRequest) {
			apiErr.err = ErrRejected
			return TokenPair{}, apiErr
		}
		return TokenPair{}, err
	}
	if out.Access == "" {
		return TokenPair{}, fmt.Errorf("api: login response carries no access token")
	}
	return out, nil
}

// Profile fetches the identity bound to the stored access token.
func (c *Client) Profile(ctx context.Context) (Profile, error) {
	var out Profile
	if err := c.doJSON(ctx, http.MethodGet, profilePath, nil, &out); err != nil {
		return Profile{}, err
	}
	return out, nil
}

// Register creates an account. It is public and does not touch credentials.
func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	return c.doJSON(transport.Public(ctx), http.MethodPost, registerPath, req, nil)
}

// Do sends an arbitrary authenticated request; path may carry a query string.
// Non-2xx responses are returned as-is so callers can relay them, except an
// authorization expiry: its body is closed and an *Error wrapping
// transport.ErrAuthorizationExpired is returned.
func (c *Client) Do(ctx context.Context, method, path string, body io.Reader, header http.Header) (*http.Response, error) {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	for k, vv := range header {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if transport.Expired(resp) {
		defer resp.Body.Close()
		return nil, errorFrom(resp)
	}
	return resp, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return http.NewRequestWithContext(ctx, method, c.base+path, body)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errorFrom(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api: decode %s %s: %w", method, path, err)
	}
	return nil
}

// errorFrom reads a bounded error body. Django REST framework answers either
// {"detail": "..."} or a map of field errors; the latter is kept verbatim.
func errorFrom(resp *http.Response) *Error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	e := &Error{Status: resp.StatusCode, Message: strings.TrimSpace(string(b))}
	var detail struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(b, &detail) == nil && detail.Detail != "" {
		e.Message = detail.Detail
	}
	if transport.Expired(resp) {
		e.err = transport.ErrAuthorizationExpired
	}
	return e
}
