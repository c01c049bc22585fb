// Package apitest provides an in-process fake of the EIS REST backend's user
// endpoints for tests.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

// User is an account known to the fake backend.
type User struct {
	ID         int64
	Username   string
	Password   string
	Email      string
	Role       string
	Department string
	// Access and Refresh are returned by the login endpoint.
	Access  string
	Refresh string
}

// Backend serves /api/users/{login,profile,register}/ plus /api/echo/ for
// authenticated pass-through calls.
type Backend struct {
	Server *httptest.Server

	mu      sync.Mutex
	users   map[string]User
	revoked map[string]bool
	// ProfileStatus, when non-zero, forces the profile endpoint to answer it.
	ProfileStatus int

	LoginCalls   atomic.Int32
	ProfileCalls atomic.Int32
}

// NewBackend starts a fake backend seeded with users; it is closed with t.
func NewBackend(t *testing.T, users ...User) *Backend {
	t.Helper()
	b := &Backend{users: map[string]User{}, revoked: map[string]bool{}}
	for _, u := range users {
		b.users[u.Username] = u
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/users/login/", b.login)
	mux.HandleFunc("/api/users/profile/", b.profile)
	mux.HandleFunc("/api/users/register/", b.register)
	mux.HandleFunc("/api/echo/", b.echo)
	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Server.Close)
	return b
}

// BaseURL is the API root, e.g. http://127.0.0.1:1234/api.
func (b *Backend) BaseURL() string { return b.Server.URL + "/api" }

// Revoke makes every later request carrying token answer 401.
func (b *Backend) Revoke(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.revoked[token] = true
}

// SetProfileStatus forces the profile endpoint to answer status (0 restores it).
func (b *Backend) SetProfileStatus(status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ProfileStatus = status
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	b.LoginCalls.Add(1)
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "malformed body"})
		return
	}
	b.mu.Lock()
	u, ok := b.users[req.Username]
	b.mu.Unlock()
	if !ok || u.Password != req.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "No active account found with the given credentials"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access": u.Access, "refresh": u.Refresh})
}

func (b *Backend) userFor(r *http.Request) (User, bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" {
		return User{}, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.revoked[token] {
		return User{}, false
	}
	for _, u := range b.users {
		if u.Access == token {
			return u, true
		}
	}
	return User{}, false
}

func (b *Backend) profile(w http.ResponseWriter, r *http.Request) {
	b.ProfileCalls.Add(1)
	b.mu.Lock()
	forced := b.ProfileStatus
	b.mu.Unlock()
	if forced != 0 {
		writeJSON(w, forced, map[string]string{"detail": http.StatusText(forced)})
		return
	}
	u, ok := b.userFor(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Given token not valid for any token type"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id": u.ID, "username": u.Username, "email": u.Email,
		"role": u.Role, "phone": "", "department": u.Department,
	})
}

func (b *Backend) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username   string `json:"username"`
		Email      string `json:"email"`
		Password   string `json:"password"`
		Role       string `json:"role"`
		Department string `json:"department"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "malformed body"})
		return
	}
	if len(req.Password) < 8 {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"password": {"Ensure this field has at least 8 characters."}})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.users[req.Username]; exists {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"username": {"A user with that username already exists."}})
		return
	}
	id := int64(len(b.users) + 1)
	if req.Role == "" {
		req.Role = "student"
	}
	b.users[req.Username] = User{
		ID: id, Username: req.Username, Password: req.Password, Email: req.Email,
		Role: req.Role, Department: req.Department,
		Access: "access-" + req.Username, Refresh: "refresh-" + req.Username,
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"id": id, "username": req.Username, "role": req.Role})
}

func (b *Backend) echo(w http.ResponseWriter, r *http.Request) {
	u, ok := b.userFor(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Authentication credentials were not provided."})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": r.URL.Path, "query": r.URL.RawQuery, "user": u.Username})
}
