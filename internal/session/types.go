package session

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status is the authentication state of the application's session.
type Status int

const (
	Anonymous Status = iota
	Bootstrapping
	Authenticating
	Authenticated
	Error
)

var statusNames = [...]string{
	Anonymous:      "ANONYMOUS",
	Bootstrapping:  "BOOTSTRAPPING",
	Authenticating: "AUTHENTICATING",
	Authenticated:  "AUTHENTICATED",
	Error:          "ERROR",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

func (s Status) MarshalText() ([]byte, error) {
	if s < 0 || int(s) >= len(statusNames) {
		return nil, fmt.Errorf("session: invalid status %d", int(s))
	}
	return []byte(statusNames[s]), nil
}

// Role is one of the four account kinds. The zero value is not a role.
type Role uint8

const (
	Student Role = iota + 1
	Teacher
	Counselor
	Admin
)

// ErrUnknownRole is returned when a role string is outside the closed set.
var ErrUnknownRole = errors.New("unknown role")

var roleNames = map[Role]string{
	Student:   "student",
	Teacher:   "teacher",
	Counselor: "counselor",
	Admin:     "admin",
}

// Roles lists every valid role in declaration order.
var Roles = []Role{Student, Teacher, Counselor, Admin}

// ParseRole maps the wire form (case-insensitive) to a Role.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "student":
		return Student, nil
	case "teacher":
		return Teacher, nil
	case "counselor":
		return Counselor, nil
	case "admin":
		return Admin, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

func (r Role) String() string {
	if n, ok := roleNames[r]; ok {
		return n
	}
	return fmt.Sprintf("Role(%d)", uint8(r))
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRole, uint8(r))
	}
	return []byte(roleNames[r]), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	v, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// RoleSet is the set of roles allowed on a protected route.
type RoleSet uint8

// NewRoleSet builds a set from roles; invalid roles are ignored.
func NewRoleSet(roles ...Role) RoleSet {
	var s RoleSet
	for _, r := range roles {
		if r.Valid() {
			s |= 1 << r
		}
	}
	return s
}

func (s RoleSet) Has(r Role) bool {
	return r.Valid() && s&(1<<r) != 0
}

func (s RoleSet) Empty() bool { return s == 0 }

// Roles returns the members in declaration order.
func (s RoleSet) Roles() []Role {
	var out []Role
	for _, r := range Roles {
		if s.Has(r) {
			out = append(out, r)
		}
	}
	return out
}

func (s RoleSet) String() string {
	names := make([]string, 0, len(Roles))
	for _, r := range s.Roles() {
		names = append(names, r.String())
	}
	return "{" + strings.Join(names, ",") + "}"
}

// Identity is the signed-in account as reported by the profile endpoint.
type Identity struct {
	ID         int64  `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email,omitempty"`
	Role       Role   `json:"role"`
	Department string `json:"department,omitempty"`
}

// Session is a read-only snapshot of the session state.
type Session struct {
	Status       Status    `json:"status"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	Identity     *Identity `json:"identity,omitempty"`
	// ExpiresAt is the access token's exp claim when it has one.
	ExpiresAt time.Time `json:"expiresAt,omitzero"`
	// Err is the failure behind an Error status.
	Err error `json:"-"`
}

// Valid reports whether the snapshot satisfies the session invariant: a token
// and an identity are present exactly when the status is Authenticated.
func (s Session) Valid() bool {
	authed := s.Status == Authenticated
	return (s.AccessToken != "") == authed && (s.Identity != nil) == authed
}

// Authenticated is shorthand for Status == Authenticated.
func (s Session) Authenticated() bool { return s.Status == Authenticated }
