// Package guard decides what a protected navigation may show for a given
// session.
package guard

import (
	"fmt"

	"github.com/iub-eis/eis/frontend/go-dashboard/internal/session"
	"github.com/iub-eis/eis/frontend/go-dashboard/pkg/metrics"
)

// Decision is the outcome of a guard check.
type Decision int

const (
	// Placeholder: the session is still being restored; show nothing and do
	// not redirect yet.
	Placeholder Decision = iota
	RedirectLogin
	RedirectUnauthorized
	Render
)

func (d Decision) String() string {
	switch d {
	case Placeholder:
		return "placeholder"
	case RedirectLogin:
		return "redirect_login"
	case RedirectUnauthorized:
		return "redirect_unauthorized"
	case Render:
		return "render"
	}
	return fmt.Sprintf("Decision(%d)", int(d))
}

// Decide applies the access table to s. An empty role set admits nobody.
func Decide(s session.Session, allowed session.RoleSet) Decision {
	switch s.Status {
	case session.Bootstrapping:
		return Placeholder
	case session.Anonymous, session.Authenticating, session.Error:
		return RedirectLogin
	case session.Authenticated:
		if s.Identity == nil {
			return RedirectLogin
		}
		if allowed.Has(s.Identity.Role) {
			return Render
		}
		return RedirectUnauthorized
	}
	return RedirectLogin
}

// Source yields the current session snapshot. *session.Manager satisfies it.
type Source interface {
	Current() session.Session
}

// Guard binds Decide to a session source and the two redirect targets.
type Guard struct {
	src              Source
	LoginPath        string
	UnauthorizedPath string
}

// New returns a Guard redirecting to /login and /unauthorized.
func New(src Source) *Guard {
	return &Guard{src: src, LoginPath: "/login", UnauthorizedPath: "/unauthorized"}
}

// Check decides for the current session and records the decision. The
// returned target is the redirect location, empty unless the decision is a
// redirect.
func (g *Guard) Check(allowed session.RoleSet) (Decision, string, session.Session) {
	s := g.src.Current()
	d := Decide(s, allowed)
	metrics.GuardDecisions.WithLabelValues(d.String()).Inc()
	switch d {
	case RedirectLogin:
		return d, g.LoginPath, s
	case RedirectUnauthorized:
		return d, g.UnauthorizedPath, s
	}
	return d, "", s
}
