// Package routes holds the dashboard shell's navigation surface: which paths
// exist, who may open them, and where a signed-in user lands.
package routes

import (
	"context"
	"sync"

	"github.com/iub-eis/eis/frontend/go-dashboard/internal/session"
	"github.com/iub-eis/eis/frontend/go-dashboard/internal/transport"
	"github.com/iub-eis/eis/frontend/go-dashboard/pkg/logger"
)

const (
	RootPath         = "/"
	LoginPath        = "/login"
	LogoutPath       = "/logout"
	RegisterPath     = "/register"
	UnauthorizedPath = "/unauthorized"
)

// Route is a protected page.
type Route struct {
	Path    string
	Title   string
	Allowed session.RoleSet
}

// Protected lists the role-gated dashboards.
var Protected = []Route{
	{Path: "/student", Title: "Student dashboard", Allowed: session.NewRoleSet(session.Student)},
	{Path: "/teacher", Title: "Teacher dashboard", Allowed: session.NewRoleSet(session.Teacher)},
	{Path: "/counselor", Title: "Counselor dashboard", Allowed: session.NewRoleSet(session.Counselor)},
	{Path: "/admin", Title: "Admin dashboard", Allowed: session.NewRoleSet(session.Admin)},
}

// Lookup finds the protected route registered at path.
func Lookup(path string) (Route, bool) {
	for _, r := range Protected {
		if r.Path == path {
			return r, true
		}
	}
	return Route{}, false
}

// HomePath is where a user with role lands after signing in.
func HomePath(r session.Role) string {
	switch r {
	case session.Student:
		return "/student"
	case session.Teacher:
		return "/teacher"
	case session.Counselor:
		return "/counselor"
	case session.Admin:
		return "/admin"
	}
	return LoginPath
}

// ExpiredNotice is shown on the login page after an authorization expiry.
const ExpiredNotice = "Your session has expired. Please sign in again."

// Notices is the application's single listener for authorization-expiry
// events. It remembers that an expiry happened so the next login page render
// can say so.
type Notices struct {
	mu      sync.Mutex
	pending *transport.Event
}

func NewNotices() *Notices { return &Notices{} }

// Listen consumes events until ctx is done or the channel is closed.
func (n *Notices) Listen(ctx context.Context, events <-chan transport.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			n.Post(ev)
		}
	}
}

// Post records ev as the pending notice.
func (n *Notices) Post(ev transport.Event) {
	n.mu.Lock()
	n.pending = &ev
	n.mu.Unlock()
	logger.Debugf("routes: expiry notice queued for %s %s", ev.Method, ev.Path)
}

// Take returns and clears the pending notice.
func (n *Notices) Take() (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.pending == nil {
		return "", false
	}
	n.pending = nil
	return ExpiredNotice, true
}
