package guard

import (
	"testing"

	"github.com/iub-eis/eis/frontend/go-dashboard/internal/session"
	"github.com/iub-eis/eis/frontend/go-dashboard/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func authed(role session.Role) session.Session {
	return session.Session{
		Status:      session.Authenticated,
		AccessToken: "AAA",
		Identity:    &session.Identity{ID: 2, Username: "ali", Role: role},
	}
}

func TestDecide(t *testing.T) {
	students := session.NewRoleSet(session.Student)
	staff := session.NewRoleSet(session.Teacher, session.Counselor, session.Admin)

	cases := []struct {
		name    string
		s       session.Session
		allowed session.RoleSet
		want    Decision
	}{
		{"bootstrapping waits", session.Session{Status: session.Bootstrapping}, students, Placeholder},
		{"anonymous to login", session.Session{Status: session.Anonymous}, students, RedirectLogin},
		{"anonymous to login for any set", session.Session{Status: session.Anonymous}, staff, RedirectLogin},
		{"error to login", session.Session{Status: session.Error}, students, RedirectLogin},
		{"authenticating to login", session.Session{Status: session.Authenticating}, students, RedirectLogin},
		{"student renders student page", authed(session.Student), students, Render},
		{"teacher denied student page", authed(session.Teacher), students, RedirectUnauthorized},
		{"counselor renders staff page", authed(session.Counselor), staff, Render},
		{"empty set admits nobody", authed(session.Admin), session.RoleSet(0), RedirectUnauthorized},
		{"missing identity to login", session.Session{Status: session.Authenticated, AccessToken: "AAA"}, students, RedirectLogin},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Decide(tc.s, tc.allowed))
		})
	}
}

type fixed session.Session

func (f fixed) Current() session.Session { return session.Session(f) }

func TestGuardCheck(t *testing.T) {
	g := New(fixed(authed(session.Teacher)))
	before := testutil.ToFloat64(metrics.GuardDecisions.WithLabelValues("redirect_unauthorized"))

	d, target, s := g.Check(session.NewRoleSet(session.Student))
	assert.Equal(t, RedirectUnauthorized, d)
	assert.Equal(t, "/unauthorized", target)
	assert.Equal(t, session.Teacher, s.Identity.Role)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.GuardDecisions.WithLabelValues("redirect_unauthorized")))

	d, target, _ = New(fixed(session.Session{Status: session.Anonymous})).Check(session.NewRoleSet(session.Admin))
	assert.Equal(t, RedirectLogin, d)
	assert.Equal(t, "/login", target)

	d, target, _ = New(fixed(session.Session{Status: session.Bootstrapping})).Check(session.NewRoleSet(session.Admin))
	assert.Equal(t, Placeholder, d)
	assert.Empty(t, target)
}
