package middleware

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/iub-eis/eis/frontend/go-dashboard/internal/guard"
	"github.com/iub-eis/eis/frontend/go-dashboard/internal/session"
)

// SessionKey is the gin context key holding the session snapshot a guarded
// handler was admitted with.
const SessionKey = "session"

const placeholderPage = `<!doctype html><html><head><meta charset="utf-8"><title>Loading</title></head>` +
	`<body><p>Restoring your session&hellip;</p></body></html>`

// RequireRoles gates a route on the shell's session. While the session is
// being restored it answers a self-refreshing placeholder instead of
// redirecting; anonymous visitors go to the login page and signed-in users
// without an allowed role go to the unauthorized page, told which path they
// were refused in the from parameter.
func RequireRoles(g *guard.Guard, allowed session.RoleSet) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, target, s := g.Check(allowed)
		switch d {
		case guard.Render:
			c.Set(SessionKey, s)
			c.Next()
		case guard.Placeholder:
			c.Header("Refresh", "1")
			c.Header("Cache-Control", "no-store")
			c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(placeholderPage))
			c.Abort()
		case guard.RedirectUnauthorized:
			c.Header("Cache-Control", "no-store")
			c.Redirect(http.StatusFound, target+"?from="+url.QueryEscape(c.Request.URL.Path))
			c.Abort()
		default:
			c.Header("Cache-Control", "no-store")
			c.Redirect(http.StatusFound, target)
			c.Abort()
		}
	}
}

// CurrentSession returns the snapshot stored by RequireRoles.
func CurrentSession(c *gin.Context) (session.Session, bool) {
	v, ok := c.Get(SessionKey)
	if !ok {
		return session.Session{}, false
	}
	s, ok := v.(session.Session)
	return s, ok
}
