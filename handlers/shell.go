package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/iub-eis/eis/frontend/go-dashboard/internal/api"
	"github.com/iub-eis/eis/frontend/go-dashboard/internal/guard"
	"github.com/iub-eis/eis/frontend/go-dashboard/internal/routes"
	"github.com/iub-eis/eis/frontend/go-dashboard/internal/session"
	"github.com/iub-eis/eis/frontend/go-dashboard/internal/transport"
	"github.com/iub-eis/eis/frontend/go-dashboard/pkg/logger"
	"github.com/iub-eis/eis/frontend/go-dashboard/pkg/middleware"
)

// SessionManager is what the shell needs from *session.Manager.
type SessionManager interface {
	Current() session.Session
	Login(ctx context.Context, username, password string) (session.Identity, error)
	Logout(ctx context.Context) error
	Register(ctx context.Context, req api.RegisterRequest) error
}

// Backend relays authenticated calls. *api.Client satisfies it.
type Backend interface {
	Do(ctx context.Context, method, path string, body io.Reader, header http.Header) (*http.Response, error)
}

// relayed request headers
var proxyHeaders = []string{"Accept", "Content-Type", transport.RequestIDHeader}

// ShellHandler serves the dashboard shell: login, logout, registration and
// the role-gated dashboards of the single application session.
type ShellHandler struct {
	sess    SessionManager
	backend Backend
	notices *routes.Notices
	guard   *guard.Guard
}

func NewShellHandler(sess SessionManager, backend Backend, notices *routes.Notices) *ShellHandler {
	if notices == nil {
		notices = routes.NewNotices()
	}
	g := guard.New(sess)
	g.LoginPath = routes.LoginPath
	g.UnauthorizedPath = routes.UnauthorizedPath
	return &ShellHandler{sess: sess, backend: backend, notices: notices, guard: g}
}

// Register installs the shell's templates and routes on r. loginLimit, when
// non-nil, guards POST /login.
func (h *ShellHandler) Register(r *gin.Engine, loginLimit gin.HandlerFunc) {
	r.SetHTMLTemplate(pages)

	r.GET(routes.RootPath, func(c *gin.Context) { c.Redirect(http.StatusFound, routes.LoginPath) })
	r.GET(routes.LoginPath, h.LoginPage)
	if loginLimit != nil {
		r.POST(routes.LoginPath, loginLimit, h.Login)
	} else {
		r.POST(routes.LoginPath, h.Login)
	}
	r.POST(routes.LogoutPath, h.Logout)
	r.GET(routes.RegisterPath, h.SignUpPage)
	r.POST(routes.RegisterPath, h.SignUp)
	r.GET(routes.UnauthorizedPath, h.Unauthorized)

	for _, route := range routes.Protected {
		route := route
		r.GET(route.Path, middleware.RequireRoles(h.guard, route.Allowed), func(c *gin.Context) {
			s, _ := middleware.CurrentSession(c)
			c.Header("Cache-Control", "no-store")
			id := s.Identity
			c.HTML(http.StatusOK, "dashboard.html", pageData{
				Title:      route.Title,
				Username:   id.Username,
				Email:      id.Email,
				Role:       id.Role.String(),
				Department: id.Department,
			})
		})
	}

	a := r.Group("/api")
	a.GET("/session", h.SessionJSON)
	a.Any("/proxy/*path", h.Proxy)
}

// LoginPage renders the sign-in form. A signed-in user is sent home.
func (h *ShellHandler) LoginPage(c *gin.Context) {
	if s := h.sess.Current(); s.Authenticated() {
		c.Redirect(http.StatusFound, routes.HomePath(s.Identity.Role))
		return
	}
	data := pageData{Title: "Sign in", Registered: c.Query("registered") == "1"}
	if msg, ok := h.notices.Take(); ok {
		data.Notice = msg
	}
	c.HTML(http.StatusOK, "login.html", data)
}

// Login handles the sign-in form.
func (h *ShellHandler) Login(c *gin.Context) {
	username := strings.TrimSpace(c.PostForm("username"))
	password := c.PostForm("password")
	if username == "" || password == "" {
		c.HTML(http.StatusBadRequest, "login.html", pageData{Title: "Sign in", Username: username, Error: "Username and password are required."})
		return
	}

	id, err := h.sess.Login(c.Request.Context(), username, password)
	if err != nil {
		status, msg := loginFailure(err)
		if errors.Is(err, session.ErrAlreadyAuthenticated) {
			if s := h.sess.Current(); s.Authenticated() {
				c.Redirect(http.StatusSeeOther, routes.HomePath(s.Identity.Role))
				return
			}
		}
		c.HTML(status, "login.html", pageData{Title: "Sign in", Username: username, Error: msg})
		return
	}
	c.Redirect(http.StatusSeeOther, routes.HomePath(id.Role))
}

func loginFailure(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid username or password"
	case errors.Is(err, session.ErrLoginInProgress), errors.Is(err, session.ErrSuperseded):
		return http.StatusConflict, "Another sign-in is in progress. Please try again."
	case errors.Is(err, session.ErrAlreadyAuthenticated):
		return http.StatusConflict, "You are already signed in."
	}
	logger.Warnf("shell: login failed: %v", err)
	return http.StatusBadGateway, "Sign-in is unavailable right now. Please try again later."
}

// Logout ends the session and returns to the sign-in page.
func (h *ShellHandler) Logout(c *gin.Context) {
	if err := h.sess.Logout(c.Request.Context()); err != nil {
		logger.Errorf("shell: logout: %v", err)
	}
	c.Redirect(http.StatusSeeOther, routes.LoginPath)
}

func (h *ShellHandler) SignUpPage(c *gin.Context) {
	c.HTML(http.StatusOK, "register.html", registerData(pageData{Role: session.Student.String()}))
}

// SignUp handles the registration form. It never changes the session.
func (h *ShellHandler) SignUp(c *gin.Context) {
	req := api.RegisterRequest{
		Username:   strings.TrimSpace(c.PostForm("username")),
		Email:      strings.TrimSpace(c.PostForm("email")),
		Password:   c.PostForm("password"),
		Role:       c.DefaultPostForm("role", session.Student.String()),
		Department: strings.TrimSpace(c.PostForm("department")),
	}
	echo := registerData(pageData{Username: req.Username, Email: req.Email, Role: req.Role, Department: req.Department})
	if req.Username == "" || req.Password == "" {
		echo.Error = "Username and password are required."
		c.HTML(http.StatusBadRequest, "register.html", echo)
		return
	}

	if err := h.sess.Register(c.Request.Context(), req); err != nil {
		status := http.StatusBadGateway
		echo.Error = "Registration failed"
		var apiErr *api.Error
		switch {
		case errors.Is(err, session.ErrUnknownRole):
			status = http.StatusBadRequest
			echo.Error = "Choose one of the listed roles."
		case errors.As(err, &apiErr) && apiErr.Status < 500:
			status = apiErr.Status
			if apiErr.Message != "" {
				echo.Error = apiErr.Message
			}
		}
		c.HTML(status, "register.html", echo)
		return
	}
	c.Redirect(http.StatusSeeOther, routes.LoginPath+"?registered=1")
}

func registerData(d pageData) pageData {
	d.Title = "Create account"
	for _, r := range session.Roles {
		d.Roles = append(d.Roles, r.String())
	}
	return d
}

func (h *ShellHandler) Unauthorized(c *gin.Context) {
	data := pageData{Title: "Unauthorized"}
	if route, ok := routes.Lookup(c.Query("from")); ok {
		data.Denied = strings.ToLower(route.Title)
	}
	if s := h.sess.Current(); s.Authenticated() {
		data.HomePath = routes.HomePath(s.Identity.Role)
	}
	c.HTML(http.StatusForbidden, "unauthorized.html", data)
}

// SessionJSON reports the session without its tokens.
func (h *ShellHandler) SessionJSON(c *gin.Context) {
	s := h.sess.Current()
	out := gin.H{"session": s}
	if s.Authenticated() {
		out["home"] = routes.HomePath(s.Identity.Role)
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, out)
}

// Proxy relays a dashboard API call to the backend with the session's token.
// An authorization expiry answers 401 with the login location so the page can
// navigate there.
func (h *ShellHandler) Proxy(c *gin.Context) {
	if !h.sess.Current().Authenticated() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not signed in", "redirect": routes.LoginPath})
		return
	}
	target, ok := proxyPath(c.Param("path"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid path"})
		return
	}
	if q := c.Request.URL.RawQuery; q != "" {
		target += "?" + q
	}
	hdr := http.Header{}
	for _, k := range proxyHeaders {
		if v := c.GetHeader(k); v != "" {
			hdr.Set(k, v)
		}
	}

	var body io.Reader
	if c.Request.Body != nil && c.Request.ContentLength != 0 {
		body = c.Request.Body
	}
	resp, err := h.backend.Do(c.Request.Context(), c.Request.Method, target, body, hdr)
	if err != nil {
		if errors.Is(err, transport.ErrAuthorizationExpired) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired", "redirect": routes.LoginPath})
			return
		}
		logger.Warnf("shell: proxy %s %s: %v", c.Request.Method, target, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "backend unavailable"})
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired", "redirect": routes.LoginPath})
		return
	}
	c.DataFromReader(resp.StatusCode, resp.ContentLength, resp.Header.Get("Content-Type"), resp.Body, nil)
}

// proxyPath cleans the relayed path so it stays under the API base. Dot
// segments are refused; a trailing slash is kept since the backend routes
// end in one.
func proxyPath(p string) (string, bool) {
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." || seg == "." {
			return "", false
		}
	}
	cleaned := path.Clean("/" + p)
	if cleaned == "/" {
		return "", false
	}
	if strings.HasSuffix(p, "/") {
		cleaned += "/"
	}
	return cleaned, true
}
