package handlers

import "html/template"

// pageData is shared by every shell template.
type pageData struct {
	Title    string
	Notice   string
	Error    string
	Username string
	// Form values echoed back after a failed registration.
	Email      string
	Role       string
	Department string
	// Denied names the dashboard an unauthorized visit was refused.
	Denied string
	Roles      []string
	HomePath   string
	Registered bool
}

var pages = template.Must(template.New("pages").Parse(pagesHTML))

const pagesHTML = `
{{define "head"}}<!doctype html>
<html><head><meta charset="utf-8"><title>{{.Title}} · EIS</title></head><body>{{end}}
{{define "foot"}}</body></html>{{end}}

{{define "login.html"}}{{template "head" .}}
<h1>Sign in</h1>
{{if .Notice}}<p class="notice">{{.Notice}}</p>{{end}}
{{if .Registered}}<p class="notice">Account created. You can sign in now.</p>{{end}}
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
<form method="post" action="/login">
  <label>Username <input name="username" value="{{.Username}}" required></label>
  <label>Password <input name="password" type="password" required></label>
  <button type="submit">Sign in</button>
</form>
<p><a href="/register">Create an account</a></p>
{{template "foot" .}}{{end}}

{{define "register.html"}}{{template "head" .}}
<h1>Create account</h1>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
<form method="post" action="/register">
  <label>Username <input name="username" value="{{.Username}}" required></label>
  <label>Email <input name="email" type="email" value="{{.Email}}"></label>
  <label>Password <input name="password" type="password" required></label>
  <label>Role <select name="role">{{$sel := .Role}}{{range .Roles}}<option value="{{.}}"{{if eq . $sel}} selected{{end}}>{{.}}</option>{{end}}</select></label>
  <label>Department <input name="department" value="{{.Department}}"></label>
  <button type="submit">Register</button>
</form>
<p><a href="/login">Back to sign in</a></p>
{{template "foot" .}}{{end}}

{{define "unauthorized.html"}}{{template "head" .}}
<p class="error">You don't have permission to view {{with .Denied}}the {{.}}{{else}}this page{{end}}.</p>
{{if .HomePath}}<p><a href="{{.HomePath}}">Go to your dashboard</a></p>{{end}}
{{template "foot" .}}{{end}}

{{define "dashboard.html"}}{{template "head" .}}
<h1>{{.Title}}</h1>
<p>Signed in as {{.Username}} ({{.Role}}){{with .Department}}, {{.}}{{end}}.</p>
<form method="post" action="/logout"><button type="submit">Sign out</button></form>
{{template "foot" .}}{{end}}
`
