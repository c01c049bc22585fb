package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the shell.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>eis-dashboard Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "eis-dashboard", "version": "v0.1.0" },
  "paths": {
    "/login": {
      "get": { "summary": "Sign-in page", "responses": { "200": { "description": "form" }, "302": { "description": "already signed in" } } },
      "post": {
        "summary": "Sign in",
        "requestBody": { "content": { "application/x-www-form-urlencoded": { "schema": {"type":"object","properties":{"username":{"type":"string"},"password":{"type":"string"}},"required":["username","password"]}}}},
        "responses": { "303": { "description": "signed in, redirect to the role's dashboard" }, "401": { "description": "invalid credentials" }, "409": { "description": "sign-in already in progress" }, "429": { "description": "rate limited" }, "502": { "description": "backend failure" } }
      }
    },
    "/logout": {
      "post": { "summary": "Sign out and remove stored tokens", "responses": { "303": { "description": "redirect to /login" } } }
    },
    "/register": {
      "get": { "summary": "Registration page", "responses": { "200": { "description": "form" } } },
      "post": {
        "summary": "Create an account",
        "requestBody": { "content": { "application/x-www-form-urlencoded": { "schema": {"type":"object","properties":{"username":{"type":"string"},"email":{"type":"string"},"password":{"type":"string"},"role":{"type":"string","enum":["student","teacher","counselor","admin"]},"department":{"type":"string"}}}}}},
        "responses": { "303": { "description": "registered, redirect to /login" }, "400": { "description": "rejected by the backend" } }
      }
    },
    "/unauthorized": { "get": { "summary": "Wrong-role landing page", "parameters": [ { "name": "from", "in": "query", "required": false, "schema": { "type": "string" } } ], "responses": { "403": { "description": "forbidden" } } } },
    "/student": { "get": { "summary": "Student dashboard", "responses": { "200": { "description": "rendered" }, "302": { "description": "redirect to /login or /unauthorized" } } } },
    "/teacher": { "get": { "summary": "Teacher dashboard", "responses": { "200": { "description": "rendered" }, "302": { "description": "redirect to /login or /unauthorized" } } } },
    "/counselor": { "get": { "summary": "Counselor dashboard", "responses": { "200": { "description": "rendered" }, "302": { "description": "redirect to /login or /unauthorized" } } } },
    "/admin": { "get": { "summary": "Admin dashboard", "responses": { "200": { "description": "rendered" }, "302": { "description": "redirect to /login or /unauthorized" } } } },
    "/api/session": { "get": { "summary": "Current session without tokens", "responses": { "200": { "description": "status, identity, expiresAt" } } } },
    "/api/proxy/{path}": {
      "get": { "summary": "Authenticated pass-through to the backend API", "parameters": [{"name":"path","in":"path","required":true,"schema":{"type":"string"}}], "responses": { "401": { "description": "not signed in or session expired; body carries redirect" }, "502": { "description": "backend unavailable" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "session still being restored" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "responses": { "200": { "description": "metrics" } } } }
  }
}`
