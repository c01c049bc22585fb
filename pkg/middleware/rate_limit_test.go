package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/iub-eis/eis/frontend/go-dashboard/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func loginPost(username string) *http.Request {
	form := url.Values{"username": {username}, "password": {"pw"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestRateLimitMiddleware_AllowsUnderLimit(t *testing.T) {
	r := gin.New()
	r.Use(RateLimitMiddleware(10, 2)) // generous rate
	r.GET("/ok", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })
	before := testutil.ToFloat64(metrics.RateLimitAllowed.WithLabelValues("memory"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/ok", nil))
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, httptest.NewRequest("GET", "/ok", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, http.StatusOK, w2.Code)
	require.Equal(t, before+2, testutil.ToFloat64(metrics.RateLimitAllowed.WithLabelValues("memory")))
}

func TestRateLimitMiddleware_BlocksWhenExceeded(t *testing.T) {
	r := gin.New()
	r.Use(RateLimitMiddleware(0.5, 1))
	r.GET("/limited", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })
	before := testutil.ToFloat64(metrics.RateLimitRejected.WithLabelValues("memory"))

	w1 := httptest.NewRecorder()
	r.ServeHTTP(w1, httptest.NewRequest("GET", "/limited", nil))
	require.Equal(t, http.StatusOK, w1.Code)

	// immediate second request -> should be rate-limited
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, httptest.NewRequest("GET", "/limited", nil))
	require.Equal(t, http.StatusTooManyRequests, w2.Code)
	require.Equal(t, "1", w2.Header().Get("Retry-After"))
	require.Equal(t, before+1, testutil.ToFloat64(metrics.RateLimitRejected.WithLabelValues("memory")))

	// 0.5 rps refills one token in two seconds
	time.Sleep(2100 * time.Millisecond)
	w3 := httptest.NewRecorder()
	r.ServeHTTP(w3, httptest.NewRequest("GET", "/limited", nil))
	require.Equal(t, http.StatusOK, w3.Code)
}

func TestRateLimitMiddleware_SeparatesSubmittedUsernames(t *testing.T) {
	r := gin.New()
	r.Use(RateLimitMiddleware(0.01, 1))
	r.POST("/login", func(c *gin.Context) {
		// the handler can still read the form after the limiter parsed it
		c.String(http.StatusOK, c.PostForm("username"))
	})

	w1 := httptest.NewRecorder()
	r.ServeHTTP(w1, loginPost("ali"))
	require.Equal(t, http.StatusOK, w1.Code)
	require.Equal(t, "ali", w1.Body.String())

	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, loginPost("ALI"))
	require.Equal(t, http.StatusTooManyRequests, w2.Code, "usernames are compared case-insensitively")

	w3 := httptest.NewRecorder()
	r.ServeHTTP(w3, loginPost("rahim"))
	require.Equal(t, http.StatusOK, w3.Code)
}

func TestRateLimitMiddleware_InstancesDoNotShareBuckets(t *testing.T) {
	a, b := gin.New(), gin.New()
	a.Use(RateLimitMiddleware(0.01, 1))
	b.Use(RateLimitMiddleware(0.01, 1))
	a.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	b.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	a.ServeHTTP(w, httptest.NewRequest("GET", "/x", nil))
	require.Equal(t, http.StatusOK, w.Code)
	w = httptest.NewRecorder()
	b.ServeHTTP(w, httptest.NewRequest("GET", "/x", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitMiddleware_CapsUsernamesPerIP(t *testing.T) {
	r := gin.New()
	r.Use(RateLimitMiddleware(0.01, 1))
	r.POST("/login", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < ipShare; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, loginPost(fmt.Sprintf("user%d", i)))
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, loginPost("one-more"))
	require.Equal(t, http.StatusTooManyRequests, w.Code, "fresh usernames still draw on the address's bucket")
}

func TestLimiterStore_EvictsIdleLimiters(t *testing.T) {
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	s := newLimiterStore(0.01, 1)
	s.now = func() time.Time { return now }

	for i := 0; i < 50; i++ {
		s.allow(fmt.Sprintf("ip:10.0.0.1|user:u%d", i), 1)
	}
	require.Equal(t, 50, s.size())

	now = now.Add(limiterIdle)
	require.True(t, s.allow("ip:10.0.0.2", 1))
	require.Equal(t, 1, s.size())
}
