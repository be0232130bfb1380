package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/libris-backend/internal/guard"
	"github.com/stemsi/libris-backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeResolver struct {
	accounts map[string]*model.Account
	err      error
}

func (f *fakeResolver) Session(ctx context.Context, token string) (*model.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	a, ok := f.accounts[token]
	if !ok {
		return nil, nil
	}
	return &model.Session{Token: token, AccountID: a.ID, Role: a.Role, Valid: true}, nil
}

func (f *fakeResolver) Account(ctx context.Context, token string) (*model.Account, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.accounts[token], nil
}

func newResolver() *fakeResolver {
	return &fakeResolver{accounts: map[string]*model.Account{
		"super": {ID: 1, Role: model.RoleSuperAdmin},
		"admin": {ID: 2, Role: model.RoleAdmin},
		"user":  {ID: 3, Role: model.RoleUser},
	}}
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		cookie     string
		query      string
		allowQuery bool
		want       string
	}{
		{name: "bearer", header: "Bearer abc", want: "abc"},
		{name: "bearer case-insensitive", header: "bearer abc", want: "abc"},
		{name: "cookie", cookie: "ck", want: "ck"},
		{name: "header wins over cookie", header: "Bearer abc", cookie: "ck", want: "abc"},
		{name: "query ignored by default", query: "q"},
		{name: "query when allowed", query: "q", allowQuery: true, want: "q"},
		{name: "malformed header", header: "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			target := "/"
			if tt.query != "" {
				target += "?token=" + tt.query
			}
			c.Request = httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				c.Request.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				c.Request.AddCookie(&http.Cookie{Name: SessionCookie, Value: tt.cookie})
			}
			assert.Equal(t, tt.want, ExtractToken(c, tt.allowQuery))
		})
	}
}

func tieredRouter(resolver SessionResolver) *gin.Engine {
	r := gin.New()
	r.Use(LoadSession(resolver, false))
	ok := func(c *gin.Context) { c.String(http.StatusOK, "ok") }
	r.GET("/admin", RequireAdminTier(resolver), ok)
	r.GET("/super", RequireSuperAdmin(resolver), func(c *gin.Context) {
		c.String(http.StatusOK, string(GetAccount(c).Role))
	})
	return r
}

func TestTierGates(t *testing.T) {
	r := tieredRouter(newResolver())

	tests := []struct {
		path  string
		token string
		want  int
	}{
		{"/admin", "bogus", http.StatusUnauthorized},
		{"/admin", "", http.StatusUnauthorized},
		{"/admin", "user", http.StatusForbidden},
		{"/admin", "admin", http.StatusOK},
		{"/admin", "super", http.StatusOK},
		{"/super", "admin", http.StatusForbidden},
		{"/super", "super", http.StatusOK},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		if tt.token != "" {
			req.Header.Set("Authorization", "Bearer "+tt.token)
		}
		w := serve(r, req)
		assert.Equal(t, tt.want, w.Code, "%s as %q", tt.path, tt.token)
	}
}

func TestLoadSessionAbortsOnStorageFailure(t *testing.T) {
	r := tieredRouter(&fakeResolver{err: errors.New("redis down")})

	req := httptest.NewRequest(http.MethodGet, "/session", nil)
	req.Header.Set("Authorization", "Bearer user")
	w := serve(r, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
}

type staticFacts struct {
	authed, adminExists, isAdmin bool
}

func (f staticFacts) IsAuthenticated(ctx context.Context) (bool, error) { return f.authed, nil }
func (f staticFacts) HasAdminTierAccountRegistered(ctx context.Context) bool {
	return f.adminExists
}
func (f staticFacts) IsCurrentAccountAdminTier(ctx context.Context) (bool, error) {
	return f.isAdmin, nil
}

func TestNavigationGuardRedirects(t *testing.T) {
	facts := map[string]staticFacts{
		"":      {adminExists: true},
		"user":  {authed: true, adminExists: true},
		"admin": {authed: true, adminExists: true, isAdmin: true},
	}
	factory := func(token string) *guard.Guard {
		return guard.New(facts[token], time.Second, zerolog.Nop())
	}

	r := gin.New()
	r.GET("/dashboard", NavigationGuard(factory, guard.DefaultRoutes), func(c *gin.Context) {
		c.String(http.StatusOK, "dashboard")
	})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login?redirect=%2Fdashboard", w.Header().Get("Location"))

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "user"})
	w = serve(r, req)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	req = httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "admin"})
	w = serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "dashboard", w.Body.String())
}

func TestRateLimiterRefillsPerInterval(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	now := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(ctx, 2, time.Minute)
	rl.nowFunc = func() time.Time { return now }

	assert.True(t, rl.Allow("1.1.1.1"))
	assert.True(t, rl.Allow("1.1.1.1"))
	assert.False(t, rl.Allow("1.1.1.1"))
	assert.True(t, rl.Allow("2.2.2.2"), "buckets are per key")

	now = now.Add(time.Minute)
	assert.True(t, rl.Allow("1.1.1.1"))

	now = now.Add(10 * time.Minute)
	rl.cleanup()
	rl.mu.Lock()
	assert.Empty(t, rl.visitors)
	rl.mu.Unlock()
}

func TestRateLimiterMiddleware(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := gin.New()
	r.POST("/signin", NewRateLimiter(ctx, 1, time.Hour).Middleware(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodPost, "/signin", nil)).Code)
	w := serve(r, httptest.NewRequest(http.MethodPost, "/signin", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "RATE_LIMIT_EXCEEDED")
}

func TestBrotliCompressesLargeBodies(t *testing.T) {
	r := gin.New()
	r.Use(Brotli())
	large := strings.Repeat("libris ", 500)
	r.GET("/large", func(c *gin.Context) { c.String(http.StatusOK, large) })
	r.GET("/small", func(c *gin.Context) { c.String(http.StatusOK, "tiny") })

	req := httptest.NewRequest(http.MethodGet, "/large", nil)
	req.Header.Set("Accept-Encoding", "gzip, br;q=0.9")
	w := serve(r, req)
	require.Equal(t, "br", w.Header().Get("Content-Encoding"))
	body, err := io.ReadAll(brotli.NewReader(bytes.NewReader(w.Body.Bytes())))
	require.NoError(t, err)
	assert.Equal(t, large, string(body))

	req = httptest.NewRequest(http.MethodGet, "/small", nil)
	req.Header.Set("Accept-Encoding", "br")
	w = serve(r, req)
	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Equal(t, "tiny", w.Body.String())

	w = serve(r, httptest.NewRequest(http.MethodGet, "/large", nil))
	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Equal(t, large, w.Body.String())
}

func TestBrotliSkipper(t *testing.T) {
	r := gin.New()
	r.Use(BrotliWithConfig(BrotliConfig{
		Skipper: func(c *gin.Context) bool { return strings.HasSuffix(c.Request.URL.Path, ".xlsx") },
	}))
	r.GET("/export.xlsx", func(c *gin.Context) { c.String(http.StatusOK, strings.Repeat("x", 4096)) })

	req := httptest.NewRequest(http.MethodGet, "/export.xlsx", nil)
	req.Header.Set("Accept-Encoding", "br")
	w := serve(r, req)
	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Len(t, w.Body.String(), 4096)
}
