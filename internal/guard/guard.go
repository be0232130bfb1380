// Package guard decides, before every route transition, whether the
// caller may proceed or must be redirected.
package guard

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Well-known paths.
const (
	PathHome          = "/"
	PathLogin         = "/login"
	PathRegister      = "/register"
	PathResetPassword = "/reset-password"
	PathDashboard     = "/dashboard"
)

// DefaultCallTimeout bounds each fact lookup when none is configured.
const DefaultCallTimeout = 3 * time.Second

// Route is a navigation target and its static requirement.
type Route struct {
	Path         string
	RequiresAuth bool
}

// DefaultRoutes is the application's route table.
var DefaultRoutes = []Route{
	{Path: PathHome},
	{Path: PathLogin},
	{Path: PathRegister},
	{Path: PathResetPassword},
	{Path: PathDashboard, RequiresAuth: true},
}

// NormalizePath folds case and drops trailing slashes, so "/Dashboard/"
// and "/dashboard" name the same route. An empty path is home.
func NormalizePath(path string) string {
	path = strings.TrimRight(strings.ToLower(path), "/")
	if path == "" {
		return PathHome
	}
	return path
}

// Lookup finds the route for path in routes, comparing normalized paths.
// Unknown paths are public.
func Lookup(routes []Route, path string) Route {
	path = NormalizePath(path)
	for _, r := range routes {
		if NormalizePath(r.Path) == path {
			return r
		}
	}
	return Route{Path: path}
}

// Decision is the outcome of a guard evaluation.
type Decision struct {
	Proceed  bool       `json:"proceed"`
	Redirect string     `json:"redirect,omitempty"`
	Query    url.Values `json:"query,omitempty"`
}

// Location renders the redirect target with its query string.
func (d Decision) Location() string {
	if d.Proceed {
		return ""
	}
	if len(d.Query) == 0 {
		return d.Redirect
	}
	return d.Redirect + "?" + d.Query.Encode()
}

func proceed() Decision {
	return Decision{Proceed: true}
}

func redirect(path string, query url.Values) Decision {
	return Decision{Redirect: path, Query: query}
}

// Facts supplies the three facts the guard decides on.
type Facts interface {
	IsAuthenticated(ctx context.Context) (bool, error)
	HasAdminTierAccountRegistered(ctx context.Context) bool
	IsCurrentAccountAdminTier(ctx context.Context) (bool, error)
}

// Guard evaluates route transitions.
type Guard struct {
	facts       Facts
	callTimeout time.Duration
	log         zerolog.Logger
}

// New creates a Guard. A non-positive timeout uses DefaultCallTimeout.
func New(facts Facts, callTimeout time.Duration, log zerolog.Logger) *Guard {
	if callTimeout <= 0 {
		callTimeout = DefaultCallTimeout
	}
	return &Guard{
		facts:       facts,
		callTimeout: callTimeout,
		log:         log.With().Str("component", "guard").Logger(),
	}
}

// Evaluate decides whether navigation to route may proceed.
func (g *Guard) Evaluate(ctx context.Context, route Route) Decision {
	path := NormalizePath(route.Path)
	authed := fetch(ctx, g, "is_authenticated", false, g.facts.IsAuthenticated)

	if !authed {
		adminExists := fetch(ctx, g, "has_admin_tier", false, func(ctx context.Context) (bool, error) {
			return g.facts.HasAdminTierAccountRegistered(ctx), nil
		})
		if !adminExists && !isBootstrapPath(path) {
			return redirect(PathRegister, nil)
		}
	}

	if route.RequiresAuth {
		if !authed {
			return redirect(PathLogin, url.Values{"redirect": {route.Path}})
		}
		if path == PathDashboard {
			isAdmin := fetch(ctx, g, "is_admin_tier", false, g.facts.IsCurrentAccountAdminTier)
			if !isAdmin {
				return redirect(PathHome, nil)
			}
		}
	}

	return proceed()
}

// isBootstrapPath reports whether path stays reachable on an unprovisioned system.
func isBootstrapPath(path string) bool {
	return path == PathRegister || path == PathHome || path == PathLogin
}

// fetch runs one fact lookup under the guard's call timeout. Errors,
// timeouts and cancellation yield fallback.
func fetch[T any](ctx context.Context, g *Guard, name string, fallback T, f func(context.Context) (T, error)) T {
	ctx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := f(ctx)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			g.log.Warn().Err(r.err).Str("fact", name).Msg("Fact lookup failed")
			return fallback
		}
		return r.v
	case <-ctx.Done():
		g.log.Warn().Err(ctx.Err()).Str("fact", name).Msg("Fact lookup abandoned")
		return fallback
	}
}
