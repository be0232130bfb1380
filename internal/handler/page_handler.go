package handler

import (
	"html/template"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/libris-backend/internal/guard"
)

// fallbackPage renders when the web bundle has no file for a page.
var fallbackPage = template.Must(template.New("page").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>Libris · {{.}}</title></head>
<body><h1>Libris</h1><p>{{.}}</p></body></html>
`))

// PageHandler serves the web application's pages. Navigation rules are
// applied before it by middleware.NavigationGuard.
type PageHandler struct {
	webDir string
}

// NewPageHandler creates a new PageHandler over a directory of HTML pages.
func NewPageHandler(webDir string) *PageHandler {
	return &PageHandler{webDir: webDir}
}

// PageFile maps a route path to its HTML file name.
func PageFile(path string) string {
	if path == guard.PathHome {
		return "index.html"
	}
	return filepath.Base(path) + ".html"
}

// Serve godoc
// GET / , /login , /register , /reset-password , /dashboard
func (h *PageHandler) Serve(c *gin.Context) {
	file := filepath.Join(h.webDir, PageFile(c.Request.URL.Path))
	if info, err := os.Stat(file); err == nil && !info.IsDir() {
		c.File(file)
		return
	}

	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	_ = fallbackPage.Execute(c.Writer, c.Request.URL.Path)
}
