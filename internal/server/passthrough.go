package server

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

// passthrough handles every route the API does not claim. Files from
// the static UI directory are served first; anything else is
// reverse-proxied to the managed application when a target is
// configured. With neither configured unmatched routes 404.
func (r *Router) passthrough() gin.HandlerFunc {
	var proxy *httputil.ReverseProxy
	if r.proxyTarget != "" {
		if target, err := url.Parse(r.proxyTarget); err == nil {
			proxy = httputil.NewSingleHostReverseProxy(target)
			proxy.ErrorHandler = func(w http.ResponseWriter, req *http.Request, err error) {
				w.WriteHeader(http.StatusBadGateway)
				_, _ = w.Write([]byte("upstream unavailable: " + err.Error()))
			}
		}
	}
	return func(c *gin.Context) {
		if r.staticDir != "" {
			if p, ok := r.staticFile(c.Request.URL.Path); ok {
				c.File(p)
				return
			}
			// The UI is a single page; only fall back to it when no
			// proxy can answer instead.
			if proxy == nil {
				c.File(filepath.Join(r.staticDir, "index.html"))
				return
			}
		}
		if proxy != nil {
			proxy.ServeHTTP(c.Writer, c.Request)
			return
		}
		c.Status(http.StatusNotFound)
	}
}

// staticFile resolves urlPath inside the static dir, rejecting
// traversal outside it.
func (r *Router) staticFile(urlPath string) (string, bool) {
	rel := strings.TrimPrefix(urlPath, "/")
	if rel == "" {
		rel = "index.html"
	}
	p := filepath.Join(r.staticDir, filepath.Clean("/"+rel))
	absDir, err1 := filepath.Abs(r.staticDir)
	absFile, err2 := filepath.Abs(p)
	if err1 != nil || err2 != nil || !strings.HasPrefix(absFile, absDir+string(filepath.Separator)) {
		return "", false
	}
	st, err := os.Stat(p)
	if err != nil || st.IsDir() {
		return "", false
	}
	return p, true
}
