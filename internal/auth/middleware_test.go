package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newGuardedHandler(mw *Middleware) http.Handler {
	gin.SetMode(gin.TestMode)
	g := gin.New()
	g.GET("/", mw.GinAuth(), func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return g
}

func TestDisabledMiddlewarePassesThrough(t *testing.T) {
	h := newGuardedHandler(New("", ""))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("disabled auth should pass through, got %d", w.Code)
	}
}

func TestCredentialCheck(t *testing.T) {
	h := newGuardedHandler(New("admin", "secret"))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("missing credentials: got %d", w.Code)
	}
	if got := w.Header().Get("WWW-Authenticate"); got == "" {
		t.Fatalf("challenge header missing")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth("admin", "secret")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("valid credentials rejected: %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth("admin", "wrong")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad password accepted: %d", w.Code)
	}
}
