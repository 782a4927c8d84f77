package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hzrd149/process-pastry/internal/envfile"
	"github.com/hzrd149/process-pastry/internal/orchestrator"
	"github.com/hzrd149/process-pastry/internal/process"
)

func newTestRouter(t *testing.T, opts ...Option) (*Router, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	envPath := filepath.Join(t.TempDir(), ".env")
	mgr := process.New(process.Spec{Command: "sleep 10", EnvFile: envPath})
	o := orchestrator.New(envPath, mgr)
	o.SettleDelay = 50 * time.Millisecond
	t.Cleanup(func() { mgr.Stop(2 * time.Second) })
	return NewRouter(o, "/api", opts...), envPath
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	// Real server requests always carry a cancelable context; without one
	// httputil.ReverseProxy falls back to http.CloseNotifier, which
	// httptest.ResponseRecorder does not implement.
	ctx, cancel := context.WithCancel(req.Context())
	defer cancel()
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestGetEnvReturnsFileContents(t *testing.T) {
	r, envPath := newTestRouter(t)
	if err := envfile.Encode(envPath, envfile.Map{"PORT": "3000"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	w := doRequest(t, r.Handler(), http.MethodGet, "/api/env", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var m map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m["PORT"] != "3000" {
		t.Fatalf("unexpected body: %#v", m)
	}
}

func TestReplaceEnvSkipRestart(t *testing.T) {
	r, envPath := newTestRouter(t)
	w := doRequest(t, r.Handler(), http.MethodPut, "/api/env?restart=false", `{"PORT":"4000"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var res orchestrator.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.Success || res.Restarted || res.Error != nil {
		t.Fatalf("result: %+v", res)
	}
	m, err := envfile.Decode(envPath)
	if err != nil || m["PORT"] != "4000" {
		t.Fatalf("file not written: %#v %v", m, err)
	}
}

func TestPatchEnvReportsUpdatedKeys(t *testing.T) {
	r, envPath := newTestRouter(t)
	if err := envfile.Encode(envPath, envfile.Map{"A": "1", "B": "2"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	w := doRequest(t, r.Handler(), http.MethodPatch, "/api/env?restart=false", `{"B":"3"}`)
	var res orchestrator.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Updated) != 1 || res.Updated[0] != "B" {
		t.Fatalf("updated keys: %#v", res.Updated)
	}
	m, _ := envfile.Decode(envPath)
	if m["A"] != "1" || m["B"] != "3" {
		t.Fatalf("merge result: %#v", m)
	}
}

func TestMalformedBodyIsRequestFailure(t *testing.T) {
	r, _ := newTestRouter(t)
	w := doRequest(t, r.Handler(), http.MethodPut, "/api/env?restart=false", `{"PORT":`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	var res orchestrator.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Success || res.Error == nil {
		t.Fatalf("expected structured failure, got %+v", res)
	}
}

func TestStatusEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)
	w := doRequest(t, r.Handler(), http.MethodGet, "/api/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var st process.Status
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Running {
		t.Fatalf("nothing was started, got %+v", st)
	}
}

func TestSchemaEndpoint(t *testing.T) {
	r, envPath := newTestRouter(t)
	content := "# Server port\nPORT=3000\n"
	if err := os.WriteFile(envPath+".example", []byte(content), 0o600); err != nil {
		t.Fatalf("write example: %v", err)
	}
	w := doRequest(t, r.Handler(), http.MethodGet, "/api/schema", "")
	var s map[string]envfile.VariableSchema
	if err := json.Unmarshal(w.Body.Bytes(), &s); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s["PORT"].Description != "Server port" || s["PORT"].Default != "3000" {
		t.Fatalf("schema: %#v", s)
	}
}

func TestBasicAuthGuardsAPI(t *testing.T) {
	r, _ := newTestRouter(t, WithAuth("admin", "hunter2"))
	h := r.Handler()

	w := doRequest(t, h, http.MethodGet, "/api/env", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/env", nil)
	req.SetBasicAuth("admin", "hunter2")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with credentials, got %d: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/env", nil)
	req.SetBasicAuth("admin", "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad password, got %d", rec.Code)
	}
}

func TestStaticDirServesUI(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>ui</html>"), 0o600); err != nil {
		t.Fatalf("write index: %v", err)
	}
	r, _ := newTestRouter(t, WithStaticDir(dir))
	w := doRequest(t, r.Handler(), http.MethodGet, "/", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "ui") {
		t.Fatalf("static index not served: %d %q", w.Code, w.Body.String())
	}
}

func TestProxyPassthrough(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte("backend:" + req.URL.Path))
	}))
	defer backend.Close()

	r, _ := newTestRouter(t, WithProxyTarget(backend.URL))
	w := doRequest(t, r.Handler(), http.MethodGet, "/app/page", "")
	if w.Code != http.StatusOK || w.Body.String() != "backend:/app/page" {
		t.Fatalf("proxy passthrough failed: %d %q", w.Code, w.Body.String())
	}
}

func TestRestartFlagDefaultsToTrue(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sleep on Unix-like systems")
	}
	r, _ := newTestRouter(t)
	w := doRequest(t, r.Handler(), http.MethodPut, "/api/env", `{"PORT":"4000"}`)
	var res orchestrator.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.Restarted {
		t.Fatalf("restart should default to true: %+v", res)
	}
}
