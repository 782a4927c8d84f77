package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hzrd149/process-pastry/internal/auth"
	"github.com/hzrd149/process-pastry/internal/envfile"
	"github.com/hzrd149/process-pastry/internal/metrics"
	"github.com/hzrd149/process-pastry/internal/orchestrator"
)

// Router exposes the control plane over HTTP.
// Endpoints (under basePath, default "/api"):
//
//	GET   {basePath}/env      -> ConfigMap
//	PUT   {basePath}/env      body: full ConfigMap JSON, query: restart=true|false
//	PATCH {basePath}/env      body: partial ConfigMap JSON, query: restart=true|false
//	GET   {basePath}/status   -> ProcessStatus
//	GET   {basePath}/schema   -> name -> VariableSchema
//	GET   /metrics            -> Prometheus metrics
//
// Unmatched routes serve the static UI directory and/or reverse-proxy
// to the managed application when configured.
type Router struct {
	orch     *orchestrator.Orchestrator
	basePath string
	authMw   *auth.Middleware

	staticDir   string
	proxyTarget string
}

// Option mutates a Router during construction.
type Option func(*Router)

// WithAuth guards the API with a basic-auth credential pair.
func WithAuth(username, password string) Option {
	return func(r *Router) { r.authMw = auth.New(username, password) }
}

// WithStaticDir serves UI assets for unmatched routes.
func WithStaticDir(dir string) Option {
	return func(r *Router) { r.staticDir = dir }
}

// WithProxyTarget reverse-proxies unmatched routes to target (the
// managed application), after the static dir is consulted.
func WithProxyTarget(target string) Option {
	return func(r *Router) { r.proxyTarget = target }
}

// NewRouter constructs a Router. basePath may be empty or start with
// '/'; no trailing slash. An empty basePath means "/api".
func NewRouter(orch *orchestrator.Orchestrator, basePath string, opts ...Option) *Router {
	bp := sanitizeBase(basePath)
	if bp == "" {
		bp = "/api"
	}
	r := &Router{orch: orch, basePath: bp, authMw: auth.New("", "")}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Handler returns an http.Handler powered by gin that can be mounted
// in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath, r.authMw.GinAuth())
	group.GET("/env", r.handleGetEnv)
	group.PUT("/env", r.handleReplaceEnv)
	group.PATCH("/env", r.handlePatchEnv)
	group.GET("/status", r.handleStatus)
	group.GET("/schema", r.handleSchema)
	g.GET("/metrics", gin.WrapH(metrics.Handler()))
	g.NoRoute(r.passthrough())
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
func NewServer(addr string, r *Router) *http.Server {
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

func (r *Router) handleGetEnv(c *gin.Context) {
	m, err := r.orch.Config()
	if err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, m)
}

func (r *Router) handleReplaceEnv(c *gin.Context) {
	var m envfile.Map
	if err := c.ShouldBindJSON(&m); err != nil {
		writeDecodeFailure(c, err)
		return
	}
	writeJSON(c, http.StatusOK, r.orch.Replace(m, restartRequested(c)))
}

func (r *Router) handlePatchEnv(c *gin.Context) {
	var m envfile.Map
	if err := c.ShouldBindJSON(&m); err != nil {
		writeDecodeFailure(c, err)
		return
	}
	writeJSON(c, http.StatusOK, r.orch.Patch(m, restartRequested(c)))
}

func (r *Router) handleStatus(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.orch.Status())
}

func (r *Router) handleSchema(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.orch.Schema())
}

// restartRequested reads the restart query flag; a restart is the
// default and the flag only exists to skip it.
func restartRequested(c *gin.Context) bool {
	v := c.Query("restart")
	if v == "" {
		return true
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return true
	}
	return b
}

func writeDecodeFailure(c *gin.Context, err error) {
	msg := "invalid JSON: " + err.Error()
	writeJSON(c, http.StatusBadRequest, orchestrator.Result{Success: false, Error: &msg})
}
