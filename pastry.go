// Package pastry lets an operator edit a process's env file through an
// HTTP API and have the managed process restarted with the new
// configuration. This file is the public facade for embedding; the
// pastry CLI wires the same pieces from a TOML config.
package pastry

import (
	"net/http"
	"time"

	cfg "github.com/hzrd149/process-pastry/internal/config"
	"github.com/hzrd149/process-pastry/internal/envfile"
	"github.com/hzrd149/process-pastry/internal/metrics"
	"github.com/hzrd149/process-pastry/internal/orchestrator"
	"github.com/hzrd149/process-pastry/internal/process"
	"github.com/hzrd149/process-pastry/internal/server"
	"github.com/prometheus/client_golang/prometheus"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Spec = process.Spec

type Status = process.Status

type Map = envfile.Map

type VariableSchema = envfile.VariableSchema

type Result = orchestrator.Result

// Manager is a thin facade over the internal process manager and
// restart orchestrator. It provides a stable public API for embedding.
type Manager struct {
	mgr  *process.Manager
	orch *orchestrator.Orchestrator
}

// New builds a Manager supervising spec, editing spec.EnvFile.
func New(spec Spec) *Manager {
	mgr := process.New(spec)
	return &Manager{mgr: mgr, orch: orchestrator.New(spec.EnvFile, mgr)}
}

func (m *Manager) Start()                  { m.mgr.Start() }
func (m *Manager) Restart()                { m.mgr.Restart() }
func (m *Manager) Stop(wait time.Duration) { m.mgr.Stop(wait) }
func (m *Manager) Status() Status          { return m.mgr.Status() }

func (m *Manager) Config() (Map, error)                 { return m.orch.Config() }
func (m *Manager) Replace(env Map, restart bool) Result { return m.orch.Replace(env, restart) }
func (m *Manager) Patch(env Map, restart bool) Result   { return m.orch.Patch(env, restart) }
func (m *Manager) Schema() map[string]VariableSchema    { return m.orch.Schema() }

// LoadConfig reads the daemon's own TOML configuration.
func LoadConfig(path string) (cfg.Config, error) { return cfg.Load(path) }

// NewHTTPServer starts an HTTP server exposing the control-plane API
// for the given manager.
func NewHTTPServer(addr, basePath string, m *Manager, opts ...server.Option) *http.Server {
	return server.NewServer(addr, server.NewRouter(m.orch, basePath, opts...))
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }
