// Package orchestrator sequences config mutation against process
// restarts: it is the control plane behind the HTTP handlers.
package orchestrator

import (
	"log/slog"
	"sort"
	"time"

	"github.com/hzrd149/process-pastry/internal/envfile"
	"github.com/hzrd149/process-pastry/internal/metrics"
	"github.com/hzrd149/process-pastry/internal/process"
)

// DefaultSettleDelay is the wait between restarting the process and
// sampling its error state. It is a best-effort window for startup
// failures to surface, not a guarantee that the process finished
// initializing.
const DefaultSettleDelay = time.Second

// Result reports the outcome of a config write. Success reflects the
// write itself; a populated Error after a restart signals that the
// restarted process is unhappy without failing the request.
type Result struct {
	Success   bool     `json:"success"`
	Error     *string  `json:"error"`
	Restarted bool     `json:"restarted"`
	Updated   []string `json:"updated,omitempty"`
}

// Orchestrator wires the Config Store to the process Manager.
type Orchestrator struct {
	EnvFile     string
	ExampleFile string        // defaults to EnvFile + ".example"
	SettleDelay time.Duration // defaults to DefaultSettleDelay

	mgr    *process.Manager
	logger *slog.Logger
}

func New(envFile string, mgr *process.Manager) *Orchestrator {
	return &Orchestrator{
		EnvFile:     envFile,
		SettleDelay: DefaultSettleDelay,
		mgr:         mgr,
		logger:      slog.Default(),
	}
}

// SetLogger overrides the orchestrator's structured logger.
func (o *Orchestrator) SetLogger(l *slog.Logger) {
	if l != nil {
		o.logger = l
	}
}

// Config decodes and returns the env file contents.
func (o *Orchestrator) Config() (envfile.Map, error) {
	return envfile.Decode(o.EnvFile)
}

// Replace overwrites the env file with m wholesale and restarts the
// managed process unless the caller opted out.
func (o *Orchestrator) Replace(m envfile.Map, restart bool) Result {
	if err := envfile.Encode(o.EnvFile, m); err != nil {
		return failure(err)
	}
	metrics.IncConfigWrite("replace")
	return o.finish(restart, nil)
}

// Patch shallow-merges patch over the current contents: new keys are
// added, existing keys overwritten, nothing removed. Updated lists the
// keys the caller explicitly sent, sorted.
func (o *Orchestrator) Patch(patch envfile.Map, restart bool) Result {
	current, err := envfile.Decode(o.EnvFile)
	if err != nil {
		return failure(err)
	}
	updated := make([]string, 0, len(patch))
	for k, v := range patch {
		current[k] = v
		updated = append(updated, k)
	}
	sort.Strings(updated)
	if err := envfile.Encode(o.EnvFile, current); err != nil {
		return failure(err)
	}
	metrics.IncConfigWrite("patch")
	return o.finish(restart, updated)
}

// Status delegates to the process manager.
func (o *Orchestrator) Status() process.Status {
	return o.mgr.Status()
}

// Schema parses the example file. Empty mapping on any failure.
func (o *Orchestrator) Schema() map[string]envfile.VariableSchema {
	p := o.ExampleFile
	if p == "" {
		p = envfile.ExamplePath(o.EnvFile)
	}
	return envfile.ParseSchema(p)
}

// finish runs the shared restart sequence: restart, wait out the
// settle delay, then report whatever error state has surfaced. The
// write already succeeded, so Success stays true either way.
func (o *Orchestrator) finish(restart bool, updated []string) Result {
	res := Result{Success: true, Updated: updated}
	if !restart {
		return res
	}
	o.logger.Info("restarting managed process after config write")
	metrics.IncRestart()
	o.mgr.Restart()
	time.Sleep(o.settleDelay())
	res.Restarted = true
	res.Error = o.mgr.Status().LastError
	return res
}

func (o *Orchestrator) settleDelay() time.Duration {
	if o.SettleDelay > 0 {
		return o.SettleDelay
	}
	return DefaultSettleDelay
}

func failure(err error) Result {
	msg := err.Error()
	return Result{Success: false, Error: &msg}
}
