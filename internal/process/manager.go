package process

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/hzrd149/process-pastry/internal/envfile"
	"github.com/hzrd149/process-pastry/internal/metrics"
)

const (
	// DefaultStopTimeout bounds the graceful-termination wait before
	// escalating to SIGKILL.
	DefaultStopTimeout = 5 * time.Second

	stopPollInterval = 100 * time.Millisecond
	killGrace        = 200 * time.Millisecond
)

// Status is the externally visible view of the managed process.
// PID and LastError are nil when not applicable.
type Status struct {
	Running   bool    `json:"running"`
	LastError *string `json:"lastError"`
	PID       *int    `json:"pid"`
}

// Manager owns the single managed child process: its handle, the
// accumulated error buffer, and the background goroutines draining its
// output and reaping its exit. All mutations of the handle go through
// Manager methods.
//
// Start, Stop and Restart are serialized by an operation mutex so that
// concurrent control-plane calls cannot interleave their
// terminate-then-spawn sequences.
type Manager struct {
	spec   Spec
	logger *slog.Logger

	opMu sync.Mutex // serializes Start/Stop/Restart end to end

	mu       sync.Mutex
	cmd      *exec.Cmd
	errBuf   strings.Builder
	waitDone chan struct{} // closed by the exit watcher when the child is reaped
}

func New(spec Spec) *Manager {
	return &Manager{spec: spec, logger: slog.Default()}
}

// SetLogger overrides the manager's structured logger.
func (m *Manager) SetLogger(l *slog.Logger) {
	if l != nil {
		m.logger = l
	}
}

// UpdateSpec replaces the spec; it takes effect on the next Start.
func (m *Manager) UpdateSpec(s Spec) {
	m.mu.Lock()
	m.spec = s
	m.mu.Unlock()
}

// Start terminates any currently running child, then spawns a new one
// with the environment rebuilt from the env file. Spawn failures are
// recorded in the error buffer and surfaced through Status, never
// returned: a broken child must not break the control plane.
func (m *Manager) Start() {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	m.stopLocked(DefaultStopTimeout)
	m.startLocked()
}

// Restart is Start: the terminate-then-spawn sequence is built in.
func (m *Manager) Restart() {
	m.Start()
}

// Stop gracefully terminates the child, escalating to SIGKILL after
// wait. It is idempotent and a no-op when nothing is running.
func (m *Manager) Stop(wait time.Duration) {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	m.stopLocked(wait)
}

// Status reports the current state. Pure read, no side effects.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := Status{Running: m.cmd != nil}
	if m.cmd != nil && m.cmd.Process != nil {
		pid := m.cmd.Process.Pid
		st.PID = &pid
	}
	if s := m.errBuf.String(); s != "" {
		errText := s
		st.LastError = &errText
	}
	return st
}

func (m *Manager) startLocked() {
	m.mu.Lock()
	spec := m.spec
	m.errBuf.Reset()
	m.mu.Unlock()

	cmd := spec.BuildCommand()
	if spec.WorkDir != "" {
		cmd.Dir = spec.WorkDir
	}
	cmd.Env = buildEnv(spec.EnvFile, m.recordError)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		m.recordError("stdout pipe: " + err.Error())
		metrics.IncSpawnFailure()
		return
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		m.recordError("stderr pipe: " + err.Error())
		metrics.IncSpawnFailure()
		return
	}

	if err := cmd.Start(); err != nil {
		m.recordError(err.Error())
		m.logger.Error("spawn failed", "command", spec.Command, "error", err)
		metrics.IncSpawnFailure()
		return
	}

	waitDone := make(chan struct{})
	m.mu.Lock()
	m.cmd = cmd
	m.waitDone = waitDone
	m.mu.Unlock()

	m.logger.Info("process started", "pid", cmd.Process.Pid, "command", spec.Command)
	metrics.IncStart()
	metrics.SetUp(true)

	outW, errW, _ := spec.Log.Writers("app")
	var drains sync.WaitGroup
	drains.Add(2)
	go m.drainStdout(stdout, outW, &drains)
	go m.drainStderr(cmd, stderr, errW, &drains)
	go m.watch(cmd, waitDone, &drains, outW, errW)
}

// drainStdout consumes the child's stdout until end-of-stream,
// mirroring it to the rotating log writer when one is configured.
func (m *Manager) drainStdout(r io.Reader, mirror io.WriteCloser, wg *sync.WaitGroup) {
	defer wg.Done()
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 && mirror != nil {
			_, _ = mirror.Write(buf[:n])
		}
		if err != nil {
			return
		}
	}
}

// drainStderr consumes the child's stderr until end-of-stream. Bytes
// are forwarded verbatim to the parent's stderr so the child's native
// diagnostics stay visible, and the decoded text accumulates in the
// error buffer for Status. The buffer write is gated on cmd still
// being the current handle so a drain outliving its process cannot
// pollute a successor's freshly reset buffer.
func (m *Manager) drainStderr(cmd *exec.Cmd, r io.Reader, mirror io.WriteCloser, wg *sync.WaitGroup) {
	defer wg.Done()
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			_, _ = os.Stderr.Write(buf[:n])
			if mirror != nil {
				_, _ = mirror.Write(buf[:n])
			}
			m.mu.Lock()
			if m.cmd == cmd {
				m.errBuf.Write(buf[:n])
			}
			m.mu.Unlock()
		}
		if err != nil {
			return
		}
	}
}

// watch reaps the child once both drain loops hit end-of-stream,
// records a non-zero exit in the error buffer, and clears the handle.
// A child killed by a signal has no exit code, so signal termination
// (including the manager's own SIGTERM during a stop) is not recorded
// as a failure. All state writes are gated on cmd still being the
// current handle: Stop can observe the death and let a replacement
// spawn before this goroutine gets here, and a stale watcher must not
// touch the successor's buffer or gauge.
func (m *Manager) watch(cmd *exec.Cmd, waitDone chan struct{}, drains *sync.WaitGroup, closers ...io.WriteCloser) {
	drains.Wait()
	err := cmd.Wait()

	code := 0
	signaled := false
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			code = ee.ExitCode()
			signaled = !ee.Exited()
		} else {
			code = -1
		}
	}
	failed := code != 0 && !signaled

	for _, c := range closers {
		if c != nil {
			_ = c.Close()
		}
	}

	m.mu.Lock()
	current := m.cmd == cmd
	if current {
		m.cmd = nil
		if failed {
			m.appendErrorLocked("process exited with code " + strconv.Itoa(code))
		}
	}
	m.mu.Unlock()
	if current {
		if failed {
			metrics.IncAbnormalExit()
		}
		metrics.SetUp(false)
	}
	m.logger.Info("process exited", "pid", cmd.Process.Pid, "code", code, "signaled", signaled)
	close(waitDone)
}

// stopLocked runs the graceful-then-forced termination sequence. The
// caller must hold opMu. Signal delivery failures are swallowed: the
// process may already be gone.
func (m *Manager) stopLocked(wait time.Duration) {
	m.mu.Lock()
	cmd := m.cmd
	waitDone := m.waitDone
	m.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return
	}
	pid := cmd.Process.Pid
	_ = syscall.Kill(-pid, syscall.SIGTERM)
	metrics.IncStop()

	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		select {
		case <-waitDone:
			return
		case <-time.After(stopPollInterval):
		}
		if m.handleCleared(cmd) || !alive(pid) {
			// Dead but possibly not yet reaped; give the watcher a
			// moment to finish before a successor can spawn.
			select {
			case <-waitDone:
			case <-time.After(killGrace):
			}
			return
		}
	}

	m.logger.Warn("graceful stop timed out, killing", "pid", pid, "wait", wait)
	_ = syscall.Kill(-pid, syscall.SIGKILL)
	select {
	case <-waitDone:
	case <-time.After(killGrace):
	}
	m.mu.Lock()
	cleared := m.cmd == cmd
	if cleared {
		m.cmd = nil
	}
	m.mu.Unlock()
	if cleared {
		metrics.SetUp(false)
	}
}

func (m *Manager) handleCleared(cmd *exec.Cmd) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cmd != cmd
}

func (m *Manager) recordError(s string) {
	m.mu.Lock()
	m.appendErrorLocked(s)
	m.mu.Unlock()
}

func (m *Manager) appendErrorLocked(s string) {
	if m.errBuf.Len() > 0 {
		m.errBuf.WriteByte('\n')
	}
	m.errBuf.WriteString(s)
}

// buildEnv merges the OS environment with the decoded env file; file
// entries win on key collision. A decode failure is reported through
// onErr and the OS environment is used as-is.
func buildEnv(envFile string, onErr func(string)) []string {
	merged := make(map[string]string)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			if k := kv[:i]; k != "" {
				merged[k] = kv[i+1:]
			}
		}
	}
	if envFile != "" {
		fileVars, err := envfile.Decode(envFile)
		if err != nil {
			onErr("load env file: " + err.Error())
		}
		for k, v := range fileVars {
			merged[k] = v
		}
	}
	out := make([]string, 0, len(merged))
	for k, v := range merged {
		out = append(out, k+"="+v)
	}
	return out
}
