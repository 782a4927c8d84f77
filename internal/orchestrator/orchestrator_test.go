package orchestrator

import (
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/hzrd149/process-pastry/internal/envfile"
	"github.com/hzrd149/process-pastry/internal/process"
)

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("tests require sh/sleep on Unix-like systems")
	}
}

func newTestOrchestrator(t *testing.T, command string) (*Orchestrator, *process.Manager, string) {
	t.Helper()
	envPath := filepath.Join(t.TempDir(), ".env")
	mgr := process.New(process.Spec{Command: command, EnvFile: envPath})
	o := New(envPath, mgr)
	o.SettleDelay = 50 * time.Millisecond
	t.Cleanup(func() { mgr.Stop(2 * time.Second) })
	return o, mgr, envPath
}

func TestReplaceThenReadBack(t *testing.T) {
	requireUnix(t)
	o, mgr, _ := newTestOrchestrator(t, "sleep 10")
	if err := envfile.Encode(o.EnvFile, envfile.Map{"PORT": "3000"}); err != nil {
		t.Fatalf("seed env file: %v", err)
	}
	mgr.Start()
	before := mgr.Status()
	if before.PID == nil {
		t.Fatalf("process did not start: %+v", before)
	}

	res := o.Replace(envfile.Map{"PORT": "4000"}, true)
	if !res.Success || !res.Restarted {
		t.Fatalf("replace result: %+v", res)
	}
	m, err := o.Config()
	if err != nil {
		t.Fatalf("Config: %v", err)
	}
	if m["PORT"] != "4000" {
		t.Fatalf("read-back mismatch: %#v", m)
	}
	after := mgr.Status()
	if after.PID == nil {
		t.Fatalf("process not running after restart: %+v", after)
	}
	if *after.PID == *before.PID {
		t.Fatalf("restart reused pid %d", *before.PID)
	}
}

func TestPatchPreservesUnrelatedKeys(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, "sleep 10")
	if err := envfile.Encode(o.EnvFile, envfile.Map{"A": "1", "B": "2"}); err != nil {
		t.Fatalf("seed env file: %v", err)
	}
	res := o.Patch(envfile.Map{"B": "3"}, false)
	if !res.Success || res.Restarted {
		t.Fatalf("patch result: %+v", res)
	}
	if !reflect.DeepEqual(res.Updated, []string{"B"}) {
		t.Fatalf("updated keys: %#v", res.Updated)
	}
	m, err := o.Config()
	if err != nil {
		t.Fatalf("Config: %v", err)
	}
	if !reflect.DeepEqual(m, envfile.Map{"A": "1", "B": "3"}) {
		t.Fatalf("stored config: %#v", m)
	}
}

func TestSkipRestartLeavesProcessAlone(t *testing.T) {
	requireUnix(t)
	o, mgr, _ := newTestOrchestrator(t, "sleep 10")
	mgr.Start()
	before := mgr.Status()
	if before.PID == nil {
		t.Fatalf("process did not start: %+v", before)
	}
	res := o.Replace(envfile.Map{"PORT": "5000"}, false)
	if !res.Success || res.Restarted || res.Error != nil {
		t.Fatalf("skip-restart result: %+v", res)
	}
	after := mgr.Status()
	if after.PID == nil || *after.PID != *before.PID {
		t.Fatalf("pid changed without restart: before=%+v after=%+v", before, after)
	}
}

func TestRestartSurfacesStartupFailure(t *testing.T) {
	requireUnix(t)
	o, _, _ := newTestOrchestrator(t, "sh -c 'echo cannot bind 1>&2; exit 1'")
	o.SettleDelay = 500 * time.Millisecond
	res := o.Replace(envfile.Map{"PORT": "80"}, true)
	if !res.Success {
		t.Fatalf("write should succeed even when the child fails: %+v", res)
	}
	if res.Error == nil || !strings.Contains(*res.Error, "cannot bind") {
		t.Fatalf("startup failure not surfaced after settle delay: %+v", res)
	}
}

func TestSchemaUsesExampleConvention(t *testing.T) {
	o, _, envPath := newTestOrchestrator(t, "sleep 10")
	example := envPath + ".example"
	content := "# Server port\n# Default: 3000\nPORT=3000\n# Required API key\n#API_KEY=sk-example\n"
	if err := os.WriteFile(example, []byte(content), 0o600); err != nil {
		t.Fatalf("write example: %v", err)
	}
	s := o.Schema()
	if got := s["PORT"]; got.Description != "Server port\nDefault: 3000" || got.Default != "3000" || got.Commented {
		t.Fatalf("PORT schema: %+v", got)
	}
	if got := s["API_KEY"]; got.Description != "Required API key" || got.Default != "sk-example" || !got.Commented {
		t.Fatalf("API_KEY schema: %+v", got)
	}
}

func TestSchemaMissingExampleIsEmpty(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, "sleep 10")
	if s := o.Schema(); len(s) != 0 {
		t.Fatalf("expected empty schema, got %#v", s)
	}
}
