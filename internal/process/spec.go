package process

import (
	"os/exec"
	"strings"

	"github.com/hzrd149/process-pastry/internal/logger"
)

// Spec describes the single command this manager supervises.
type Spec struct {
	Command string        `json:"command" mapstructure:"command"`   // command line to start the process
	WorkDir string        `json:"work_dir" mapstructure:"work_dir"` // optional working dir
	EnvFile string        `json:"env_file" mapstructure:"env_file"` // env file merged over the OS environment
	Log     logger.Config `json:"log" mapstructure:"log"`           // optional rotating mirrors for child output
}

// BuildCommand constructs an *exec.Cmd for spec.Command. It avoids
// invoking a shell when not necessary; when shell metacharacters are
// present the command runs under /bin/sh -c.
func (s *Spec) BuildCommand() *exec.Cmd {
	cmdStr := strings.TrimSpace(s.Command)
	if cmdStr == "" {
		// #nosec G204
		return exec.Command("/bin/true")
	}
	if strings.ContainsAny(cmdStr, "|&;<>*?`$\"'(){}[]~") {
		// #nosec G204
		return exec.Command("/bin/sh", "-c", cmdStr)
	}
	parts := strings.Fields(cmdStr)
	name := parts[0]
	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}
	// ok: intentional execution, input comes from the operator's config
	// #nosec G204
	return exec.Command(name, args...)
}
