package process

import (
	"bytes"
	"os"
	"runtime"
	"strconv"
	"syscall"
)

// alive probes liveness with a zero signal. Any probe failure,
// including permission errors, is folded into "not alive": for this
// manager's purposes a process we cannot signal is as good as gone.
// On Linux a reaped-but-unwaited child shows up as a zombie and is
// reported not alive so quick-exit children do not stall the stop
// poll.
func alive(pid int) bool {
	if runtime.GOOS == "linux" && isZombieLinux(pid) {
		return false
	}
	return syscall.Kill(pid, 0) == nil
}

// isZombieLinux returns true if /proc/<pid>/status reports state Z.
func isZombieLinux(pid int) bool {
	b, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/status")
	if err != nil {
		return false
	}
	return bytes.Contains(b, []byte("State:\tZ"))
}
