//go:build linux

package sandbox

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

func configureProcess(cmd *exec.Cmd, isolate bool) {
	attr := &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
	if isolate {
		attr.Cloneflags = unix.CLONE_NEWUSER | unix.CLONE_NEWNET
		attr.UidMappings = []syscall.SysProcIDMap{{ContainerID: os.Getuid(), HostID: os.Getuid(), Size: 1}}
		attr.GidMappings = []syscall.SysProcIDMap{{ContainerID: os.Getgid(), HostID: os.Getgid(), Size: 1}}
	}
	cmd.SysProcAttr = attr
}

func killGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}

// reap waits for the group leader to exit without reaping it, sweeps the
// group for orphans, then collects the leader. While the leader is an
// unreaped zombie its pid, and so the pgid, cannot be reused.
func reap(cmd *exec.Cmd) error {
	var info unix.Siginfo
	for {
		err := unix.Waitid(unix.P_PID, cmd.Process.Pid, &info, unix.WEXITED|unix.WNOWAIT, nil)
		if !errors.Is(err, unix.EINTR) {
			break
		}
	}
	killGroup(cmd)
	return cmd.Wait()
}

// applyLimits sets rlimits on the started child. Limits are best effort:
// a host that refuses them still gets timeout enforcement.
func applyLimits(pid int, opts Options) {
	set := func(resource int, value uint64) {
		if value == 0 {
			return
		}
		lim := unix.Rlimit{Cur: value, Max: value}
		_ = unix.Prlimit(pid, resource, &lim, nil)
	}
	set(unix.RLIMIT_AS, uint64(opts.MemoryLimitMB)<<20)
	set(unix.RLIMIT_CPU, uint64(opts.CPUSeconds))
	set(unix.RLIMIT_NPROC, uint64(opts.MaxProcesses))
	set(unix.RLIMIT_CORE, 0)
}

func isolationError(err error) bool {
	return errors.Is(err, unix.EPERM) || errors.Is(err, unix.EINVAL) || errors.Is(err, unix.ENOSPC) || errors.Is(err, unix.EACCES)
}
