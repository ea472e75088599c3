package gspawn

import (
	"bytes"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// OpenDescriptors returns the number of descriptors open in this process.
func OpenDescriptors() (int, error) {
	entries, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		return 0, err
	}
	// minus the descriptor ReadDir used for the listing itself
	return len(entries) - 1, nil
}

// IsZombie reports whether pid has exited but not been reclaimed.
func IsZombie(pid int) bool {
	state, _, ok := procStat(pid)
	return ok && state == 'Z'
}

// ZombieChildren returns the number of zombie children of ppid.
func ZombieChildren(ppid int) (int, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		state, parent, ok := procStat(pid)
		if ok && state == 'Z' && parent == ppid {
			n++
		}
	}
	return n, nil
}

// procStat reads the state and parent pid fields of /proc/<pid>/stat.
func procStat(pid int) (byte, int, bool) {
	b, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/stat")
	if err != nil {
		return 0, 0, false
	}
	// comm may contain spaces and parentheses; fields resume after the last ')'
	i := bytes.LastIndexByte(b, ')')
	if i < 0 {
		return 0, 0, false
	}
	fields := bytes.Fields(b[i+1:])
	if len(fields) < 2 || len(fields[0]) == 0 {
		return 0, 0, false
	}
	ppid, err := strconv.Atoi(string(fields[1]))
	if err != nil {
		return 0, 0, false
	}
	return fields[0][0], ppid, true
}

// exitWatcher returns a function blocking until pid has exited, at which
// point the kernel has closed every descriptor it held. The process is not
// reaped. pid must be an unreaped child when exitWatcher is called.
func exitWatcher(pid int) (func() error, error) {
	fd, err := unix.PidfdOpen(pid, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "pidfd_open %d", pid)
	}
	return func() error {
		defer unix.Close(fd)
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		for {
			_, err := unix.Poll(fds, -1)
			if err != unix.EINTR {
				return err
			}
		}
	}, nil
}
