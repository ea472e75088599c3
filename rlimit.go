package gspawn

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// DescriptorLimit returns the soft and hard RLIMIT_NOFILE of this process.
func DescriptorLimit() (uint64, uint64, error) {
	var rl unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rl); err != nil {
		return 0, 0, errors.Wrap(err, "getrlimit RLIMIT_NOFILE")
	}
	return uint64(rl.Cur), uint64(rl.Max), nil
}

// SetDescriptorLimit lowers or raises the soft RLIMIT_NOFILE, capped at the
// hard limit. Used to reproduce descriptor exhaustion.
func SetDescriptorLimit(n uint64) error {
	return setSoftLimit(unix.RLIMIT_NOFILE, n)
}

// SetProcessLimit sets the soft RLIMIT_NPROC, capped at the hard limit.
// Used to reproduce process table exhaustion; it is ignored for root.
func SetProcessLimit(n uint64) error {
	return setSoftLimit(unix.RLIMIT_NPROC, n)
}

func setSoftLimit(resource int, n uint64) error {
	var rl unix.Rlimit
	if err := unix.Getrlimit(resource, &rl); err != nil {
		return errors.Wrapf(err, "getrlimit %d", resource)
	}
	if n > uint64(rl.Max) {
		n = uint64(rl.Max)
	}
	rl.Cur = n
	return errors.Wrapf(unix.Setrlimit(resource, &rl), "setrlimit %d", resource)
}
