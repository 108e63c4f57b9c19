package runner

import (
	"log/slog"
	"time"

	"golang.org/x/sys/unix"
)

// raiseCPULimit lifts the soft RLIMIT_CPU to cover the given timeout and
// returns a function restoring the previous limit. The soft limit is never
// raised past the hard limit; if the current limit already covers the timeout
// (or is unlimited) the restore function is still returned so the caller can
// defer it unconditionally.
func raiseCPULimit(timeout time.Duration) (func(), error) {
	var prev unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_CPU, &prev); err != nil {
		return nil, err
	}

	secs := uint64(timeout / time.Second)
	if secs == 0 {
		secs = 1
	}

	next := prev
	if prev.Cur != unix.RLIM_INFINITY && prev.Cur < secs {
		next.Cur = secs
		if next.Max != unix.RLIM_INFINITY && next.Max < next.Cur {
			next.Cur = next.Max
		}
		if err := unix.Setrlimit(unix.RLIMIT_CPU, &next); err != nil {
			return nil, err
		}
	}

	return func() {
		if err := unix.Setrlimit(unix.RLIMIT_CPU, &prev); err != nil {
			slog.Warn("restoring CPU limit", "error", err)
		}
	}, nil
}
