// Package runner spawns the external cryptographic toolkit and collects its
// output. Every side effect on key material goes through Run; nothing else in
// the module starts processes.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds a single toolkit invocation. Slower hosts can raise
// it per Runner.
const DefaultTimeout = 120 * time.Second

var (
	// ErrSpawn reports that the child process could not be started at all.
	ErrSpawn = errors.New("cannot spawn external tool")
	// ErrTimeout reports that the child did not finish within the
	// configured wall-clock budget. The child is killed and reaped before
	// the error is returned.
	ErrTimeout = errors.New("external tool timed out")
)

// Result is the outcome of one toolkit invocation. It is transient and owned
// by the calling operation.
type Result struct {
	// Status holds the ordered lines the tool wrote to its status
	// side-channel (fd 3), with the trailing blank line removed.
	Status   []string
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner invokes one external binary with a restricted environment and a hard
// execution timeout.
type Runner struct {
	// Binary is the toolkit executable, resolved through PATH when not
	// absolute.
	Binary string
	// User is the service account name exported as USER to the child.
	User string
	// Home is exported as HOME and used as the working directory. It is
	// normally the key store, so the tool's .rnd entropy file lands there.
	Home string
	// Timeout bounds the invocation; zero means DefaultTimeout.
	Timeout time.Duration
}

// New returns a Runner for the given binary, service account, and home
// directory. A timeout of zero selects DefaultTimeout.
func New(binary, user, home string, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Runner{Binary: binary, User: user, Home: home, Timeout: timeout}
}

// newStatusPipe is stubbed in tests.
var newStatusPipe = os.Pipe

// shellCandidates are tried in order for the SHELL environment variable.
var shellCandidates = []string{"/bin/bash", "/bin/sh", "/usr/bin/sh"}

func findShell() string {
	for _, s := range shellCandidates {
		if _, err := os.Stat(s); err == nil {
			return s
		}
	}
	return shellCandidates[len(shellCandidates)-1]
}

// environ builds the minimal environment handed to the child. Nothing from
// the parent environment leaks through.
func (r *Runner) environ() []string {
	return []string{
		"PATH=/sbin:/usr/sbin:/bin:/usr/bin",
		"USER=" + r.User,
		"HOME=" + r.Home,
		"SHELL=" + findShell(),
	}
}

// Run executes the tool with the given argument vector. The arguments are
// passed directly to the child; no shell is ever involved. If stdin is
// non-empty it is written fully to the child's standard input and the pipe is
// closed immediately, which is how passphrases reach the tool without
// appearing on a command line.
//
// A non-zero exit status is not an error at this layer: it is reported
// through Result.ExitCode so callers can attach their own context.
func (r *Runner) Run(ctx context.Context, args []string, stdin string) (*Result, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.Binary, args...)
	cmd.Env = r.environ()
	cmd.Dir = r.Home

	statusR, statusW, err := newStatusPipe()
	if err != nil {
		// Lumped in with ErrSpawn: the tool never started.
		return nil, fmt.Errorf("%w: creating status pipe: %v", ErrSpawn, err)
	}
	// fd 3 in the child
	cmd.ExtraFiles = []*os.File{statusW}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	// The CPU limit is raised to the timeout for the duration of the wait
	// and restored on every exit path.
	restore, limErr := raiseCPULimit(timeout)
	if limErr != nil {
		slog.Debug("cannot adjust CPU limit", "error", limErr)
	} else {
		defer restore()
	}

	slog.Debug("running external tool",
		"binary", r.Binary,
		"args", args,
		"timeout", timeout,
	)

	if err := cmd.Start(); err != nil {
		statusR.Close()
		statusW.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrSpawn, commandLine(r.Binary, args), err)
	}
	// The child holds its own copy of the write end; the parent's copy must
	// be closed or the status drain below never sees EOF.
	statusW.Close()

	statusCh := make(chan []string, 1)
	go func() {
		statusCh <- drainStatus(statusR)
	}()

	waitErr := cmd.Wait()
	timedOut := ctx.Err() == context.DeadlineExceeded

	var status []string
	select {
	case status = <-statusCh:
	case <-ctx.Done():
		// A grandchild that inherited the status descriptor can hold the
		// write end open after the tool exits. Closing the read end
		// unblocks the drain instead of stalling past the deadline; lines
		// read so far are kept.
		statusR.Close()
		status = <-statusCh
	}
	statusR.Close()

	res := &Result{
		Status:   status,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: -1,
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	if timedOut {
		// CommandContext already killed the child; Wait above reaped it.
		return res, fmt.Errorf("%w after %s: %s", ErrTimeout, timeout, commandLine(r.Binary, args))
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			// Non-zero exit, reported via ExitCode.
			return res, nil
		}
		return res, fmt.Errorf("waiting for %s: %w", r.Binary, waitErr)
	}
	return res, nil
}

// drainStatus reads the status side-channel to exhaustion and splits it into
// lines. The tool terminates its status output with a newline, so a single
// trailing blank line is discarded. A read error ends the drain but keeps
// whatever was read before it.
func drainStatus(r io.Reader) []string {
	data, _ := io.ReadAll(r)
	if len(data) == 0 {
		return nil
	}
	lines := strings.Split(string(data), "\n")
	if n := len(lines); lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}

func commandLine(binary string, args []string) string {
	return binary + " " + strings.Join(args, " ")
}
