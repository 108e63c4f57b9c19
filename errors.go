package certman

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sensiblebit/certman/internal/runner"
)

// Sentinel errors for the certificate lifecycle operations. Callers match
// them with errors.Is.
var (
	// ErrInvalidArgument reports missing or malformed caller input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrMissingField reports a distinguished-name parameter set lacking a
	// required attribute.
	ErrMissingField = errors.New("missing required field")
	// ErrWeakPassphrase reports a passphrase under the 8-character floor.
	// Only key generation and CA creation enforce the floor; signing
	// deliberately accepts legacy short passphrases.
	ErrWeakPassphrase = errors.New("passphrase must be at least 8 characters")
	// ErrNotFound reports a referenced key, CSR, or CA that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDirectoryCreate reports that the key store directory could not be
	// created.
	ErrDirectoryCreate = errors.New("cannot create directory")
	// ErrPermission reports a key store that is not writable or not owned
	// by the service account and cannot be repaired without privilege.
	ErrPermission = errors.New("permission denied")
	// ErrHostnameResolution reports that no usable hostname could be
	// determined.
	ErrHostnameResolution = errors.New("cannot resolve hostname")
	// ErrToolExecution reports a toolkit invocation that ran but exited
	// non-zero. The concrete error is always a *ToolError.
	ErrToolExecution = errors.New("external tool failed")

	// ErrProcessSpawn and ErrTimeout surface the runner's failure modes.
	ErrProcessSpawn = runner.ErrSpawn
	ErrTimeout      = runner.ErrTimeout
)

// ToolError carries the literal invocation and the captured process result of
// a toolkit run that exited non-zero.
type ToolError struct {
	Args   []string
	Result *runner.Result
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%v: %s: exit %d: %s",
		ErrToolExecution, strings.Join(e.Args, " "), e.Result.ExitCode,
		strings.TrimSpace(e.Result.Stderr))
}

func (e *ToolError) Unwrap() error {
	return ErrToolExecution
}
