package certman

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sys/unix"
)

// KeyStore is a handle on the directory holding all key, CSR, certificate,
// and config files. It is the single source of truth for where files live.
// Closing the handle runs the ownership repair sweep, so callers should
// defer Close on every path once the store is open.
type KeyStore struct {
	path    string
	account string
	// repair controls whether Close audits and repairs ownership. Handles
	// obtained through OpenKeyStoreAt skip the sweep along with every
	// other check.
	repair bool
}

// OpenKeyStore resolves, creates, and validates the key store directory from
// the configuration. The directory is created if missing and must be
// writable.
func OpenKeyStore(cfg *Config) (*KeyStore, error) {
	dir := cfg.KeyStoreDir
	if dir == "" {
		dir = DefaultKeyStoreDir
	}
	dir = filepath.Clean(dir)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDirectoryCreate, dir, err)
	}
	if err := unix.Access(dir, unix.W_OK); err != nil {
		return nil, fmt.Errorf("%w: key store %s is not writable: %v", ErrPermission, dir, err)
	}

	slog.Debug("key store resolved", "path", dir)
	return &KeyStore{path: dir, account: cfg.ServiceAccount, repair: true}, nil
}

// OpenKeyStoreAt pins the key store location unconditionally, bypassing
// directory creation, writability checks, and the ownership sweep on Close.
// It is an escape hatch for advanced callers; misuse is the caller's
// responsibility.
func OpenKeyStoreAt(path, account string) *KeyStore {
	return &KeyStore{path: path, account: account}
}

// Path returns the key store directory.
func (ks *KeyStore) Path() string {
	return ks.path
}

// File returns the path of the file with the given basename and extension
// inside the store.
func (ks *KeyStore) File(base, ext string) string {
	return filepath.Join(ks.path, base+"."+ext)
}

// Close leaves the key store in a consistent ownership state. It runs the
// same audit/repair sweep as EnforceOwnership and must be called on every
// exit path.
func (ks *KeyStore) Close() error {
	if !ks.repair {
		return nil
	}
	return EnforceOwnership(ks.path, ks.account)
}

// ListFiles returns the names of the regular files in the store, sorted.
// Hidden entries (the .rnd entropy file, the ledger) and lock files are
// excluded.
func (ks *KeyStore) ListFiles() ([]string, error) {
	entries, err := os.ReadDir(ks.path)
	if err != nil {
		return nil, fmt.Errorf("reading key store %s: %w", ks.path, err)
	}
	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".lock") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// lock takes an exclusive advisory lock for the given basename, serializing
// the check-then-create sequences so concurrent callers against the same
// store get at-most-one-writer semantics. The returned function releases the
// lock.
func (ks *KeyStore) lock(base string) (func(), error) {
	f, err := os.OpenFile(ks.File(base, "lock"), os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening lock file for %q: %w", base, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("locking %q: %w", base, err)
	}
	return func() {
		if err := unix.Flock(int(f.Fd()), unix.LOCK_UN); err != nil {
			slog.Warn("unlocking basename", "base", base, "error", err)
		}
		_ = f.Close()
	}, nil
}
