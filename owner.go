package certman

import (
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// EnforceOwnership audits the key store directory and every regular file
// directly inside it (including the toolkit's hidden .rnd entropy file when
// present) against the service account's uid/gid, repairing mismatches with
// chown. Repair requires superuser privilege; without it a mismatch fails
// with ErrPermission and ownership is left unchanged. The directory is
// created first if absent.
func EnforceOwnership(dir, account string) error {
	dir = strings.TrimRight(dir, string(os.PathSeparator))
	if dir == "" {
		dir = string(os.PathSeparator)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDirectoryCreate, dir, err)
	}

	u, err := user.Lookup(account)
	if err != nil {
		return fmt.Errorf("looking up service account %q: %w", account, err)
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return fmt.Errorf("parsing uid %q for %q: %w", u.Uid, account, err)
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return fmt.Errorf("parsing gid %q for %q: %w", u.Gid, account, err)
	}

	if err := repairOwner(dir, uid, gid); err != nil {
		return err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading key store %s: %w", dir, err)
	}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if err := repairOwner(filepath.Join(dir, e.Name()), uid, gid); err != nil {
			return err
		}
	}
	return nil
}

// repairOwner chowns path to uid/gid when its current owner differs.
// A file that disappears between the directory scan and the stat is not an
// error.
func repairOwner(path string, uid, gid int) error {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		if err == unix.ENOENT {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if int(st.Uid) == uid && int(st.Gid) == gid {
		return nil
	}

	if os.Geteuid() != 0 {
		return fmt.Errorf("%w: %s is owned by uid %d gid %d, expected uid %d gid %d; re-run as root to repair",
			ErrPermission, path, st.Uid, st.Gid, uid, gid)
	}
	if err := os.Chown(path, uid, gid); err != nil {
		return fmt.Errorf("chown %s: %w", path, err)
	}
	slog.Info("repaired ownership", "path", path, "uid", uid, "gid", gid)
	return nil
}
