package certman

import (
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"testing"
)

// stubToolScript stands in for the external toolkit: it consumes stdin (a
// piped passphrase, when present), appends its argument vector to
// $HOME/.invocations, and creates whatever file follows -out. The pid makes
// each created file's content unique so regeneration is observable.
const stubToolScript = `#!/bin/sh
cat > /dev/null
echo "$@" >> "$HOME/.invocations"
out=""
prev=""
for a in "$@"; do
	if [ "$prev" = "-out" ]; then out="$a"; fi
	prev="$a"
done
if [ -n "$out" ]; then printf 'stub %s %s\n' "$$" "$out" > "$out"; fi
exit 0
`

// stubSlowToolScript behaves like stubToolScript but takes a beat before
// writing its output file, widening the window in which a concurrent caller
// could observe the file as absent.
const stubSlowToolScript = `#!/bin/sh
cat > /dev/null
echo "$@" >> "$HOME/.invocations"
out=""
prev=""
for a in "$@"; do
	if [ "$prev" = "-out" ]; then out="$a"; fi
	prev="$a"
done
sleep 0.2
if [ -n "$out" ]; then printf 'stub %s %s\n' "$$" "$out" > "$out"; fi
exit 0
`

// stubFailScript mimics a toolkit run that starts but exits non-zero.
const stubFailScript = `#!/bin/sh
cat > /dev/null
echo "unable to load key" >&2
exit 1
`

// writeStubTool writes an executable stand-in toolkit script and returns its
// path.
func writeStubTool(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stubtool")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

// testConfig returns a Config pointing at a fresh key store with the stub
// toolkit and the current user as service account.
func testConfig(t *testing.T, script string) *Config {
	t.Helper()
	u, err := user.Current()
	if err != nil {
		t.Fatal(err)
	}
	return &Config{
		KeyStoreDir:    t.TempDir(),
		ServiceAccount: u.Username,
		ToolBinary:     writeStubTool(t, script),
		TimeoutSeconds: 10,
	}
}

// openTestStore opens the key store for cfg and registers its Close.
func openTestStore(t *testing.T, cfg *Config) *KeyStore {
	t.Helper()
	store, err := OpenKeyStore(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("closing key store: %v", err)
		}
	})
	return store
}

// invocations returns the argument lines the stub tool recorded.
func invocations(t *testing.T, store *KeyStore) []string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(store.Path(), ".invocations"))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatal(err)
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}
