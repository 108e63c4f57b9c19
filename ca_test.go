package certman

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

func newTestCAManager(t *testing.T) (*CAManager, *KeyStore) {
	t.Helper()
	cfg := testConfig(t, stubToolScript)
	store := openTestStore(t, cfg)
	return NewCAManager(cfg, store), store
}

func TestCreateConfig_Defaults(t *testing.T) {
	mgr, store := newTestCAManager(t)

	written, err := mgr.CreateConfig("ca", "", "", false)
	if err != nil {
		t.Fatal(err)
	}
	if !written {
		t.Fatal("config not written")
	}

	content := string(readFile(t, store.File("ca", "cfg")))
	if !strings.Contains(content, "CN = "+DefaultCACommonName) {
		t.Errorf("default CN missing:\n%s", content)
	}
	if !strings.Contains(content, "O = "+DefaultCAOrganization) {
		t.Errorf("default O missing:\n%s", content)
	}
}

func TestCreateConfig_EmptyBasename(t *testing.T) {
	mgr, _ := newTestCAManager(t)
	if _, err := mgr.CreateConfig("", "cn", "org", false); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("err = %v, want ErrInvalidArgument", err)
	}
	// A basename that sanitizes to nothing is equally invalid.
	if _, err := mgr.CreateConfig(`/'"`, "cn", "org", false); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestCreateCA_ProducesKeyConfigAndCert(t *testing.T) {
	mgr, store := newTestCAManager(t)

	if err := mgr.CreateCA(context.Background(), "ca", "", false); err != nil {
		t.Fatal(err)
	}
	for _, ext := range []string{"key", "crt", "cfg"} {
		if !fileExists(store.File("ca", ext)) {
			t.Errorf("ca.%s not created", ext)
		}
	}
}

func TestCreateCA_ReusesExistingKeyAndCert(t *testing.T) {
	mgr, store := newTestCAManager(t)
	ctx := context.Background()

	if err := mgr.CreateCA(ctx, "ca", "", false); err != nil {
		t.Fatal(err)
	}
	keyBefore := readFile(t, store.File("ca", "key"))
	crtBefore := readFile(t, store.File("ca", "crt"))
	runsBefore := len(invocations(t, store))

	if err := mgr.CreateCA(ctx, "ca", "", false); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(keyBefore, readFile(t, store.File("ca", "key"))) {
		t.Error("CA key regenerated without force")
	}
	if !bytes.Equal(crtBefore, readFile(t, store.File("ca", "crt"))) {
		t.Error("CA certificate regenerated without force")
	}
	if got := len(invocations(t, store)); got != runsBefore {
		t.Errorf("tool invoked %d more times for a full reuse", got-runsBefore)
	}
}

func TestCreateCA_ForceRegenerates(t *testing.T) {
	mgr, store := newTestCAManager(t)
	ctx := context.Background()

	if err := mgr.CreateCA(ctx, "ca", "", false); err != nil {
		t.Fatal(err)
	}
	keyBefore := readFile(t, store.File("ca", "key"))

	if err := mgr.CreateCA(ctx, "ca", "", true); err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(keyBefore, readFile(t, store.File("ca", "key"))) {
		t.Error("CA key not regenerated under force")
	}
}

func TestCreateCA_WeakPassphrase(t *testing.T) {
	mgr, store := newTestCAManager(t)
	ctx := context.Background()

	for _, pass := range []string{"1", "1234567"} {
		if err := mgr.CreateCA(ctx, "ca", pass, false); !errors.Is(err, ErrWeakPassphrase) {
			t.Errorf("passphrase %q: err = %v, want ErrWeakPassphrase", pass, err)
		}
	}
	if fileExists(store.File("ca", "key")) {
		t.Error("key written despite weak passphrase")
	}

	if err := mgr.CreateCA(ctx, "ca", "12345678", false); err != nil {
		t.Errorf("8-character passphrase rejected: %v", err)
	}
}

func TestCreateCA_PassphraseViaStdinNotArgv(t *testing.T) {
	mgr, store := newTestCAManager(t)

	if err := mgr.CreateCA(context.Background(), "ca", "longsecretphrase", false); err != nil {
		t.Fatal(err)
	}
	for _, line := range invocations(t, store) {
		if strings.Contains(line, "longsecretphrase") {
			t.Fatalf("passphrase leaked into argument vector: %s", line)
		}
	}
}

func TestCreateCA_EmptyBasename(t *testing.T) {
	mgr, _ := newTestCAManager(t)
	if err := mgr.CreateCA(context.Background(), "", "", false); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestCreateCA_ToolFailure(t *testing.T) {
	cfg := testConfig(t, stubFailScript)
	store := openTestStore(t, cfg)
	mgr := NewCAManager(cfg, store)

	err := mgr.CreateCA(context.Background(), "ca", "", false)
	if !errors.Is(err, ErrToolExecution) {
		t.Fatalf("err = %v, want ErrToolExecution", err)
	}
	var toolErr *ToolError
	if !errors.As(err, &toolErr) {
		t.Fatal("error does not carry the invocation")
	}
	if !strings.Contains(toolErr.Result.Stderr, "unable to load key") {
		t.Errorf("stderr not captured: %+v", toolErr.Result)
	}
}

func TestCreateCA_ConcurrentCallersCreateOnce(t *testing.T) {
	cfg := testConfig(t, stubSlowToolScript)
	store := openTestStore(t, cfg)
	mgr := NewCAManager(cfg, store)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = mgr.CreateCA(context.Background(), "ca", "", false)
		}()
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d: %v", i, err)
		}
	}

	var genrsa, selfsign int
	for _, line := range invocations(t, store) {
		if strings.Contains(line, "genrsa") {
			genrsa++
		}
		if strings.Contains(line, "-x509") {
			selfsign++
		}
	}
	if genrsa != 1 {
		t.Errorf("key generated %d times, want 1", genrsa)
	}
	if selfsign != 1 {
		t.Errorf("certificate self-signed %d times, want 1", selfsign)
	}
}
