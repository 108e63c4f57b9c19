package certman

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteCAConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ca.cfg")
	written, err := WriteCAConfig(path, "ca.acme.test", "Acme", false)
	if err != nil {
		t.Fatal(err)
	}
	if !written {
		t.Fatal("expected config to be written")
	}

	content := string(readFile(t, path))
	for _, want := range []string{
		"default_md = sha256",
		"prompt = no",
		"CN = ca.acme.test",
		"O = Acme",
		"basicConstraints = critical,CA:TRUE",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("config missing %q:\n%s", want, content)
		}
	}
}

func TestWriteCAConfig_IdempotentUnlessForced(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ca.cfg")
	if _, err := WriteCAConfig(path, "first", "Acme", false); err != nil {
		t.Fatal(err)
	}

	written, err := WriteCAConfig(path, "second", "Acme", false)
	if err != nil {
		t.Fatal(err)
	}
	if written {
		t.Error("existing config was rewritten without force")
	}
	if !strings.Contains(string(readFile(t, path)), "CN = first") {
		t.Error("existing config content changed")
	}

	written, err = WriteCAConfig(path, "second", "Acme", true)
	if err != nil {
		t.Fatal(err)
	}
	if !written {
		t.Error("forced write reported not written")
	}
	if !strings.Contains(string(readFile(t, path)), "CN = second") {
		t.Error("forced write did not replace content")
	}
}

func TestWriteCSRConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "www.csr-config")
	dn := DistinguishedName{Organization: "Acme", CommonName: "www.acme.test"}.WithDefaults()
	if err := WriteCSRConfig(path, dn); err != nil {
		t.Fatal(err)
	}

	content := string(readFile(t, path))
	wantLines := []string{
		"default_bits = 4096",
		"prompt = no",
		"default_md = sha256",
		"C = AU",
		"ST = QLD",
		"L = Brisbane",
		"O = Acme",
		"OU = FreePBX Created Certificate",
		"CN = www.acme.test",
		"emailAddress = placeholder@invalid",
	}
	for _, want := range wantLines {
		if !strings.Contains(content, want) {
			t.Errorf("config missing %q:\n%s", want, content)
		}
	}

	// Attributes appear in the fixed order.
	if strings.Index(content, "C = AU") > strings.Index(content, "CN = www.acme.test") {
		t.Error("attribute order not preserved")
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "certman.yaml")
	yaml := "keyStoreDir: /tmp/keys\nserviceAccount: pbx\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.KeyStoreDir != "/tmp/keys" {
		t.Errorf("KeyStoreDir = %q", cfg.KeyStoreDir)
	}
	if cfg.ServiceAccount != "pbx" {
		t.Errorf("ServiceAccount = %q", cfg.ServiceAccount)
	}
	// Unset fields keep defaults.
	if cfg.ToolBinary != DefaultToolBinary {
		t.Errorf("ToolBinary = %q, want default", cfg.ToolBinary)
	}
	if cfg.TimeoutSeconds != DefaultTimeoutSeconds {
		t.Errorf("TimeoutSeconds = %d, want default", cfg.TimeoutSeconds)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return data
}
