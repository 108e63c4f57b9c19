package certman

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/sensiblebit/certman/internal/ledger"
)

// Built-in distinguished-name constants for a CA config created without
// explicit values.
const (
	DefaultCACommonName   = "localhost"
	DefaultCAOrganization = "FreePBX Certificate Authority"
)

const (
	// caValidityDays is the self-signed CA certificate lifetime. Note the
	// deliberate difference from leafValidityDays.
	caValidityDays = 3650
	caKeyBits      = 4096
)

// CAManager orchestrates certificate authority creation: the CA's
// distinguished-name config, its private key, and its self-signed
// certificate. A CA's key and certificate are never regenerated once present
// unless forced, because regeneration invalidates every certificate the CA
// ever signed.
type CAManager struct {
	certs *CertManager
}

// NewCAManager returns a CAManager over the given key store.
func NewCAManager(cfg *Config, store *KeyStore) *CAManager {
	return &CAManager{certs: NewCertManager(cfg, store)}
}

// WithLedger attaches an issuance ledger shared with the certificate
// manager. Recording stays best-effort.
func (m *CAManager) WithLedger(l *ledger.Ledger) *CAManager {
	m.certs.Ledger = l
	return m
}

// CreateConfig writes the CA's distinguished-name config file. Empty cn and
// org fall back to the built-in constants. Reports whether a file was
// written; an existing config is kept untouched unless force is set.
func (m *CAManager) CreateConfig(basename, cn, org string, force bool) (bool, error) {
	basename = SanitizeName(basename)
	if basename == "" {
		return false, fmt.Errorf("%w: CA basename is required", ErrInvalidArgument)
	}

	unlock, err := m.certs.Store.lock(basename)
	if err != nil {
		return false, err
	}
	defer unlock()

	return m.createConfig(basename, cn, org, force)
}

// createConfig is the locked-section body of CreateConfig. basename must
// already be sanitized and the caller must hold its basename lock.
func (m *CAManager) createConfig(basename, cn, org string, force bool) (bool, error) {
	if cn == "" {
		cn = DefaultCACommonName
	}
	if org == "" {
		org = DefaultCAOrganization
	}

	written, err := WriteCAConfig(m.certs.Store.File(basename, "cfg"), cn, org, force)
	if err != nil {
		return false, err
	}
	if written {
		slog.Info("wrote CA config", "ca", basename, "cn", cn, "org", org)
		m.certs.record(basename, ledger.KindCA, ledger.ActionConfigWritten, "CN="+cn)
	}
	return written, nil
}

// CreateCA creates the CA's key and 10-year self-signed certificate. An
// existing key or certificate is reused unless force is set; forcing deletes
// the stale file first and regenerates. A non-empty passphrase must be at
// least 8 characters, requests an encrypted CA key, and is piped to the tool
// via stdin.
func (m *CAManager) CreateCA(ctx context.Context, basename, passphrase string, force bool) error {
	basename = SanitizeName(basename)
	if basename == "" {
		return fmt.Errorf("%w: CA basename is required", ErrInvalidArgument)
	}
	if err := checkPassphrase(passphrase); err != nil {
		return err
	}

	// One lock spans config, key, and certificate: a concurrent caller must
	// not observe the key present but the certificate missing, or regenerate
	// a certificate another caller already signed against.
	unlock, err := m.certs.Store.lock(basename)
	if err != nil {
		return err
	}
	defer unlock()

	// The config is needed by the self-sign step; creating it here keeps
	// CreateCA usable on its own. An existing config is never replaced.
	if _, err := m.createConfig(basename, "", "", false); err != nil {
		return err
	}

	store := m.certs.Store
	keyPath := store.File(basename, "key")
	if fileExists(keyPath) && !force {
		slog.Info("reusing existing CA key", "path", keyPath)
	} else {
		if err := os.Remove(keyPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing stale CA key %s: %w", keyPath, err)
		}
		if _, err := m.certs.generateKey(ctx, basename, passphrase, caKeyBits); err != nil {
			return err
		}
	}

	crtPath := store.File(basename, "crt")
	if fileExists(crtPath) && !force {
		slog.Info("reusing existing CA certificate", "path", crtPath)
		return nil
	}
	if err := os.Remove(crtPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale CA certificate %s: %w", crtPath, err)
	}

	args := []string{
		"req", "-new", "-x509",
		"-extensions", "v3_ca",
		"-days", strconv.Itoa(caValidityDays),
		"-config", store.File(basename, "cfg"),
		"-key", keyPath,
		"-out", crtPath,
	}
	if passphrase != "" {
		args = append(args, "-passin", "stdin")
	}

	res, err := m.certs.Tool.Run(ctx, args, passphrase)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return &ToolError{Args: args, Result: res}
	}

	slog.Info("created certificate authority", "ca", basename)
	m.certs.record(basename, ledger.KindCA, ledger.ActionCertSigned, "self-signed")
	return nil
}
