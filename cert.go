package certman

import (
	"context"
	"crypto/x509"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/sensiblebit/certman/internal/ledger"
	"github.com/sensiblebit/certman/internal/runner"
	gopkcs12 "software.sslmate.com/src/go-pkcs12"
)

const (
	// minPassphraseLen is the floor enforced for key generation and CA
	// creation. Signing against a CA deliberately skips it so legacy short
	// passphrases keep working.
	minPassphraseLen = 8

	// leafValidityDays is the validity period for CA-signed leaf
	// certificates. The count is 90 days short of the CA's own 3650; the
	// asymmetry is inherited from the system this replaces and kept so
	// reissued certificates line up with deployed ones.
	leafValidityDays = 3560

	// defaultKeyBits is the leaf key size when the caller does not choose
	// one. bundleKeyBits is the intentionally weaker legacy-compatible
	// size used by the CreateCert composite.
	defaultKeyBits = 2048
	bundleKeyBits  = 1024

	// DefaultCAName is the CA basename assumed when none is given.
	DefaultCAName = "ca"
)

// CertManager orchestrates leaf key generation, CSR creation, CA signing,
// and key+certificate bundling. All file paths come from the KeyStore and
// all toolkit invocations go through the runner.
type CertManager struct {
	Store *KeyStore
	Tool  *runner.Runner
	// Ledger, when non-nil, receives a best-effort record of every
	// lifecycle event. Recording failures never fail an operation.
	Ledger *ledger.Ledger
}

// NewCertManager returns a CertManager over the given key store.
func NewCertManager(cfg *Config, store *KeyStore) *CertManager {
	return &CertManager{
		Store: store,
		Tool:  runner.New(cfg.ToolBinary, cfg.ServiceAccount, store.Path(), cfg.Timeout()),
	}
}

func (m *CertManager) record(base, kind, action, detail string) {
	if m.Ledger == nil {
		return
	}
	if err := m.Ledger.Record(base, kind, action, detail); err != nil {
		slog.Warn("recording ledger event", "base", base, "action", action, "error", err)
	}
}

// checkPassphrase enforces the minimum passphrase length. An empty
// passphrase means "unencrypted" and is always allowed.
func checkPassphrase(passphrase string) error {
	if passphrase != "" && len(passphrase) < minPassphraseLen {
		return ErrWeakPassphrase
	}
	return nil
}

// GenerateKey generates a private key for the given basename. An existing
// key file is authoritative and never overwritten: the call is a silent
// no-op returning false, so deployed private keys cannot be invalidated by a
// repeat call. bits zero selects the 2048-bit default. A non-empty
// passphrase must be at least 8 characters and requests AES-256 encryption
// of the key; it reaches the tool via stdin, never as an argument.
func (m *CertManager) GenerateKey(ctx context.Context, name, passphrase string, bits int) (bool, error) {
	name = SanitizeName(name)
	if name == "" {
		return false, fmt.Errorf("%w: key name is required", ErrInvalidArgument)
	}
	if err := checkPassphrase(passphrase); err != nil {
		return false, err
	}
	if bits == 0 {
		bits = defaultKeyBits
	}

	unlock, err := m.Store.lock(name)
	if err != nil {
		return false, err
	}
	defer unlock()

	return m.generateKey(ctx, name, passphrase, bits)
}

// generateKey is the locked-section body of GenerateKey. name must already be
// sanitized and the caller must hold the basename lock; the flock is not
// re-entrant, so composite operations call this directly under their own lock.
func (m *CertManager) generateKey(ctx context.Context, name, passphrase string, bits int) (bool, error) {
	keyPath := m.Store.File(name, "key")
	if fileExists(keyPath) {
		slog.Debug("key already exists, leaving it untouched", "path", keyPath)
		return false, nil
	}

	args := []string{"genrsa"}
	if passphrase != "" {
		args = append(args, "-aes256", "-passout", "stdin")
	}
	args = append(args, "-out", keyPath, strconv.Itoa(bits))

	res, err := m.Tool.Run(ctx, args, passphrase)
	if err != nil {
		return false, err
	}
	if res.ExitCode != 0 {
		return false, &ToolError{Args: args, Result: res}
	}

	slog.Info("generated private key", "name", name, "bits", bits, "encrypted", passphrase != "")
	m.record(name, ledger.KindCert, ledger.ActionKeyGenerated, fmt.Sprintf("%d bits", bits))
	return true, nil
}

// CreateCSR creates a certificate signing request for the given basename.
// The distinguished name must carry at least Organization and CommonName;
// optional attributes are defaulted. A key is generated first when none
// exists. An existing CSR makes the call an idempotent no-op unless
// regenerate is set, in which case the stale CSR is replaced.
func (m *CertManager) CreateCSR(ctx context.Context, name string, dn DistinguishedName, regenerate bool) error {
	name = SanitizeName(name)
	if name == "" {
		return fmt.Errorf("%w: certificate name is required", ErrInvalidArgument)
	}
	// Validate before touching the filesystem so a rejected parameter set
	// writes nothing.
	if err := dn.Validate(); err != nil {
		return err
	}
	dn = dn.WithDefaults()

	unlock, err := m.Store.lock(name)
	if err != nil {
		return err
	}
	defer unlock()

	if _, err := m.generateKey(ctx, name, "", defaultKeyBits); err != nil {
		return err
	}

	csrPath := m.Store.File(name, "csr")
	if fileExists(csrPath) {
		if !regenerate {
			slog.Debug("CSR already exists", "path", csrPath)
			return nil
		}
		if err := os.Remove(csrPath); err != nil {
			return fmt.Errorf("removing stale CSR %s: %w", csrPath, err)
		}
	}

	cfgPath := m.Store.File(name, "csr-config")
	if err := WriteCSRConfig(cfgPath, dn); err != nil {
		return err
	}

	args := []string{
		"req", "-new", "-batch",
		"-config", cfgPath,
		"-key", m.Store.File(name, "key"),
		"-out", csrPath,
	}
	res, err := m.Tool.Run(ctx, args, "")
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return &ToolError{Args: args, Result: res}
	}

	slog.Info("created CSR", "name", name, "cn", dn.CommonName)
	m.record(name, ledger.KindCert, ledger.ActionCSRCreated, "CN="+dn.CommonName)
	return nil
}

// SelfSignCert signs the basename's CSR against the named CA, producing a
// certificate valid for 3560 days. The CSR and the CA's key and certificate
// must already exist. serial defaults to "0001" and caName to "ca". A CA
// passphrase of any length (including legacy short ones) is accepted and
// piped via stdin.
func (m *CertManager) SelfSignCert(ctx context.Context, name, caName, passphrase, serial string) error {
	name = SanitizeName(name)
	if name == "" {
		return fmt.Errorf("%w: certificate name is required", ErrInvalidArgument)
	}
	caName = SanitizeName(caName)
	if caName == "" {
		caName = DefaultCAName
	}
	if serial == "" {
		serial = "0001"
	}

	unlock, err := m.Store.lock(name)
	if err != nil {
		return err
	}
	defer unlock()

	return m.selfSign(ctx, name, caName, passphrase, serial)
}

// selfSign is the locked-section body of SelfSignCert. name and caName must
// already be sanitized and the caller must hold name's basename lock.
func (m *CertManager) selfSign(ctx context.Context, name, caName, passphrase, serial string) error {
	csrPath := m.Store.File(name, "csr")
	if !fileExists(csrPath) {
		return fmt.Errorf("%w: CSR for %q (%s)", ErrNotFound, name, csrPath)
	}
	caKey := m.Store.File(caName, "key")
	caCert := m.Store.File(caName, "crt")
	if !fileExists(caKey) || !fileExists(caCert) {
		return fmt.Errorf("%w: CA %q key or certificate", ErrNotFound, caName)
	}

	crtPath := m.Store.File(name, "crt")
	args := []string{
		"x509", "-req", "-sha256",
		"-days", strconv.Itoa(leafValidityDays),
		"-in", csrPath,
		"-CA", caCert,
		"-CAkey", caKey,
		"-set_serial", serial,
		"-out", crtPath,
	}
	if passphrase != "" {
		args = append(args, "-passin", "stdin")
	}

	res, err := m.Tool.Run(ctx, args, passphrase)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return &ToolError{Args: args, Result: res}
	}

	slog.Info("signed certificate", "name", name, "ca", caName, "serial", serial)
	m.record(name, ledger.KindCert, ledger.ActionCertSigned, "ca="+caName+" serial="+serial)
	return nil
}

// CreateCert is a convenience composite: it generates a small
// legacy-compatible 1024-bit key, creates a CSR from the CA's own config
// (whose prompt=no section suppresses interactive questions), signs it
// against the CA with serial "01", and concatenates key and certificate into
// the <name>.pem bundle. Any failing step aborts.
func (m *CertManager) CreateCert(ctx context.Context, name, caName, passphrase string) error {
	name = SanitizeName(name)
	if name == "" {
		return fmt.Errorf("%w: certificate name is required", ErrInvalidArgument)
	}
	caName = SanitizeName(caName)
	if caName == "" {
		caName = DefaultCAName
	}

	caCfg := m.Store.File(caName, "cfg")
	if !fileExists(caCfg) {
		return fmt.Errorf("%w: CA %q config (%s)", ErrNotFound, caName, caCfg)
	}

	// One lock spans the whole key/CSR/sign/bundle sequence so a concurrent
	// caller cannot interleave its own writes for the same basename.
	unlock, err := m.Store.lock(name)
	if err != nil {
		return err
	}
	defer unlock()

	if _, err := m.generateKey(ctx, name, "", bundleKeyBits); err != nil {
		return err
	}

	keyPath := m.Store.File(name, "key")
	csrPath := m.Store.File(name, "csr")
	args := []string{
		"req", "-new",
		"-config", caCfg,
		"-key", keyPath,
		"-out", csrPath,
	}
	res, err := m.Tool.Run(ctx, args, "")
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return &ToolError{Args: args, Result: res}
	}

	if err := m.selfSign(ctx, name, caName, passphrase, "01"); err != nil {
		return err
	}

	keyData, err := os.ReadFile(keyPath)
	if err != nil {
		return fmt.Errorf("reading key for bundle: %w", err)
	}
	crtData, err := os.ReadFile(m.Store.File(name, "crt"))
	if err != nil {
		return fmt.Errorf("reading certificate for bundle: %w", err)
	}
	bundlePath := m.Store.File(name, "pem")
	if err := os.WriteFile(bundlePath, append(keyData, crtData...), 0o600); err != nil {
		return fmt.Errorf("writing bundle %s: %w", bundlePath, err)
	}

	slog.Info("created certificate bundle", "name", name, "ca", caName, "path", bundlePath)
	m.record(name, ledger.KindCert, ledger.ActionBundleWritten, "ca="+caName)
	return nil
}

// ExportPKCS12 packages the basename's key and certificate (plus the CA
// certificate when caName names an existing one) into a PKCS#12 bundle
// protected by exportPassword. keyPassphrase decrypts the private key when
// it was generated encrypted.
func (m *CertManager) ExportPKCS12(name, caName, keyPassphrase, exportPassword string) ([]byte, error) {
	name = SanitizeName(name)
	if name == "" {
		return nil, fmt.Errorf("%w: certificate name is required", ErrInvalidArgument)
	}

	keyData, err := os.ReadFile(m.Store.File(name, "key"))
	if err != nil {
		return nil, fmt.Errorf("%w: key for %q: %v", ErrNotFound, name, err)
	}
	crtData, err := os.ReadFile(m.Store.File(name, "crt"))
	if err != nil {
		return nil, fmt.Errorf("%w: certificate for %q: %v", ErrNotFound, name, err)
	}

	key, err := ParsePEMPrivateKey(keyData, keyPassphrase)
	if err != nil {
		return nil, fmt.Errorf("parsing key for %q: %w", name, err)
	}
	cert, err := ParsePEMCertificate(crtData)
	if err != nil {
		return nil, fmt.Errorf("parsing certificate for %q: %w", name, err)
	}

	data, err := gopkcs12.Modern.Encode(key, cert, m.caCertFor(caName), exportPassword)
	if err != nil {
		return nil, fmt.Errorf("encoding PKCS#12 for %q: %w", name, err)
	}
	return data, nil
}

// caCertFor loads the named CA's certificate for chain inclusion, returning
// nil when the name is empty or the file is absent.
func (m *CertManager) caCertFor(caName string) []*x509.Certificate {
	caName = SanitizeName(caName)
	if caName == "" {
		return nil
	}
	data, err := os.ReadFile(m.Store.File(caName, "crt"))
	if err != nil {
		return nil
	}
	cert, err := ParsePEMCertificate(data)
	if err != nil {
		return nil
	}
	return []*x509.Certificate{cert}
}
