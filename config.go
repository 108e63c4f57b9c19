package certman

import (
	"bytes"
	"fmt"
	"os"
)

// WriteCAConfig writes the toolkit's declarative config for self-signed CA
// issuance: SHA-256 digest, a non-interactive distinguished-name section with
// the given CN and O, and a basic-constraints extension marking the
// certificate as a CA. The file is left untouched when it already exists,
// unless force is set. Reports whether a file was written.
func WriteCAConfig(path, commonName, organization string, force bool) (bool, error) {
	if fileExists(path) && !force {
		return false, nil
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "[req]\n")
	fmt.Fprintf(&buf, "default_md = sha256\n")
	fmt.Fprintf(&buf, "prompt = no\n")
	fmt.Fprintf(&buf, "distinguished_name = req_dn\n")
	fmt.Fprintf(&buf, "x509_extensions = v3_ca\n")
	fmt.Fprintf(&buf, "\n[req_dn]\n")
	fmt.Fprintf(&buf, "CN = %s\n", commonName)
	fmt.Fprintf(&buf, "O = %s\n", organization)
	fmt.Fprintf(&buf, "\n[v3_ca]\n")
	fmt.Fprintf(&buf, "basicConstraints = critical,CA:TRUE\n")

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return false, fmt.Errorf("writing CA config %s: %w", path, err)
	}
	return true, nil
}

// WriteCSRConfig writes the toolkit's declarative config for CSR generation.
// The default_bits line is informational only; the key is generated
// separately. Distinguished-name attributes are emitted one per line in the
// fixed order C, ST, L, O, OU, CN, emailAddress. The file is always
// (re)written: it is transient and derived entirely from the parameters.
func WriteCSRConfig(path string, dn DistinguishedName) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "[req]\n")
	fmt.Fprintf(&buf, "default_bits = 4096\n")
	fmt.Fprintf(&buf, "prompt = no\n")
	fmt.Fprintf(&buf, "default_md = sha256\n")
	fmt.Fprintf(&buf, "distinguished_name = req_dn\n")
	fmt.Fprintf(&buf, "\n[req_dn]\n")
	for _, kv := range dn.attributes() {
		fmt.Fprintf(&buf, "%s = %s\n", kv[0], kv[1])
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing CSR config %s: %w", path, err)
	}
	return nil
}
