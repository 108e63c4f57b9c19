package certman

import (
	"fmt"
	"os"
	"time"
)

// CertInfo summarizes a stored certificate for display. It is parsed locally
// and involves no chain validation.
type CertInfo struct {
	Subject   string
	Issuer    string
	Serial    string
	NotBefore time.Time
	NotAfter  time.Time
	IsCA      bool
}

// Inspect parses the basename's certificate file and returns its summary.
func (m *CertManager) Inspect(name string) (*CertInfo, error) {
	name = SanitizeName(name)
	if name == "" {
		return nil, fmt.Errorf("%w: certificate name is required", ErrInvalidArgument)
	}

	crtPath := m.Store.File(name, "crt")
	data, err := os.ReadFile(crtPath)
	if err != nil {
		return nil, fmt.Errorf("%w: certificate for %q (%s)", ErrNotFound, name, crtPath)
	}
	cert, err := ParsePEMCertificate(data)
	if err != nil {
		return nil, fmt.Errorf("parsing certificate %s: %w", crtPath, err)
	}

	return &CertInfo{
		Subject:   cert.Subject.String(),
		Issuer:    cert.Issuer.String(),
		Serial:    cert.SerialNumber.String(),
		NotBefore: cert.NotBefore,
		NotAfter:  cert.NotAfter,
		IsCA:      cert.IsCA,
	}, nil
}
