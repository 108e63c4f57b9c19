package certman

import "fmt"

// Defaults filled into a DistinguishedName for optional attributes left
// unset by the caller.
const (
	DefaultCountry            = "AU"
	DefaultState              = "QLD"
	DefaultLocality           = "Brisbane"
	DefaultOrganizationalUnit = "FreePBX Created Certificate"
	DefaultEmail              = "placeholder@invalid"
)

// DistinguishedName holds the identity attributes embedded in a certificate
// request. Organization and CommonName are required; the remaining fields are
// defaulted by WithDefaults when left empty.
type DistinguishedName struct {
	Country            string
	State              string
	Locality           string
	Organization       string
	OrganizationalUnit string
	CommonName         string
	Email              string
}

// Validate checks that the required attributes are present.
func (dn DistinguishedName) Validate() error {
	if dn.Organization == "" {
		return fmt.Errorf("%w: O (organization)", ErrMissingField)
	}
	if dn.CommonName == "" {
		return fmt.Errorf("%w: CN (common name)", ErrMissingField)
	}
	return nil
}

// WithDefaults returns a copy with every optional attribute left empty
// replaced by its default value. Required attributes are never defaulted.
func (dn DistinguishedName) WithDefaults() DistinguishedName {
	if dn.Country == "" {
		dn.Country = DefaultCountry
	}
	if dn.State == "" {
		dn.State = DefaultState
	}
	if dn.Locality == "" {
		dn.Locality = DefaultLocality
	}
	if dn.OrganizationalUnit == "" {
		dn.OrganizationalUnit = DefaultOrganizationalUnit
	}
	if dn.Email == "" {
		dn.Email = DefaultEmail
	}
	return dn
}

// attributes returns the RFC 2253 attribute key/value pairs in the fixed
// emission order used by the CSR config. Empty attributes are omitted.
func (dn DistinguishedName) attributes() [][2]string {
	ordered := [][2]string{
		{"C", dn.Country},
		{"ST", dn.State},
		{"L", dn.Locality},
		{"O", dn.Organization},
		{"OU", dn.OrganizationalUnit},
		{"CN", dn.CommonName},
		{"emailAddress", dn.Email},
	}
	attrs := ordered[:0]
	for _, kv := range ordered {
		if kv[1] != "" {
			attrs = append(attrs, kv)
		}
	}
	return attrs
}
