package main

import (
	"github.com/sensiblebit/certman"
	"github.com/spf13/cobra"
)

var (
	csrCN         string
	csrOrg        string
	csrCountry    string
	csrState      string
	csrLocality   string
	csrOrgUnit    string
	csrEmail      string
	csrRegenerate bool
)

var csrCmd = &cobra.Command{
	Use:   "csr <name>",
	Short: "Create a certificate signing request",
	Long: `Create a CSR for the given basename, generating a key first if none exists.

Organization is required. The common name defaults to this host's fully
qualified hostname. An existing CSR is kept unless --regenerate is given.`,
	Example: `  certman csr www --org "Acme" --cn www.acme.test
  certman csr www --org "Acme"
  certman csr www --org "Acme" --regenerate`,
	Args: cobra.ExactArgs(1),
	RunE: runCSR,
}

func init() {
	csrCmd.Flags().StringVar(&csrCN, "cn", "", "Common name (default: this host's FQDN)")
	csrCmd.Flags().StringVar(&csrOrg, "org", "", "Organization (required)")
	csrCmd.Flags().StringVar(&csrCountry, "country", "", "Country code")
	csrCmd.Flags().StringVar(&csrState, "state", "", "State or province")
	csrCmd.Flags().StringVar(&csrLocality, "locality", "", "Locality")
	csrCmd.Flags().StringVar(&csrOrgUnit, "org-unit", "", "Organizational unit")
	csrCmd.Flags().StringVar(&csrEmail, "email", "", "Email address")
	csrCmd.Flags().BoolVar(&csrRegenerate, "regenerate", false, "Replace an existing CSR")
}

func runCSR(cmd *cobra.Command, args []string) (err error) {
	cn := csrCN
	if cn == "" {
		cn, err = certman.ResolveHostname()
		if err != nil {
			return err
		}
	}

	s, err := newSession()
	if err != nil {
		return err
	}
	defer func() { err = s.close(err) }()

	dn := certman.DistinguishedName{
		Country:            csrCountry,
		State:              csrState,
		Locality:           csrLocality,
		Organization:       csrOrg,
		OrganizationalUnit: csrOrgUnit,
		CommonName:         cn,
		Email:              csrEmail,
	}
	return s.certManager().CreateCSR(cmd.Context(), args[0], dn, csrRegenerate)
}
