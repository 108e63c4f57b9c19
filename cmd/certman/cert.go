package main

import (
	"github.com/sensiblebit/certman"
	"github.com/spf13/cobra"
)

var (
	certCA         string
	certPassphrase string
)

var certCmd = &cobra.Command{
	Use:   "cert [name]",
	Short: "Create a signed certificate and PEM bundle in one step",
	Long: `Generate a key, create a CSR from the CA's config, sign it, and write the
combined key+certificate bundle <name>.pem.

The name defaults to this host's fully qualified hostname.`,
	Example: `  certman cert
  certman cert www
  certman cert www --ca myca --passphrase "ca passphrase"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCert,
}

func init() {
	certCmd.Flags().StringVar(&certCA, "ca", "ca", "CA basename to sign with")
	certCmd.Flags().StringVar(&certPassphrase, "passphrase", "", "CA key passphrase")
}

func runCert(cmd *cobra.Command, args []string) (err error) {
	var name string
	if len(args) == 1 {
		name = args[0]
	} else {
		name, err = certman.ResolveHostname()
		if err != nil {
			return err
		}
	}

	s, err := newSession()
	if err != nil {
		return err
	}
	defer func() { err = s.close(err) }()

	return s.certManager().CreateCert(cmd.Context(), name, certCA, certPassphrase)
}
