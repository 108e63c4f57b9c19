package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	bundleCA            string
	bundleKeyPassphrase string
	bundlePassword      string
	bundleOut           string
)

var bundleCmd = &cobra.Command{
	Use:   "bundle <name>",
	Short: "Export a certificate and key as PKCS#12",
	Long: `Package the basename's private key and certificate (plus the CA
certificate when one is present) into a password-protected PKCS#12 file.`,
	Example: `  certman bundle www --password changeit
  certman bundle www --ca myca --password changeit -o www.p12`,
	Args: cobra.ExactArgs(1),
	RunE: runBundle,
}

func init() {
	bundleCmd.Flags().StringVar(&bundleCA, "ca", "ca", "CA basename for chain inclusion")
	bundleCmd.Flags().StringVar(&bundleKeyPassphrase, "key-passphrase", "", "Passphrase of the private key, if encrypted")
	bundleCmd.Flags().StringVar(&bundlePassword, "password", "", "Password protecting the PKCS#12 output")
	bundleCmd.Flags().StringVarP(&bundleOut, "out", "o", "", "Output file (default <name>.p12)")

	registerCompletion(bundleCmd, "out", fileCompletion)
}

func runBundle(cmd *cobra.Command, args []string) (err error) {
	s, err := newSession()
	if err != nil {
		return err
	}
	defer func() { err = s.close(err) }()

	data, err := s.certManager().ExportPKCS12(args[0], bundleCA, bundleKeyPassphrase, bundlePassword)
	if err != nil {
		return err
	}

	out := bundleOut
	if out == "" {
		out = args[0] + ".p12"
	}
	if err := os.WriteFile(out, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}
	fmt.Fprintf(os.Stderr, "PKCS#12 bundle: %s\n", out)
	return nil
}
