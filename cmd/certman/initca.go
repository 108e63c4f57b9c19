package main

import (
	"github.com/spf13/cobra"
)

var (
	initCACN         string
	initCAOrg        string
	initCAPassphrase string
	initCAForce      bool
)

var initCACmd = &cobra.Command{
	Use:   "init-ca [basename]",
	Short: "Create a certificate authority",
	Long: `Create a CA config, private key, and 10-year self-signed certificate.

An existing CA is reused, never silently regenerated: regenerating would
invalidate every certificate it signed. Use --force to regenerate anyway.`,
	Example: `  certman init-ca
  certman init-ca myca --cn ca.example.com --org "Example Inc"
  certman init-ca --passphrase "at least 8 chars"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInitCA,
}

func init() {
	initCACmd.Flags().StringVar(&initCACN, "cn", "", "CA common name (default: built-in constant)")
	initCACmd.Flags().StringVar(&initCAOrg, "org", "", "CA organization (default: built-in constant)")
	initCACmd.Flags().StringVar(&initCAPassphrase, "passphrase", "", "Encrypt the CA key with this passphrase (min 8 characters)")
	initCACmd.Flags().BoolVar(&initCAForce, "force", false, "Regenerate the CA even if one exists")
}

func runInitCA(cmd *cobra.Command, args []string) (err error) {
	name := "ca"
	if len(args) == 1 {
		name = args[0]
	}

	s, err := newSession()
	if err != nil {
		return err
	}
	defer func() { err = s.close(err) }()

	mgr := s.caManager()
	if _, err := mgr.CreateConfig(name, initCACN, initCAOrg, initCAForce); err != nil {
		return err
	}
	return mgr.CreateCA(cmd.Context(), name, initCAPassphrase, initCAForce)
}
