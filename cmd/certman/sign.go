package main

import (
	"github.com/spf13/cobra"
)

var (
	signCA         string
	signSerial     string
	signPassphrase string
)

var signCmd = &cobra.Command{
	Use:   "sign <name>",
	Short: "Sign a CSR against a CA",
	Long: `Sign the basename's existing CSR against a CA in the key store.

The CA passphrase (if any) is piped to the tool and accepts any length,
including legacy passphrases shorter than the creation-time minimum.`,
	Example: `  certman sign www
  certman sign www --ca myca --serial 0002`,
	Args: cobra.ExactArgs(1),
	RunE: runSign,
}

func init() {
	signCmd.Flags().StringVar(&signCA, "ca", "ca", "CA basename to sign with")
	signCmd.Flags().StringVar(&signSerial, "serial", "0001", "Certificate serial number")
	signCmd.Flags().StringVar(&signPassphrase, "passphrase", "", "CA key passphrase")
}

func runSign(cmd *cobra.Command, args []string) (err error) {
	s, err := newSession()
	if err != nil {
		return err
	}
	defer func() { err = s.close(err) }()

	return s.certManager().SelfSignCert(cmd.Context(), args[0], signCA, signPassphrase, signSerial)
}
