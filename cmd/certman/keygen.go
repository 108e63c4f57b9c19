package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	keygenBits       int
	keygenPassphrase string
)

var keygenCmd = &cobra.Command{
	Use:   "keygen <name>",
	Short: "Generate a private key",
	Long: `Generate an RSA private key in the key store.

An existing key is authoritative and is never overwritten; the command
reports that the key was reused instead.`,
	Example: `  certman keygen www
  certman keygen www --bits 4096
  certman keygen www --passphrase "at least 8 chars"`,
	Args: cobra.ExactArgs(1),
	RunE: runKeygen,
}

func init() {
	keygenCmd.Flags().IntVarP(&keygenBits, "bits", "b", 0, "RSA key size in bits (default 2048)")
	keygenCmd.Flags().StringVar(&keygenPassphrase, "passphrase", "", "Encrypt the key with this passphrase (min 8 characters)")

	registerCompletion(keygenCmd, "bits", fixedCompletion("1024", "2048", "4096"))
}

func runKeygen(cmd *cobra.Command, args []string) (err error) {
	s, err := newSession()
	if err != nil {
		return err
	}
	defer func() { err = s.close(err) }()

	generated, err := s.certManager().GenerateKey(cmd.Context(), args[0], keygenPassphrase, keygenBits)
	if err != nil {
		return err
	}
	if !generated {
		fmt.Printf("key for %q already exists, reused\n", args[0])
	}
	return nil
}
