package main

import (
	"fmt"

	"github.com/sensiblebit/certman"
	"github.com/sensiblebit/certman/internal/logging"
	"github.com/spf13/cobra"
)

var hostnameCmd = &cobra.Command{
	Use:   "hostname",
	Short: "Print this host's resolved hostname",
	Long:  "Print the fully qualified hostname used as the default certificate common name.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logging.Setup(logLevel)
		host, err := certman.ResolveHostname()
		if err != nil {
			return err
		}
		fmt.Println(host)
		return nil
	},
}
