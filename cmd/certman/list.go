package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var listEvents bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List key store contents",
	Long: `List the certificate, key, CSR, and config files in the key store.
Certificates are shown with their subject and expiry. With --events the
issuance ledger's recorded history is printed instead.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().BoolVar(&listEvents, "events", false, "Show recorded issuance events instead of files")
}

func runList(cmd *cobra.Command, args []string) (err error) {
	s, err := newSession()
	if err != nil {
		return err
	}
	defer func() { err = s.close(err) }()

	if listEvents {
		if s.ledger == nil {
			return fmt.Errorf("issuance ledger unavailable in %s", s.store.Path())
		}
		events, err := s.ledger.Events()
		if err != nil {
			return err
		}
		for _, e := range events {
			fmt.Printf("%s  %-4s %-15s %s  %s\n",
				e.CreatedAt.Format("2006-01-02 15:04:05"), e.Kind, e.Action, e.Basename, e.Detail)
		}
		return nil
	}

	files, err := s.store.ListFiles()
	if err != nil {
		return err
	}
	mgr := s.certManager()
	for _, name := range files {
		if strings.HasSuffix(name, ".crt") {
			if info, err := mgr.Inspect(strings.TrimSuffix(name, ".crt")); err == nil {
				fmt.Printf("%-30s %s  expires %s\n", name, info.Subject, info.NotAfter.Format("2006-01-02"))
				continue
			}
		}
		fmt.Println(name)
	}
	return nil
}
