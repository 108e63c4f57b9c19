package main

import (
	"log/slog"
	"path/filepath"

	"github.com/sensiblebit/certman"
	"github.com/sensiblebit/certman/internal/ledger"
	"github.com/sensiblebit/certman/internal/logging"
	"github.com/spf13/cobra"
)

var (
	logLevel    string
	configPath  string
	keyStoreDir string
	toolBinary  string
	timeoutSecs int
)

var rootCmd = &cobra.Command{
	Use:   "certman",
	Short: "Local certificate authority and certificate manager",
	Long: `Create and maintain a local certificate authority, issue and sign
certificate requests, and keep the key store's ownership consistent.
All cryptographic work is delegated to the openssl command line tool.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&keyStoreDir, "keystore", "", "Key store directory override (pins the location, skips validation)")
	rootCmd.PersistentFlags().StringVar(&toolBinary, "openssl", "", "Path to the openssl binary")
	rootCmd.PersistentFlags().IntVar(&timeoutSecs, "timeout", 0, "Toolkit timeout in seconds")

	registerCompletion(rootCmd, "log-level", fixedCompletion("debug", "info", "warn", "error"))
	registerCompletion(rootCmd, "keystore", directoryCompletion)
	registerCompletion(rootCmd, "config", fileCompletion)

	rootCmd.AddCommand(initCACmd)
	rootCmd.AddCommand(certCmd)
	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(csrCmd)
	rootCmd.AddCommand(signCmd)
	rootCmd.AddCommand(bundleCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(hostnameCmd)
}

// session bundles the per-invocation state every command needs: the loaded
// configuration, the open key store, and the optional issuance ledger.
type session struct {
	cfg    *certman.Config
	store  *certman.KeyStore
	ledger *ledger.Ledger
}

// newSession sets up logging, loads configuration, and opens the key store,
// honoring the persistent flag overrides.
func newSession() (*session, error) {
	logging.Setup(logLevel)

	cfg := certman.DefaultConfig()
	if configPath != "" {
		loaded, err := certman.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if toolBinary != "" {
		cfg.ToolBinary = toolBinary
	}
	if timeoutSecs > 0 {
		cfg.TimeoutSeconds = timeoutSecs
	}

	var store *certman.KeyStore
	if keyStoreDir != "" {
		store = certman.OpenKeyStoreAt(keyStoreDir, cfg.ServiceAccount)
	} else {
		var err error
		store, err = certman.OpenKeyStore(cfg)
		if err != nil {
			return nil, err
		}
	}

	s := &session{cfg: cfg, store: store}
	l, err := ledger.Open(filepath.Join(store.Path(), ".certman.db"))
	if err != nil {
		slog.Warn("issuance ledger unavailable", "error", err)
	} else {
		s.ledger = l
	}
	return s, nil
}

// close releases the ledger and closes the key store, which runs the
// ownership sweep. The sweep's error wins only when the command itself
// succeeded.
func (s *session) close(err error) error {
	if s.ledger != nil {
		_ = s.ledger.Close()
	}
	if cerr := s.store.Close(); cerr != nil && err == nil {
		return cerr
	}
	return err
}

func (s *session) certManager() *certman.CertManager {
	m := certman.NewCertManager(s.cfg, s.store)
	m.Ledger = s.ledger
	return m
}

func (s *session) caManager() *certman.CAManager {
	return certman.NewCAManager(s.cfg, s.store).WithLedger(s.ledger)
}
