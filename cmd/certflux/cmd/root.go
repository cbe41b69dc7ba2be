package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmcleod/certflux/config"
	"github.com/jmcleod/certflux/output"
)

// Version is stamped at build time.
var Version = "dev"

var (
	configPath string
	verbose    bool
	quiet      bool
	noColor    bool
)

const defaultConfigPath = "/etc/flux-pki/certflux.toml"

var rootCmd = &cobra.Command{
	Use:     "certflux",
	Short:   "Certificate issuance for an internal PKI",
	Version: Version,
	Long: `certflux signs certificates with an intermediate CA key and manages
the resulting key and certificate files with a strict permission policy.
Complete documentation is available at https://github.com/jmcleod/certflux`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-error output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
}

// loadConfig reads the configured (or default) config file. A missing
// file is only tolerated when the default path is in use, falling back
// to built-in defaults.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = defaultConfigPath
		cfg, err := config.Load(path)
		if errors.Is(err, config.ErrNotFound) {
			return config.Default(), nil
		}
		return cfg, err
	}
	return config.Load(path)
}

func newFormatter() *output.Formatter {
	return output.New(quiet, noColor)
}

func fail(f *output.Formatter, err error) error {
	f.Error("%v", err)
	return fmt.Errorf("certflux: %w", err)
}
